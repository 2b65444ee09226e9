package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/ottr/internal/chrome"
	"github.com/GriffinCanCode/ottr/internal/console"
	"github.com/GriffinCanCode/ottr/internal/domain/session"
	"github.com/GriffinCanCode/ottr/internal/infrastructure/server"
)

const (
	// SessionParam carries the session id to the test page.
	SessionParam = "ottr-session"
	// ServerParam carries the server address to the test page.
	ServerParam = "ottr-server"
)

// pollInterval is how often run checks whether the session is done.
const pollInterval = 100 * time.Millisecond

type runOptions struct {
	headful   bool
	binary    string
	timeout   time.Duration
	output    string
	summary   string
	noSandbox bool
	noCover   bool
}

func newRunCmd(global *globalOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run <url>",
		Short: "Run a test page in Chrome and write its coverage",
		Long: `Run a test page in Chrome. The page is opened with the session id and the
server address in its query string so that it can report console output and
test results back. Once every test is done the coverage of all scripts the
page loaded is written to --output. The command fails when any test failed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, global, opts, args[0])
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&opts.headful, "headful", false, "Show the browser with devtools open (env CHROME_HEADLESS=false)")
	flags.StringVar(&opts.binary, "chrome", "", "Chrome executable (env CHROME_BINARY)")
	flags.DurationVar(&opts.timeout, "timeout", 0, "Give up after this long (env CHROME_TIMEOUT)")
	flags.StringVarP(&opts.output, "output", "o", "", `Output file, "-" for stdout (env COVERAGE_OUTPUT)`)
	flags.StringVar(&opts.summary, "summary", "text", "Print a summary: text, json, yaml, toml; empty for none")
	flags.BoolVar(&opts.noSandbox, "no-sandbox", false, "Disable the Chrome sandbox")
	flags.BoolVar(&opts.noCover, "no-coverage", false, "Do not collect coverage (env CHROME_COVERAGE=false)")
	return cmd
}

func runRun(cmd *cobra.Command, global *globalOptions, opts *runOptions, target string) error {
	cfg, err := global.load(cmd)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("headful") {
		cfg.Chrome.Headless = !opts.headful
	}
	if flags.Changed("chrome") {
		cfg.Chrome.Binary = opts.binary
	}
	if flags.Changed("timeout") {
		cfg.Chrome.Timeout = opts.timeout
	}
	if flags.Changed("output") {
		cfg.Coverage.Output = opts.output
	}
	if opts.noCover {
		cfg.Chrome.Coverage = false
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	// The runner prints the page console; the server only records it.
	srv, err := server.NewServer(cfg, logger, server.WithConsole(console.Discard))
	if err != nil {
		return err
	}
	defer srv.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverCtx, stopServer := context.WithCancel(context.Background())
	serverDone := make(chan error, 1)
	go func() { serverDone <- srv.Run(serverCtx) }()
	defer func() {
		stopServer()
		if err := <-serverDone; err != nil {
			logger.Warn("Server shutdown failed", zap.Error(err))
		}
	}()

	select {
	case <-srv.Ready():
	case err := <-serverDone:
		serverDone <- err
		return err
	}

	id := srv.Store().Create()
	pageURL, err := sessionURL(target, id, srv.Addr())
	if err != nil {
		return err
	}

	runner, err := chrome.NewRunner(context.Background(), pageURL, chrome.Options{
		Binary:    cfg.Chrome.Binary,
		Headless:  cfg.Chrome.Headless,
		Coverage:  cfg.Chrome.Coverage,
		NoSandbox: opts.noSandbox,
	}, srv.Converter(), srv.Accumulator(), logger, chrome.WithConsole(newColorConsole(cmd.ErrOrStderr())))
	if err != nil {
		return err
	}

	result, waitErr := waitForSession(ctx, srv.Store(), id, cfg.Chrome.Timeout)
	if errors.Is(waitErr, context.Canceled) {
		runner.Close()
		return fmt.Errorf("interrupted")
	}

	cov, err := runner.Finish(context.Background())
	if err != nil {
		return err
	}
	if cfg.Chrome.Coverage {
		if err := writeOutput(cmd, cfg.Coverage.Output, srv.Accumulator().Snapshot()); err != nil {
			return err
		}
		if opts.summary != "" {
			if err := printSummary(cmd.ErrOrStderr(), cov.Summary(), opts.summary); err != nil {
				return err
			}
		}
	}

	if waitErr != nil {
		return waitErr
	}
	if result.Error != "" {
		return fmt.Errorf("session %s failed: %s", id, result.Error)
	}
	return nil
}

// sessionURL adds the session id and the server address to the test page URL.
func sessionURL(target, id string, addr net.Addr) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", target, err)
	}
	if u.Scheme == "" {
		return "", fmt.Errorf("invalid url %q: missing scheme", target)
	}
	q := u.Query()
	q.Set(SessionParam, id)
	if addr != nil {
		q.Set(ServerParam, addr.String())
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// waitForSession polls the store until the session is done, ctx is canceled
// or timeout elapses. A zero timeout waits forever.
func waitForSession(ctx context.Context, store *session.Store, id string, timeout time.Duration) (session.Session, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		s, err := store.Get(id)
		if err != nil {
			return s, err
		}
		if s.Done {
			return s, nil
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return s, fmt.Errorf("session %s timed out after %s", id, timeout)
			}
			return s, ctx.Err()
		case <-ticker.C:
		}
	}
}
