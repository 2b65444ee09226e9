package chrome

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/debugger"
	"github.com/chromedp/cdproto/profiler"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/ottr/internal/console"
	"github.com/GriffinCanCode/ottr/internal/coverage"
	"github.com/GriffinCanCode/ottr/internal/logging"
)

// ErrFinished is returned when a runner is used after Finish.
var ErrFinished = errors.New("chrome runner already finished")

// Options configures the browser.
type Options struct {
	// Binary is the Chrome executable. Empty uses the one chromedp finds.
	Binary string
	// Headless runs without a window. Headful runs open devtools.
	Headless bool
	// Coverage collects precise block coverage for the tab's lifetime.
	Coverage bool
	// NoSandbox disables the Chrome sandbox, needed when running as root in
	// containers.
	NoSandbox bool
}

// Runner drives one Chrome tab through a test page and collects the coverage
// of every script it loads.
type Runner struct {
	opts      Options
	ctx       context.Context
	cancel    context.CancelFunc
	converter *coverage.Converter
	acc       *coverage.Accumulator
	console   console.Console
	logger    *logging.Logger

	mu       sync.Mutex
	scripts  map[runtime.ScriptID]string
	order    []runtime.ScriptID
	finished bool
}

// RunnerOption customises a Runner.
type RunnerOption func(*Runner)

// WithConsole sends the page's console output to c instead of the logger.
func WithConsole(c console.Console) RunnerOption {
	return func(r *Runner) { r.console = c }
}

// NewRunner launches Chrome, opens a tab, starts coverage collection when
// enabled and navigates to url. Coverage is converted with converter and
// added to acc by Finish; both may be nil when Coverage is off.
func NewRunner(ctx context.Context, url string, opts Options, converter *coverage.Converter, acc *coverage.Accumulator, logger *logging.Logger, options ...RunnerOption) (*Runner, error) {
	logger = logging.OrNop(logger).Named("chrome")
	if opts.Coverage && (converter == nil || acc == nil) {
		return nil, fmt.Errorf("coverage requires a converter and an accumulator")
	}

	r := &Runner{
		opts:      opts,
		converter: converter,
		acc:       acc,
		logger:    logger,
		scripts:   make(map[runtime.ScriptID]string),
	}
	for _, o := range options {
		o(r)
	}
	if r.console == nil {
		r.console = console.NewLogger(logger, zap.String("source", "chrome"))
	}

	if opts.Binary != "" {
		logger.Info("using Chrome binary", zap.String("path", opts.Binary))
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocatorOptions(opts)...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(logger.Sugar().Debugf),
		chromedp.WithErrorf(logger.Sugar().Errorf),
	)
	r.ctx = tabCtx
	r.cancel = func() {
		cancelTab()
		cancelAlloc()
	}

	chromedp.ListenTarget(tabCtx, r.handleEvent)

	if err := chromedp.Run(tabCtx, r.start()); err != nil {
		r.cancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	logger.Info("navigating", zap.String("url", url))
	if err := chromedp.Run(tabCtx, chromedp.Navigate(url)); err != nil {
		logger.Error("navigation failed", zap.String("url", url), zap.Error(err))
	}
	return r, nil
}

func allocatorOptions(opts Options) []chromedp.ExecAllocatorOption {
	out := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if !opts.Headless {
		out = append(out,
			chromedp.Flag("headless", false),
			chromedp.Flag("auto-open-devtools-for-tabs", true),
		)
	}
	if opts.Binary != "" {
		out = append(out, chromedp.ExecPath(opts.Binary))
	}
	if opts.NoSandbox {
		out = append(out, chromedp.NoSandbox)
	}
	return out
}

// start enables the domains the runner listens to. Scripts are recorded for
// the tab's whole lifetime, across navigations.
func (r *Runner) start() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := runtime.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable runtime: %w", err)
		}
		if !r.opts.Coverage {
			return nil
		}
		if _, err := debugger.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable debugger: %w", err)
		}
		if err := profiler.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable profiler: %w", err)
		}
		if _, err := profiler.StartPreciseCoverage().WithCallCount(false).WithDetailed(true).Do(ctx); err != nil {
			return fmt.Errorf("start coverage: %w", err)
		}
		return nil
	})
}

func (r *Runner) handleEvent(ev any) {
	switch e := ev.(type) {
	case *runtime.EventConsoleAPICalled:
		r.console.Log(console.ParseLevel(e.Type.String()), consoleArgs(e.Args)...)
	case *runtime.EventExceptionThrown:
		if d := e.ExceptionDetails; d != nil {
			text := d.Text
			if d.Exception != nil && d.Exception.Description != "" {
				text = d.Exception.Description
			}
			r.console.Log(console.LevelError, text)
		}
	case *debugger.EventScriptParsed:
		r.recordScript(e.ScriptID, e.URL)
	}
}

// recordScript remembers a parsed script. Scripts without a URL are
// evaluated snippets, not part of the application.
func (r *Runner) recordScript(id runtime.ScriptID, url string) {
	if url == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.scripts[id]; !ok {
		r.order = append(r.order, id)
	}
	r.scripts[id] = url
}

// Context returns the tab's context. It is canceled by Finish and Close.
func (r *Runner) Context() context.Context { return r.ctx }

// Finish collects coverage when enabled, converts it, adds it to the
// accumulator and closes the browser. The converted coverage is returned.
func (r *Runner) Finish(ctx context.Context) (coverage.CoverageMap, error) {
	r.mu.Lock()
	if r.finished {
		r.mu.Unlock()
		return nil, ErrFinished
	}
	r.finished = true
	r.mu.Unlock()
	defer r.cancel()

	if !r.opts.Coverage {
		return coverage.CoverageMap{}, nil
	}

	r.logger.Info("downloading coverage data from Chrome")
	started := time.Now()
	var reports []coverage.Report
	err := chromedp.Run(r.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		result, _, err := profiler.TakePreciseCoverage().Do(ctx)
		if err != nil {
			return fmt.Errorf("take coverage: %w", err)
		}
		reports = r.reports(result, func(id runtime.ScriptID) (string, error) {
			src, _, err := debugger.GetScriptSource(id).Do(ctx)
			return src, err
		})
		if err := profiler.StopPreciseCoverage().Do(ctx); err != nil {
			r.logger.Debug("stop coverage", zap.Error(err))
		}
		return nil
	}))
	if err != nil {
		return nil, err
	}
	r.logger.Info("downloaded coverage",
		zap.Int("scripts", len(reports)),
		zap.Duration("elapsed", time.Since(started)),
	)

	converted, err := r.converter.Convert(ctx, reports)
	if err != nil {
		return nil, fmt.Errorf("convert coverage: %w", err)
	}
	r.acc.Add(converted)
	for _, path := range converted.Paths() {
		r.logger.Debug("collected coverage", zap.String("path", path))
	}
	return converted, nil
}

// Close shuts the browser down without collecting coverage.
func (r *Runner) Close() {
	r.mu.Lock()
	r.finished = true
	r.mu.Unlock()
	r.cancel()
}

type sourceFunc func(runtime.ScriptID) (string, error)

// reports pairs each covered script with its URL and source. Scripts that
// were never announced with a URL, or whose source cannot be fetched, are
// skipped.
func (r *Runner) reports(result []*profiler.ScriptCoverage, source sourceFunc) []coverage.Report {
	r.mu.Lock()
	urls := make(map[runtime.ScriptID]string, len(r.scripts))
	for id, url := range r.scripts {
		urls[id] = url
	}
	r.mu.Unlock()

	out := make([]coverage.Report, 0, len(result))
	for _, sc := range result {
		url, ok := urls[sc.ScriptID]
		if !ok {
			continue
		}
		text, err := source(sc.ScriptID)
		if err != nil {
			r.logger.Warn("could not fetch script source", zap.String("url", url), zap.Error(err))
			continue
		}
		out = append(out, coverage.Report{
			URL:    url,
			Text:   text,
			Ranges: DisjointRanges(flatten(sc)),
		})
	}
	return out
}
