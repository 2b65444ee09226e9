package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/ottr/internal/infrastructure/server"
)

type serveOptions struct {
	output string
}

func newServeCmd(global *globalOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the ottr server",
		Long: `Run the ottr server. Test pages report console output and results over
the event socket and post raw Chrome coverage to the API. Coverage collected
while the server runs is written to --output on shutdown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, global, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Write accumulated coverage here on shutdown (env COVERAGE_OUTPUT)")
	return cmd
}

func runServe(cmd *cobra.Command, global *globalOptions, opts *serveOptions) error {
	cfg, err := global.load(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("output") {
		cfg.Coverage.Output = opts.output
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	srv, err := server.NewServer(cfg, logger)
	if err != nil {
		return err
	}
	defer srv.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		logger.Error("Server error", zap.Error(err))
		return err
	}

	acc := srv.Accumulator()
	if len(acc.Snapshot()) == 0 || cfg.Coverage.Output == "" {
		return nil
	}
	if err := acc.WriteFile(cfg.Coverage.Output); err != nil {
		return err
	}
	logger.Info("Wrote coverage", zap.String("path", cfg.Coverage.Output))
	return nil
}
