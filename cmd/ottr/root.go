package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/ottr/internal/config"
	"github.com/GriffinCanCode/ottr/internal/logging"
)

// globalOptions are the persistent flags. Flags that are set override the
// environment.
type globalOptions struct {
	logLevel string
	dev      bool
	host     string
	port     string
	color    string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "ottr",
		Short: "Run browser tests and report their coverage",
		Long: `ottr runs test pages in Chrome, collects the precise coverage of every
script they load and maps it through source maps back to the original files,
writing Istanbul coverage that standard reporters understand.`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error (env LOG_LEVEL)")
	flags.BoolVar(&opts.dev, "dev", false, "Development logging (env LOG_DEV)")
	flags.StringVar(&opts.host, "host", "", "Server host (env HOST)")
	flags.StringVarP(&opts.port, "port", "p", "", "Server port (env PORT)")
	flags.StringVar(&opts.color, "color", "auto", "Colorize output: auto, always, never")

	cmd.AddCommand(
		newServeCmd(opts),
		newConvertCmd(opts),
		newRunCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

// load reads the environment and applies the persistent flags that were set.
func (o *globalOptions) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level = o.logLevel
	}
	if flags.Changed("dev") {
		cfg.Logging.Development = o.dev
	}
	if flags.Changed("host") {
		cfg.Server.Host = o.host
	}
	if flags.Changed("port") {
		cfg.Server.Port = o.port
	}
	setColor(o.color)
	return cfg, nil
}

func newLogger(cfg *config.Config) (*logging.Logger, error) {
	lc := logging.DefaultConfig()
	if cfg.Logging.Development {
		lc = logging.DevelopmentConfig()
	}
	if cfg.Logging.Level != "" {
		lc.Level = cfg.Logging.Level
	}
	logger, err := logging.New(lc)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}
