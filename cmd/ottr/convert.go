package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/ottr/internal/coverage"
	"github.com/GriffinCanCode/ottr/internal/coverage/sourcemap"
	"github.com/GriffinCanCode/ottr/internal/infrastructure/server"
)

type convertOptions struct {
	output        string
	summary       string
	cwd           string
	include       []string
	exclude       []string
	noInfer       bool
	noInterpolate bool
	fetch         bool
}

func newConvertCmd(global *globalOptions) *cobra.Command {
	opts := &convertOptions{}

	cmd := &cobra.Command{
		Use:   "convert <chrome-coverage.json|dir>",
		Short: "Convert raw Chrome coverage to Istanbul coverage",
		Long: `Convert raw Chrome coverage to Istanbul coverage. The input is a JSON array
of {url, text, ranges} reports, optionally gzipped, or a directory of such
files. Source maps referenced by the bundles map the coverage back to the
original files.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, global, opts, args[0])
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.output, "output", "o", "", `Output file, "-" for stdout (env COVERAGE_OUTPUT)`)
	flags.StringVar(&opts.summary, "summary", "", "Print a summary: text, json, yaml, toml")
	flags.StringVar(&opts.cwd, "cwd", "", "Directory relative source names resolve against")
	flags.StringSliceVar(&opts.include, "include", nil, "Only keep files matching these globs (env COVERAGE_INCLUDE)")
	flags.StringSliceVar(&opts.exclude, "exclude", nil, "Drop files matching these globs (env COVERAGE_EXCLUDE)")
	flags.BoolVar(&opts.noInfer, "no-infer", false, "Do not add uncovered regions between covered ones")
	flags.BoolVar(&opts.noInterpolate, "no-interpolate", false, "Do not split multi-line regions per line")
	flags.BoolVar(&opts.fetch, "fetch", false, "Fetch http(s) source maps (env SOURCEMAP_FETCH)")
	return cmd
}

func runConvert(cmd *cobra.Command, global *globalOptions, opts *convertOptions, input string) error {
	cfg, err := global.load(cmd)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("output") {
		cfg.Coverage.Output = opts.output
	}
	if flags.Changed("include") {
		cfg.Coverage.Include = opts.include
	}
	if flags.Changed("exclude") {
		cfg.Coverage.Exclude = opts.exclude
	}
	if flags.Changed("fetch") {
		cfg.SourceMap.Fetch = opts.fetch
	}
	if opts.noInfer {
		cfg.Coverage.InferNonCovered = false
	}
	if opts.noInterpolate {
		cfg.Coverage.InterpolateLines = false
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	reports, err := coverage.LoadReports(input)
	if err != nil {
		return fmt.Errorf("read %s: %w", input, err)
	}

	resolver := sourcemap.NewResolver(sourcemap.ResolverConfig{
		Fetch:     cfg.SourceMap.Fetch,
		Timeout:   cfg.SourceMap.Timeout,
		Retries:   cfg.SourceMap.Retries,
		UserAgent: sourcemap.DefaultResolverConfig().UserAgent,
	}, logger)
	copts := server.ConverterOptions(cfg)
	copts.Cwd = opts.cwd
	converter, err := coverage.NewConverter(resolver, copts, logger)
	if err != nil {
		return err
	}

	cov, err := converter.Convert(context.Background(), reports)
	if err != nil {
		return err
	}
	logger.Info("Converted coverage",
		zap.Int("bundles", len(reports)),
		zap.Int("files", len(cov)),
	)

	if err := writeOutput(cmd, cfg.Coverage.Output, cov); err != nil {
		return err
	}
	if opts.summary != "" {
		return printSummary(cmd.ErrOrStderr(), cov.Summary(), opts.summary)
	}
	return nil
}

// writeOutput writes cov to path, or to stdout for "-".
func writeOutput(cmd *cobra.Command, path string, cov coverage.CoverageMap) error {
	if path == "-" {
		if err := coverage.WriteCoverage(cmd.OutOrStdout(), cov); err != nil {
			return err
		}
		_, err := fmt.Fprintln(cmd.OutOrStdout())
		return err
	}
	if path == "" {
		return fmt.Errorf("no output path")
	}
	if err := coverage.WriteCoverageFile(path, cov); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote coverage for %d files to %s\n", len(cov), path)
	return nil
}
