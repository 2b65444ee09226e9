package coverage

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/ottr/internal/coverage/sourcemap"
	"github.com/GriffinCanCode/ottr/internal/logging"
)

// Resolver loads the source map of a bundle.
type Resolver interface {
	Resolve(ctx context.Context, text, bundleURL string) (*sourcemap.Payload, error)
}

// Recorder observes conversions, typically for metrics.
type Recorder interface {
	ObserveBundle(sourceMapped bool, droppedRanges int)
	ObserveConversion(bundles int, elapsed time.Duration)
}

// Stages toggles the optional steps of a conversion.
type Stages struct {
	// InferNonCovered adds uncovered regions for the gaps between covered ones.
	InferNonCovered bool
	// InterpolateLines splits multi-line regions into one region per line.
	InterpolateLines bool
}

// Options configures a Converter.
type Options struct {
	Stages
	Include []string
	Exclude []string
	// Cwd is the directory relative source names resolve against. Empty
	// means the process working directory.
	Cwd string
}

// DefaultOptions enables every stage and drops dependencies.
func DefaultOptions() Options {
	return Options{
		Stages:  Stages{InferNonCovered: true, InterpolateLines: true},
		Exclude: []string{"**/node_modules/**"},
	}
}

// Converter turns Chrome coverage reports into Istanbul coverage.
type Converter struct {
	resolver Resolver
	opts     Options
	filter   *Filter
	recorder Recorder
	logger   *logging.Logger
}

// Option customises a Converter.
type Option func(*Converter)

// WithRecorder reports conversion statistics to r.
func WithRecorder(r Recorder) Option {
	return func(c *Converter) { c.recorder = r }
}

// NewConverter creates a converter. A nil resolver converts every bundle
// without source maps.
func NewConverter(resolver Resolver, opts Options, logger *logging.Logger, options ...Option) (*Converter, error) {
	if opts.Cwd == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
		opts.Cwd = cwd
	}
	filter, err := NewFilter(opts.Include, opts.Exclude, opts.Cwd)
	if err != nil {
		return nil, err
	}

	c := &Converter{
		resolver: resolver,
		opts:     opts,
		filter:   filter,
		logger:   logging.OrNop(logger).Named("coverage"),
	}
	for _, o := range options {
		o(c)
	}
	return c, nil
}

// Stages returns the stages Convert runs.
func (c *Converter) Stages() Stages { return c.opts.Stages }

// Convert converts reports with the converter's configured stages.
func (c *Converter) Convert(ctx context.Context, reports []Report) (CoverageMap, error) {
	return c.ConvertWith(ctx, reports, c.opts.Stages)
}

// ConvertWith converts reports one bundle at a time. Reports for the same
// script from several frames are merged first. A bundle whose source map
// cannot be loaded is reported under its own URL path. When two bundles
// produce the same file, the later one wins.
func (c *Converter) ConvertWith(ctx context.Context, reports []Report, stages Stages) (CoverageMap, error) {
	started := time.Now()
	out := CoverageMap{}

	bundles := MergeIframeReports(reports, c.logger)
	for _, r := range bundles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		files, err := c.convertBundle(ctx, r, stages)
		if err != nil {
			return nil, fmt.Errorf("convert %s: %w", r.URL, err)
		}
		for _, fc := range files {
			if _, ok := out[fc.Path]; ok {
				c.logger.Warn("file produced by more than one bundle, keeping the latest",
					zap.String("path", fc.Path),
					zap.String("url", r.URL),
				)
			}
			out[fc.Path] = fc
		}
	}

	if c.recorder != nil {
		c.recorder.ObserveConversion(len(bundles), time.Since(started))
	}
	return out, nil
}

func (c *Converter) convertBundle(ctx context.Context, r Report, stages Stages) ([]*FileCoverage, error) {
	logger := c.logger.With(zap.String("url", r.URL))

	logger.Debug("parsing")
	mapper, err := c.mapper(ctx, r, logger)
	if err != nil {
		return nil, err
	}

	logger.Debug("source mapping")
	set, dropped, err := mapRanges(r, mapper, c.opts.Cwd, logger)
	if err != nil {
		return nil, err
	}
	if c.recorder != nil {
		c.recorder.ObserveBundle(mapper != nil, dropped)
	}

	for _, p := range set.paths {
		set.byPath[p] = coalesce(set.byPath[p])
	}

	if stages.InferNonCovered {
		logger.Debug("marking non-covered regions")
		for _, p := range set.paths {
			regions := set.byPath[p]
			if len(regions) == 0 {
				continue
			}
			var (
				eof   sourcemap.Location
				known bool
			)
			if mapper != nil {
				eof, known = mapper.EOF(regions[0].Source)
			}
			set.byPath[p] = inferNonCovered(regions, eof, known)
		}
	}

	if stages.InterpolateLines {
		logger.Debug("splitting multi-line regions")
		bundleLines := sourcemap.LineLengths(r.Text)
		for _, p := range set.paths {
			regions := set.byPath[p]
			if len(regions) == 0 {
				continue
			}
			var lineLength lineLengthFunc
			if mapper != nil {
				source := regions[0].Source
				lineLength = func(line int) (int, bool) { return mapper.LineLength(source, line) }
			} else {
				lineLength = func(line int) (int, bool) {
					if line < 1 || line > len(bundleLines) {
						return 0, false
					}
					return bundleLines[line-1], true
				}
			}
			set.byPath[p] = interpolateLines(regions, lineLength)
		}
	}

	logger.Debug("converting")
	var files []*FileCoverage
	for _, p := range set.paths {
		if !c.filter.Match(p) {
			continue
		}
		files = append(files, fileCoverageFromRegions(p, set.byPath[p]))
	}
	return files, nil
}

// mapper builds the source mapper of a bundle, or returns nil when the
// bundle has to be converted without one.
func (c *Converter) mapper(ctx context.Context, r Report, logger *logging.Logger) (*sourcemap.Mapper, error) {
	if c.resolver == nil {
		return nil, nil
	}
	payload, err := c.resolver.Resolve(ctx, r.Text, r.URL)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		logger.Warn("could not load source map", zap.Error(err))
		return nil, nil
	}
	mapper, err := sourcemap.NewMapper(payload, logger)
	if err != nil {
		logger.Warn("could not load source map", zap.Error(err))
		return nil, nil
	}
	return mapper, nil
}
