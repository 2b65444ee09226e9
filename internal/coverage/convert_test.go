package coverage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GriffinCanCode/ottr/internal/coverage/sourcemap"
	"github.com/GriffinCanCode/ottr/internal/coverage/sourcemap/sourcemaptest"
	"github.com/GriffinCanCode/ottr/internal/logging"
)

const projectDir = "/project"

func fixture(t *testing.T, name string) sourcemaptest.File {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "fixtures", name))
	require.NoError(t, err)
	return sourcemaptest.File{Name: "fixtures/" + name, Content: string(data)}
}

func fixturePath(name string) string {
	return filepath.Join(projectDir, "fixtures", name)
}

type fakeRecorder struct {
	sourceMapped []bool
	dropped      int
	conversions  int
	bundles      int
}

func (r *fakeRecorder) ObserveBundle(sourceMapped bool, dropped int) {
	r.sourceMapped = append(r.sourceMapped, sourceMapped)
	r.dropped += dropped
}

func (r *fakeRecorder) ObserveConversion(bundles int, _ time.Duration) {
	r.conversions++
	r.bundles += bundles
}

func newTestConverter(t *testing.T, stages Stages, logger *logging.Logger, options ...Option) *Converter {
	t.Helper()
	opts := DefaultOptions()
	opts.Stages = stages
	opts.Cwd = projectDir
	c, err := NewConverter(sourcemap.NewResolver(sourcemap.DefaultResolverConfig(), logger), opts, logger, options...)
	require.NoError(t, err)
	return c
}

// simpleBundle places fixtures/simple.js after two unmapped lines, so its
// line n is generated line n+2.
func simpleBundle(t *testing.T) string {
	bundle, m := sourcemaptest.LineMapped(2, fixture(t, "simple.js"))
	return sourcemaptest.Inline(bundle, m)
}

func span(startLine, startCol, endLine, endCol int) Span {
	return Span{Start: loc(startLine, startCol), End: loc(endLine, endCol)}
}

func TestConvertSingleFile(t *testing.T) {
	bundle := simpleBundle(t)
	report := Report{
		URL:  "http://localhost:7777/bundle.js",
		Text: bundle,
		Ranges: []Range{{
			Start: sourcemaptest.Offset(bundle, 11, 0),
			End:   sourcemaptest.Offset(bundle, 13, 1),
		}},
	}

	t.Run("covered function only", func(t *testing.T) {
		got, err := newTestConverter(t, Stages{}, nil).Convert(context.Background(), []Report{report})
		require.NoError(t, err)
		require.Len(t, got, 1)

		fc := got[fixturePath("simple.js")]
		require.NotNil(t, fc)
		assert.Equal(t, fixturePath("simple.js"), fc.Path)
		assert.Equal(t, map[string]Span{"0": span(9, 0, 11, 1)}, fc.StatementMap)
		assert.Equal(t, map[string]int{"0": 1}, fc.S)
	})

	t.Run("with inferred gaps", func(t *testing.T) {
		got, err := newTestConverter(t, Stages{InferNonCovered: true}, nil).Convert(context.Background(), []Report{report})
		require.NoError(t, err)

		fc := got[fixturePath("simple.js")]
		require.NotNil(t, fc)
		assert.Equal(t, map[string]Span{
			"0": span(1, 0, 9, 0),
			"1": span(9, 0, 11, 1),
			"2": span(11, 1, 13, 0),
		}, fc.StatementMap)
		assert.Equal(t, map[string]int{"0": 0, "1": 1, "2": 0}, fc.S)
	})

	t.Run("with interpolated lines", func(t *testing.T) {
		got, err := newTestConverter(t, Stages{InterpolateLines: true}, nil).Convert(context.Background(), []Report{report})
		require.NoError(t, err)

		fc := got[fixturePath("simple.js")]
		require.NotNil(t, fc)
		assert.Equal(t, map[string]Span{
			"0": span(9, 0, 9, 29),
			"1": span(10, 0, 10, 21),
			"2": span(11, 0, 11, 1),
		}, fc.StatementMap)
	})
}

func TestConvertCrossFileRange(t *testing.T) {
	bundle, m := sourcemaptest.LineMapped(0, fixture(t, "simple.js"), fixture(t, "other.js"))
	bundle = sourcemaptest.Inline(bundle, m)

	// From definitelyCalled in simple.js (generated line 9) to the name of
	// otherFunction in other.js (its line 3, generated line 15).
	report := Report{
		URL:  "http://localhost:7777/bundle.js",
		Text: bundle,
		Ranges: []Range{{
			Start: sourcemaptest.Offset(bundle, 9, 0),
			End:   sourcemaptest.Offset(bundle, 15, 16),
		}},
	}

	got, err := newTestConverter(t, Stages{}, nil).Convert(context.Background(), []Report{report})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, map[string]Span{"0": span(9, 0, 13, 0)}, got[fixturePath("simple.js")].StatementMap)
	assert.Equal(t, map[string]int{"0": 1}, got[fixturePath("simple.js")].S)
	assert.Equal(t, map[string]Span{"0": span(1, 0, 3, 16)}, got[fixturePath("other.js")].StatementMap)
	assert.Equal(t, map[string]int{"0": 1}, got[fixturePath("other.js")].S)
}

func TestConvertRangeEndingAtNextFile(t *testing.T) {
	bundle, m := sourcemaptest.LineMapped(0, fixture(t, "simple.js"), fixture(t, "other.js"))
	bundle = sourcemaptest.Inline(bundle, m)

	// other.js starts on generated line 13; the exclusive end executes none of it.
	report := Report{
		URL:  "http://localhost:7777/bundle.js",
		Text: bundle,
		Ranges: []Range{{
			Start: sourcemaptest.Offset(bundle, 9, 0),
			End:   sourcemaptest.Offset(bundle, 13, 0),
		}},
	}

	for name, stages := range map[string]Stages{
		"plain":    {},
		"inferred": {InferNonCovered: true},
	} {
		t.Run(name, func(t *testing.T) {
			got, err := newTestConverter(t, stages, nil).Convert(context.Background(), []Report{report})
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.NotContains(t, got, fixturePath("other.js"))

			fc := got[fixturePath("simple.js")]
			require.NotNil(t, fc)
			assert.Contains(t, fc.StatementMap, "0")
			assert.Equal(t, 1, fc.S[idOf(fc, span(9, 0, 13, 0))])
		})
	}
}

func idOf(fc *FileCoverage, want Span) string {
	for id, s := range fc.StatementMap {
		if s == want {
			return id
		}
	}
	return ""
}

func TestConvertSpansMiddleFiles(t *testing.T) {
	middle := sourcemaptest.File{Name: "fixtures/middle.js", Content: "export const a = 1;\nexport const b = 2;\n"}
	bundle, m := sourcemaptest.LineMapped(0, fixture(t, "simple.js"), middle, fixture(t, "other.js"))
	bundle = sourcemaptest.Inline(bundle, m)

	report := Report{
		URL:  "http://localhost:7777/bundle.js",
		Text: bundle,
		Ranges: []Range{{
			Start: sourcemaptest.Offset(bundle, 9, 0),
			End:   sourcemaptest.Offset(bundle, 17, 16),
		}},
	}

	got, err := newTestConverter(t, Stages{}, nil).Convert(context.Background(), []Report{report})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, map[string]Span{"0": span(1, 0, 3, 0)}, got[fixturePath("middle.js")].StatementMap)
	assert.Equal(t, map[string]Span{"0": span(1, 0, 3, 16)}, got[fixturePath("other.js")].StatementMap)
}

func TestConvertDuplicateIframeReports(t *testing.T) {
	bundle := simpleBundle(t)
	url := "http://localhost:7777/bundle.js"

	// maybeCalled (generated 6-10) and an overlapping range running through
	// definitelyCalled (generated 8-13).
	first := Report{URL: url, Text: bundle, Ranges: []Range{{
		Start: sourcemaptest.Offset(bundle, 6, 0),
		End:   sourcemaptest.Offset(bundle, 10, 1),
	}}}
	second := Report{URL: url, Text: bundle, Ranges: []Range{{
		Start: sourcemaptest.Offset(bundle, 8, 0),
		End:   sourcemaptest.Offset(bundle, 13, 1),
	}}}

	c := newTestConverter(t, Stages{}, nil)
	for _, reports := range [][]Report{{first, second}, {second, first}} {
		got, err := c.Convert(context.Background(), reports)
		require.NoError(t, err)
		require.Len(t, got, 1)

		fc := got[fixturePath("simple.js")]
		assert.Equal(t, map[string]Span{"0": span(4, 0, 11, 1)}, fc.StatementMap)
		assert.Equal(t, map[string]int{"0": 1}, fc.S)
	}
}

func TestConvertWithoutSourceMap(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := logging.Wrap(zap.New(core))

	report := Report{
		URL:    "http://localhost:7777/static/plain.js?v=1",
		Text:   "a()\nb()\n",
		Ranges: []Range{{Start: 0, End: 7}},
	}
	got, err := newTestConverter(t, Stages{InferNonCovered: true, InterpolateLines: true}, logger).
		Convert(context.Background(), []Report{report})
	require.NoError(t, err)

	fc := got[filepath.FromSlash("/static/plain.js")]
	require.NotNil(t, fc)
	assert.Equal(t, map[string]Span{
		"0": span(1, 0, 1, 3),
		"1": span(2, 0, 2, 3),
	}, fc.StatementMap)
	assert.Equal(t, map[string]int{"0": 1, "1": 1}, fc.S)

	assert.Equal(t, 1, logs.FilterMessage("could not load source map").Len())
}

func TestConvertDropsUnsourcedRanges(t *testing.T) {
	m := sourcemaptest.Map{
		Sources:        []string{"src/a.js"},
		SourcesContent: []string{"ab\n"},
		Segments: []sourcemaptest.Segment{
			{GenLine: 1, Source: -1},
			{GenLine: 2, Source: 0, OrigLine: 1},
		},
	}
	bundle := sourcemaptest.Inline("x\ny\n", m)
	rec := &fakeRecorder{}

	got, err := newTestConverter(t, Stages{}, nil, WithRecorder(rec)).Convert(context.Background(), []Report{
		{URL: "http://localhost/a.js", Text: bundle, Ranges: []Range{{Start: 0, End: 1}, {Start: 2, End: 3}}},
	})
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, map[string]Span{"0": span(1, 0, 1, 1)}, got[filepath.Join(projectDir, "src/a.js")].StatementMap)
	assert.Equal(t, []bool{true}, rec.sourceMapped)
	assert.Equal(t, 1, rec.dropped)
	assert.Equal(t, 1, rec.conversions)
	assert.Equal(t, 1, rec.bundles)
}

func TestConvertLaterBundleWins(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := logging.Wrap(zap.New(core))
	bundle := simpleBundle(t)

	got, err := newTestConverter(t, Stages{}, logger).Convert(context.Background(), []Report{
		{URL: "http://localhost/one.js", Text: bundle, Ranges: []Range{{
			Start: sourcemaptest.Offset(bundle, 6, 0),
			End:   sourcemaptest.Offset(bundle, 10, 1),
		}}},
		{URL: "http://localhost/two.js", Text: bundle, Ranges: []Range{{
			Start: sourcemaptest.Offset(bundle, 11, 0),
			End:   sourcemaptest.Offset(bundle, 13, 1),
		}}},
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]Span{"0": span(9, 0, 11, 1)}, got[fixturePath("simple.js")].StatementMap)
	assert.Equal(t, 1, logs.FilterMessage("file produced by more than one bundle, keeping the latest").Len())
}

func TestConvertFilter(t *testing.T) {
	opts := DefaultOptions()
	opts.Cwd = projectDir
	opts.Exclude = append(opts.Exclude, "fixtures/**")
	c, err := NewConverter(sourcemap.NewResolver(sourcemap.DefaultResolverConfig(), nil), opts, nil)
	require.NoError(t, err)

	bundle := simpleBundle(t)
	got, err := c.Convert(context.Background(), []Report{
		{URL: "http://localhost/bundle.js", Text: bundle, Ranges: []Range{{Start: 0, End: 10}}},
	})
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = NewConverter(nil, Options{Include: []string{"[a-"}}, nil)
	assert.Error(t, err)
}

func TestConvertCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestConverter(t, Stages{}, nil).Convert(ctx, []Report{{URL: "http://localhost/a.js", Text: "a()"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMapRangesLogsOncePerBundle(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := logging.Wrap(zap.New(core))

	report := Report{URL: "http://localhost/a.js", Text: "abcdef", Ranges: []Range{{4, 5}, {0, 1}, {1, 2}}}
	set, dropped, err := mapRanges(report, nil, projectDir, logger)
	require.NoError(t, err)

	assert.Equal(t, 2, dropped)
	assert.Equal(t, 1, logs.FilterMessage("error source mapping range").Len())
	require.Len(t, set.paths, 1)
	assert.Equal(t, []Region{{
		Source:  "/a.js",
		Start:   loc(1, 4),
		End:     loc(1, 5),
		Covered: true,
	}}, set.byPath[set.paths[0]])
}
