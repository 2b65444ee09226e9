package coverage

import (
	"errors"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/ottr/internal/coverage/sourcemap"
	"github.com/GriffinCanCode/ottr/internal/logging"
)

// Region is a span of an original source file with a coverage flag.
type Region struct {
	Source  string
	Start   sourcemap.Location
	End     sourcemap.Location
	Covered bool
}

// regionSet groups regions by output path, remembering first-seen path order.
type regionSet struct {
	cwd    string
	paths  []string
	byPath map[string][]Region
}

func newRegionSet(cwd string) *regionSet {
	return &regionSet{cwd: cwd, byPath: make(map[string][]Region)}
}

func (s *regionSet) push(source string, start, end sourcemap.Location) {
	if end.Before(start) {
		start, end = end, start
	}
	p := FixWebpackPath(source, s.cwd)
	if _, ok := s.byPath[p]; !ok {
		s.paths = append(s.paths, p)
	}
	s.byPath[p] = append(s.byPath[p], Region{Source: source, Start: start, End: end, Covered: true})
}

// splitRange pushes the regions a covered range occupies in original space.
// A range that starts and ends in the same source is one region. Otherwise
// the start source is covered to its EOF, the end source from its beginning,
// and every source mapped strictly between them in full. Ranges are half-open,
// so an end sitting on the first position of its source adds nothing there.
func splitRange(m *sourcemap.Mapper, start, end sourcemap.Position, push func(source string, start, end sourcemap.Location)) {
	if start.Source == end.Source {
		push(start.Source, start.Location, end.Location)
		return
	}

	eof, _ := m.EOF(start.Source)
	push(start.Source, start.Location, eof)
	if end.Location != sourcemap.Start {
		push(end.Source, sourcemap.Start, end.Location)
	}
	for _, source := range m.SourcesBetween(start.Generated, end.Generated) {
		if source == start.Source || source == end.Source {
			continue
		}
		eof, _ := m.EOF(source)
		push(source, sourcemap.Start, eof)
	}
}

// mapRanges resolves every range of r into original-space regions. Without a
// mapper the ranges stay in generated space under the bundle's own path.
// Ranges that fail to resolve are dropped and counted; only the first failure
// of a bundle is logged. ErrSearchExhausted aborts the bundle.
func mapRanges(r Report, m *sourcemap.Mapper, cwd string, logger *logging.Logger) (*regionSet, int, error) {
	var (
		set      = newRegionSet(cwd)
		tracker  = NewTracker(r.Text)
		bundle   = URLToPath(r.URL)
		dropped  int
		reported bool
	)

	resolve := func(offset int) (sourcemap.Position, error) {
		loc, err := tracker.Get(offset)
		if err != nil {
			return sourcemap.Position{}, err
		}
		if m == nil {
			return sourcemap.Position{Source: bundle, Location: loc, Generated: loc}, nil
		}
		return m.OriginalPositionFor(loc)
	}

	resolveRange := func(rng Range) (start, end sourcemap.Position, err error) {
		if start, err = resolve(rng.Start); err != nil {
			return start, end, err
		}
		end, err = resolve(rng.End)
		return start, end, err
	}

	for _, rng := range r.Ranges {
		start, end, err := resolveRange(rng)
		if err != nil {
			if errors.Is(err, sourcemap.ErrSearchExhausted) {
				return nil, dropped, err
			}
			dropped++
			if !reported {
				reported = true
				logger.Error("error source mapping range",
					zap.String("url", r.URL),
					zap.Int("start", rng.Start),
					zap.Int("end", rng.End),
					zap.Error(err),
				)
			}
			continue
		}

		switch {
		case m == nil:
			set.push(bundle, start.Location, end.Location)
		case start.Source != "" && end.Source != "":
			splitRange(m, start, end, set.push)
		default:
			dropped++
		}
	}
	return set, dropped, nil
}
