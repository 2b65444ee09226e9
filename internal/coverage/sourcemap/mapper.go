package sourcemap

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/ottr/internal/logging"
)

var (
	// ErrInvalidPosition is returned for generated queries with line < 1 or
	// column < 0. It indicates bad input upstream, not a runtime condition.
	ErrInvalidPosition = errors.New("invalid position")
	// ErrSearchExhausted is returned when the mapping search does not converge
	// within maxSearchIterations, which only happens for a corrupt table.
	ErrSearchExhausted = errors.New("mapping search did not terminate")
	// ErrNoMappings is returned when a source map has an empty mapping table.
	ErrNoMappings = errors.New("source map has no mappings")
)

// maxSearchIterations bounds FindMapping; 64 halvings cover any table that
// fits in memory.
var maxSearchIterations = 64

// Position is the original location resolved for a generated location.
type Position struct {
	Source    string
	Location  Location
	Generated Location
}

// Mapper answers generated-to-original queries for one bundle. It is built
// once per bundle and is not safe for concurrent use.
type Mapper struct {
	mappings []Mapping
	consumer Consumer
	eof      map[string]Location
	sources  []string
	lines    map[string][]int
	logger   *logging.Logger
}

// NewMapper decodes the consumer's mapping table and computes the EOF table.
func NewMapper(consumer Consumer, logger *logging.Logger) (*Mapper, error) {
	mappings := consumer.Mappings()
	if len(mappings) == 0 {
		return nil, ErrNoMappings
	}
	if !sort.SliceIsSorted(mappings, func(i, j int) bool {
		return mappings[i].Generated().Before(mappings[j].Generated())
	}) {
		return nil, fmt.Errorf("source map mappings are not in generated order")
	}

	m := &Mapper{
		mappings: mappings,
		consumer: consumer,
		eof:      make(map[string]Location),
		lines:    make(map[string][]int),
		logger:   logging.OrNop(logger),
	}
	m.calculateEOFs()
	m.checkSourcesForEOFs()
	return m, nil
}

// Sources returns every source that appears in a mapping, in first-seen order.
func (m *Mapper) Sources() []string { return m.sources }

// EOF returns the best-known end location of source.
func (m *Mapper) EOF(source string) (Location, bool) {
	eof, ok := m.eof[source]
	return eof, ok
}

// LineLength returns the UTF-16 length of a 1-based line of source when the
// source map embeds the source's content.
func (m *Mapper) LineLength(source string, line int) (int, bool) {
	lengths, ok := m.lines[source]
	if !ok {
		if content := m.consumer.SourceContent(source); content != "" {
			lengths = LineLengths(content)
		}
		m.lines[source] = lengths
	}
	if line < 1 || line > len(lengths) {
		return 0, false
	}
	return lengths[line-1], true
}

// calculateEOFs tracks the furthest original location seen for each source
// and, where the next mapping switches to another source, extrapolates how far
// the outgoing source runs from the generated distance between the two.
func (m *Mapper) calculateEOFs() {
	for i, mp := range m.mappings {
		if !mp.HasSource() {
			continue
		}
		eof, seen := m.eof[mp.Source]
		if !seen {
			m.sources = append(m.sources, mp.Source)
		}
		if !seen || !mp.Original().Before(eof) {
			eof = mp.Original()
			m.eof[mp.Source] = eof
		}
		if i+1 < len(m.mappings) {
			next := m.mappings[i+1]
			if next.Source != mp.Source {
				if estimate := extrapolate(mp, next.Generated()); estimate.After(eof) {
					m.eof[mp.Source] = estimate
				}
			}
		}
	}
}

// checkSourcesForEOFs raises EOFs to the real end of any embedded content.
// Source maps often stop mapping before trailing whitespace and comments.
func (m *Mapper) checkSourcesForEOFs() {
	for _, source := range m.sources {
		content := m.consumer.SourceContent(source)
		if content == "" {
			continue
		}
		end := EndOf(content)
		if end.After(m.eof[source]) {
			m.logger.Debug("source map did not include end position",
				zap.String("source", source),
				zap.Stringer("from", m.eof[source]),
				zap.Stringer("to", end),
			)
			m.eof[source] = end
		}
	}
}

// FindMapping returns the last mapping whose generated location is <= loc.
// Mappings that share a generated location resolve to the later one; queries
// before the first mapping resolve to the first mapping.
func (m *Mapper) FindMapping(loc Location) (Mapping, error) {
	if !loc.Valid() {
		return Mapping{}, fmt.Errorf("%w %d,%d", ErrInvalidPosition, loc.Line, loc.Column)
	}

	// Invariant: mappings[lo] <= loc unless lo == 0, and mappings[hi] > loc
	// unless hi == len(mappings). The answer is lo once the window closes.
	lo, hi := 0, len(m.mappings)
	for iterations := 0; hi-lo > 1; iterations++ {
		if iterations == maxSearchIterations {
			return Mapping{}, fmt.Errorf("%w for %s", ErrSearchExhausted, loc)
		}
		mid := lo + (hi-lo)/2
		if m.mappings[mid].Generated().After(loc) {
			hi = mid
		} else {
			lo = mid
		}
	}
	return m.mappings[lo], nil
}

// OriginalPositionFor resolves a generated location to its original source
// location, clamped to the source's EOF. A Position with an empty Source means
// the covering mapping does not point into any original file.
func (m *Mapper) OriginalPositionFor(loc Location) (Position, error) {
	mp, err := m.FindMapping(loc)
	if err != nil {
		return Position{}, err
	}
	pos := Position{Source: mp.Source, Generated: loc}
	if !mp.HasSource() {
		return pos, nil
	}

	pos.Location = extrapolate(mp, loc)
	if loc.Before(mp.Generated()) {
		pos.Location = mp.Original()
	}
	if eof, ok := m.eof[mp.Source]; ok && !pos.Location.Before(eof) {
		pos.Location = eof
	}
	return pos, nil
}

// SourcesBetween returns the sources of every mapping whose generated location
// lies within [start, end], in first-seen order.
func (m *Mapper) SourcesBetween(start, end Location) []string {
	first := sort.Search(len(m.mappings), func(i int) bool {
		return !m.mappings[i].Generated().Before(start)
	})
	var sources []string
	seen := map[string]bool{}
	for _, mp := range m.mappings[first:] {
		if mp.Generated().After(end) {
			break
		}
		if mp.HasSource() && !seen[mp.Source] {
			seen[mp.Source] = true
			sources = append(sources, mp.Source)
		}
	}
	return sources
}

// extrapolate projects the distance from mp's generated location to gen onto
// mp's original location. The column delta only applies while gen stays on
// the mapping's generated line; on later lines the generated column is taken
// as is because the segment carries the line structure through unchanged.
func extrapolate(mp Mapping, gen Location) Location {
	loc := Location{Line: mp.OriginalLine + (gen.Line - mp.GeneratedLine)}
	if mp.GeneratedLine < gen.Line {
		loc.Column = gen.Column
	} else {
		loc.Column = mp.OriginalColumn + (gen.Column - mp.GeneratedColumn)
	}
	return loc
}
