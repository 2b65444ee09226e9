package sourcemap

import (
	"fmt"
	"net/url"
	"path"
	"sort"

	"github.com/bytedance/sonic"
	gosourcemap "github.com/go-sourcemap/sourcemap"
)

// Consumer yields the decoded mapping table of a source map plus any embedded
// original source content. It is what the Mapper needs from a parsed map.
type Consumer interface {
	Mappings() []Mapping
	SourceContent(source string) string
}

// Payload is a parsed v3 source map.
type Payload struct {
	URL      string
	File     string
	sources  []string
	mappings []Mapping
	content  *gosourcemap.Consumer
}

type rawMap struct {
	Version    int          `json:"version"`
	File       string       `json:"file"`
	SourceRoot string       `json:"sourceRoot"`
	Sources    []string     `json:"sources"`
	Mappings   string       `json:"mappings"`
	Sections   []rawSection `json:"sections"`
}

type rawSection struct {
	Offset struct {
		Line   int `json:"line"`
		Column int `json:"column"`
	} `json:"offset"`
	Map *rawMap `json:"map"`
}

// Decode parses a source map. mapURL is informational only: source names are
// kept relative (joined with sourceRoot when present) so that callers resolve
// them against their own working directory.
func Decode(mapURL string, data []byte) (*Payload, error) {
	consumer, err := gosourcemap.Parse("", data)
	if err != nil {
		return nil, fmt.Errorf("parse source map: %w", err)
	}

	var raw rawMap
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse source map: %w", err)
	}

	p := &Payload{URL: mapURL, File: raw.File, content: consumer}
	seen := map[string]bool{}

	sections := raw.Sections
	if len(sections) == 0 {
		sections = []rawSection{{Map: &raw}}
	}
	for i, s := range sections {
		if s.Map == nil {
			return nil, fmt.Errorf("parse source map: section %d has no map", i)
		}
		sources := make([]string, len(s.Map.Sources))
		for j, src := range s.Map.Sources {
			sources[j] = resolveSource(s.Map.SourceRoot, src)
			if !seen[sources[j]] {
				seen[sources[j]] = true
				p.sources = append(p.sources, sources[j])
			}
		}
		mappings, err := decodeMappings(s.Map.Mappings, sources)
		if err != nil {
			return nil, err
		}
		for _, m := range mappings {
			// Section offsets are 0-based; the column offset only applies to
			// the section's first generated line.
			if m.GeneratedLine == 1 {
				m.GeneratedColumn += s.Offset.Column
			}
			m.GeneratedLine += s.Offset.Line
			p.mappings = append(p.mappings, m)
		}
	}

	sort.SliceStable(p.mappings, func(i, j int) bool {
		return p.mappings[i].Generated().Before(p.mappings[j].Generated())
	})
	return p, nil
}

// Mappings returns the decoded mappings in ascending generated order.
func (p *Payload) Mappings() []Mapping { return p.mappings }

// Sources returns every source named by the map, in declaration order.
func (p *Payload) Sources() []string { return p.sources }

// SourceContent returns the embedded original content of source, or "".
func (p *Payload) SourceContent(source string) string {
	if p.content == nil {
		return ""
	}
	return p.content.SourceContent(source)
}

// resolveSource joins a source with the map's sourceRoot using the same rules
// as the go-sourcemap consumer, so names line up with SourceContent lookups.
func resolveSource(sourceRoot, source string) string {
	if path.IsAbs(source) {
		return source
	}
	if u, err := url.Parse(source); err == nil && u.IsAbs() {
		return source
	}
	if sourceRoot == "" {
		return source
	}
	if u, err := url.Parse(sourceRoot); err == nil && u.IsAbs() {
		u.Path = path.Join(u.Path, source)
		return u.String()
	}
	return path.Join(sourceRoot, source)
}
