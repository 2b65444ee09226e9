// Package sourcemaptest builds v3 source maps and bundles for tests.
package sourcemaptest

import (
	"encoding/base64"
	"encoding/json"
	"sort"
	"strings"
)

const base64Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// Segment is one mapping. Lines are 1-based, columns 0-based. A negative
// Source produces a one-field segment with no original location.
type Segment struct {
	GenLine    int
	GenColumn  int
	Source     int
	OrigLine   int
	OrigColumn int
}

// Map is a source map under construction.
type Map struct {
	File           string
	SourceRoot     string
	Sources        []string
	SourcesContent []string
	Segments       []Segment
}

// File is an original source that goes into a bundle.
type File struct {
	Name    string
	Content string
}

// Mappings encodes the segments as a VLQ "mappings" string. Segments are
// emitted in generated order; equal generated locations keep their order.
func (m Map) Mappings() string {
	segs := append([]Segment(nil), m.Segments...)
	sort.SliceStable(segs, func(i, j int) bool {
		if segs[i].GenLine != segs[j].GenLine {
			return segs[i].GenLine < segs[j].GenLine
		}
		return segs[i].GenColumn < segs[j].GenColumn
	})

	var (
		b                           strings.Builder
		line                        = 1
		prevCol                     int
		prevSrc, prevLine, prevOCol int
		first                       = true
	)
	for _, s := range segs {
		for line < s.GenLine {
			b.WriteByte(';')
			line++
			prevCol = 0
			first = true
		}
		if !first {
			b.WriteByte(',')
		}
		first = false

		writeVLQ(&b, s.GenColumn-prevCol)
		prevCol = s.GenColumn
		if s.Source < 0 {
			continue
		}
		writeVLQ(&b, s.Source-prevSrc)
		writeVLQ(&b, s.OrigLine-1-prevLine)
		writeVLQ(&b, s.OrigColumn-prevOCol)
		prevSrc, prevLine, prevOCol = s.Source, s.OrigLine-1, s.OrigColumn
	}
	return b.String()
}

// Bytes renders the map as JSON.
func (m Map) Bytes() []byte {
	doc := map[string]any{
		"version":  3,
		"sources":  m.Sources,
		"names":    []string{},
		"mappings": m.Mappings(),
	}
	if m.File != "" {
		doc["file"] = m.File
	}
	if m.SourceRoot != "" {
		doc["sourceRoot"] = m.SourceRoot
	}
	if m.SourcesContent != nil {
		doc["sourcesContent"] = m.SourcesContent
	}
	data, err := json.Marshal(doc)
	if err != nil {
		panic(err)
	}
	return data
}

// DataURL renders the map as a base64 data: URL.
func (m Map) DataURL() string {
	return "data:application/json;charset=utf-8;base64," + base64.StdEncoding.EncodeToString(m.Bytes())
}

// Inline appends a sourceMappingURL comment carrying m to bundle.
func Inline(bundle string, m Map) string {
	if bundle != "" && !strings.HasSuffix(bundle, "\n") {
		bundle += "\n"
	}
	return bundle + "//# sourceMappingURL=" + m.DataURL()
}

// LineMapped concatenates files into a bundle after prefixLines unmapped
// lines and maps column 0 of every generated line to column 0 of the original
// line it came from. Contents are embedded as sourcesContent.
func LineMapped(prefixLines int, files ...File) (string, Map) {
	var (
		b    strings.Builder
		m    Map
		line = 1
	)
	for ; line <= prefixLines; line++ {
		b.WriteString("/* prelude */\n")
	}
	for i, f := range files {
		m.Sources = append(m.Sources, f.Name)
		m.SourcesContent = append(m.SourcesContent, f.Content)

		content := strings.TrimSuffix(f.Content, "\n")
		for j, text := range strings.Split(content, "\n") {
			m.Segments = append(m.Segments, Segment{GenLine: line, Source: i, OrigLine: j + 1})
			b.WriteString(text)
			b.WriteByte('\n')
			line++
		}
	}
	return b.String(), m
}

// Offset returns the offset of the 1-based line and 0-based column in text.
func Offset(text string, line, column int) int {
	offset := 0
	for l := 1; l < line; l++ {
		i := strings.IndexByte(text[offset:], '\n')
		if i < 0 {
			return len(text)
		}
		offset += i + 1
	}
	return offset + column
}

func writeVLQ(b *strings.Builder, v int) {
	u := v << 1
	if v < 0 {
		u = (-v << 1) | 1
	}
	for {
		digit := u & 31
		u >>= 5
		if u > 0 {
			digit |= 32
		}
		b.WriteByte(base64Alphabet[digit])
		if u == 0 {
			return
		}
	}
}
