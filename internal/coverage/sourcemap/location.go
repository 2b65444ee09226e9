package sourcemap

import "strconv"

// Location is a line/column position in a text, either in generated (bundle)
// space or in original (source file) space. Line is 1-based, Column is a
// 0-based UTF-16 code unit offset, matching what Chrome and source maps report.
type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Start is the first position of every file.
var Start = Location{Line: 1, Column: 0}

// Compare orders locations by line, then column. It returns -1, 0 or +1.
func (l Location) Compare(o Location) int {
	switch {
	case l.Line < o.Line:
		return -1
	case l.Line > o.Line:
		return 1
	case l.Column < o.Column:
		return -1
	case l.Column > o.Column:
		return 1
	}
	return 0
}

// Before reports whether l sorts strictly before o.
func (l Location) Before(o Location) bool { return l.Compare(o) < 0 }

// After reports whether l sorts strictly after o.
func (l Location) After(o Location) bool { return l.Compare(o) > 0 }

// Valid reports whether l can address a position in a text.
func (l Location) Valid() bool { return l.Line >= 1 && l.Column >= 0 }

func (l Location) String() string {
	return strconv.Itoa(l.Line) + ":" + strconv.Itoa(l.Column)
}

// EndOf returns the location just past the last character of text.
func EndOf(text string) Location {
	end := Start
	for _, r := range text {
		if r == '\n' {
			end.Line++
			end.Column = 0
			continue
		}
		end.Column += utf16Len(r)
	}
	return end
}

// LineLengths returns the UTF-16 length of every line of text, indexed from 0.
func LineLengths(text string) []int {
	lengths := []int{0}
	for _, r := range text {
		if r == '\n' {
			lengths = append(lengths, 0)
			continue
		}
		lengths[len(lengths)-1] += utf16Len(r)
	}
	return lengths
}

func utf16Len(r rune) int {
	if r >= 0x10000 {
		return 2
	}
	return 1
}
