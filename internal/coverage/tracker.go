package coverage

import (
	"errors"
	"fmt"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/GriffinCanCode/ottr/internal/coverage/sourcemap"
)

// ErrRewind is returned when a Tracker is asked for an offset before one it
// already returned.
var ErrRewind = errors.New("cannot rewind line/column tracker")

// Tracker converts offsets into a bundle's text to line/column locations.
// Offsets are UTF-16 code units, as reported by Chrome. Requests must not
// decrease, which keeps a whole bundle's conversion linear.
type Tracker struct {
	text      string
	pos       int // byte index of the next unread rune
	offset    int // UTF-16 offset of pos
	last      int
	line      int
	lineStart int
}

// NewTracker creates a tracker positioned at the start of text.
func NewTracker(text string) *Tracker {
	return &Tracker{text: text, line: 1}
}

// Get returns the location of offset. Offsets past the end of the text
// resolve to the end of the text.
func (t *Tracker) Get(offset int) (sourcemap.Location, error) {
	if offset < t.last {
		return sourcemap.Location{}, fmt.Errorf("%w to %d (was at %d)", ErrRewind, offset, t.last)
	}
	t.last = offset

	for t.offset < offset && t.pos < len(t.text) {
		r, size := utf8.DecodeRuneInString(t.text[t.pos:])
		t.pos += size
		t.offset += utf16.RuneLen(r)
		if r == '\n' {
			t.line++
			t.lineStart = t.offset
		}
	}

	column := min(offset, t.offset) - t.lineStart
	return sourcemap.Location{Line: t.line, Column: column}, nil
}
