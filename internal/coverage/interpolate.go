package coverage

import "github.com/GriffinCanCode/ottr/internal/coverage/sourcemap"

// lineLengthFunc reports the length of a 1-based line when it is known.
type lineLengthFunc func(line int) (int, bool)

// interpolateLines splits every region spanning several lines into one
// region per line. The first line runs from the region start to the end of
// the line, middle lines are whole, and the last line keeps the region's end
// column. Unknown line lengths fall back to a one-column placeholder.
func interpolateLines(regions []Region, lineLength lineLengthFunc) []Region {
	out := make([]Region, 0, len(regions))
	for _, r := range regions {
		if r.Start.Line == r.End.Line {
			out = append(out, r)
			continue
		}

		first := r
		first.End = sourcemap.Location{Line: r.Start.Line, Column: r.Start.Column + 1}
		if n, ok := lineLength(r.Start.Line); ok && n > r.Start.Column {
			first.End.Column = n
		}
		out = append(out, first)

		for line := r.Start.Line + 1; line < r.End.Line; line++ {
			mid := r
			mid.Start = sourcemap.Location{Line: line}
			mid.End = sourcemap.Location{Line: line, Column: 1}
			if n, ok := lineLength(line); ok && n > 0 {
				mid.End.Column = n
			}
			out = append(out, mid)
		}

		last := r
		last.Start = sourcemap.Location{Line: r.End.Line}
		out = append(out, last)
	}
	return out
}
