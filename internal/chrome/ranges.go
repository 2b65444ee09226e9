package chrome

import (
	"sort"

	"github.com/chromedp/cdproto/profiler"

	"github.com/GriffinCanCode/ottr/internal/coverage"
)

type point struct {
	offset int
	end    bool
	length int
	count  int64
}

// DisjointRanges flattens Chrome's nested block coverage into sorted,
// non-overlapping executed ranges. Chrome reports a function's whole body
// first and then the blocks inside it, so an inner range overrides the count
// of the range that contains it: a block with count 0 inside an executed
// function is cut out of the result. Ranges of one character or less are
// dropped.
func DisjointRanges(nested []*profiler.CoverageRange) []coverage.Range {
	points := make([]point, 0, 2*len(nested))
	for _, r := range nested {
		length := int(r.EndOffset - r.StartOffset)
		points = append(points,
			point{offset: int(r.StartOffset), length: length, count: r.Count},
			point{offset: int(r.EndOffset), end: true, length: length, count: r.Count},
		)
	}

	// Order the points as a valid bracket sequence: by offset, ends before
	// starts, longer ranges open first and close last.
	sort.SliceStable(points, func(i, j int) bool {
		a, b := points[i], points[j]
		if a.offset != b.offset {
			return a.offset < b.offset
		}
		if a.end != b.end {
			return a.end
		}
		if !a.end {
			return a.length > b.length
		}
		return a.length < b.length
	})

	var (
		stack  []int64
		out    []coverage.Range
		offset int
	)
	for _, p := range points {
		if len(stack) > 0 && offset < p.offset && stack[len(stack)-1] > 0 {
			if n := len(out); n > 0 && out[n-1].End == offset {
				out[n-1].End = p.offset
			} else {
				out = append(out, coverage.Range{Start: offset, End: p.offset})
			}
		}
		offset = p.offset
		if p.end {
			stack = stack[:len(stack)-1]
		} else {
			stack = append(stack, p.count)
		}
	}

	kept := out[:0]
	for _, r := range out {
		if r.End-r.Start > 1 {
			kept = append(kept, r)
		}
	}
	return kept
}

// flatten collects the ranges of every function of a script.
func flatten(sc *profiler.ScriptCoverage) []*profiler.CoverageRange {
	var ranges []*profiler.CoverageRange
	for _, fn := range sc.Functions {
		ranges = append(ranges, fn.Ranges...)
	}
	return ranges
}
