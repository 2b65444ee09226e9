package coverage

import (
	"slices"
	"sort"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/ottr/internal/logging"
)

// Range is a half-open interval of UTF-16 offsets into a bundle's text.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// SortAndMergeOverlaps returns ranges sorted by start with every overlapping
// or touching pair unioned. The input is not modified.
func SortAndMergeOverlaps(ranges []Range) []Range {
	if len(ranges) == 0 {
		return nil
	}
	sorted := slices.Clone(ranges)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	out := sorted[:1]
	for _, cur := range sorted[1:] {
		prev := &out[len(out)-1]
		if prev.End >= cur.Start {
			prev.End = max(prev.End, cur.End)
			continue
		}
		out = append(out, cur)
	}
	return out
}

// Merge returns the union of two sorted, merged range lists, coalescing
// ranges that intersect or touch. Neither input is modified. The result does
// not depend on argument order.
func Merge(target, source []Range) []Range {
	out := make([]Range, 0, len(target)+len(source))
	i, j := 0, 0
	for i < len(target) || j < len(source) {
		var next Range
		if j == len(source) || (i < len(target) && target[i].Start <= source[j].Start) {
			next = target[i]
			i++
		} else {
			next = source[j]
			j++
		}

		if n := len(out); n > 0 && next.Start <= out[n-1].End {
			out[n-1].End = max(out[n-1].End, next.End)
			continue
		}
		out = append(out, next)
	}
	return out
}

// MergeIframeReports collapses reports Chrome produced for the same script
// loaded by several frames. Reports with the same URL and text have their
// ranges unioned; a report whose URL was seen with different text cannot be
// reconciled and is kept as an extra entry after the merged ones.
func MergeIframeReports(reports []Report, logger *logging.Logger) []Report {
	logger = logging.OrNop(logger)

	var (
		merged []Report
		extras []Report
		byURL  = make(map[string]int, len(reports))
	)
	for _, r := range reports {
		ranges := SortAndMergeOverlaps(r.Ranges)
		if len(ranges) < len(r.Ranges) {
			logger.Debug("coverage includes overlapping ranges, merging",
				zap.String("url", r.URL),
				zap.Int("before", len(r.Ranges)),
				zap.Int("after", len(ranges)),
			)
		}
		r.Ranges = ranges

		idx, seen := byURL[r.URL]
		switch {
		case !seen:
			byURL[r.URL] = len(merged)
			merged = append(merged, r)
		case merged[idx].Text == r.Text:
			logger.Debug("merging coverage from multiple frames", zap.String("url", r.URL))
			merged[idx].Ranges = Merge(merged[idx].Ranges, r.Ranges)
		default:
			logger.Warn("multiple scripts with the same url but different text, keeping both",
				zap.String("url", r.URL),
			)
			extras = append(extras, r)
		}
	}
	return append(merged, extras...)
}
