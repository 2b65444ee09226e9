package coverage

import (
	"sort"

	"github.com/GriffinCanCode/ottr/internal/coverage/sourcemap"
)

// coalesce sorts regions by start and unions covered regions that overlap.
// Touching regions stay separate statements.
func coalesce(regions []Region) []Region {
	sort.SliceStable(regions, func(i, j int) bool {
		return regions[i].Start.Before(regions[j].Start)
	})
	if len(regions) == 0 {
		return regions
	}

	out := regions[:1]
	for _, r := range regions[1:] {
		prev := &out[len(out)-1]
		if r.Start.Before(prev.End) {
			if r.End.After(prev.End) {
				prev.End = r.End
			}
			continue
		}
		out = append(out, r)
	}
	return out
}

// inferNonCovered fills the gaps between sorted, non-overlapping covered
// regions with uncovered ones, starting from 1:0. When eof is known and lies
// past the last region, the tail up to eof is uncovered too.
func inferNonCovered(regions []Region, eof sourcemap.Location, eofKnown bool) []Region {
	if len(regions) == 0 {
		return regions
	}

	source := regions[0].Source
	out := make([]Region, 0, 2*len(regions)+1)
	cursor := sourcemap.Start
	for _, r := range regions {
		if r.Start != cursor {
			out = append(out, Region{Source: source, Start: cursor, End: r.Start})
		}
		out = append(out, r)
		cursor = r.End
	}
	if eofKnown && eof.After(cursor) {
		out = append(out, Region{Source: source, Start: cursor, End: eof})
	}
	return out
}
