package coverage

import (
	"maps"
	"sort"
	"strconv"

	"github.com/GriffinCanCode/ottr/internal/coverage/sourcemap"
)

// Span is a statement's extent in its file.
type Span struct {
	Start sourcemap.Location `json:"start"`
	End   sourcemap.Location `json:"end"`
}

// FileCoverage is the Istanbul statement coverage of one file. Branch and
// function maps are always empty but present, as coverage tools expect them.
type FileCoverage struct {
	Path         string           `json:"path"`
	StatementMap map[string]Span  `json:"statementMap"`
	S            map[string]int   `json:"s"`
	BranchMap    map[string]any   `json:"branchMap"`
	B            map[string][]int `json:"b"`
	FnMap        map[string]any   `json:"fnMap"`
	F            map[string]int   `json:"f"`
}

// CoverageMap is Istanbul coverage keyed by absolute file path.
type CoverageMap map[string]*FileCoverage

// NewFileCoverage creates an empty entry for path.
func NewFileCoverage(path string) *FileCoverage {
	return &FileCoverage{
		Path:         path,
		StatementMap: map[string]Span{},
		S:            map[string]int{},
		BranchMap:    map[string]any{},
		B:            map[string][]int{},
		FnMap:        map[string]any{},
		F:            map[string]int{},
	}
}

// fileCoverageFromRegions numbers regions "0", "1", ... in order. Covered
// regions get a hit count of 1.
func fileCoverageFromRegions(path string, regions []Region) *FileCoverage {
	fc := NewFileCoverage(path)
	for i, r := range regions {
		id := strconv.Itoa(i)
		fc.StatementMap[id] = Span{Start: r.Start, End: r.End}
		if r.Covered {
			fc.S[id] = 1
		} else {
			fc.S[id] = 0
		}
	}
	return fc
}

// Merge adds other's statements into f. Hit counts of shared ids are summed;
// f's statement extents win.
func (f *FileCoverage) Merge(other *FileCoverage) {
	for id, span := range other.StatementMap {
		if _, ok := f.StatementMap[id]; !ok {
			f.StatementMap[id] = span
		}
	}
	for id, hits := range other.S {
		f.S[id] += hits
	}
}

// Clone returns a deep copy of f.
func (f *FileCoverage) Clone() *FileCoverage {
	c := NewFileCoverage(f.Path)
	maps.Copy(c.StatementMap, f.StatementMap)
	maps.Copy(c.S, f.S)
	return c
}

// Merge adds every file of other into m.
func (m CoverageMap) Merge(other CoverageMap) {
	for path, fc := range other {
		if existing, ok := m[path]; ok {
			existing.Merge(fc)
			continue
		}
		m[path] = fc.Clone()
	}
}

// Clone returns a deep copy of m.
func (m CoverageMap) Clone() CoverageMap {
	c := make(CoverageMap, len(m))
	for path, fc := range m {
		c[path] = fc.Clone()
	}
	return c
}

// Paths returns the file paths of m in sorted order.
func (m CoverageMap) Paths() []string {
	paths := make([]string, 0, len(m))
	for p := range m {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
