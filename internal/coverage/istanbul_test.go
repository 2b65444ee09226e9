package coverage

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileCoverageFromRegions(t *testing.T) {
	fc := fileCoverageFromRegions("/p/a.js", []Region{
		gap(loc(1, 0), loc(2, 0)),
		covered1(loc(2, 0), loc(3, 4)),
	})

	assert.Equal(t, "/p/a.js", fc.Path)
	assert.Equal(t, map[string]Span{
		"0": {Start: loc(1, 0), End: loc(2, 0)},
		"1": {Start: loc(2, 0), End: loc(3, 4)},
	}, fc.StatementMap)
	assert.Equal(t, map[string]int{"0": 0, "1": 1}, fc.S)

	data, err := json.Marshal(fc)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"path": "/p/a.js",
		"statementMap": {
			"0": {"start": {"line": 1, "column": 0}, "end": {"line": 2, "column": 0}},
			"1": {"start": {"line": 2, "column": 0}, "end": {"line": 3, "column": 4}}
		},
		"s": {"0": 0, "1": 1},
		"branchMap": {}, "b": {}, "fnMap": {}, "f": {}
	}`, string(data))
}

func TestCoverageMapMerge(t *testing.T) {
	a := CoverageMap{
		"/p/a.js": fileCoverageFromRegions("/p/a.js", []Region{
			gap(loc(1, 0), loc(2, 0)),
			covered1(loc(2, 0), loc(3, 0)),
		}),
	}
	b := CoverageMap{
		"/p/a.js": fileCoverageFromRegions("/p/a.js", []Region{
			covered1(loc(1, 0), loc(1, 5)),
			covered1(loc(2, 0), loc(3, 0)),
			gap(loc(3, 0), loc(4, 0)),
		}),
		"/p/b.js": fileCoverageFromRegions("/p/b.js", []Region{covered1(loc(1, 0), loc(1, 2))}),
	}

	a.Merge(b)
	require.Len(t, a, 2)
	assert.Equal(t, map[string]int{"0": 1, "1": 2, "2": 0}, a["/p/a.js"].S)
	assert.Equal(t, Span{Start: loc(1, 0), End: loc(2, 0)}, a["/p/a.js"].StatementMap["0"], "receiver extents win")
	assert.Equal(t, Span{Start: loc(3, 0), End: loc(4, 0)}, a["/p/a.js"].StatementMap["2"])

	b["/p/b.js"].S["0"] = 42
	assert.Equal(t, 1, a["/p/b.js"].S["0"], "merged files are copies")
	assert.Equal(t, []string{"/p/a.js", "/p/b.js"}, a.Paths())
}
