package coverage

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Filter selects output paths with include and exclude globs. An empty
// include list includes everything; excludes always win.
type Filter struct {
	cwd     string
	include []string
	exclude []string
}

// NewFilter validates the patterns. Relative paths are matched relative to
// cwd as well as in their absolute form.
func NewFilter(include, exclude []string, cwd string) (*Filter, error) {
	for _, p := range append(append([]string(nil), include...), exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid glob pattern %q", p)
		}
	}
	return &Filter{cwd: cwd, include: include, exclude: exclude}, nil
}

// Match reports whether path should be kept.
func (f *Filter) Match(path string) bool {
	if f == nil {
		return true
	}
	candidates := f.candidates(path)
	if len(f.include) > 0 && !matchAny(f.include, candidates) {
		return false
	}
	return !matchAny(f.exclude, candidates)
}

func (f *Filter) candidates(path string) []string {
	slashed := filepath.ToSlash(path)
	out := []string{strings.TrimPrefix(slashed, "/")}
	if f.cwd != "" {
		if rel, err := filepath.Rel(f.cwd, path); err == nil && !strings.HasPrefix(rel, "..") {
			out = append(out, filepath.ToSlash(rel))
		}
	}
	return out
}

func matchAny(patterns, candidates []string) bool {
	for _, p := range patterns {
		for _, c := range candidates {
			if ok, _ := doublestar.Match(p, c); ok {
				return true
			}
		}
	}
	return false
}
