package coverage

import (
	"net/url"
	"path/filepath"
	"strings"
)

// URLToPath returns the path component of u, or u itself when it has none.
func URLToPath(u string) string {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Path == "" {
		return u
	}
	return parsed.Path
}

// FixWebpackPath turns a source name into an absolute file path. webpack:
// URLs lose their scheme, host and leading slashes so that they resolve
// against cwd; every other name resolves by its URL path.
func FixWebpackPath(source, cwd string) string {
	p := URLToPath(source)
	if strings.HasPrefix(source, "webpack:") {
		p = strings.TrimLeft(p, "/")
	}
	p = filepath.FromSlash(p)
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(cwd, p)
}
