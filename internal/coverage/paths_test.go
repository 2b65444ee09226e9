package coverage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestURLToPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://localhost:7777/static/app.js?v=2", "/static/app.js"},
		{"file:///home/me/app.js", "/home/me/app.js"},
		{"src/app.js", "src/app.js"},
		{"http://localhost", "http://localhost"},
		{"%zz", "%zz"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, URLToPath(tt.in))
		})
	}
}

func TestFixWebpackPath(t *testing.T) {
	cwd := filepath.FromSlash("/project")
	tests := []struct {
		in   string
		want string
	}{
		{"webpack:///./src/app.js", "/project/src/app.js"},
		{"webpack:///src/app.js", "/project/src/app.js"},
		{"webpack://my-lib/./lib/util.js", "/project/lib/util.js"},
		{"src/app.js", "/project/src/app.js"},
		{"../shared/util.js", "/shared/util.js"},
		{"/abs/app.js", "/abs/app.js"},
		{"http://localhost:7777/static/app.js", "/static/app.js"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, filepath.FromSlash(tt.want), FixWebpackPath(tt.in, cwd))
		})
	}
}
