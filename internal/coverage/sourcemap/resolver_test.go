package sourcemap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/ottr/internal/coverage/sourcemap/sourcemaptest"
	"github.com/GriffinCanCode/ottr/internal/infrastructure/resilience"
)

func testMap() sourcemaptest.Map {
	_, m := sourcemaptest.LineMapped(0, sourcemaptest.File{Name: "src/app.js", Content: "const a = 1\nexport default a\n"})
	return m
}

func TestFindSourceMappingURL(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"none", "console.log(1)\n", ""},
		{"line comment", "x()\n//# sourceMappingURL=app.js.map\n", "app.js.map"},
		{"legacy marker", "x()\n//@ sourceMappingURL=app.js.map", "app.js.map"},
		{"block comment", "x()\n/*# sourceMappingURL=app.css.map */", "app.css.map"},
		{"last one wins", "//# sourceMappingURL=a.map\ny()\n//# sourceMappingURL=b.map\n", "b.map"},
		{"data url", "x()\n//# sourceMappingURL=data:application/json;base64,e30=", "data:application/json;base64,e30="},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FindSourceMappingURL(tt.text))
		})
	}
}

func TestDecodeDataURL(t *testing.T) {
	got, err := DecodeDataURL("data:application/json;charset=utf-8;base64,eyJhIjoxfQ==")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(got))

	got, err = DecodeDataURL("data:application/json;base64,eyJhIjoxfQ")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(got), "unpadded base64")

	got, err = DecodeDataURL("data:application/json," + url.PathEscape(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(got))

	_, err = DecodeDataURL("data:application/json;base64")
	assert.Error(t, err)
	_, err = DecodeDataURL("http://example.com")
	assert.Error(t, err)
}

func TestResolveInline(t *testing.T) {
	m := testMap()
	bundle := sourcemaptest.Inline("const a = 1\nexport default a\n", m)

	r := NewResolver(DefaultResolverConfig(), nil)
	p, err := r.Resolve(context.Background(), bundle, "http://localhost:7777/app.js")
	require.NoError(t, err)
	assert.Equal(t, []string{"src/app.js"}, p.Sources())
	assert.Equal(t, "const a = 1\nexport default a\n", p.SourceContent("src/app.js"))
}

func TestResolveFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js.map"), testMap().Bytes(), 0o644))

	bundleURL := (&url.URL{Scheme: "file", Path: filepath.ToSlash(filepath.Join(dir, "app.js"))}).String()
	r := NewResolver(DefaultResolverConfig(), nil)
	p, err := r.Resolve(context.Background(), "x()\n//# sourceMappingURL=app.js.map\n", bundleURL)
	require.NoError(t, err)
	assert.Len(t, p.Mappings(), 2)

	_, err = r.Resolve(context.Background(), "x()\n//# sourceMappingURL=missing.map\n", bundleURL)
	assert.ErrorIs(t, err, ErrNoSourceMap)
}

func TestResolveRemote(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		hits.Add(1)
		if req.URL.Path != "/static/app.js.map" {
			http.NotFound(w, req)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(testMap().Bytes())
	}))
	defer srv.Close()

	bundle := "x()\n//# sourceMappingURL=app.js.map\n"
	bundleURL := srv.URL + "/static/app.js"

	t.Run("disabled by default", func(t *testing.T) {
		r := NewResolver(DefaultResolverConfig(), nil)
		_, err := r.Resolve(context.Background(), bundle, bundleURL)
		assert.ErrorIs(t, err, ErrNoSourceMap)
		assert.Equal(t, int32(0), hits.Load())
	})

	t.Run("fetched when enabled", func(t *testing.T) {
		cfg := DefaultResolverConfig()
		cfg.Fetch = true
		r := NewResolver(cfg, nil)

		p, err := r.Resolve(context.Background(), bundle, bundleURL)
		require.NoError(t, err)
		assert.Equal(t, srv.URL+"/static/app.js.map", p.URL)
		assert.Equal(t, []string{"src/app.js"}, p.Sources())
	})
}

func TestResolveRemoteBreaker(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		hits.Add(1)
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	r := NewResolver(ResolverConfig{Fetch: true, Timeout: time.Second}, nil)
	bundle := "x()\n//# sourceMappingURL=app.js.map\n"

	for i := 0; i < 3; i++ {
		_, err := r.Resolve(context.Background(), bundle, srv.URL+"/app.js")
		require.ErrorIs(t, err, ErrNoSourceMap)
	}
	_, err := r.Resolve(context.Background(), bundle, srv.URL+"/app.js")
	assert.ErrorIs(t, err, ErrNoSourceMap)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(3), hits.Load())
}

func TestResolveWithoutComment(t *testing.T) {
	r := NewResolver(DefaultResolverConfig(), nil)
	_, err := r.Resolve(context.Background(), "console.log(1)", "http://localhost/app.js")
	assert.ErrorIs(t, err, ErrNoSourceMap)

	_, err = r.Resolve(context.Background(), "x()\n//# sourceMappingURL=data:application/json;base64,bm9wZQ==", "http://localhost/app.js")
	assert.ErrorIs(t, err, ErrNoSourceMap, "undecodable payload")
}
