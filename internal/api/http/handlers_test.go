package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/ottr/internal/api/ws"
	"github.com/GriffinCanCode/ottr/internal/coverage"
	"github.com/GriffinCanCode/ottr/internal/domain/session"
	"github.com/GriffinCanCode/ottr/internal/infrastructure/monitoring"
)

const rawReports = `[{"url":"http://localhost:8080/app.js","text":"var a = 1;","ranges":[{"start":0,"end":10}]}]`

type fakeConverter struct {
	stages   coverage.Stages
	got      coverage.Stages
	bundles  int
	err      error
	coverage coverage.CoverageMap
}

func (f *fakeConverter) ConvertWith(_ context.Context, reports []coverage.Report, stages coverage.Stages) (coverage.CoverageMap, error) {
	f.got = stages
	f.bundles = len(reports)
	if f.err != nil {
		return nil, f.err
	}
	return f.coverage, nil
}

func (f *fakeConverter) Stages() coverage.Stages { return f.stages }

func fileCoverage(path string, hits ...int) *coverage.FileCoverage {
	fc := coverage.NewFileCoverage(path)
	for i, n := range hits {
		id := string(rune('0' + i))
		fc.StatementMap[id] = coverage.Span{}
		fc.S[id] = n
	}
	return fc
}

type testServer struct {
	router    *gin.Engine
	store     *session.Store
	acc       *coverage.Accumulator
	converter *fakeConverter
}

func setupTestServer() *testServer {
	gin.SetMode(gin.TestMode)

	ts := &testServer{
		router: gin.New(),
		store:  session.NewStore(),
		acc:    coverage.NewAccumulator(),
		converter: &fakeConverter{
			stages: coverage.Stages{InferNonCovered: true, InterpolateLines: true},
			coverage: coverage.CoverageMap{
				"/project/app.js": fileCoverage("/project/app.js", 1, 0),
			},
		},
	}
	events := ws.NewHandler(ts.store, nil, nil, nil)
	NewHandlers(ts.store, ts.converter, ts.acc, events, monitoring.NewMetrics(), nil, nil).Register(ts.router)
	return ts
}

func (ts *testServer) do(method, target string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	ts := setupTestServer()
	ts.store.GetOrCreate("s1")

	w := ts.do(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.EqualValues(t, 1, body["sessions_active"])
	assert.Contains(t, body, "metrics")
}

func TestSessions(t *testing.T) {
	ts := setupTestServer()

	w := ts.do(http.MethodGet, APIPrefix+"/session/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"not found"}`, w.Body.String())

	w = ts.do(http.MethodGet, APIPrefix+"/session/bad%20id", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(http.MethodPost, APIPrefix+"/session", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var created session.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	ts.store.AppendOutput(created.ID, "adds", "not ok 1 - adds")

	w = ts.do(http.MethodGet, APIPrefix+"/session/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got session.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, session.DefaultError, got.Error)
	assert.Equal(t, []string{"adds"}, got.Names)

	w = ts.do(http.MethodGet, APIPrefix+"/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Sessions []session.Session `json:"sessions"`
		Count    int               `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, created.ID, list.Sessions[0].ID)
}

func TestPostCoverage(t *testing.T) {
	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, err := zw.Write([]byte(rawReports))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	tests := []struct {
		name       string
		query      string
		body       []byte
		wantStatus int
		wantStages coverage.Stages
	}{
		{
			name:       "configured stages",
			body:       []byte(rawReports),
			wantStatus: http.StatusOK,
			wantStages: coverage.Stages{InferNonCovered: true, InterpolateLines: true},
		},
		{
			name:       "stages overridden",
			query:      "?inferNonCovered=false&interpolateLines=0",
			body:       []byte(rawReports),
			wantStatus: http.StatusOK,
		},
		{
			name:       "gzipped body",
			query:      "?interpolateLines=false",
			body:       gz.Bytes(),
			wantStatus: http.StatusOK,
			wantStages: coverage.Stages{InferNonCovered: true},
		},
		{
			name:       "invalid flag",
			query:      "?inferNonCovered=maybe",
			body:       []byte(rawReports),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid body",
			body:       []byte(`{"url":`),
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := setupTestServer()

			w := ts.do(http.MethodPost, APIPrefix+"/coverage"+tt.query, tt.body)
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantStatus != http.StatusOK {
				assert.Empty(t, ts.acc.Snapshot())
				return
			}

			assert.Equal(t, tt.wantStages, ts.converter.got)
			assert.Equal(t, 1, ts.converter.bundles)

			var got coverage.CoverageMap
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.Equal(t, map[string]int{"0": 1, "1": 0}, got["/project/app.js"].S)
			assert.Contains(t, ts.acc.Snapshot(), "/project/app.js")
		})
	}
}

func TestPostCoverageInflatedTooLarge(t *testing.T) {
	limit := coverage.MaxInflatedBytes
	t.Cleanup(func() { coverage.MaxInflatedBytes = limit })
	coverage.MaxInflatedBytes = 16

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, err := zw.Write([]byte(rawReports))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	ts := setupTestServer()
	w := ts.do(http.MethodPost, APIPrefix+"/coverage", gz.Bytes())
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Zero(t, ts.converter.bundles)
	assert.Empty(t, ts.acc.Snapshot())
}

func TestPostCoverageConversionError(t *testing.T) {
	ts := setupTestServer()
	ts.converter.err = errors.New("boom")

	w := ts.do(http.MethodPost, APIPrefix+"/coverage", []byte(rawReports))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Empty(t, ts.acc.Snapshot())
}

func TestGetAndResetCoverage(t *testing.T) {
	ts := setupTestServer()
	ts.acc.Add(coverage.CoverageMap{"/p/a.js": fileCoverage("/p/a.js", 1)})

	w := ts.do(http.MethodGet, APIPrefix+"/coverage", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"/p/a.js"`)

	w = ts.do(http.MethodDelete, APIPrefix+"/coverage", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(http.MethodGet, APIPrefix+"/coverage", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{}`, w.Body.String())
}

func TestGetSummary(t *testing.T) {
	ts := setupTestServer()
	ts.acc.Add(coverage.CoverageMap{"/p/a.js": fileCoverage("/p/a.js", 1, 0)})

	tests := []struct {
		format      string
		wantStatus  int
		contentType string
	}{
		{"", http.StatusOK, "application/json"},
		{"json", http.StatusOK, "application/json"},
		{"yaml", http.StatusOK, "application/yaml"},
		{"toml", http.StatusOK, "application/toml"},
		{"xml", http.StatusBadRequest, "application/json"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			target := APIPrefix + "/coverage/summary"
			if tt.format != "" {
				target += "?format=" + tt.format
			}
			w := ts.do(http.MethodGet, target, nil)
			require.Equal(t, tt.wantStatus, w.Code)
			assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), tt.contentType))
			if tt.wantStatus == http.StatusOK {
				assert.Contains(t, w.Body.String(), "/p/a.js")
			}
		})
	}
}

func TestStreamLogs(t *testing.T) {
	ts := setupTestServer()

	body := `{"session":"s1","test":"adds","entries":[{"level":"log","args":["ok 1","- adds"]},{"args":["second"]}]}`
	w := ts.do(http.MethodPost, APIPrefix+"/log", []byte(body))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"processed":2,"total":2}`, w.Body.String())

	s, err := ts.store.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, "ok 1 - adds\nsecond", s.Tests["adds"].Output)

	w = ts.do(http.MethodPost, APIPrefix+"/log", []byte(`{"session":"s1","entries":[]}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(http.MethodPost, APIPrefix+"/log", []byte(`{"entries":[{"args":["x"]}]}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
