package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MeKo-Tech/qrscan/internal/scanner"
	"github.com/MeKo-Tech/qrscan/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDetection(data string, t float64) scanner.Detection {
	return scanner.Detection{
		Time:        t,
		Data:        data,
		Method:      "identity",
		Coordinates: utils.Polygon{{X: 0, Y: 0}, {X: 5, Y: 0}, {X: 5, Y: 5}, {X: 0, Y: 5}},
	}
}

func newTestServer(t *testing.T) (*Server, *Feed, *Metrics) {
	t.Helper()
	m := NewMetrics()
	feed := NewFeed(nil, m)
	return NewServer(Config{Host: "127.0.0.1", Port: 0}, feed, m, nil), feed, m
}

func TestHealthHandler(t *testing.T) {
	s, feed, _ := newTestServer(t)
	h := s.Handler()

	t.Run("GET", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

		var resp HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "healthy", resp.Status)
		assert.False(t, resp.Running)
		assert.Zero(t, resp.Subscribers)
	})

	t.Run("running during a run", func(t *testing.T) {
		feed.OnRunStart(scanner.RunInfo{Source: "memory"})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		var resp HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Running)
	})

	t.Run("POST not allowed", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})

	t.Run("OPTIONS preflight", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "GET")
	})
}

func TestDetectionsHandler(t *testing.T) {
	s, feed, _ := newTestServer(t)
	h := s.Handler()

	feed.OnRunStart(scanner.RunInfo{Source: "memory"})
	feed.OnDetection(sampleDetection("HELLO", 0), true)
	feed.OnDetection(sampleDetection("HELLO", 0.04), false)
	feed.OnDetection(sampleDetection("WORLD", 0.08), true)

	t.Run("json", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/detections", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var resp DetectionsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 2, resp.Count)
		require.Len(t, resp.Detections, 2)
		assert.Equal(t, "HELLO", resp.Detections[0].Data)
		assert.Equal(t, "WORLD", resp.Detections[1].Data)
		assert.Nil(t, resp.Summary, "no summary before the run completes")
	})

	t.Run("summary after completion", func(t *testing.T) {
		feed.OnRunComplete(scanner.Summary{Frames: 3, Detections: 2, Reason: scanner.StopEndOfStream})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/detections?format=json", nil))

		var resp DetectionsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.NotNil(t, resp.Summary)
		assert.Equal(t, 3, resp.Summary.Frames)
		assert.Equal(t, scanner.StopEndOfStream, resp.Summary.Reason)
	})

	t.Run("text", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/detections?format=text", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
		require.Len(t, lines, 2)
		assert.Equal(t, "[ 0.00 s ] data: HELLO. method: identity. coordinates: [(0, 0), (5, 0), (5, 5), (0, 5)]", lines[0])
	})

	t.Run("csv", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/detections?format=csv", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
		assert.True(t, strings.HasPrefix(rec.Body.String(), "time,data,method,coordinates\n"))
	})

	t.Run("unknown format", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/detections?format=xml", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "xml")
	})

	t.Run("new run clears the log", func(t *testing.T) {
		feed.OnRunStart(scanner.RunInfo{Source: "memory"})
		assert.Empty(t, feed.Snapshot())
		_, ok := feed.Summary()
		assert.False(t, ok)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t)
	h := s.Handler()

	// One request so the HTTP collectors have a sample.
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "qrscan_http_requests_total")
	assert.Contains(t, string(body), `endpoint="/health"`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestServer_NoMetrics(t *testing.T) {
	s := NewServer(Config{}, nil, nil, nil)
	require.NotNil(t, s.Feed())

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestConfigAddr(t *testing.T) {
	assert.Equal(t, "localhost:8080", Config{Host: "localhost", Port: 8080}.Addr())
	assert.Equal(t, "[::1]:9000", Config{Host: "::1", Port: 9000}.Addr())
}
