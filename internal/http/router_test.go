package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alsosee/media-gateway/internal/config"
	"github.com/alsosee/media-gateway/internal/relay"
	"github.com/alsosee/media-gateway/internal/storage"
)

func testConfig(githubURL string) *config.Config {
	return &config.Config{
		Env:             "test",
		MaxUploadBytes:  1 << 20,
		IdempotencyTTL:  time.Minute,
		RateLimitUpload: config.RateLimitConfig{RequestsPerSecond: 100, Burst: 100},
		ProxyTimeout:    time.Second,
		GitHub: config.GitHubConfig{
			Token:      "ghp_test",
			Repository: "alsosee/media",
			APIBase:    githubURL,
			Timeout:    time.Second,
		},
		Storage: config.StorageConfig{
			Provider:     "memory",
			RelayURL:     "http://localhost:8780/upload",
			RelayTimeout: time.Second,
		},
	}
}

func newGitHub(t *testing.T, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/repos/alsosee/media/dispatches", r.URL.Path)
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func doUpload(t *testing.T, h http.Handler, fileName, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPut, "/upload", strings.NewReader(body))
	req.Header.Set("x-file-name", fileName)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouterUploadWithManagedStore(t *testing.T) {
	gh, calls := newGitHub(t, http.StatusNoContent)
	h, err := NewRouter(context.Background(), testConfig(gh.URL), nil)
	require.NoError(t, err)

	rec := doUpload(t, h, "People%2FJohn%20Doe.jpg", "jpeg", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","key":"People/John Doe.jpg"}`, rec.Body.String())
	assert.EqualValues(t, 1, calls.Load())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `media_gateway_uploads_total{result="ok"} 1`)
}

func TestRouterUploadThroughLocalRelay(t *testing.T) {
	dir := t.TempDir()
	fs, err := storage.NewFSStore(dir)
	require.NoError(t, err)
	relayRouter := chi.NewRouter()
	relay.Mount(relayRouter, relay.NewHandler(fs))
	relaySrv := httptest.NewServer(relayRouter)
	defer relaySrv.Close()

	gh, calls := newGitHub(t, http.StatusNoContent)
	cfg := testConfig(gh.URL)
	cfg.Storage.Provider = ""
	cfg.Storage.RelayURL = relaySrv.URL + "/upload"

	h, err := NewRouter(context.Background(), cfg, nil)
	require.NoError(t, err)

	rec := doUpload(t, h, "People%2FJohn%20Doe.jpg", "jpeg", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","key":"People/John Doe.jpg"}`, rec.Body.String())
	assert.EqualValues(t, 1, calls.Load())

	data, err := os.ReadFile(filepath.Join(dir, "People", "John Doe.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(data))
}

func TestRouterWithoutToken(t *testing.T) {
	gh, calls := newGitHub(t, http.StatusNoContent)
	cfg := testConfig(gh.URL)
	cfg.GitHub.Token = ""

	h, err := NewRouter(context.Background(), cfg, nil)
	require.NoError(t, err)

	rec := doUpload(t, h, "a.jpg", "x", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "GHP_TOKEN")
	assert.Zero(t, calls.Load())
}

func TestRouterIdempotentReplay(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	gh, calls := newGitHub(t, http.StatusNoContent)
	h, err := NewRouter(context.Background(), testConfig(gh.URL), client)
	require.NoError(t, err)

	headers := map[string]string{"X-Correlation-ID": "c-1"}
	first := doUpload(t, h, "a.jpg", "x", headers)
	second := doUpload(t, h, "a.jpg", "x", headers)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "true", second.Header().Get("X-Idempotent-Replay"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.EqualValues(t, 1, calls.Load())
}

func TestRouterHealthAndReady(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	h, err := NewRouter(context.Background(), testConfig("http://127.0.0.1:1"), client)
	require.NoError(t, err)

	tests := []struct {
		name   string
		path   string
		status int
		body   string
	}{
		{"health", "/health", http.StatusOK, `{"status":"ok"}`},
		{"ready", "/ready", http.StatusOK, `{"ready":true,"storage":"memory"}`},
		{"desconhecida", "/nada", http.StatusNotFound, `{"error":{"message":"Not Found"}}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
			assert.Equal(t, tc.status, rec.Code)
			assert.JSONEq(t, tc.body, rec.Body.String())
		})
	}

	mr.Close()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "redis")
}

func TestRouterMethodGateBeforeRateLimit(t *testing.T) {
	gh, calls := newGitHub(t, http.StatusNoContent)
	cfg := testConfig(gh.URL)
	cfg.RateLimitUpload = config.RateLimitConfig{RequestsPerSecond: 1, Burst: 1}

	h, err := NewRouter(context.Background(), cfg, nil)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("x"))
		req.Header.Set("X-Real-IP", "10.0.0.9")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		assert.Equal(t, http.MethodPut, rec.Header().Get("Allow"))
	}

	put := func() int {
		req := httptest.NewRequest(http.MethodPut, "/upload", strings.NewReader("x"))
		req.Header.Set("X-Real-IP", "10.0.0.9")
		req.Header.Set("x-file-name", "a.jpg")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusOK, put())
	assert.Equal(t, http.StatusTooManyRequests, put())
	assert.EqualValues(t, 1, calls.Load())
}

func TestRouterRejectsUnknownProvider(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Storage.Provider = "ftp"
	_, err := NewRouter(context.Background(), cfg, nil)
	assert.Error(t, err)
}
