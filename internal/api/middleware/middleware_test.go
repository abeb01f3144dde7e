package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanshmadan/gke-connect/internal/pkg/logger"
)

// captureRequestLog redirects request log lines into a buffer for the test.
func captureRequestLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	prev := requestLogOut
	buf := &bytes.Buffer{}
	requestLogOut = buf
	t.Cleanup(func() { requestLogOut = prev })
	return buf
}

func TestRequestID_GeneratesAndEchoes(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.FromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(ResponseRequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(ResponseRequestIDHeader, "req-123")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "req-123", seen)
	assert.Equal(t, "req-123", rec.Header().Get(ResponseRequestIDHeader))
}

func TestStructuredLog_NamespaceFromRouteAndQuery(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		status int
		want   logger.LogEntry
	}{
		{
			name:   "route variable",
			path:   "/api/v1/environments/staging/resources",
			status: http.StatusOK,
			want:   logger.LogEntry{Level: "info", Namespace: "staging", Method: http.MethodGet, Path: "/api/v1/environments/staging/resources", Status: http.StatusOK},
		},
		{
			name:   "legacy query",
			path:   "/api/environment-resources?env_name=prod",
			status: http.StatusNotFound,
			want:   logger.LogEntry{Level: "warn", Namespace: "prod", Method: http.MethodGet, Path: "/api/environment-resources", Status: http.StatusNotFound, Error: "Not Found"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureRequestLog(t)

			r := mux.NewRouter()
			r.Use(RequestID, StructuredLog)
			h := func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(tt.status) }
			r.HandleFunc("/api/v1/environments/{namespace}/resources", h)
			r.HandleFunc("/api/environment-resources", h)

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			req.Header.Set(ResponseRequestIDHeader, "req-1")
			r.ServeHTTP(httptest.NewRecorder(), req)

			var got logger.LogEntry
			require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &got))
			assert.Equal(t, "req-1", got.RequestID)
			assert.Equal(t, tt.want.Level, got.Level)
			assert.Equal(t, tt.want.Namespace, got.Namespace)
			assert.Equal(t, tt.want.Method, got.Method)
			assert.Equal(t, tt.want.Path, got.Path)
			assert.Equal(t, tt.want.Status, got.Status)
			assert.Equal(t, tt.want.Error, got.Error)
		})
	}
}

func TestResponseWriter_HijackUnsupported(t *testing.T) {
	rw := &responseWriter{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK}
	_, _, err := rw.Hijack()
	assert.Error(t, err)
	assert.Equal(t, http.StatusOK, rw.status)
}

func TestResponseWriter_HijackPassesThrough(t *testing.T) {
	captureRequestLog(t)
	var hijacked atomic.Bool
	srv := httptest.NewServer(StructuredLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, ok := w.(http.Hijacker)
		if !ok {
			return
		}
		if conn, _, err := h.Hijack(); err == nil {
			hijacked.Store(true)
			conn.Close()
		}
	})))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err == nil {
		resp.Body.Close()
	}
	assert.True(t, hijacked.Load())
}

func TestSecureHeaders(t *testing.T) {
	handler := SecureHeaders(okHandler())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
}

func TestWarnWildcardCORS(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	assert.Equal(t, 0, WarnWildcardCORS([]string{"https://app.example.com"}, log))
	assert.Empty(t, buf.String())

	assert.Equal(t, 2, WarnWildcardCORS([]string{"*", "https://app.example.com", ".*"}, log))
	assert.Contains(t, buf.String(), "CORS wildcard detected")
}
