// Package logger provides structured logging with request correlation.
// No secrets are logged; request_id and namespace enable traceability in production.
package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	charmlog "github.com/charmbracelet/log"
)

type contextKey string

const RequestIDKey contextKey = "request_id"

var (
	level   = new(slog.LevelVar)
	mu      sync.Mutex
	console *charmlog.Logger
)

// LogEntry is the structured request log payload (JSON). Safe for aggregation; no secrets.
type LogEntry struct {
	Time       string  `json:"time"`
	Level      string  `json:"level"`
	RequestID  string  `json:"request_id,omitempty"`
	Namespace  string  `json:"namespace,omitempty"`
	Method     string  `json:"method,omitempty"`
	Path       string  `json:"path,omitempty"`
	Status     int     `json:"status,omitempty"`
	DurationMs float64 `json:"duration_ms,omitempty"`
	Message    string  `json:"message,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// RequestLog writes a single JSON line for an HTTP request (after response). Use from middleware.
func RequestLog(out io.Writer, reqID, namespace, method, path string, status int, duration time.Duration, errMsg string) {
	lvl := "info"
	if status >= 500 {
		lvl = "error"
	} else if status >= 400 {
		lvl = "warn"
	}
	entry := LogEntry{
		Time:       time.Now().UTC().Format(time.RFC3339Nano),
		Level:      lvl,
		RequestID:  reqID,
		Namespace:  namespace,
		Method:     method,
		Path:       path,
		Status:     status,
		DurationMs: float64(duration.Milliseconds()),
		Error:      errMsg,
	}
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(entry)
}

// FromContext returns the request ID from context, or empty string.
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// ParseLevel maps debug|info|warn|error to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return l, nil
}

// SetLevel changes the level of every logger returned by StdLogger.
func SetLevel(s string) error {
	l, err := ParseLevel(s)
	if err != nil {
		return err
	}
	level.Set(l)
	mu.Lock()
	defer mu.Unlock()
	if console != nil {
		console.SetLevel(charmlog.Level(l))
	}
	return nil
}

// StdLogger returns a slog.Logger for non-request logs. JSON when LOG_JSON=1,
// otherwise a human-readable console handler.
func StdLogger() *slog.Logger {
	return newLogger(os.Stderr, os.Getenv("LOG_JSON") == "1")
}

func newLogger(out io.Writer, jsonOutput bool) *slog.Logger {
	if jsonOutput {
		return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level}))
	}
	h := charmlog.NewWithOptions(out, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Level:           charmlog.Level(level.Level()),
	})
	mu.Lock()
	console = h
	mu.Unlock()
	return slog.New(h)
}
