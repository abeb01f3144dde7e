package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/vanshmadan/gke-connect/internal/pkg/tracing"
)

func withTestTracerProvider(t *testing.T) {
	t.Helper()
	prevProp := otel.GetTextMapPropagator()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		// A shut-down provider hands out non-recording spans.
		_ = tp.Shutdown(context.Background())
		otel.SetTextMapPropagator(prevProp)
	})
}

func TestTracing_AddsTraceIDHeader(t *testing.T) {
	withTestTracerProvider(t)

	var seen string
	handler := Tracing(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = tracing.TraceIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/environments/staging/resources", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(TraceIDHeader))
}

func TestTracing_PropagatesIncomingTraceparent(t *testing.T) {
	withTestTracerProvider(t)

	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	handler := Tracing(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("traceparent", "00-"+traceID+"-00f067aa0ba902b7-01")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, traceID, rec.Header().Get(TraceIDHeader))
}

func TestTracing_NoopProviderOmitsHeader(t *testing.T) {
	handler := Tracing(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get(TraceIDHeader))
}
