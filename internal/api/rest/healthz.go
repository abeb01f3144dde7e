package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/vanshmadan/gke-connect/internal/k8s"
)

// ClusterHealth reports the state of the Kubernetes API connection.
type ClusterHealth interface {
	HealthStatus() (isHealthy bool, lastSuccess time.Time, lastErr error, circuitState k8s.CircuitBreakerState)
	TestConnection(ctx context.Context) error
}

// HealthzHandler handles health check endpoints
type HealthzHandler struct {
	cluster ClusterHealth
}

// NewHealthzHandler creates a new healthz handler
func NewHealthzHandler(cluster ClusterHealth) *HealthzHandler {
	return &HealthzHandler{cluster: cluster}
}

// Health handles GET /health: process status plus the last known API server state.
// Always 200; the body says whether the cluster is reachable.
func (h *HealthzHandler) Health(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{"status": "healthy"}
	if h.cluster != nil {
		healthy, lastSuccess, lastErr, state := h.cluster.HealthStatus()
		cluster := map[string]interface{}{
			"healthy":       healthy,
			"circuit_state": state.String(),
		}
		if !lastSuccess.IsZero() {
			cluster["last_success"] = lastSuccess.UTC().Format(time.RFC3339)
		}
		if lastErr != nil {
			cluster["last_error"] = lastErr.Error()
		}
		body["cluster"] = cluster
	}
	respondJSON(w, http.StatusOK, body)
}

// Live handles GET /healthz/live - liveness probe (process is alive)
func (h *HealthzHandler) Live(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
	})
}

// Ready handles GET /healthz/ready - readiness probe (API server reachable)
func (h *HealthzHandler) Ready(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if h.cluster != nil {
		if err := h.cluster.TestConnection(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status": "unhealthy",
				"reason": "kubernetes_unavailable",
				"error":  err.Error(),
			})
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
	})
}
