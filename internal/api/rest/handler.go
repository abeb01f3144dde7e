package rest

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/vanshmadan/gke-connect/internal/service"
)

// Handler manages HTTP request handlers
type Handler struct {
	topologyService service.TopologyService
	logsService     service.LogsService
	workloadService service.WorkloadService
}

// NewHandler creates a new HTTP handler. A nil service answers 501 on its routes.
func NewHandler(ts service.TopologyService, ls service.LogsService, ws service.WorkloadService) *Handler {
	return &Handler{
		topologyService: ts,
		logsService:     ls,
		workloadService: ws,
	}
}

// SetupRoutes configures the /api/v1 routes on router (already prefixed).
func SetupRoutes(router *mux.Router, h *Handler) {
	router.HandleFunc("/environments/{namespace}/resources", h.GetEnvironmentResources).Methods("GET")
	router.HandleFunc("/environments/{namespace}/logs/{controller}", h.GetControllerLogs).Methods("GET")
	router.HandleFunc("/environments/{namespace}/workloads/{name}/{action}", h.WorkloadAction).Methods("POST")
}

// SetupLegacyRoutes configures the query-parameter routes kept for older clients on the root router.
func SetupLegacyRoutes(router *mux.Router, h *Handler) {
	router.HandleFunc("/api/environment-resources", h.LegacyEnvironmentResources).Methods("GET")
	router.HandleFunc("/api/logs", h.LegacyLogs).Methods("GET")
	router.HandleFunc("/api/service/{op:start|stop|deploy}", h.LegacyServiceAction).Methods("POST")
}

// Helper functions
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
