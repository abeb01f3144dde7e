package rest

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/vanshmadan/gke-connect/internal/models"
	"github.com/vanshmadan/gke-connect/internal/pkg/validate"
)

// GetEnvironmentResources handles GET /environments/{namespace}/resources
func (h *Handler) GetEnvironmentResources(w http.ResponseWriter, r *http.Request) {
	h.environmentResources(w, r, mux.Vars(r)["namespace"])
}

// LegacyEnvironmentResources handles GET /api/environment-resources?env_name=
func (h *Handler) LegacyEnvironmentResources(w http.ResponseWriter, r *http.Request) {
	ns := r.URL.Query().Get("env_name")
	if ns == "" {
		respondInvalid(w, r, "Environment name is required")
		return
	}
	h.environmentResources(w, r, ns)
}

func (h *Handler) environmentResources(w http.ResponseWriter, r *http.Request, namespace string) {
	if h.topologyService == nil {
		respondError(w, http.StatusNotImplemented, "Topology is not configured")
		return
	}
	if !validate.Namespace(namespace) {
		respondInvalid(w, r, "Invalid environment name")
		return
	}
	nodes, err := h.topologyService.GetEnvironmentResources(r.Context(), namespace)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, models.EnvironmentResources{Resources: nodes})
}
