package rest

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/vanshmadan/gke-connect/internal/pkg/validate"
	"github.com/vanshmadan/gke-connect/internal/service"
)

// GetControllerLogs handles GET /environments/{namespace}/logs/{controller}?tail=N
// Returns the timestamped log tail of every pod the controller owns.
func (h *Handler) GetControllerLogs(w http.ResponseWriter, r *http.Request) {
	if h.logsService == nil {
		respondError(w, http.StatusNotImplemented, "Controller logs are not configured")
		return
	}
	vars := mux.Vars(r)
	namespace, controller := vars["namespace"], vars["controller"]
	if !validate.Namespace(namespace) || !validate.Name(controller) {
		respondInvalid(w, r, "Invalid environment or controller name")
		return
	}
	tail, ok := validate.TailLines(r.URL.Query().Get("tail"), service.DefaultTailLines)
	if !ok {
		respondInvalid(w, r, fmt.Sprintf("tail must be between 1 and %d", validate.MaxTailLines))
		return
	}

	logs, err := h.logsService.GetControllerLogs(r.Context(), namespace, controller, tail)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, logs)
}

// LegacyLogs handles GET /api/logs?env_name=&controller_name=
// Plain-text blocks, one per pod.
func (h *Handler) LegacyLogs(w http.ResponseWriter, r *http.Request) {
	if h.logsService == nil {
		respondError(w, http.StatusNotImplemented, "Controller logs are not configured")
		return
	}
	namespace := r.URL.Query().Get("env_name")
	controller := r.URL.Query().Get("controller_name")
	if namespace == "" || controller == "" {
		respondInvalid(w, r, "Missing env_name or controller_name")
		return
	}
	if !validate.Namespace(namespace) || !validate.Name(controller) {
		respondInvalid(w, r, "Invalid env_name or controller_name")
		return
	}

	logs, err := h.logsService.GetControllerLogs(r.Context(), namespace, controller, service.DefaultTailLines)
	if errors.Is(err, service.ErrNoPods) {
		respondJSON(w, http.StatusNotFound, map[string]string{"message": fmt.Sprintf("No pods found for %s", controller)})
		return
	}
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(service.FormatLegacyLogs(logs)))
}
