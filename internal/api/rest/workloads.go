package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/vanshmadan/gke-connect/internal/models"
	"github.com/vanshmadan/gke-connect/internal/pkg/logger"
	"github.com/vanshmadan/gke-connect/internal/pkg/validate"
)

// legacyActions maps /api/service/{op} to workload actions.
var legacyActions = map[string]string{
	"start":  models.WorkloadActionStart,
	"stop":   models.WorkloadActionStop,
	"deploy": models.WorkloadActionRedeploy,
}

// WorkloadAction handles POST /environments/{namespace}/workloads/{name}/{action}
// action is start (scale to 1), stop (scale to 0) or redeploy (rolling restart).
func (h *Handler) WorkloadAction(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	h.workloadAction(w, r, vars["namespace"], vars["name"], vars["action"])
}

// LegacyServiceAction handles POST /api/service/{start|stop|deploy} with
// body {"envName": "...", "serviceName": "..."}.
func (h *Handler) LegacyServiceAction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EnvName     string `json:"envName"`
		ServiceName string `json:"serviceName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondErrorWithCode(w, http.StatusRequestEntityTooLarge, ErrCodeBodyTooLarge, "Request body too large", logger.FromContext(r.Context()))
			return
		}
		respondInvalid(w, r, "Invalid request body")
		return
	}
	if req.EnvName == "" || req.ServiceName == "" {
		respondInvalid(w, r, "Missing envName or serviceName")
		return
	}
	h.workloadAction(w, r, req.EnvName, req.ServiceName, legacyActions[mux.Vars(r)["op"]])
}

func (h *Handler) workloadAction(w http.ResponseWriter, r *http.Request, namespace, name, action string) {
	if h.workloadService == nil {
		respondError(w, http.StatusNotImplemented, "Workload actions are not configured")
		return
	}
	if !validate.Namespace(namespace) || !validate.Name(name) {
		respondInvalid(w, r, "Invalid environment or workload name")
		return
	}
	switch action {
	case models.WorkloadActionStart, models.WorkloadActionStop, models.WorkloadActionRedeploy:
	default:
		respondInvalid(w, r, "action must be one of start, stop, redeploy")
		return
	}

	res, err := h.workloadService.Do(r.Context(), namespace, name, action)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}
