package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	apierrors "k8s.io/apimachinery/pkg/api/errors"

	"github.com/vanshmadan/gke-connect/internal/k8s"
	"github.com/vanshmadan/gke-connect/internal/pkg/logger"
	"github.com/vanshmadan/gke-connect/internal/service"
)

// APIError represents a structured API error response
type APIError struct {
	Error     string            `json:"error"`
	Code      string            `json:"code,omitempty"`
	Message   string            `json:"message"`
	RequestID string            `json:"request_id,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// Error codes for common scenarios
const (
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeInternalError     = "INTERNAL_ERROR"
	ErrCodeTimeout           = "TIMEOUT"
	ErrCodeCircuitBreaker    = "CIRCUIT_BREAKER_OPEN"
	ErrCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	ErrCodeValidationFailed  = "VALIDATION_FAILED"
	ErrCodeBodyTooLarge      = "BODY_TOO_LARGE"
)

// respondStructuredError sends a structured error response with error code and details
func respondStructuredError(w http.ResponseWriter, status int, code, message string, requestID string, details map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := APIError{
		Error:     message,
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Details:   details,
	}
	json.NewEncoder(w).Encode(err)
}

// respondErrorWithCode is a convenience wrapper for structured errors
func respondErrorWithCode(w http.ResponseWriter, status int, code, message string, requestID string) {
	respondStructuredError(w, status, code, message, requestID, nil)
}

// respondInvalid answers 400 INVALID_REQUEST.
func respondInvalid(w http.ResponseWriter, r *http.Request, message string) {
	respondErrorWithCode(w, http.StatusBadRequest, ErrCodeInvalidRequest, message, logger.FromContext(r.Context()))
}

// respondServiceError maps err to a status and code: Kubernetes NotFound/Forbidden,
// an open circuit, timeouts and missing pods get their own; the rest is 500.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classifyError(err)
	respondErrorWithCode(w, status, code, err.Error(), logger.FromContext(r.Context()))
}

func classifyError(err error) (int, string) {
	switch {
	case apierrors.IsNotFound(err), errors.Is(err, service.ErrNoPods):
		return http.StatusNotFound, ErrCodeNotFound
	case apierrors.IsForbidden(err):
		return http.StatusForbidden, ErrCodeForbidden
	case errors.Is(err, k8s.ErrCircuitOpen):
		return http.StatusServiceUnavailable, ErrCodeCircuitBreaker
	case apierrors.IsTooManyRequests(err):
		return http.StatusTooManyRequests, ErrCodeRateLimitExceeded
	case errors.Is(err, context.DeadlineExceeded), apierrors.IsTimeout(err), apierrors.IsServerTimeout(err):
		return http.StatusGatewayTimeout, ErrCodeTimeout
	case errors.Is(err, service.ErrUnknownAction):
		return http.StatusBadRequest, ErrCodeInvalidRequest
	default:
		return http.StatusInternalServerError, ErrCodeInternalError
	}
}
