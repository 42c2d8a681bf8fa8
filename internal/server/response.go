package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/illarion/keevault/internal/domain"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// JSON writes data as a JSON response
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode response", "error", err)
		}
	}
}

// Error writes an error response
func Error(w http.ResponseWriter, status int, code string, message string) {
	JSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// statusOf maps an error to an HTTP status and a response code
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrState):
		return http.StatusConflict, "VAULT_LOCKED"
	case errors.Is(err, domain.ErrAuth):
		return http.StatusUnauthorized, "AUTH_FAILED"
	case errors.Is(err, domain.ErrType):
		return http.StatusUnprocessableEntity, "WRONG_FIELD_TYPE"
	case errors.Is(err, domain.ErrEncoding):
		return http.StatusUnprocessableEntity, "INVALID_ENCODING"
	case errors.Is(err, domain.ErrConfig):
		return http.StatusUnprocessableEntity, "INVALID_OTP"
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "INVALID_INPUT"
	case errors.Is(err, domain.ErrIO):
		return http.StatusBadGateway, "STORAGE_ERROR"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

// writeError maps err onto an error response. Unclassified errors are
// logged and reported without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusOf(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		message = "internal server error"
	}
	Error(w, status, code, message)
}
