// Package response holds the JSON response helpers the HTTP surface uses,
// matching the {error: {code, message}} / plain-body convention the rest
// of this module's lineage uses.
package response

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries a machine-readable code and a human message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// OK sends a 200 with a JSON body.
func OK(w http.ResponseWriter, data any) { write(w, http.StatusOK, data) }

// Accepted sends a 202 with a JSON body (§6 POST /api/send, /api/send-bulk).
func Accepted(w http.ResponseWriter, data any) { write(w, http.StatusAccepted, data) }

func write(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response body", "error", err)
	}
}

// BadRequest sends a 400 with code and message.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, nil, "INVALID_REQUEST", message, http.StatusBadRequest)
}

// Conflict sends a 409 with code and message.
func Conflict(w http.ResponseWriter, message string) {
	Error(w, nil, "CONFLICT", message, http.StatusConflict)
}

// ServiceUnavailable sends a 503, used when submission is rejected because
// shutdown is in progress.
func ServiceUnavailable(w http.ResponseWriter, message string) {
	Error(w, nil, "SHUTTING_DOWN", message, http.StatusServiceUnavailable)
}

// InternalError logs err server-side and returns a generic 500 to the client.
func InternalError(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		slog.ErrorContext(r.Context(), "internal server error", "error", err)
	}
	Error(w, r, "INTERNAL_ERROR", "an internal error occurred", http.StatusInternalServerError)
}

// Error sends a generic error response. r may be nil when no request
// context is available to attach to logs.
func Error(w http.ResponseWriter, _ *http.Request, code, message string, status int) {
	write(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}
