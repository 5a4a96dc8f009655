package handler

// RESPONSE HELPERS:
// Every error response has the same shape:
//
//	{"error": "not_found", "message": "snippet \"recipe\" does not exist"}
//
// Validation errors also carry "fields", one entry per invalid field.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/snippets/internal/apperror"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string                `json:"error"`   // Machine-readable error type (e.g., "not_found")
	Message string                `json:"message"` // Human-readable description
	Fields  []apperror.FieldError `json:"fields,omitempty"`
}

// writeJSON sends a JSON response with the given status code.
// Headers and status must be written before the body.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to its HTTP status and sends it.
//
//	ErrValidation → 400   ErrNotFound → 404
//	ErrForbidden  → 403   ErrConflict → 409
//
// Anything else is a 500 whose details stay in the server log.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
			errorType = "not_found"
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden
			errorType = "forbidden"
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict
			errorType = "conflict"
		}

		resp := ErrorResponse{Error: errorType, Message: appErr.Message}
		if status == http.StatusBadRequest {
			resp.Fields = appErr.Fields
		}
		writeJSON(w, status, resp)
		return
	}

	slog.Error("unhandled error", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}
