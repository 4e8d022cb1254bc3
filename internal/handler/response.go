package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON or writeError so the body shape
// and status mapping live in one place.
//
// CONSISTENT ERROR FORMAT:
//   {"error": "not_found", "message": "bookmark not found with id 12"}
//   {"error": "validation_error", "message": "url must start with https://", "field": "url"}
//   {"error": "missing_credential", "message": "not authenticated"}

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/category-note/internal/apperror"
)

// ErrorResponse is the standard error body returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`           // machine-readable kind, e.g. "not_found"
	Message string `json:"message"`         // human-readable description
	Field   string `json:"field,omitempty"` // offending input, validation errors only
}

// MessageResponse is the body of endpoints that only acknowledge.
type MessageResponse struct {
	Message string `json:"message"`
}

// writeJSON sends data as JSON with the given status. Headers must be set
// before WriteHeader; anything set afterwards is dropped.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// headers are already sent
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to its HTTP status and sends it.
//
// ERROR MAPPING:
//
//	ErrValidation      → 422 validation_error
//	ErrBadRequest      → 400 bad_request
//	ErrUpstreamAuth    → 400 oauth_error
//	ErrUnauthenticated → 401 <reason code>
//	ErrNotFound        → 404 not_found (or its reason code)
//	ErrConflict        → 409 conflict
//	anything else      → 500 internal_error
//
// errors.Is walks the whole chain, so a service error like
// fmt.Errorf("service/bookmark: getting 3: %w", apperror.NotFound(...))
// still maps to 404. Unknown errors never leak their text to the client;
// they are logged on logger instead.
func writeError(logger *slog.Logger, w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		logger.Error("unhandled error", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
		return
	}

	status := http.StatusInternalServerError
	kind := "internal_error"
	switch {
	case errors.Is(err, apperror.ErrValidation):
		status, kind = http.StatusUnprocessableEntity, "validation_error"
	case errors.Is(err, apperror.ErrBadRequest):
		status, kind = http.StatusBadRequest, "bad_request"
	case errors.Is(err, apperror.ErrUpstreamAuth):
		status, kind = http.StatusBadRequest, "oauth_error"
	case errors.Is(err, apperror.ErrUnauthenticated):
		status, kind = http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, apperror.ErrNotFound):
		status, kind = http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrConflict):
		status, kind = http.StatusConflict, "conflict"
	}
	if appErr.Code != "" {
		kind = appErr.Code
	}

	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}

	body := ErrorResponse{Error: kind, Message: appErr.Message}
	if status == http.StatusUnprocessableEntity {
		body.Field = appErr.Field
	}
	writeJSON(w, status, body)
}

// NewErrorWriter binds writeError to logger, for middleware that renders
// errors outside a handler (auth.RequireAuth).
func NewErrorWriter(logger *slog.Logger) func(http.ResponseWriter, error) {
	return func(w http.ResponseWriter, err error) {
		writeError(logger, w, err)
	}
}

// decodeJSON reads a single JSON object from the request body. A body that
// is not valid JSON is a validation error on "body".
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return apperror.ValidationFailed("body", "request body must be a JSON object")
	}
	return nil
}

const maxBodyBytes = 64 << 10
