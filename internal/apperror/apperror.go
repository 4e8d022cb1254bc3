// Package apperror defines the domain error vocabulary shared by every layer.
//
// Services and repositories return these; only the HTTP layer
// (handler/response.go) knows which status code each one becomes.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation error")
	ErrConflict        = errors.New("conflict")
	ErrBadRequest      = errors.New("bad request")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrUpstreamAuth    = errors.New("upstream authentication failed")
)

type AppError struct {
	Err     error  // sentinel kind
	Message string // human-readable error message
	Field   string // optional: field causing the error
	Code    string // optional: machine-readable reason, e.g. "missing_credential"
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// BadRequest is for malformed input that is not a field validation problem,
// such as an unsupported OAuth provider or a missing callback code.
func BadRequest(message string) *AppError {
	return &AppError{
		Err:     ErrBadRequest,
		Message: message,
	}
}

// Unauthenticated carries a reason code so clients can tell a missing
// credential from a rejected one.
func Unauthenticated(code, message string) *AppError {
	return &AppError{
		Err:     ErrUnauthenticated,
		Message: message,
		Code:    code,
	}
}

// UpstreamAuth wraps a failure reported by an OAuth provider. The cause is
// kept in the chain and its text is part of the message.
func UpstreamAuth(provider string, cause error) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %w", ErrUpstreamAuth, cause),
		Message: fmt.Sprintf("OAuth authentication failed (%s): %v", provider, cause),
	}
}
