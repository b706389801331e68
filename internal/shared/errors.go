package shared

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrNotFound indicates the resource is absent or hidden from the caller.
	ErrNotFound = errors.New("not found")
	// ErrUnauthenticated indicates no credential was offered where one is required.
	ErrUnauthenticated = errors.New("authentication credentials were not provided")
	// ErrAuthenticationFailed indicates a credential was offered but cannot be trusted.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrTokenExpired indicates an access token that was valid but has expired.
	ErrTokenExpired = errors.New("access token has expired")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("no active account found with the given credentials")
	// ErrForbidden indicates the caller is authenticated but not allowed.
	ErrForbidden = errors.New("you do not have permission to perform this action")
	// ErrConflict indicates a state transition precondition was violated.
	ErrConflict = errors.New("conflict")
	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrBadRequest indicates a structurally unusable request.
	ErrBadRequest = errors.New("bad request")
)

// ValidationError carries field level messages. It matches ErrValidation.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError builds a ValidationError with a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// Add records a message for field, keeping the first one.
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, exists := e.Fields[field]; exists {
		return
	}
	e.Fields[field] = message
}

// Empty reports whether no field errors were collected.
func (e *ValidationError) Empty() bool {
	return e == nil || len(e.Fields) == 0
}

// Error implements error.
func (e *ValidationError) Error() string {
	if e.Empty() {
		return ErrValidation.Error()
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

// Is makes errors.Is(err, ErrValidation) hold.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// UserSafeMessage returns a message that can be shown to clients.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTokenExpired):
		return ErrTokenExpired.Error()
	case errors.Is(err, ErrInvalidCredentials):
		return ErrInvalidCredentials.Error()
	case errors.Is(err, ErrAuthenticationFailed):
		return "invalid token"
	case errors.Is(err, ErrUnauthenticated):
		return ErrUnauthenticated.Error()
	case errors.Is(err, ErrForbidden):
		return ErrForbidden.Error()
	case errors.Is(err, ErrNotFound):
		return "not found"
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConflict), errors.Is(err, ErrBadRequest):
		return err.Error()
	default:
		return "internal error"
	}
}
