// Package httpx provides HTTP response utilities following RFC7807 problem details.
package httpx

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/miniintern/bizboard/internal/shared"
)

// maxBodyBytes bounds request bodies decoded by DecodeJSON.
const maxBodyBytes = 1 << 20

// ProblemDetail represents RFC7807 problem details.
type ProblemDetail struct {
	Type   string            `json:"type,omitempty"`
	Title  string            `json:"title"`
	Status int               `json:"status"`
	Detail string            `json:"detail,omitempty"`
	Code   string            `json:"code,omitempty"`
	Errors map[string]string `json:"errors,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Problem sends an RFC7807 problem details response.
func Problem(w http.ResponseWriter, status int, title, detail string) {
	JSON(w, status, ProblemDetail{
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

// Detail sends a {"detail": message} body, the shape used by auth endpoints.
func Detail(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"detail": message})
}

// BodyError reports a request body that could not be decoded. Its message is
// fixed so decoder internals such as Go type names never reach clients; the
// decoder error stays reachable through errors.As and errors.Unwrap.
type BodyError struct {
	Err error
}

func (e *BodyError) Error() string { return "malformed request body" }

func (e *BodyError) Unwrap() []error { return []error{e.Err, shared.ErrBadRequest} }

// DecodeJSON decodes JSON request body into the target struct. Malformed
// bodies are reported as a *BodyError matching shared.ErrBadRequest.
func DecodeJSON(r *http.Request, target any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(target); err != nil {
		slog.DebugContext(r.Context(), "request body rejected", slog.String("path", r.URL.Path), slog.Any("error", err))
		return &BodyError{Err: err}
	}
	return nil
}

// PathID parses a positive integer URL parameter. Anything else is reported
// as shared.ErrNotFound, the same as a missing row.
func PathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s %q: %w", name, chi.URLParam(r, name), shared.ErrNotFound)
	}
	return id, nil
}
