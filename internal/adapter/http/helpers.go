package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	goskema "github.com/reoring/goskema"

	"github.com/Strob0t/circulation/internal/domain"
	"github.com/Strob0t/circulation/internal/domain/failure"
	"github.com/Strob0t/circulation/internal/domain/override"
	"github.com/Strob0t/circulation/internal/service"
)

const maxRequestBodySize = 1 << 20 // 1 MB

// ---------------------------------------------------------------------------
// Request helpers
// ---------------------------------------------------------------------------

// readBody parses a JSON request body against schema. Malformed JSON is a
// 400; a well-formed body that violates the schema is a 422 in the same
// shape as a rule failure.
func readBody[T any](w http.ResponseWriter, r *http.Request, schema goskema.Schema[T]) (T, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	v, err := goskema.ParseFrom(r.Context(), schema, goskema.JSONReader(r.Body))
	if err == nil {
		return v, true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return v, false
	}
	iss, ok := goskema.AsIssues(err)
	if !ok || malformed(iss) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return v, false
	}
	writeFailure(w, issuesToFailure(iss), nil)
	return v, false
}

func malformed(iss goskema.Issues) bool {
	for _, is := range iss {
		switch is.Code {
		case goskema.CodeParseError, goskema.CodeTruncated:
			return true
		}
	}
	return false
}

// urlParam is a short alias for chi.URLParam.
func urlParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

// ---------------------------------------------------------------------------
// Response helpers
// ---------------------------------------------------------------------------

type errorResponse struct {
	Error string `json:"error"`
}

// failureResponse is the body of a refused operation. OverridableBlocks
// names the failed blocks a permitted operator could override on retry.
type failureResponse struct {
	Errors            []failure.ValidationError `json:"errors"`
	OverridableBlocks []override.Block          `json:"overridableBlocks,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeText(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(message))
}

func writeFailure(w http.ResponseWriter, cause failure.Cause, blocks []override.Block) {
	writeJSON(w, http.StatusUnprocessableEntity, failureResponse{
		Errors:            cause.ValidationErrors(),
		OverridableBlocks: blocks,
	})
}

// writeDomainError maps a service error to its HTTP response.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		notFound *failure.RecordNotFound
		refused  *service.Refusal
		cause    failure.Cause
	)
	switch {
	case errors.As(err, &notFound):
		writeText(w, http.StatusNotFound, notFound.Error())
	case errors.As(err, &refused):
		slog.DebugContext(r.Context(), "request refused", "path", r.URL.Path, "categories", refused.Categories)
		writeFailure(w, refused.Cause, refused.OverridableBlocks)
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, "resource was modified by another request")
	case errors.Is(err, domain.ErrNotFound):
		writeText(w, http.StatusNotFound, "not found")
	case errors.As(err, &cause) && errors.Is(err, domain.ErrValidation):
		writeFailure(w, cause, nil)
	case errors.Is(err, domain.ErrValidation):
		writeFailure(w, failure.Single(err.Error(), "", ""), nil)
	default:
		writeInternalError(w, r, err)
	}
}

// writeInternalError logs the actual error server-side and returns a generic message to the client.
func writeInternalError(w http.ResponseWriter, r *http.Request, err error) {
	slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}
