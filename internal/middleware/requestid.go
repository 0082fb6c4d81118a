// Package middleware provides HTTP middleware for the circulation service.
package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/Strob0t/circulation/internal/logger"
)

const (
	headerRequestID      = "X-Request-ID"
	headerOkapiRequestID = "X-Okapi-Request-Id"

	maxRequestIDLen = 128
)

// RequestID attaches a request ID to the context and echoes it in the
// X-Request-ID response header. An ID forwarded by the gateway
// (X-Okapi-Request-Id) takes precedence over X-Request-ID. Inbound IDs that
// are too long or carry non-printable bytes are replaced with a fresh UUID so
// they never reach the logs.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := inboundRequestID(r.Header)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), id)))
	})
}

func inboundRequestID(h http.Header) string {
	for _, name := range []string{headerOkapiRequestID, headerRequestID} {
		if id := h.Get(name); id != "" {
			if !validRequestID(id) {
				return ""
			}
			return id
		}
	}
	return ""
}

func validRequestID(id string) bool {
	if len(id) > maxRequestIDLen {
		return false
	}
	for i := range len(id) {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}
