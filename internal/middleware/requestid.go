// Package middleware provides HTTP middleware for goalpost.
package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/okrtools/goalpost/internal/logger"
)

const requestIDHeader = "X-Request-ID"

// maxRequestIDLen caps caller-supplied ids; anything longer would end up
// verbatim in every log line for the request.
const maxRequestIDLen = 64

// RequestID tags each request with an id for log correlation. A reasonable
// caller-supplied X-Request-ID is kept so ids stay stable across service
// hops; a missing or oversized one is replaced with a fresh UUID. The id
// is stored in the request context and echoed on the response header.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}

		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), id)))
	})
}
