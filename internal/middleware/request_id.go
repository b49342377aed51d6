package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/opulence/opulence-api/internal/pkg/logger"
)

// RequestID tags each request with an id, reusing the caller's X-Request-ID when present.
// The id travels on the context logger, so every log line of the request carries it.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		w.Header().Set("X-Request-ID", requestID)
		ctx := logger.With(r.Context(), "request_id", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
