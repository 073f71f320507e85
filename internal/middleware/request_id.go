package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/medibook/medibook-api/internal/pkg/logger"
)

const RequestIDHeader = "X-Request-ID"

// RequestID adds a unique request ID to each request and to its logger
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		w.Header().Set(RequestIDHeader, requestID)
		r.Header.Set(RequestIDHeader, requestID)

		ctx := logger.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
