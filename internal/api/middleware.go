package api

import (
	"context"
	"log"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

// requestIDKey is the context key for the per-request identifier.
const requestIDKey contextKey = "request_id"

// requestIDMiddleware assigns each request a UUID, echoed in the
// X-Request-ID header and threaded through error responses and logs.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()
		w.Header().Set("X-Request-ID", id)

		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestIDFromContext extracts the request ID, empty if the
// middleware did not run.
func requestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("%s %s %s", r.Method, r.RequestURI, r.RemoteAddr)
		next.ServeHTTP(w, r)
	})
}
