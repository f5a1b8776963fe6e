package api

import (
	"context"
	"net/http"
	"time"
)

// TimeoutMiddleware bounds every request by timeout. Handlers observe the deadline
// through the request context, and a store call cut short by it surfaces as
// STORE_UNAVAILABLE.
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if timeout <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
