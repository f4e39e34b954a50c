package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"securemeet/relaygate/pkg/proxy/types"
)

// TimeoutMiddleware bounds a request with context.WithTimeout. The handler
// runs on the calling goroutine and is expected to honor ctx. If the deadline
// passed and the handler wrote nothing, a 504 Gateway Timeout is returned.
//
// Example usage:
//
//	mux.Handle("/proxy/export", TimeoutMiddleware(30*time.Second)(exportHandler))
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if timeout <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			rw := newResponseWriter(w)
			next.ServeHTTP(rw, r.WithContext(ctx))

			if rw.written || !errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return
			}

			slog.WarnContext(r.Context(), "request timed out",
				"method", r.Method,
				"path", r.URL.Path,
				"timeout", timeout.String(),
			)
			types.NewGatewayTimeoutError("Request timeout: the request took too long to complete").Write(w)
		})
	}
}
