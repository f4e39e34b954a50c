package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"

	"securemeet/relaygate/pkg/proxy/types"
)

// RecoveryMiddleware recovers from panics in HTTP handlers and returns a 500
// Internal Server Error in the JSON error format. The panic is logged with a
// stack trace; no internal details reach the client.
//
// http.ErrAbortHandler is re-raised so net/http can abort the connection
// quietly, as the reverse proxy relies on it when an upstream body fails
// mid-copy.
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(rec)
			}

			slog.ErrorContext(r.Context(), "panic in handler",
				"error", rec,
				"method", r.Method,
				"path", r.URL.Path,
				"stack", string(debug.Stack()),
			)

			types.NewServerError("An internal error occurred. Please try again later.").Write(w)
		}()

		next.ServeHTTP(w, r)
	})
}
