package middleware

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/promocode/pkg/logger"
)

// RequestLogger stores a per-request logger in the context, pre-bound with
// the request id and trace ids already present. It must run after
// RequestLogging and Tracing; Auth later adds the subject to it.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			next.ServeHTTP(w, r.WithContext(logger.NewContext(ctx, logger.WithContext(ctx, base))))
		})
	}
}
