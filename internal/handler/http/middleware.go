package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/utafrali/promocode/internal/auth"
	"github.com/utafrali/promocode/pkg/middleware"
)

// ContentTypeJSON enforces that requests with a body have Content-Type: application/json.
// Bodyless POSTs such as like and activate pass through.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength != 0 && (r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch) {
			ct := r.Header.Get("Content-Type")
			if !strings.HasPrefix(ct, "application/json") {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnsupportedMediaType)
				_, _ = w.Write([]byte(`{"error":{"code":"UNSUPPORTED_MEDIA_TYPE","message":"Content-Type must be application/json"}}`))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// TokenVerifier checks a bearer token against the current session of its
// subject.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (auth.Subject, error)
}

// verifierFunc bridges the authenticator to the auth middleware.
func verifierFunc(v TokenVerifier) middleware.TokenVerifier {
	return func(ctx context.Context, token string) (middleware.Subject, error) {
		s, err := v.Verify(ctx, token)
		if err != nil {
			return middleware.Subject{}, err
		}
		return middleware.Subject{ID: s.ID, Type: s.Type}, nil
	}
}
