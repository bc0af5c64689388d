package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	apperrors "github.com/utafrali/promocode/pkg/errors"
	"github.com/utafrali/promocode/pkg/logger"
)

// Subject is the authenticated caller extracted by the auth middleware.
type Subject = logger.Subject

// TokenVerifier validates a bearer token and returns its subject. It should
// return an Unauthorized error for bad tokens; any other error is reported
// as 503.
type TokenVerifier func(ctx context.Context, token string) (Subject, error)

// Auth middleware validates bearer tokens, accepts only the given subject
// types and injects the subject into the request context and logger.
func Auth(verify TokenVerifier, subjectTypes ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(subjectTypes))
	for _, t := range subjectTypes {
		allowed[t] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeJSONError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
				writeJSONError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid authorization header format")
				return
			}

			subject, err := verify(r.Context(), parts[1])
			if err != nil {
				if errors.Is(err, apperrors.ErrUnauthorized) {
					writeJSONError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
					return
				}
				logger.FromContext(r.Context()).ErrorContext(r.Context(), "token verification failed",
					slog.String("error", err.Error()),
				)
				writeJSONError(w, r, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "authentication temporarily unavailable")
				return
			}

			// A valid token of the wrong kind is treated like a missing one.
			if _, ok := allowed[subject.Type]; !ok {
				writeJSONError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "token is not valid for this resource")
				return
			}

			ctx := logger.WithSubject(r.Context(), subject.ID, subject.Type)
			ctx = logger.NewContext(ctx, logger.FromContext(ctx).With(
				slog.String("subject_id", subject.ID),
				slog.String("subject_type", subject.Type),
			))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SubjectFromContext extracts the authenticated subject from the request context.
func SubjectFromContext(ctx context.Context) (Subject, bool) {
	return logger.SubjectFromContext(ctx)
}

// SubjectIDFromContext extracts the authenticated subject id, or "".
func SubjectIDFromContext(ctx context.Context) string {
	s, _ := logger.SubjectFromContext(ctx)
	return s.ID
}
