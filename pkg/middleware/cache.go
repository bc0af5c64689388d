package middleware

import "net/http"

// NoStore marks responses as private and uncacheable. Authenticated
// responses carry per-subject data such as like and activation flags.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
