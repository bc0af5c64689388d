package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CORSConfig configures cross-origin access to the API.
type CORSConfig struct {
	// AllowedOrigins lists exact origins. "*" allows any origin and disables
	// credentials.
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	MaxAge           time.Duration
	AllowCredentials bool
}

// DefaultCORSConfig allows any origin and exposes the headers the API sets.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader, "X-Total-Count"},
		MaxAge:         time.Hour,
	}
}

// CORS answers preflight requests and decorates every response with the
// Access-Control headers for allowed origins. Requests from other origins
// pass through without CORS headers, so browsers block them.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	def := DefaultCORSConfig()
	if len(cfg.AllowedMethods) == 0 {
		cfg.AllowedMethods = def.AllowedMethods
	}
	if len(cfg.AllowedHeaders) == 0 {
		cfg.AllowedHeaders = def.AllowedHeaders
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = def.MaxAge
	}

	anyOrigin := false
	origins := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		o = strings.TrimSpace(o)
		if o == "*" {
			anyOrigin = true
			continue
		}
		origins[strings.ToLower(o)] = struct{}{}
	}
	credentials := cfg.AllowCredentials && !anyOrigin

	methods := strings.Join(cfg.AllowedMethods, ", ")
	headers := strings.Join(cfg.AllowedHeaders, ", ")
	exposed := strings.Join(cfg.ExposedHeaders, ", ")
	maxAge := strconv.Itoa(int(cfg.MaxAge.Seconds()))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			h := w.Header()
			h.Add("Vary", "Origin")

			allowed := false
			switch {
			case origin == "":
			case anyOrigin:
				h.Set("Access-Control-Allow-Origin", "*")
				allowed = true
			default:
				if _, ok := origins[strings.ToLower(origin)]; ok {
					h.Set("Access-Control-Allow-Origin", origin)
					allowed = true
				}
			}

			if allowed {
				if exposed != "" {
					h.Set("Access-Control-Expose-Headers", exposed)
				}
				if credentials {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
			}

			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
			if !preflight {
				next.ServeHTTP(w, r)
				return
			}
			if allowed {
				h.Set("Access-Control-Allow-Methods", methods)
				h.Set("Access-Control-Allow-Headers", headers)
				h.Set("Access-Control-Max-Age", maxAge)
			}
			w.WriteHeader(http.StatusNoContent)
		})
	}
}
