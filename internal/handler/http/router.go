package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/promocode/internal/domain"
	"github.com/utafrali/promocode/internal/service"
	"github.com/utafrali/promocode/pkg/health"
	"github.com/utafrali/promocode/pkg/httputil"
	"github.com/utafrali/promocode/pkg/middleware"
)

const serviceName = "promocode"

// Services groups the application services the router exposes.
type Services struct {
	Auth       *service.AuthService
	Profile    *service.ProfileService
	Business   *service.BusinessService
	Feed       *service.FeedService
	Activation *service.ActivationService
}

// RouterConfig holds the transport settings of the router.
type RouterConfig struct {
	CORS            middleware.CORSConfig
	PprofCIDRs      []string
	ActivationRPS   float64
	ActivationBurst int
}

// NewRouter creates a chi router with all promocode routes registered.
func NewRouter(
	svc Services,
	verifier TokenVerifier,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.PrometheusMetrics(serviceName))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})
	if len(cfg.PprofCIDRs) > 0 {
		middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)
	}

	r.Get("/api/ping", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	authHandler := NewAuthHandler(svc.Auth, logger)
	businessHandler := NewBusinessHandler(svc.Business, logger)
	userHandler := NewUserHandler(svc.Profile, svc.Feed, svc.Activation, logger)
	commentHandler := NewCommentHandler(svc.Feed, logger)
	verify := verifierFunc(verifier)

	// Business endpoints
	r.Route("/api/business", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/auth/sign-up", authHandler.CompanySignUp)
		r.Post("/auth/sign-in", authHandler.CompanySignIn)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(verify, domain.SubjectCompany))
			r.Use(middleware.NoStore)

			r.Post("/promo", businessHandler.Create)
			r.Get("/promo", businessHandler.List)
			r.Get("/promo/{id}", businessHandler.Get)
			r.Patch("/promo/{id}", businessHandler.Patch)
			r.Get("/promo/{id}/stat", businessHandler.Stat)
		})
	})

	// User endpoints
	r.Route("/api/user", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/auth/sign-up", authHandler.UserSignUp)
		r.Post("/auth/sign-in", authHandler.UserSignIn)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(verify, domain.SubjectUser))
			r.Use(middleware.NoStore)

			r.Get("/profile", userHandler.GetProfile)
			r.Patch("/profile", userHandler.PatchProfile)
			r.Get("/feed", userHandler.Feed)

			r.Get("/promo/history", userHandler.History)
			r.Get("/promo/{id}", userHandler.GetPromo)
			r.Post("/promo/{id}/like", userHandler.Like)
			r.Delete("/promo/{id}/like", userHandler.Unlike)

			r.Post("/promo/{id}/comments", commentHandler.Create)
			r.Get("/promo/{id}/comments", commentHandler.List)
			r.Get("/promo/{id}/comments/{comment_id}", commentHandler.Get)
			r.Put("/promo/{id}/comments/{comment_id}", commentHandler.Update)
			r.Delete("/promo/{id}/comments/{comment_id}", commentHandler.Delete)

			r.With(middleware.RateLimit(cfg.ActivationRPS, cfg.ActivationBurst)).
				Post("/promo/{id}/activate", userHandler.Activate)
		})
	})

	return r
}
