package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/utafrali/promocode/internal/antifraud"
	"github.com/utafrali/promocode/internal/auth"
	"github.com/utafrali/promocode/internal/config"
	"github.com/utafrali/promocode/internal/event"
	handler "github.com/utafrali/promocode/internal/handler/http"
	"github.com/utafrali/promocode/internal/repository"
	"github.com/utafrali/promocode/internal/repository/memory"
	"github.com/utafrali/promocode/internal/repository/postgres"
	redisrepo "github.com/utafrali/promocode/internal/repository/redis"
	"github.com/utafrali/promocode/internal/service"
	"github.com/utafrali/promocode/migrations"
	"github.com/utafrali/promocode/pkg/database"
	"github.com/utafrali/promocode/pkg/health"
	"github.com/utafrali/promocode/pkg/httpclient"
	pkgkafka "github.com/utafrali/promocode/pkg/kafka"
	"github.com/utafrali/promocode/pkg/middleware"
	"github.com/utafrali/promocode/pkg/tracing"
)

const (
	serviceName    = "promocode"
	serviceVersion = "0.1.0"
)

// App wires together all dependencies and runs the promo-code service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *goredis.Client
	producer       *pkgkafka.Producer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// storage is the set of repositories and caches of one backend.
type storage struct {
	companies repository.CompanyRepository
	users     repository.UserRepository
	promos    repository.PromoRepository
	social    repository.SocialRepository
	tokens    repository.TokenCache
	decisions repository.FraudDecisionCache
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, cfg.Tracing(serviceName, serviceVersion))
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	a := &App{cfg: cfg, logger: logger, tracerShutdown: tracerShutdown}
	healthHandler := health.NewHandler()

	var store storage
	switch cfg.StorageBackend {
	case config.StorageMemory:
		store = a.openMemory()
	default:
		store, err = a.openPostgres(ctx, healthHandler)
		if err != nil {
			a.closeStorage()
			return nil, err
		}
	}

	// Initialize Kafka producer.
	var publisher event.Publisher
	if cfg.KafkaEnabled {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		publisher = a.producer
		healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
			return a.producer.Ping(ctx)
		})
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	} else {
		logger.Warn("kafka disabled, domain events are dropped")
	}

	// Anti-fraud client: retrying HTTP client behind a circuit breaker.
	fraudHTTP := httpclient.NewCircuitBreakerClient(httpclient.New(cfg.AntifraudHTTP()), cfg.AntifraudBreaker(), logger)
	fraudGate := antifraud.NewGate(antifraud.NewClient(fraudHTTP, cfg.AntifraudAddress, logger), store.decisions, logger)

	// Build the dependency graph.
	authenticator := auth.NewAuthenticator(cfg.JWTSecret, cfg.JWTAccessExpiry, store.tokens)
	eventProducer := event.NewProducer(publisher, logger)
	services := handler.Services{
		Auth:       service.NewAuthService(store.companies, store.users, authenticator, logger),
		Profile:    service.NewProfileService(store.users, logger),
		Business:   service.NewBusinessService(store.promos, eventProducer, logger),
		Feed:       service.NewFeedService(store.promos, store.social, store.users, logger),
		Activation: service.NewActivationService(store.promos, store.users, fraudGate, eventProducer, logger),
	}

	// HTTP router.
	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.CORSAllowedOrigins
	router := handler.NewRouter(services, authenticator, healthHandler, logger, handler.RouterConfig{
		CORS:            corsCfg,
		PprofCIDRs:      cfg.PprofAllowedCIDRs,
		ActivationRPS:   cfg.ActivationRateRPS,
		ActivationBurst: cfg.ActivationRateBurst,
	})

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

// openMemory builds the in-process backend. Nothing survives a restart.
func (a *App) openMemory() storage {
	a.logger.Warn("using in-memory storage, data is not persisted")
	m := memory.NewStore()
	return storage{
		companies: m.Companies(),
		users:     m.Users(),
		promos:    m.Promos(),
		social:    m.Social(),
		tokens:    memory.NewTokenCache(),
		decisions: memory.NewFraudDecisionCache(),
	}
}

// openPostgres connects PostgreSQL and Redis, applies migrations and
// registers their health checks.
func (a *App) openPostgres(ctx context.Context, healthHandler *health.Handler) (storage, error) {
	cfg := a.cfg

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres(), a.logger)
	if err != nil {
		return storage{}, fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool
	a.logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, serviceName); err != nil {
		return storage{}, fmt.Errorf("register pool metrics: %w", err)
	}

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, a.logger); err != nil {
		return storage{}, fmt.Errorf("run migrations: %w", err)
	}
	a.logger.Info("database migrations completed")

	// Configure slow query logging.
	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, a.logger)
	}

	rdb, err := database.NewRedisClient(ctx, cfg.Redis(), a.logger)
	if err != nil {
		return storage{}, fmt.Errorf("connect to redis: %w", err)
	}
	a.redis = rdb

	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.RegisterCritical("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})

	return storage{
		companies: postgres.NewCompanyRepository(pool),
		users:     postgres.NewUserRepository(pool),
		promos:    postgres.NewPromoRepository(pool),
		social:    postgres.NewSocialRepository(pool),
		tokens:    redisrepo.NewTokenCache(rdb),
		decisions: redisrepo.NewFraudDecisionCache(rdb),
	}, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
			slog.String("storage", a.cfg.StorageBackend),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return errors.Join(err, a.Shutdown())
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Tracer (flush pending spans from drained requests)
// 3. Kafka producer
// 4. Redis client and PostgreSQL pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// 1. Drain in-flight HTTP requests (5s budget).
	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 2. Flush pending spans after HTTP drain so in-flight request spans are captured.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 3. Close Kafka producer.
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 4. Close storage connections.
	if err := a.closeStorage(); err != nil {
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

func (a *App) closeStorage() error {
	var err error
	if a.redis != nil {
		if err = a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	return err
}
