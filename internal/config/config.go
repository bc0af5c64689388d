package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/utafrali/promocode/pkg/config"
	"github.com/utafrali/promocode/pkg/database"
	"github.com/utafrali/promocode/pkg/httpclient"
	"github.com/utafrali/promocode/pkg/tracing"
)

// Storage backends selectable through STORAGE_BACKEND.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

const defaultJWTSecret = "change-this-to-a-secure-secret"

// Config holds all configuration for the promo-code service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"HTTP_PORT" envDefault:"8080"`

	// Storage: postgres for production, memory for local runs and demos.
	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"postgres"`

	// PostgreSQL. POSTGRES_CONN, when set, replaces the individual fields.
	PostgresConn string `env:"POSTGRES_CONN"`
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"promocode"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"promocode_secret"`
	PostgresDB   string `env:"POSTGRES_DATABASE" envDefault:"promocode"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINS" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINS" envDefault:"30"`
	SlowQueryThresholdMs  int   `env:"LOG_SLOW_QUERY_MS" envDefault:"200"`

	// Redis
	RedisHost     string        `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int           `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string        `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	RedisPoolSize int           `env:"REDIS_POOL_SIZE" envDefault:"0"`
	RedisTimeout  time.Duration `env:"REDIS_TIMEOUT" envDefault:"500ms"`

	// Kafka. With KAFKA_ENABLED=false domain events are dropped.
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"true"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// JWT
	JWTSecret       string        `env:"JWT_SECRET" envDefault:"change-this-to-a-secure-secret"`
	JWTAccessExpiry time.Duration `env:"JWT_ACCESS_EXPIRY" envDefault:"1h"`

	// Anti-fraud service
	AntifraudAddress string        `env:"ANTIFRAUD_ADDRESS" envDefault:"localhost:9090"`
	AntifraudTimeout time.Duration `env:"ANTIFRAUD_TIMEOUT" envDefault:"2s"`

	// Circuit breaker around the anti-fraud client
	CBMaxRequests  uint32        `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBInterval     time.Duration `env:"CB_INTERVAL" envDefault:"60s"`
	CBTimeout      time.Duration `env:"CB_TIMEOUT" envDefault:"30s"`
	CBFailureRatio float64       `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32        `env:"CB_MIN_REQUESTS" envDefault:"5"`

	// Per-user activation rate limit
	ActivationRateRPS   float64 `env:"ACTIVATION_RATE_RPS" envDefault:"5"`
	ActivationRateBurst int     `env:"ACTIVATION_RATE_BURST" envDefault:"10"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// pprof is mounted only when at least one CIDR is allowed.
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load promocode config: %w", err)
	}
	return cfg, nil
}

// Validate checks the parsed configuration.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	switch c.StorageBackend {
	case StoragePostgres, StorageMemory:
	default:
		return fmt.Errorf("invalid STORAGE_BACKEND %q: want %q or %q", c.StorageBackend, StoragePostgres, StorageMemory)
	}
	if c.JWTAccessExpiry <= 0 {
		return fmt.Errorf("JWT_ACCESS_EXPIRY must be positive, got %s", c.JWTAccessExpiry)
	}
	if c.AntifraudAddress == "" {
		return fmt.Errorf("ANTIFRAUD_ADDRESS must be set")
	}
	if c.ActivationRateRPS <= 0 || c.ActivationRateBurst < 1 {
		return fmt.Errorf("invalid activation rate limit: %v rps, burst %d", c.ActivationRateRPS, c.ActivationRateBurst)
	}

	// In non-development environments, require an explicitly set, strong JWT secret.
	if c.Environment != "development" {
		if c.JWTSecret == "" || c.JWTSecret == defaultJWTSecret {
			return fmt.Errorf("JWT_SECRET must be explicitly set via environment variable in %q mode", c.Environment)
		}
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters long, got %d", len(c.JWTSecret))
		}
	}
	return nil
}

// Postgres returns the connection settings for the PostgreSQL pool.
func (c *Config) Postgres() *database.PostgresConfig {
	return &database.PostgresConfig{
		URL:             c.PostgresConn,
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnLifetime: time.Duration(c.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(c.DBMaxConnIdleTimeMins) * time.Minute,
	}
}

// Tracing returns the OpenTelemetry exporter settings for the named service.
func (c *Config) Tracing(service, version string) tracing.Config {
	return tracing.Config{
		ServiceName:    service,
		ServiceVersion: version,
		Environment:    c.Environment,
		OTLPEndpoint:   c.OTELEndpoint,
		SampleRate:     c.OTELSampleRate,
		Enabled:        c.OTELEnabled,
	}
}

// Redis returns the connection settings for the Redis client.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
		PoolSize: c.RedisPoolSize,
		Timeout:  c.RedisTimeout,
	}
}

// AntifraudHTTP returns the HTTP client settings for anti-fraud calls: one
// retry on transport errors, each attempt bounded by AntifraudTimeout.
func (c *Config) AntifraudHTTP() httpclient.Config {
	hc := httpclient.DefaultConfig()
	hc.Timeout = c.AntifraudTimeout
	hc.MaxRetries = 1
	return hc
}

// AntifraudBreaker returns the circuit breaker settings for anti-fraud calls.
func (c *Config) AntifraudBreaker() httpclient.CircuitBreakerConfig {
	return httpclient.CircuitBreakerConfig{
		Name:         "antifraud",
		MaxRequests:  c.CBMaxRequests,
		Interval:     c.CBInterval,
		Timeout:      c.CBTimeout,
		FailureRatio: c.CBFailureRatio,
		MinRequests:  c.CBMinRequests,
	}
}
