package database

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	// PoolSize 0 keeps the go-redis default of ten per CPU.
	PoolSize int
	// Timeout bounds dial, read and write individually; the token and
	// anti-fraud caches sit on the request path, so it stays short.
	Timeout time.Duration
}

// Addr returns the host:port address.
func (c RedisConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// NewRedisClient creates a Redis client and waits for a successful ping,
// using the same startup retry policy as the Postgres pool.
func NewRedisClient(ctx context.Context, cfg RedisConfig, logger *slog.Logger) (*redis.Client, error) {
	opts := &redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}
	if cfg.Timeout > 0 {
		opts.DialTimeout = cfg.Timeout
		opts.ReadTimeout = cfg.Timeout
		opts.WriteTimeout = cfg.Timeout
	}
	client := redis.NewClient(opts)

	err := withStartupRetry(ctx, logger, "redis ping", func(error) bool { return true }, func() error {
		return client.Ping(ctx).Err()
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr(), err)
	}

	if logger != nil {
		logger.Info("connected to redis", slog.String("addr", cfg.Addr()), slog.Int("db", cfg.DB))
	}
	return client, nil
}
