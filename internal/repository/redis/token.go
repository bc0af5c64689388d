package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenCache implements repository.TokenCache using Redis. Keys look like
// "user_token:{id}" and "company_token:{id}"; writing a key replaces the
// previous session of that subject.
type TokenCache struct {
	client *redis.Client
}

// NewTokenCache creates a new Redis-backed token cache.
func NewTokenCache(client *redis.Client) *TokenCache {
	return &TokenCache{client: client}
}

func tokenKey(subjectType, subjectID string) string {
	return subjectType + "_token:" + subjectID
}

// Put stores the current token of a subject.
func (c *TokenCache) Put(ctx context.Context, subjectType, subjectID, token string, ttl time.Duration) error {
	if err := c.client.Set(ctx, tokenKey(subjectType, subjectID), token, ttl).Err(); err != nil {
		return fmt.Errorf("redis set token: %w", err)
	}
	return nil
}

// Get returns the current token of a subject.
func (c *TokenCache) Get(ctx context.Context, subjectType, subjectID string) (string, bool, error) {
	token, err := c.client.Get(ctx, tokenKey(subjectType, subjectID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis get token: %w", err)
	}
	return token, true, nil
}
