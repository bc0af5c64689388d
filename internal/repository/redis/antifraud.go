package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/promocode/internal/domain"
)

const fraudKeyPrefix = "antifraud:"

// FraudDecisionCache implements repository.FraudDecisionCache using Redis.
type FraudDecisionCache struct {
	client *redis.Client
}

// NewFraudDecisionCache creates a new Redis-backed anti-fraud decision cache.
func NewFraudDecisionCache(client *redis.Client) *FraudDecisionCache {
	return &FraudDecisionCache{client: client}
}

// Put stores a decision for ttl. Non-positive TTLs are ignored.
func (c *FraudDecisionCache) Put(ctx context.Context, userID string, d domain.FraudDecision, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal fraud decision: %w", err)
	}
	if err := c.client.Set(ctx, fraudKeyPrefix+userID, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set fraud decision: %w", err)
	}
	return nil
}

// Get returns the cached decision for a user.
func (c *FraudDecisionCache) Get(ctx context.Context, userID string) (domain.FraudDecision, bool, error) {
	data, err := c.client.Get(ctx, fraudKeyPrefix+userID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.FraudDecision{}, false, nil
		}
		return domain.FraudDecision{}, false, fmt.Errorf("redis get fraud decision: %w", err)
	}

	var d domain.FraudDecision
	if err := json.Unmarshal(data, &d); err != nil {
		return domain.FraudDecision{}, false, fmt.Errorf("unmarshal fraud decision: %w", err)
	}
	return d, true, nil
}
