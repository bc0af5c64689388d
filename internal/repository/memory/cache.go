package memory

import (
	"context"
	"sync"
	"time"

	"github.com/utafrali/promocode/internal/domain"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// ttlMap is a mutex-guarded map whose entries expire lazily on read.
type ttlMap[V any] struct {
	mu    sync.Mutex
	items map[string]entry[V]
	now   func() time.Time
}

func newTTLMap[V any]() *ttlMap[V] {
	return &ttlMap[V]{items: make(map[string]entry[V]), now: time.Now}
}

func (m *ttlMap[V]) put(key string, v V, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = entry[V]{value: v, expiresAt: m.now().Add(ttl)}
}

func (m *ttlMap[V]) get(key string) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.items[key]
	if !ok || !m.now().Before(e.expiresAt) {
		delete(m.items, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// TokenCache implements repository.TokenCache in memory.
type TokenCache struct {
	m *ttlMap[string]
}

// NewTokenCache creates an in-memory token cache.
func NewTokenCache() *TokenCache {
	return &TokenCache{m: newTTLMap[string]()}
}

// Put stores the current token of a subject.
func (c *TokenCache) Put(_ context.Context, subjectType, subjectID, token string, ttl time.Duration) error {
	c.m.put(subjectType+"_token:"+subjectID, token, ttl)
	return nil
}

// Get returns the current token of a subject.
func (c *TokenCache) Get(_ context.Context, subjectType, subjectID string) (string, bool, error) {
	token, ok := c.m.get(subjectType + "_token:" + subjectID)
	return token, ok, nil
}

// FraudDecisionCache implements repository.FraudDecisionCache in memory.
type FraudDecisionCache struct {
	m *ttlMap[domain.FraudDecision]
}

// NewFraudDecisionCache creates an in-memory anti-fraud decision cache.
func NewFraudDecisionCache() *FraudDecisionCache {
	return &FraudDecisionCache{m: newTTLMap[domain.FraudDecision]()}
}

// Put stores a decision for ttl. Non-positive TTLs are ignored.
func (c *FraudDecisionCache) Put(_ context.Context, userID string, d domain.FraudDecision, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.m.put(userID, d, ttl)
	return nil
}

// Get returns the cached decision for a user.
func (c *FraudDecisionCache) Get(_ context.Context, userID string) (domain.FraudDecision, bool, error) {
	d, ok := c.m.get(userID)
	return d, ok, nil
}
