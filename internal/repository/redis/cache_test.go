package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/promocode/internal/domain"
)

func setupTestRedis(t *testing.T) (*goredis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

// ---------------------------------------------------------------------------
// TokenCache
// ---------------------------------------------------------------------------

func TestTokenCache_PutGet(t *testing.T) {
	client, mr := setupTestRedis(t)
	cache := NewTokenCache(client)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, domain.SubjectUser, "u-1", "token-a", time.Hour))

	got, ok, err := cache.Get(ctx, domain.SubjectUser, "u-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "token-a", got)

	assert.True(t, mr.Exists("user_token:u-1"))
	assert.Equal(t, time.Hour, mr.TTL("user_token:u-1"))
}

func TestTokenCache_SubjectTypesDoNotCollide(t *testing.T) {
	client, _ := setupTestRedis(t)
	cache := NewTokenCache(client)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, domain.SubjectUser, "id-1", "user-token", time.Hour))
	require.NoError(t, cache.Put(ctx, domain.SubjectCompany, "id-1", "company-token", time.Hour))

	got, _, err := cache.Get(ctx, domain.SubjectCompany, "id-1")
	require.NoError(t, err)
	assert.Equal(t, "company-token", got)
}

func TestTokenCache_NewSignInReplacesToken(t *testing.T) {
	client, _ := setupTestRedis(t)
	cache := NewTokenCache(client)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, domain.SubjectUser, "u-1", "old", time.Hour))
	require.NoError(t, cache.Put(ctx, domain.SubjectUser, "u-1", "new", time.Hour))

	got, ok, err := cache.Get(ctx, domain.SubjectUser, "u-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "new", got)
}

func TestTokenCache_Expired(t *testing.T) {
	client, mr := setupTestRedis(t)
	cache := NewTokenCache(client)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, domain.SubjectUser, "u-1", "token", time.Minute))
	mr.FastForward(2 * time.Minute)

	_, ok, err := cache.Get(ctx, domain.SubjectUser, "u-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTokenCache_ConnectionError(t *testing.T) {
	client, mr := setupTestRedis(t)
	cache := NewTokenCache(client)
	mr.Close()

	_, _, err := cache.Get(context.Background(), domain.SubjectUser, "u-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis get token")
}

// ---------------------------------------------------------------------------
// FraudDecisionCache
// ---------------------------------------------------------------------------

func TestFraudDecisionCache_RoundTripWithTTL(t *testing.T) {
	client, mr := setupTestRedis(t)
	cache := NewFraudDecisionCache(client)
	ctx := context.Background()

	until := time.Date(2025, 5, 20, 10, 0, 0, 0, time.UTC)
	decision := domain.FraudDecision{OK: false, CacheUntil: &until}
	require.NoError(t, cache.Put(ctx, "u-1", decision, 30*time.Minute))

	got, ok, err := cache.Get(ctx, "u-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, got.OK)
	require.NotNil(t, got.CacheUntil)
	assert.True(t, until.Equal(*got.CacheUntil))
	assert.Equal(t, 30*time.Minute, mr.TTL("antifraud:u-1"))

	mr.FastForward(31 * time.Minute)
	_, ok, err = cache.Get(ctx, "u-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFraudDecisionCache_NonPositiveTTLNotStored(t *testing.T) {
	client, mr := setupTestRedis(t)
	cache := NewFraudDecisionCache(client)

	require.NoError(t, cache.Put(context.Background(), "u-1", domain.FraudDecision{OK: true}, 0))
	assert.False(t, mr.Exists("antifraud:u-1"))
}

func TestFraudDecisionCache_CorruptEntry(t *testing.T) {
	client, mr := setupTestRedis(t)
	cache := NewFraudDecisionCache(client)
	require.NoError(t, mr.Set("antifraud:u-1", "{not json"))

	_, ok, err := cache.Get(context.Background(), "u-1")
	require.Error(t, err)
	assert.False(t, ok)
}
