package antifraud

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/promocode/internal/domain"
	"github.com/utafrali/promocode/internal/repository/memory"
	apperrors "github.com/utafrali/promocode/pkg/errors"
)

type mockChecker struct {
	mock.Mock
}

func (m *mockChecker) Check(ctx context.Context, userEmail, promoID string) (domain.FraudDecision, error) {
	args := m.Called(ctx, userEmail, promoID)
	return args.Get(0).(domain.FraudDecision), args.Error(1)
}

// brokenCache fails every call.
type brokenCache struct{}

func (brokenCache) Put(context.Context, string, domain.FraudDecision, time.Duration) error {
	return errors.New("cache down")
}

func (brokenCache) Get(context.Context, string) (domain.FraudDecision, bool, error) {
	return domain.FraudDecision{}, false, errors.New("cache down")
}

var gateUser = &domain.User{ID: "u-1", Email: "ada@example.com"}

func newTestGate(checker Checker, now *time.Time) *Gate {
	g := NewGate(checker, memory.NewFraudDecisionCache(), newTestLogger())
	g.now = func() time.Time { return *now }
	return g
}

func TestGate_CachedAllowReusedUntilExpiry(t *testing.T) {
	now := time.Now().UTC()
	until := now.Add(time.Hour)

	checker := new(mockChecker)
	checker.On("Check", mock.Anything, gateUser.Email, "promo-1").
		Return(domain.FraudDecision{OK: true, CacheUntil: &until}, nil).Once()

	g := newTestGate(checker, &now)
	ctx := context.Background()

	require.NoError(t, g.Allow(ctx, gateUser, "promo-1"))

	now = now.Add(30 * time.Minute)
	require.NoError(t, g.Allow(ctx, gateUser, "promo-1"))
	checker.AssertNumberOfCalls(t, "Check", 1)

	// Past cache_until the gate asks again.
	now = until.Add(time.Second)
	checker.On("Check", mock.Anything, gateUser.Email, "promo-1").
		Return(domain.FraudDecision{OK: true}, nil).Once()
	require.NoError(t, g.Allow(ctx, gateUser, "promo-1"))
	checker.AssertNumberOfCalls(t, "Check", 2)
}

func TestGate_CachedDenyHonored(t *testing.T) {
	now := time.Now().UTC()
	until := now.Add(time.Hour)

	checker := new(mockChecker)
	checker.On("Check", mock.Anything, gateUser.Email, "promo-1").
		Return(domain.FraudDecision{OK: false, CacheUntil: &until}, nil).Once()

	g := newTestGate(checker, &now)

	err := g.Allow(context.Background(), gateUser, "promo-1")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	err = g.Allow(context.Background(), gateUser, "promo-2")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	checker.AssertNumberOfCalls(t, "Check", 1)
}

func TestGate_DecisionWithoutExpiryNotCached(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-time.Minute)

	checker := new(mockChecker)
	checker.On("Check", mock.Anything, gateUser.Email, "promo-1").
		Return(domain.FraudDecision{OK: true}, nil).Once()
	checker.On("Check", mock.Anything, gateUser.Email, "promo-1").
		Return(domain.FraudDecision{OK: true, CacheUntil: &past}, nil).Once()
	checker.On("Check", mock.Anything, gateUser.Email, "promo-1").
		Return(domain.FraudDecision{OK: true}, nil).Once()

	g := newTestGate(checker, &now)
	for i := 0; i < 3; i++ {
		require.NoError(t, g.Allow(context.Background(), gateUser, "promo-1"))
	}
	checker.AssertNumberOfCalls(t, "Check", 3)
}

func TestGate_CheckerFailureFailsClosed(t *testing.T) {
	now := time.Now().UTC()
	checker := new(mockChecker)
	checker.On("Check", mock.Anything, gateUser.Email, "promo-1").
		Return(domain.FraudDecision{}, errors.New("connection refused"))

	g := newTestGate(checker, &now)

	err := g.Allow(context.Background(), gateUser, "promo-1")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestGate_CacheFailureFallsBackToRemote(t *testing.T) {
	until := time.Now().Add(time.Hour)
	checker := new(mockChecker)
	checker.On("Check", mock.Anything, gateUser.Email, "promo-1").
		Return(domain.FraudDecision{OK: true, CacheUntil: &until}, nil)

	g := NewGate(checker, brokenCache{}, newTestLogger())

	require.NoError(t, g.Allow(context.Background(), gateUser, "promo-1"))
	require.NoError(t, g.Allow(context.Background(), gateUser, "promo-1"))
	checker.AssertNumberOfCalls(t, "Check", 2)
}
