package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/promocode/internal/domain"
	"github.com/utafrali/promocode/internal/event"
	"github.com/utafrali/promocode/internal/repository/memory"
	pkgkafka "github.com/utafrali/promocode/pkg/kafka"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func date(s string) *time.Time {
	t, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return &t
}

// ---------------------------------------------------------------------------
// fakes
// ---------------------------------------------------------------------------

type allowAll struct{}

func (allowAll) Allow(context.Context, *domain.User, string) error { return nil }

type mockGate struct {
	mock.Mock
}

func (m *mockGate) Allow(ctx context.Context, user *domain.User, promoID string) error {
	args := m.Called(ctx, user, promoID)
	return args.Error(0)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, topic string, e *pkgkafka.Event) error {
	args := m.Called(ctx, topic, e)
	return args.Error(0)
}

// ---------------------------------------------------------------------------
// fixture
// ---------------------------------------------------------------------------

type fixture struct {
	store      *memory.Store
	business   *BusinessService
	feed       *FeedService
	activation *ActivationService
}

func newFixture(t *testing.T, gate FraudGate) *fixture {
	t.Helper()
	store := memory.NewStore()
	events := event.NewProducer(nil, testLogger())
	return &fixture{
		store:      store,
		business:   NewBusinessService(store.Promos(), events, testLogger()),
		feed:       NewFeedService(store.Promos(), store.Social(), store.Users(), testLogger()),
		activation: NewActivationService(store.Promos(), store.Users(), gate, events, testLogger()),
	}
}

func (f *fixture) company(t *testing.T, name string) *domain.Company {
	t.Helper()
	c := &domain.Company{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        uuid.New().String() + "@biz.example",
		PasswordHash: "x",
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, f.store.Companies().Create(context.Background(), c))
	return c
}

func (f *fixture) user(t *testing.T, age int, country string) *domain.User {
	t.Helper()
	u := &domain.User{
		ID:           uuid.New().String(),
		Name:         "Maria",
		Surname:      "Fedotova",
		Email:        uuid.New().String() + "@mail.example",
		PasswordHash: "x",
		Age:          age,
		Country:      country,
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, f.store.Users().Create(context.Background(), u))
	return u
}

func (f *fixture) commonPromo(t *testing.T, companyID string, maxCount int, code string) string {
	t.Helper()
	id, err := f.business.Create(context.Background(), companyID, CreatePromoInput{
		Description: "ten percent off everything",
		MaxCount:    maxCount,
		Mode:        domain.PromoModeCommon,
		PromoCommon: strPtr(code),
	})
	require.NoError(t, err)
	return id
}

func (f *fixture) uniquePromo(t *testing.T, companyID string, codes ...string) string {
	t.Helper()
	id, err := f.business.Create(context.Background(), companyID, CreatePromoInput{
		Description: "one code per customer",
		MaxCount:    1,
		Mode:        domain.PromoModeUnique,
		PromoUnique: codes,
	})
	require.NoError(t, err)
	return id
}
