package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/promocode/internal/domain"
	"github.com/utafrali/promocode/internal/event"
	"github.com/utafrali/promocode/internal/repository"
	apperrors "github.com/utafrali/promocode/pkg/errors"
)

// ============================================================================
// Create
// ============================================================================

func TestCreate_RejectsInvalidInput(t *testing.T) {
	valid := func() CreatePromoInput {
		return CreatePromoInput{
			Description: "ten percent off everything",
			MaxCount:    10,
			Mode:        domain.PromoModeCommon,
			PromoCommon: strPtr("sale-10"),
		}
	}

	tests := []struct {
		name   string
		mutate func(in *CreatePromoInput)
	}{
		{"unknown mode", func(in *CreatePromoInput) { in.Mode = "SEASONAL" }},
		{"common without code", func(in *CreatePromoInput) { in.PromoCommon = nil }},
		{"common with pool", func(in *CreatePromoInput) { in.PromoUnique = []string{"abc"} }},
		{"common max_count too large", func(in *CreatePromoInput) { in.MaxCount = domain.MaxCommonActivations + 1 }},
		{"common negative max_count", func(in *CreatePromoInput) { in.MaxCount = -1 }},
		{"unique without pool", func(in *CreatePromoInput) {
			in.Mode, in.PromoCommon, in.MaxCount = domain.PromoModeUnique, nil, 1
		}},
		{"unique with common code", func(in *CreatePromoInput) {
			in.Mode, in.MaxCount, in.PromoUnique = domain.PromoModeUnique, 1, []string{"abc"}
		}},
		{"unique max_count not one", func(in *CreatePromoInput) {
			in.Mode, in.PromoCommon, in.MaxCount, in.PromoUnique = domain.PromoModeUnique, nil, 2, []string{"abc"}
		}},
		{"unique duplicates", func(in *CreatePromoInput) {
			in.Mode, in.PromoCommon, in.MaxCount, in.PromoUnique = domain.PromoModeUnique, nil, 1, []string{"abc", "abc"}
		}},
		{"age range inverted", func(in *CreatePromoInput) {
			in.Target = &domain.Target{AgeFrom: intPtr(30), AgeUntil: intPtr(20)}
		}},
		{"too many categories", func(in *CreatePromoInput) {
			in.Target = &domain.Target{Categories: make([]string, domain.MaxTargetCategories+1)}
		}},
		{"unknown country", func(in *CreatePromoInput) {
			in.Target = &domain.Target{Country: strPtr("xx")}
		}},
		{"window inverted", func(in *CreatePromoInput) {
			in.ActiveFrom, in.ActiveUntil = date("2025-02-01"), date("2025-01-01")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, allowAll{})
			company := f.company(t, "Acme Corp")

			in := valid()
			tt.mutate(&in)
			_, err := f.business.Create(context.Background(), company.ID, in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrInvalidInput), "got %v", err)
		})
	}
}

func TestCreate_UniquePoolIsStoredInOrder(t *testing.T) {
	f := newFixture(t, allowAll{})
	company := f.company(t, "Acme Corp")
	promoID := f.uniquePromo(t, company.ID, "c-3", "c-1", "c-2")

	view, err := f.business.Get(context.Background(), company.ID, promoID)
	require.NoError(t, err)
	assert.Equal(t, []string{"c-3", "c-1", "c-2"}, view.PromoUnique)
	assert.Equal(t, "Acme Corp", view.CompanyName)
	assert.True(t, view.Active)
	assert.Nil(t, view.PromoCommon)
}

func TestCreate_TruncatesWindowToDates(t *testing.T) {
	f := newFixture(t, allowAll{})
	company := f.company(t, "Acme Corp")
	from := time.Date(2025, 1, 1, 15, 30, 0, 0, time.UTC)

	promoID, err := f.business.Create(context.Background(), company.ID, CreatePromoInput{
		Description: "new year sale for all",
		MaxCount:    10,
		Mode:        domain.PromoModeCommon,
		PromoCommon: strPtr("ny-2025"),
		ActiveFrom:  &from,
	})
	require.NoError(t, err)

	view, err := f.business.Get(context.Background(), company.ID, promoID)
	require.NoError(t, err)
	require.NotNil(t, view.ActiveFrom)
	assert.Equal(t, "2025-01-01", *view.ActiveFrom)
}

func TestCreate_PublishesCreatedEvent(t *testing.T) {
	pub := new(mockPublisher)
	f := newFixture(t, allowAll{})
	f.business.events = event.NewProducer(pub, testLogger())
	company := f.company(t, "Acme Corp")

	pub.On("Publish", mock.Anything, event.TopicPromoCreated, mock.Anything).Return(nil).Once()

	f.commonPromo(t, company.ID, 5, "sale-10")
	pub.AssertExpectations(t)
}

// ============================================================================
// Ownership
// ============================================================================

func TestGet_OtherCompanyIsDenied(t *testing.T) {
	f := newFixture(t, allowAll{})
	owner := f.company(t, "Acme Corp")
	other := f.company(t, "Globex Inc")
	promoID := f.commonPromo(t, owner.ID, 5, "sale-10")

	_, err := f.business.Get(context.Background(), other.ID, promoID)
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))

	_, err = f.business.Stat(context.Background(), other.ID, promoID)
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))

	_, err = f.business.Patch(context.Background(), other.ID, promoID, repository.PromoPatch{MaxCount: intPtr(10)})
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))
}

func TestPatch_OtherCompanyIsDeniedBeforeValidation(t *testing.T) {
	f := newFixture(t, allowAll{})
	owner := f.company(t, "Acme Corp")
	other := f.company(t, "Globex Inc")
	promoID := f.commonPromo(t, owner.ID, 5, "sale-10")
	ctx := context.Background()

	patches := map[string]repository.PromoPatch{
		"inverted target": {Target: &domain.Target{AgeFrom: intPtr(50), AgeUntil: intPtr(10)}},
		"inverted window": {ActiveFrom: date("2025-02-01"), ActiveUntil: date("2025-01-01")},
		"max_count range": {MaxCount: intPtr(-1)},
	}
	for name, patch := range patches {
		t.Run(name, func(t *testing.T) {
			_, err := f.business.Patch(ctx, other.ID, promoID, patch)
			assert.True(t, errors.Is(err, apperrors.ErrForbidden), "got %v", err)

			_, err = f.business.Patch(ctx, owner.ID, promoID, patch)
			assert.True(t, errors.Is(err, apperrors.ErrInvalidInput), "got %v", err)
		})
	}
}

func TestGet_UnknownPromoIsNotFound(t *testing.T) {
	f := newFixture(t, allowAll{})
	company := f.company(t, "Acme Corp")

	_, err := f.business.Get(context.Background(), company.ID, "missing")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	_, err = f.business.Patch(context.Background(), company.ID, "missing", repository.PromoPatch{})
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

// ============================================================================
// Patch
// ============================================================================

func TestPatch_MaxCountBelowUsedCount(t *testing.T) {
	f := newFixture(t, allowAll{})
	ctx := context.Background()
	company := f.company(t, "Acme Corp")
	user := f.user(t, 25, "US")
	promoID := f.commonPromo(t, company.ID, 5, "sale-10")

	for i := 0; i < 5; i++ {
		_, err := f.activation.Activate(ctx, user.ID, promoID)
		require.NoError(t, err)
	}

	view, err := f.business.Get(ctx, company.ID, promoID)
	require.NoError(t, err)
	require.Equal(t, 5, view.UsedCount)
	require.False(t, view.Active)

	_, err = f.business.Patch(ctx, company.ID, promoID, repository.PromoPatch{MaxCount: intPtr(3)})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))

	view, err = f.business.Get(ctx, company.ID, promoID)
	require.NoError(t, err)
	assert.Equal(t, 5, view.MaxCount)

	view, err = f.business.Patch(ctx, company.ID, promoID, repository.PromoPatch{MaxCount: intPtr(10)})
	require.NoError(t, err)
	assert.Equal(t, 10, view.MaxCount)
	assert.True(t, view.Active)

	_, err = f.activation.Activate(ctx, user.ID, promoID)
	assert.NoError(t, err)
}

func TestPatch_UniqueMaxCountIsFixed(t *testing.T) {
	f := newFixture(t, allowAll{})
	company := f.company(t, "Acme Corp")
	promoID := f.uniquePromo(t, company.ID, "u-1", "u-2")

	_, err := f.business.Patch(context.Background(), company.ID, promoID, repository.PromoPatch{MaxCount: intPtr(2)})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))

	_, err = f.business.Patch(context.Background(), company.ID, promoID, repository.PromoPatch{MaxCount: intPtr(1)})
	assert.NoError(t, err)
}

func TestPatch_MergedWindowMustStayOrdered(t *testing.T) {
	f := newFixture(t, allowAll{})
	ctx := context.Background()
	company := f.company(t, "Acme Corp")

	promoID, err := f.business.Create(ctx, company.ID, CreatePromoInput{
		Description: "january only special",
		MaxCount:    10,
		Mode:        domain.PromoModeCommon,
		PromoCommon: strPtr("jan-10"),
		ActiveUntil: date("2025-01-31"),
	})
	require.NoError(t, err)

	_, err = f.business.Patch(ctx, company.ID, promoID, repository.PromoPatch{ActiveFrom: date("2025-02-01")})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))

	view, err := f.business.Patch(ctx, company.ID, promoID, repository.PromoPatch{ActiveFrom: date("2025-01-01")})
	require.NoError(t, err)
	assert.Equal(t, "2025-01-01", *view.ActiveFrom)
	assert.Equal(t, "2025-01-31", *view.ActiveUntil)
}

func TestPatch_ReplacesTargetWholesale(t *testing.T) {
	f := newFixture(t, allowAll{})
	ctx := context.Background()
	company := f.company(t, "Acme Corp")

	promoID, err := f.business.Create(ctx, company.ID, CreatePromoInput{
		Description: "targeted cat food offer",
		MaxCount:    10,
		Mode:        domain.PromoModeCommon,
		PromoCommon: strPtr("cats-10"),
		Target:      &domain.Target{AgeFrom: intPtr(18), Country: strPtr("fr"), Categories: []string{"cats"}},
	})
	require.NoError(t, err)

	view, err := f.business.Patch(ctx, company.ID, promoID, repository.PromoPatch{
		Description: strPtr("updated cat food offer"),
		Target:      &domain.Target{AgeUntil: intPtr(60)},
	})
	require.NoError(t, err)
	assert.Equal(t, "updated cat food offer", view.Description)
	assert.Nil(t, view.Target.AgeFrom)
	assert.Nil(t, view.Target.Country)
	assert.Empty(t, view.Target.Categories)
	assert.Equal(t, 60, *view.Target.AgeUntil)
}

func TestPatch_RejectsInvertedTarget(t *testing.T) {
	f := newFixture(t, allowAll{})
	company := f.company(t, "Acme Corp")
	promoID := f.commonPromo(t, company.ID, 5, "sale-10")

	_, err := f.business.Patch(context.Background(), company.ID, promoID, repository.PromoPatch{
		Target: &domain.Target{AgeFrom: intPtr(50), AgeUntil: intPtr(10)},
	})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

// ============================================================================
// List and stats
// ============================================================================

func TestList_FiltersAndSorts(t *testing.T) {
	f := newFixture(t, allowAll{})
	ctx := context.Background()
	company := f.company(t, "Acme Corp")
	other := f.company(t, "Globex Inc")

	mk := func(companyID, code string, target *domain.Target, from *time.Time) string {
		id, err := f.business.Create(ctx, companyID, CreatePromoInput{
			Description: "promo for listing tests",
			MaxCount:    5,
			Mode:        domain.PromoModeCommon,
			PromoCommon: strPtr(code),
			Target:      target,
			ActiveFrom:  from,
		})
		require.NoError(t, err)
		return id
	}

	ru := mk(company.ID, "ru-code", &domain.Target{Country: strPtr("ru")}, date("2025-01-10"))
	anywhere := mk(company.ID, "any-code", nil, nil)
	us := mk(company.ID, "us-code", &domain.Target{Country: strPtr("us")}, date("2025-03-01"))
	mk(other.ID, "other-code", nil, nil)

	views, total, err := f.business.List(ctx, company.ID, ListPromosInput{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, views, 3)

	views, total, err = f.business.List(ctx, company.ID, ListPromosInput{Countries: []string{"RU"}, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	ids := []string{views[0].PromoID, views[1].PromoID}
	assert.ElementsMatch(t, []string{ru, anywhere}, ids)

	views, _, err = f.business.List(ctx, company.ID, ListPromosInput{SortBy: repository.SortByActiveFrom, Limit: 10})
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.Equal(t, []string{us, ru, anywhere}, []string{views[0].PromoID, views[1].PromoID, views[2].PromoID})

	views, total, err = f.business.List(ctx, company.ID, ListPromosInput{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, views, 1)
}

func TestList_RejectsBadQuery(t *testing.T) {
	f := newFixture(t, allowAll{})
	company := f.company(t, "Acme Corp")

	_, _, err := f.business.List(context.Background(), company.ID, ListPromosInput{SortBy: "likes"})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))

	_, _, err = f.business.List(context.Background(), company.ID, ListPromosInput{Countries: []string{"zz"}})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestStat_GroupsByLowercasedCountry(t *testing.T) {
	f := newFixture(t, allowAll{})
	ctx := context.Background()
	company := f.company(t, "Acme Corp")
	promoID := f.commonPromo(t, company.ID, 10, "sale-10")

	for _, country := range []string{"RU", "ru", "US", "am"} {
		u := f.user(t, 30, country)
		_, err := f.activation.Activate(ctx, u.ID, promoID)
		require.NoError(t, err)
	}

	stat, err := f.business.Stat(ctx, company.ID, promoID)
	require.NoError(t, err)
	assert.Equal(t, 4, stat.ActivationsCount)
	assert.Equal(t, []domain.CountryActivations{
		{Country: "am", ActivationsCount: 1},
		{Country: "ru", ActivationsCount: 2},
		{Country: "us", ActivationsCount: 1},
	}, stat.Countries)
}

func TestStat_NoActivations(t *testing.T) {
	f := newFixture(t, allowAll{})
	company := f.company(t, "Acme Corp")
	promoID := f.commonPromo(t, company.ID, 10, "sale-10")

	stat, err := f.business.Stat(context.Background(), company.ID, promoID)
	require.NoError(t, err)
	assert.Zero(t, stat.ActivationsCount)
	assert.Empty(t, stat.Countries)
}
