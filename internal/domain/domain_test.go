package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPromoStat_LowercasesMergesAndSorts(t *testing.T) {
	stat := NewPromoStat(map[string]int{
		"RU": 3,
		"ru": 2,
		"us": 4,
		"de": 0,
		"Am": 1,
	})

	assert.Equal(t, 10, stat.ActivationsCount)
	assert.Equal(t, []CountryActivations{
		{Country: "am", ActivationsCount: 1},
		{Country: "ru", ActivationsCount: 5},
		{Country: "us", ActivationsCount: 4},
	}, stat.Countries)
}

func TestNewPromoStat_Empty(t *testing.T) {
	stat := NewPromoStat(nil)
	assert.Zero(t, stat.ActivationsCount)
	assert.Empty(t, stat.Countries)
}

func TestFraudDecision_CacheTTL(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)
	past := now.Add(-time.Minute)

	ttl, ok := FraudDecision{OK: true, CacheUntil: &future}.CacheTTL(now)
	require.True(t, ok)
	assert.Equal(t, time.Hour, ttl)

	_, ok = FraudDecision{OK: true, CacheUntil: &past}.CacheTTL(now)
	assert.False(t, ok)

	_, ok = FraudDecision{OK: false}.CacheTTL(now)
	assert.False(t, ok)
}

func TestIsValidCountry(t *testing.T) {
	assert.True(t, IsValidCountry("US"))
	assert.True(t, IsValidCountry("ru"))
	assert.False(t, IsValidCountry("XX"))
	assert.False(t, IsValidCountry("USA"))
	assert.False(t, IsValidCountry(""))
}

func TestIsValidSubjectType(t *testing.T) {
	assert.True(t, IsValidSubjectType(SubjectUser))
	assert.True(t, IsValidSubjectType(SubjectCompany))
	assert.False(t, IsValidSubjectType("admin"))
}

func TestNewUserPromoView(t *testing.T) {
	p := &Promo{
		ID: "p1", CompanyID: "c1", CompanyName: "Acme Corp", Description: "ten percent off",
		Mode: PromoModeCommon, MaxCount: 1, UsedCount: 1, LikeCount: 7, CommentCount: 2,
	}

	v := NewUserPromoView(p, UserFlags{Liked: true, Activated: true}, today)
	assert.Equal(t, "p1", v.PromoID)
	assert.False(t, v.Active)
	assert.True(t, v.IsLikedByUser)
	assert.True(t, v.IsActivatedByUser)
	assert.Equal(t, 7, v.LikeCount)
	assert.Equal(t, 2, v.CommentCount)
}

func TestNewCompanyPromoView(t *testing.T) {
	p := &Promo{
		ID: "p1", Mode: PromoModeUnique, MaxCount: 1, UniqueRemaining: 1,
		UniqueValues: []UniqueValue{{Value: "x-1", IsUsed: true}, {Value: "x-2"}},
		ActiveFrom:   day("2025-01-01"),
		Target:       &Target{Country: strPtr("fr")},
	}

	v := NewCompanyPromoView(p, today)
	assert.True(t, v.Active)
	assert.Equal(t, []string{"x-1", "x-2"}, v.PromoUnique)
	require.NotNil(t, v.ActiveFrom)
	assert.Equal(t, "2025-01-01", *v.ActiveFrom)
	assert.Nil(t, v.ActiveUntil)
	assert.Equal(t, "fr", *v.Target.Country)
	assert.Zero(t, v.UsedCount)
	require.NotNil(t, v.UniqueUsed)
	assert.Equal(t, 1, *v.UniqueUsed)
	assert.LessOrEqual(t, v.UsedCount, v.MaxCount)

	common := NewCompanyPromoView(&Promo{Mode: PromoModeCommon, MaxCount: 3, UsedCount: 2}, today)
	assert.Nil(t, common.UniqueUsed, "COMMON promos report used_count only")
}
