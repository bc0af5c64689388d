package domain

import (
	"strings"
	"time"
)

// Promo mode constants.
const (
	PromoModeCommon = "COMMON"
	PromoModeUnique = "UNIQUE"
)

// Limits applied to promo payloads.
const (
	MaxTargetCategories  = 20
	MaxUniquePoolSize    = 5000
	MaxCommonActivations = 100_000_000
	MinAge               = 0
	MaxAge               = 100
)

// Target restricts who may see and activate a promo. Every field is optional;
// a nil field places no restriction on that dimension.
type Target struct {
	AgeFrom    *int     `json:"age_from,omitempty"`
	AgeUntil   *int     `json:"age_until,omitempty"`
	Country    *string  `json:"country,omitempty"`
	Categories []string `json:"categories,omitempty"`
}

// Matches reports whether a user of the given age and country passes the age
// and country dimensions. A nil target matches everyone. Categories are a
// discovery filter and are not consulted here.
func (t *Target) Matches(age int, country string) bool {
	if t == nil {
		return true
	}
	if t.AgeFrom != nil && age < *t.AgeFrom {
		return false
	}
	if t.AgeUntil != nil && age > *t.AgeUntil {
		return false
	}
	if t.Country != nil && !strings.EqualFold(*t.Country, country) {
		return false
	}
	return true
}

// HasCategory reports whether category is one of the target categories,
// ignoring case. A nil target or an empty category list has none.
func (t *Target) HasCategory(category string) bool {
	if t == nil {
		return false
	}
	for _, c := range t.Categories {
		if strings.EqualFold(c, category) {
			return true
		}
	}
	return false
}

// Promo is a promotional code owned by a company.
type Promo struct {
	ID          string     `json:"promo_id"`
	CompanyID   string     `json:"company_id"`
	CompanyName string     `json:"company_name"`
	Description string     `json:"description"`
	ImageURL    *string    `json:"image_url,omitempty"`
	Target      *Target    `json:"target,omitempty"`
	MaxCount    int        `json:"max_count"`
	UsedCount   int        `json:"used_count"`
	ActiveFrom  *time.Time `json:"active_from,omitempty"`
	ActiveUntil *time.Time `json:"active_until,omitempty"`
	Mode        string     `json:"mode"`
	PromoCommon *string    `json:"promo_common,omitempty"`

	// UniqueValues holds the full pool. It is only loaded for the owning
	// company; UniqueRemaining is always populated.
	UniqueValues    []UniqueValue `json:"-"`
	UniqueRemaining int           `json:"-"`

	LikeCount    int       `json:"like_count"`
	CommentCount int       `json:"comment_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// UniqueValue is a single-use code from a UNIQUE promo pool.
type UniqueValue struct {
	ID      string `json:"id"`
	PromoID string `json:"promo_id"`
	Value   string `json:"value"`
	IsUsed  bool   `json:"is_used"`
}

// ValidModes returns the set of valid promo modes.
func ValidModes() []string {
	return []string{PromoModeCommon, PromoModeUnique}
}

// IsValidMode checks whether the given string is a valid promo mode.
func IsValidMode(m string) bool {
	for _, v := range ValidModes() {
		if v == m {
			return true
		}
	}
	return false
}

// Date truncates t to its calendar day in UTC.
func Date(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// InWindow reports whether day lies within [ActiveFrom, ActiveUntil], both
// bounds inclusive and optional.
func (p *Promo) InWindow(day time.Time) bool {
	day = Date(day)
	if p.ActiveFrom != nil && Date(*p.ActiveFrom).After(day) {
		return false
	}
	if p.ActiveUntil != nil && Date(*p.ActiveUntil).Before(day) {
		return false
	}
	return true
}

// IsActive computes whether the promo can currently be redeemed. It is a
// pure function of the promo snapshot and must be recomputed on every read.
func (p *Promo) IsActive(today time.Time) bool {
	if !p.InWindow(today) {
		return false
	}
	switch p.Mode {
	case PromoModeCommon:
		return p.UsedCount < p.MaxCount
	case PromoModeUnique:
		return p.UniqueRemaining > 0
	default:
		return false
	}
}

// UniqueUsed counts the pool codes already handed out. UNIQUE issuance is
// tracked by the pool alone; used_count stays untouched for that mode.
func (p *Promo) UniqueUsed() int {
	n := 0
	for _, v := range p.UniqueValues {
		if v.IsUsed {
			n++
		}
	}
	return n
}

// UniqueCodes returns the pool codes in insertion order.
func (p *Promo) UniqueCodes() []string {
	if len(p.UniqueValues) == 0 {
		return nil
	}
	codes := make([]string, len(p.UniqueValues))
	for i, v := range p.UniqueValues {
		codes[i] = v.Value
	}
	return codes
}
