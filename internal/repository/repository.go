package repository

import (
	"context"
	"time"

	"github.com/utafrali/promocode/internal/domain"
)

// Sort keys accepted by CompanyPromoFilter.SortBy.
const (
	SortByCreatedAt   = ""
	SortByActiveFrom  = "active_from"
	SortByActiveUntil = "active_until"
)

// CompanyPromoFilter defines filter criteria for a company's promo list.
type CompanyPromoFilter struct {
	// Countries keeps promos whose target country is unset or one of these
	// (case-insensitive). Empty means no country filter.
	Countries []string
	SortBy    string
	Limit     int
	Offset    int
}

// FeedFilter defines the criteria for a user's promo feed.
type FeedFilter struct {
	UserID   string
	Age      int
	Country  string
	Category *string
	Active   *bool
	Today    time.Time
	Limit    int
	Offset   int
}

// UserPromo is a promo together with the requesting user's relation to it.
type UserPromo struct {
	Promo domain.Promo
	Flags domain.UserFlags
}

// PromoPatch carries the mutable promo fields. Nil fields are left unchanged;
// a non-nil Target replaces the stored target wholesale.
type PromoPatch struct {
	Description *string
	ImageURL    *string
	Target      *domain.Target
	MaxCount    *int
	ActiveFrom  *time.Time
	ActiveUntil *time.Time
}

// Apply merges the patch into p.
func (pp PromoPatch) Apply(p *domain.Promo) {
	if pp.Description != nil {
		p.Description = *pp.Description
	}
	if pp.ImageURL != nil {
		p.ImageURL = pp.ImageURL
	}
	if pp.Target != nil {
		t := *pp.Target
		p.Target = &t
	}
	if pp.MaxCount != nil {
		p.MaxCount = *pp.MaxCount
	}
	if pp.ActiveFrom != nil {
		p.ActiveFrom = pp.ActiveFrom
	}
	if pp.ActiveUntil != nil {
		p.ActiveUntil = pp.ActiveUntil
	}
}

// CompanyRepository defines persistence operations for business accounts.
type CompanyRepository interface {
	// Create inserts a company. A taken email yields an AlreadyExists error.
	Create(ctx context.Context, company *domain.Company) error

	// GetByID retrieves a company by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.Company, error)

	// GetByEmail retrieves a company by its login email.
	GetByEmail(ctx context.Context, email string) (*domain.Company, error)
}

// UserRepository defines persistence operations for end users.
type UserRepository interface {
	// Create inserts a user. A taken email yields an AlreadyExists error.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail retrieves a user by its login email.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// Update overwrites the mutable profile fields of a user.
	Update(ctx context.Context, user *domain.User) error
}

// PromoRepository defines persistence operations for promos, their unique
// code pools and activations.
type PromoRepository interface {
	// Create inserts the promo and its unique pool in one transaction.
	Create(ctx context.Context, promo *domain.Promo) error

	// GetByID retrieves a promo with its full unique pool, regardless of
	// targeting. Callers check ownership.
	GetByID(ctx context.Context, id string) (*domain.Promo, error)

	// Patch locks the promo row, applies patch to it and hands the result to
	// check before persisting. An error from check aborts the transaction
	// untouched. The updated promo is returned.
	Patch(ctx context.Context, id string, patch PromoPatch, check func(current *domain.Promo) error) (*domain.Promo, error)

	// ListByCompany returns a page of the company's promos and the total count.
	ListByCompany(ctx context.Context, companyID string, filter CompanyPromoFilter) ([]domain.Promo, int, error)

	// GetForUser returns the promo only if the user passes its targeting;
	// otherwise it reports NotFound, the same as for an unknown id.
	GetForUser(ctx context.Context, id, userID string, age int, country string) (*UserPromo, error)

	// ListFeed returns a page of promos targeted at the user and the total count.
	ListFeed(ctx context.Context, filter FeedFilter) ([]UserPromo, int, error)

	// ListActivated returns one entry per activation by the user, newest first.
	ListActivated(ctx context.Context, userID string, limit, offset int) ([]UserPromo, int, error)

	// Issue atomically hands out one code of activation.PromoID, stores it in
	// activation.Code and records the activation. It fails with an
	// AccessDenied error when the counter or pool is exhausted or the promo is
	// outside its window on day today.
	Issue(ctx context.Context, activation *domain.Activation, today time.Time) error

	// CountActivationsByCountry groups activations of the promo by the
	// activating user's country.
	CountActivationsByCountry(ctx context.Context, promoID string) (map[string]int, error)
}

// SocialRepository defines persistence operations for likes and comments.
type SocialRepository interface {
	// Like records that the user likes the promo. Liking twice is a no-op.
	Like(ctx context.Context, userID, promoID string) error

	// Unlike removes a like. Removing a missing like is a no-op.
	Unlike(ctx context.Context, userID, promoID string) error

	// CreateComment inserts a comment and fills in its author.
	CreateComment(ctx context.Context, comment *domain.Comment) error

	// GetComment retrieves a comment of the given promo.
	GetComment(ctx context.Context, promoID, commentID string) (*domain.Comment, error)

	// UpdateComment overwrites the comment text.
	UpdateComment(ctx context.Context, comment *domain.Comment) error

	// DeleteComment removes a comment of the given promo.
	DeleteComment(ctx context.Context, promoID, commentID string) error

	// ListComments returns a page of the promo's comments, newest first.
	ListComments(ctx context.Context, promoID string, limit, offset int) ([]domain.Comment, int, error)
}

// TokenCache stores the single current token of each subject.
type TokenCache interface {
	Put(ctx context.Context, subjectType, subjectID, token string, ttl time.Duration) error
	// Get returns the cached token; ok is false when there is none.
	Get(ctx context.Context, subjectType, subjectID string) (token string, ok bool, err error)
}

// FraudDecisionCache stores anti-fraud verdicts per user.
type FraudDecisionCache interface {
	Put(ctx context.Context, userID string, decision domain.FraudDecision, ttl time.Duration) error
	// Get returns the cached decision; ok is false when there is none.
	Get(ctx context.Context, userID string) (decision domain.FraudDecision, ok bool, err error)
}
