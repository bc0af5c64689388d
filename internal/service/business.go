package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/promocode/internal/domain"
	"github.com/utafrali/promocode/internal/event"
	"github.com/utafrali/promocode/internal/repository"
	apperrors "github.com/utafrali/promocode/pkg/errors"
)

var errNotOwner = apperrors.AccessDenied("promo belongs to another company")

// BusinessService implements the company side of promos: creation, listing,
// patching and statistics.
type BusinessService struct {
	promos repository.PromoRepository
	events *event.Producer
	logger *slog.Logger
	now    func() time.Time
}

// NewBusinessService creates a new business service.
func NewBusinessService(promos repository.PromoRepository, events *event.Producer, logger *slog.Logger) *BusinessService {
	return &BusinessService{
		promos: promos,
		events: events,
		logger: logger,
		now:    time.Now,
	}
}

// CreatePromoInput holds the parameters for creating a promo.
type CreatePromoInput struct {
	Description string
	ImageURL    *string
	Target      *domain.Target
	MaxCount    int
	ActiveFrom  *time.Time
	ActiveUntil *time.Time
	Mode        string
	PromoCommon *string
	PromoUnique []string
}

// ListPromosInput holds the company list query.
type ListPromosInput struct {
	Countries []string
	SortBy    string
	Limit     int
	Offset    int
}

// Create validates the input and stores the promo with its unique pool in
// one transaction. It returns the new promo id.
func (s *BusinessService) Create(ctx context.Context, companyID string, in CreatePromoInput) (string, error) {
	if err := validateCreate(in); err != nil {
		return "", err
	}

	promo := &domain.Promo{
		ID:          uuid.New().String(),
		CompanyID:   companyID,
		Description: in.Description,
		ImageURL:    in.ImageURL,
		Target:      in.Target,
		MaxCount:    in.MaxCount,
		ActiveFrom:  dateOf(in.ActiveFrom),
		ActiveUntil: dateOf(in.ActiveUntil),
		Mode:        in.Mode,
		PromoCommon: in.PromoCommon,
		CreatedAt:   s.now().UTC(),
	}
	if in.Mode == domain.PromoModeUnique {
		promo.UniqueValues = make([]domain.UniqueValue, len(in.PromoUnique))
		for i, v := range in.PromoUnique {
			promo.UniqueValues[i] = domain.UniqueValue{ID: uuid.New().String(), PromoID: promo.ID, Value: v}
		}
	}

	if err := s.promos.Create(ctx, promo); err != nil {
		return "", err
	}

	s.logger.InfoContext(ctx, "promo created",
		slog.String("promo_id", promo.ID),
		slog.String("company_id", companyID),
		slog.String("mode", promo.Mode),
		slog.Int("pool_size", len(promo.UniqueValues)),
	)
	if err := s.events.PublishPromoCreated(ctx, promo); err != nil {
		s.logger.WarnContext(ctx, "failed to publish promo.created event",
			slog.String("promo_id", promo.ID),
			slog.String("error", err.Error()),
		)
	}
	return promo.ID, nil
}

// List returns a page of the company's promos and the total count.
func (s *BusinessService) List(ctx context.Context, companyID string, in ListPromosInput) ([]domain.CompanyPromoView, int, error) {
	switch in.SortBy {
	case repository.SortByCreatedAt, repository.SortByActiveFrom, repository.SortByActiveUntil:
	default:
		return nil, 0, apperrors.InvalidInput("sort_by must be active_from or active_until")
	}
	for _, c := range in.Countries {
		if !domain.IsValidCountry(c) {
			return nil, 0, apperrors.InvalidInput("country must be an ISO 3166-1 alpha-2 code")
		}
	}

	promos, total, err := s.promos.ListByCompany(ctx, companyID, repository.CompanyPromoFilter{
		Countries: in.Countries,
		SortBy:    in.SortBy,
		Limit:     in.Limit,
		Offset:    in.Offset,
	})
	if err != nil {
		return nil, 0, err
	}

	today := s.now()
	views := make([]domain.CompanyPromoView, len(promos))
	for i := range promos {
		views[i] = domain.NewCompanyPromoView(&promos[i], today)
	}
	return views, total, nil
}

// Get returns the company view of one of its promos.
func (s *BusinessService) Get(ctx context.Context, companyID, promoID string) (domain.CompanyPromoView, error) {
	promo, err := s.owned(ctx, companyID, promoID)
	if err != nil {
		return domain.CompanyPromoView{}, err
	}
	return domain.NewCompanyPromoView(promo, s.now()), nil
}

// Patch merges the present fields into the promo under a row lock, so it
// serializes with concurrent activations of the same promo.
func (s *BusinessService) Patch(ctx context.Context, companyID, promoID string, patch repository.PromoPatch) (domain.CompanyPromoView, error) {
	patch.ActiveFrom = dateOf(patch.ActiveFrom)
	patch.ActiveUntil = dateOf(patch.ActiveUntil)

	// Ownership is checked before any field is validated.
	promo, err := s.promos.Patch(ctx, promoID, patch, func(current *domain.Promo) error {
		if current.CompanyID != companyID {
			return errNotOwner
		}
		if patch.Target != nil {
			if err := validateTarget(patch.Target); err != nil {
				return err
			}
		}
		return validatePatched(current, patch)
	})
	if err != nil {
		return domain.CompanyPromoView{}, err
	}

	s.logger.InfoContext(ctx, "promo patched",
		slog.String("promo_id", promoID),
		slog.Int("max_count", promo.MaxCount),
		slog.Int("used_count", promo.UsedCount),
	)
	if err := s.events.PublishPromoUpdated(ctx, promo); err != nil {
		s.logger.WarnContext(ctx, "failed to publish promo.updated event",
			slog.String("promo_id", promoID),
			slog.String("error", err.Error()),
		)
	}
	return domain.NewCompanyPromoView(promo, s.now()), nil
}

// Stat aggregates the activations of one of the company's promos by country.
func (s *BusinessService) Stat(ctx context.Context, companyID, promoID string) (domain.PromoStat, error) {
	if _, err := s.owned(ctx, companyID, promoID); err != nil {
		return domain.PromoStat{}, err
	}
	byCountry, err := s.promos.CountActivationsByCountry(ctx, promoID)
	if err != nil {
		return domain.PromoStat{}, err
	}
	return domain.NewPromoStat(byCountry), nil
}

func (s *BusinessService) owned(ctx context.Context, companyID, promoID string) (*domain.Promo, error) {
	promo, err := s.promos.GetByID(ctx, promoID)
	if err != nil {
		return nil, err
	}
	if promo.CompanyID != companyID {
		return nil, errNotOwner
	}
	return promo, nil
}

// ---------------------------------------------------------------------------
// validation
// ---------------------------------------------------------------------------

func validateCreate(in CreatePromoInput) error {
	switch in.Mode {
	case domain.PromoModeCommon:
		if in.PromoCommon == nil || *in.PromoCommon == "" {
			return apperrors.InvalidInput("promo_common is required for COMMON promos")
		}
		if len(in.PromoUnique) > 0 {
			return apperrors.InvalidInput("promo_unique is not allowed for COMMON promos")
		}
		if in.MaxCount < 0 || in.MaxCount > domain.MaxCommonActivations {
			return apperrors.InvalidInput("max_count is out of range for COMMON promos")
		}
	case domain.PromoModeUnique:
		if len(in.PromoUnique) == 0 {
			return apperrors.InvalidInput("promo_unique is required for UNIQUE promos")
		}
		if len(in.PromoUnique) > domain.MaxUniquePoolSize {
			return apperrors.InvalidInput("promo_unique has too many values")
		}
		if in.PromoCommon != nil {
			return apperrors.InvalidInput("promo_common is not allowed for UNIQUE promos")
		}
		if in.MaxCount != 1 {
			return apperrors.InvalidInput("max_count must be 1 for UNIQUE promos")
		}
		seen := make(map[string]struct{}, len(in.PromoUnique))
		for _, v := range in.PromoUnique {
			if _, dup := seen[v]; dup {
				return apperrors.InvalidInput("promo_unique must not contain duplicates")
			}
			seen[v] = struct{}{}
		}
	default:
		return apperrors.InvalidInput("mode must be COMMON or UNIQUE")
	}

	if err := validateTarget(in.Target); err != nil {
		return err
	}
	return validateWindow(in.ActiveFrom, in.ActiveUntil)
}

func validateTarget(t *domain.Target) error {
	if t == nil {
		return nil
	}
	if t.AgeFrom != nil && t.AgeUntil != nil && *t.AgeFrom > *t.AgeUntil {
		return apperrors.InvalidInput("target.age_from must not exceed target.age_until")
	}
	if len(t.Categories) > domain.MaxTargetCategories {
		return apperrors.InvalidInput("target.categories has too many values")
	}
	if t.Country != nil && !domain.IsValidCountry(*t.Country) {
		return apperrors.InvalidInput("target.country must be an ISO 3166-1 alpha-2 code")
	}
	return nil
}

func validateWindow(from, until *time.Time) error {
	if from != nil && until != nil && domain.Date(*from).After(domain.Date(*until)) {
		return apperrors.InvalidInput("active_from must not be after active_until")
	}
	return nil
}

// validatePatched checks the merged promo against the rules that depend on
// its stored state.
func validatePatched(p *domain.Promo, patch repository.PromoPatch) error {
	if patch.MaxCount != nil {
		switch p.Mode {
		case domain.PromoModeUnique:
			if *patch.MaxCount != 1 {
				return apperrors.InvalidInput("max_count must be 1 for UNIQUE promos")
			}
		default:
			if *patch.MaxCount < 0 || *patch.MaxCount > domain.MaxCommonActivations {
				return apperrors.InvalidInput("max_count is out of range for COMMON promos")
			}
			if *patch.MaxCount < p.UsedCount {
				return apperrors.InvalidInput("max_count must not be lower than used_count")
			}
		}
	}
	return validateWindow(p.ActiveFrom, p.ActiveUntil)
}

func dateOf(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := domain.Date(*t)
	return &d
}
