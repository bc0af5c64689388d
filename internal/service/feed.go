package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/promocode/internal/domain"
	"github.com/utafrali/promocode/internal/repository"
	apperrors "github.com/utafrali/promocode/pkg/errors"
)

// FeedService implements the user side of promos: the targeted feed, promo
// views, likes, comments and activation history.
type FeedService struct {
	promos repository.PromoRepository
	social repository.SocialRepository
	users  repository.UserRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewFeedService creates a new feed service.
func NewFeedService(
	promos repository.PromoRepository,
	social repository.SocialRepository,
	users repository.UserRepository,
	logger *slog.Logger,
) *FeedService {
	return &FeedService{
		promos: promos,
		social: social,
		users:  users,
		logger: logger,
		now:    time.Now,
	}
}

// FeedInput holds the optional feed filters.
type FeedInput struct {
	Category *string
	Active   *bool
	Limit    int
	Offset   int
}

// Feed returns a page of promos targeted at the user, newest first.
func (s *FeedService) Feed(ctx context.Context, userID string, in FeedInput) ([]domain.UserPromoView, int, error) {
	user, err := loadUser(ctx, s.users, userID)
	if err != nil {
		return nil, 0, err
	}

	today := s.now()
	promos, total, err := s.promos.ListFeed(ctx, repository.FeedFilter{
		UserID:   user.ID,
		Age:      user.Age,
		Country:  user.Country,
		Category: in.Category,
		Active:   in.Active,
		Today:    today,
		Limit:    in.Limit,
		Offset:   in.Offset,
	})
	if err != nil {
		return nil, 0, err
	}
	return userViews(promos, today), total, nil
}

// History returns the promos the user activated, one entry per activation,
// newest first.
func (s *FeedService) History(ctx context.Context, userID string, limit, offset int) ([]domain.UserPromoView, int, error) {
	promos, total, err := s.promos.ListActivated(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return userViews(promos, s.now()), total, nil
}

// GetPromo returns the user view of a promo targeted at the user. Promos the
// user is not targeted by are reported as not found.
func (s *FeedService) GetPromo(ctx context.Context, userID, promoID string) (domain.UserPromoView, error) {
	up, err := s.visible(ctx, userID, promoID)
	if err != nil {
		return domain.UserPromoView{}, err
	}
	return domain.NewUserPromoView(&up.Promo, up.Flags, s.now()), nil
}

// Like marks the promo as liked by the user. Liking twice is a no-op.
func (s *FeedService) Like(ctx context.Context, userID, promoID string) error {
	if _, err := s.visible(ctx, userID, promoID); err != nil {
		return err
	}
	return s.social.Like(ctx, userID, promoID)
}

// Unlike removes the user's like. Removing a missing like is a no-op.
func (s *FeedService) Unlike(ctx context.Context, userID, promoID string) error {
	if _, err := s.visible(ctx, userID, promoID); err != nil {
		return err
	}
	return s.social.Unlike(ctx, userID, promoID)
}

// AddComment posts a comment on the promo.
func (s *FeedService) AddComment(ctx context.Context, userID, promoID, text string) (*domain.Comment, error) {
	if _, err := s.visible(ctx, userID, promoID); err != nil {
		return nil, err
	}

	c := &domain.Comment{
		ID:        uuid.New().String(),
		PromoID:   promoID,
		AuthorID:  userID,
		Text:      text,
		CreatedAt: s.now().UTC(),
	}
	if err := s.social.CreateComment(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ListComments returns a page of the promo's comments, newest first.
func (s *FeedService) ListComments(ctx context.Context, userID, promoID string, limit, offset int) ([]domain.Comment, int, error) {
	if _, err := s.visible(ctx, userID, promoID); err != nil {
		return nil, 0, err
	}
	return s.social.ListComments(ctx, promoID, limit, offset)
}

// GetComment returns one comment of the promo.
func (s *FeedService) GetComment(ctx context.Context, userID, promoID, commentID string) (*domain.Comment, error) {
	if _, err := s.visible(ctx, userID, promoID); err != nil {
		return nil, err
	}
	return s.social.GetComment(ctx, promoID, commentID)
}

// EditComment replaces the text of the user's own comment.
func (s *FeedService) EditComment(ctx context.Context, userID, promoID, commentID, text string) (*domain.Comment, error) {
	c, err := s.authored(ctx, userID, promoID, commentID)
	if err != nil {
		return nil, err
	}

	c.Text = text
	if err := s.social.UpdateComment(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteComment removes the user's own comment.
func (s *FeedService) DeleteComment(ctx context.Context, userID, promoID, commentID string) error {
	if _, err := s.authored(ctx, userID, promoID, commentID); err != nil {
		return err
	}
	return s.social.DeleteComment(ctx, promoID, commentID)
}

// visible loads the promo through the user's targeting.
func (s *FeedService) visible(ctx context.Context, userID, promoID string) (*repository.UserPromo, error) {
	user, err := loadUser(ctx, s.users, userID)
	if err != nil {
		return nil, err
	}
	return s.promos.GetForUser(ctx, promoID, user.ID, user.Age, user.Country)
}

func (s *FeedService) authored(ctx context.Context, userID, promoID, commentID string) (*domain.Comment, error) {
	c, err := s.GetComment(ctx, userID, promoID, commentID)
	if err != nil {
		return nil, err
	}
	if c.AuthorID != userID {
		return nil, apperrors.AccessDenied("comment belongs to another user")
	}
	return c, nil
}

func userViews(promos []repository.UserPromo, today time.Time) []domain.UserPromoView {
	views := make([]domain.UserPromoView, len(promos))
	for i := range promos {
		views[i] = domain.NewUserPromoView(&promos[i].Promo, promos[i].Flags, today)
	}
	return views
}
