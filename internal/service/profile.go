package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/utafrali/promocode/internal/auth"
	"github.com/utafrali/promocode/internal/domain"
	"github.com/utafrali/promocode/internal/repository"
	apperrors "github.com/utafrali/promocode/pkg/errors"
)

// ProfileService reads and edits the signed-in user's profile.
type ProfileService struct {
	users  repository.UserRepository
	logger *slog.Logger
}

// NewProfileService creates a new profile service.
func NewProfileService(users repository.UserRepository, logger *slog.Logger) *ProfileService {
	return &ProfileService{users: users, logger: logger}
}

// UpdateProfileInput holds the optional profile fields; nil leaves a field
// unchanged.
type UpdateProfileInput struct {
	Name      *string
	Surname   *string
	AvatarURL *string
	Password  *string
}

// Get returns the user's profile.
func (s *ProfileService) Get(ctx context.Context, userID string) (*domain.User, error) {
	return loadUser(ctx, s.users, userID)
}

// Update overwrites the present fields. A new password is re-hashed.
func (s *ProfileService) Update(ctx context.Context, userID string, in UpdateProfileInput) (*domain.User, error) {
	user, err := loadUser(ctx, s.users, userID)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		user.Name = *in.Name
	}
	if in.Surname != nil {
		user.Surname = *in.Surname
	}
	if in.AvatarURL != nil {
		user.AvatarURL = in.AvatarURL
	}
	if in.Password != nil {
		hash, err := auth.HashPassword(*in.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "profile updated",
		slog.String("user_id", userID),
		slog.Bool("password_changed", in.Password != nil),
	)
	return user, nil
}

// loadUser fetches the authenticated user. A valid token whose user no longer
// exists is treated as an invalid credential.
func loadUser(ctx context.Context, users repository.UserRepository, userID string) (*domain.User, error) {
	user, err := users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized("user no longer exists")
		}
		return nil, err
	}
	return user, nil
}
