package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/promocode/internal/auth"
	"github.com/utafrali/promocode/internal/domain"
	"github.com/utafrali/promocode/internal/repository"
	apperrors "github.com/utafrali/promocode/pkg/errors"
)

var errBadCredentials = apperrors.Unauthorized("invalid email or password")

// TokenIssuer signs a token for a subject and makes it the subject's only
// valid one.
type TokenIssuer interface {
	Issue(ctx context.Context, subjectID, subjectType string) (string, error)
}

// AuthService registers and signs in companies and users.
type AuthService struct {
	companies repository.CompanyRepository
	users     repository.UserRepository
	tokens    TokenIssuer
	logger    *slog.Logger
	now       func() time.Time
}

// NewAuthService creates a new auth service.
func NewAuthService(
	companies repository.CompanyRepository,
	users repository.UserRepository,
	tokens TokenIssuer,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		companies: companies,
		users:     users,
		tokens:    tokens,
		logger:    logger,
		now:       time.Now,
	}
}

// CompanySignUpInput holds the parameters for registering a company.
type CompanySignUpInput struct {
	Name     string
	Email    string
	Password string
}

// UserSignUpInput holds the parameters for registering a user.
type UserSignUpInput struct {
	Name      string
	Surname   string
	Email     string
	Password  string
	AvatarURL *string
	Age       int
	Country   string
}

// SignUpCompany creates a company account and signs it in.
func (s *AuthService) SignUpCompany(ctx context.Context, in CompanySignUpInput) (token, companyID string, err error) {
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return "", "", err
	}

	company := &domain.Company{
		ID:           uuid.New().String(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.companies.Create(ctx, company); err != nil {
		return "", "", err
	}

	token, err = s.tokens.Issue(ctx, company.ID, domain.SubjectCompany)
	if err != nil {
		return "", "", fmt.Errorf("issue company token: %w", err)
	}

	s.logger.InfoContext(ctx, "company registered", slog.String("company_id", company.ID))
	return token, company.ID, nil
}

// SignInCompany checks the credentials and issues a fresh token, revoking
// the previous one.
func (s *AuthService) SignInCompany(ctx context.Context, email, password string) (string, error) {
	company, err := s.companies.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return "", errBadCredentials
		}
		return "", err
	}
	if err := checkPassword(company.PasswordHash, password); err != nil {
		return "", err
	}

	token, err := s.tokens.Issue(ctx, company.ID, domain.SubjectCompany)
	if err != nil {
		return "", fmt.Errorf("issue company token: %w", err)
	}
	return token, nil
}

// SignUpUser creates a user account and signs it in.
func (s *AuthService) SignUpUser(ctx context.Context, in UserSignUpInput) (string, error) {
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return "", err
	}

	user := &domain.User{
		ID:           uuid.New().String(),
		Name:         in.Name,
		Surname:      in.Surname,
		Email:        in.Email,
		PasswordHash: hash,
		AvatarURL:    in.AvatarURL,
		Age:          in.Age,
		Country:      in.Country,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return "", err
	}

	token, err := s.tokens.Issue(ctx, user.ID, domain.SubjectUser)
	if err != nil {
		return "", fmt.Errorf("issue user token: %w", err)
	}

	s.logger.InfoContext(ctx, "user registered", slog.String("user_id", user.ID))
	return token, nil
}

// SignInUser checks the credentials and issues a fresh token, revoking the
// previous one.
func (s *AuthService) SignInUser(ctx context.Context, email, password string) (string, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return "", errBadCredentials
		}
		return "", err
	}
	if err := checkPassword(user.PasswordHash, password); err != nil {
		return "", err
	}

	token, err := s.tokens.Issue(ctx, user.ID, domain.SubjectUser)
	if err != nil {
		return "", fmt.Errorf("issue user token: %w", err)
	}
	return token, nil
}

func checkPassword(hash, password string) error {
	ok, err := auth.CheckPassword(hash, password)
	if err != nil {
		return err
	}
	if !ok {
		return errBadCredentials
	}
	return nil
}
