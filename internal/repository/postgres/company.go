package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/promocode/internal/domain"
	"github.com/utafrali/promocode/pkg/database"
	apperrors "github.com/utafrali/promocode/pkg/errors"
)

// CompanyRepository implements repository.CompanyRepository using PostgreSQL.
type CompanyRepository struct {
	pool database.DBTX
}

// NewCompanyRepository creates a new PostgreSQL-backed company repository.
func NewCompanyRepository(pool database.DBTX) *CompanyRepository {
	return &CompanyRepository{pool: pool}
}

// Create inserts a new company into the database.
func (r *CompanyRepository) Create(ctx context.Context, c *domain.Company) error {
	query := `
		INSERT INTO companies (id, name, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.pool.Exec(ctx, query, c.ID, c.Name, c.Email, c.PasswordHash, c.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.AlreadyExists("company", "email", c.Email)
		}
		return fmt.Errorf("insert company: %w", err)
	}
	return nil
}

// GetByID retrieves a company by its ID.
func (r *CompanyRepository) GetByID(ctx context.Context, id string) (*domain.Company, error) {
	return r.scanCompany(ctx, `
		SELECT id, name, email, password_hash, created_at
		FROM companies
		WHERE id = $1`, id)
}

// GetByEmail retrieves a company by its email.
func (r *CompanyRepository) GetByEmail(ctx context.Context, email string) (*domain.Company, error) {
	return r.scanCompany(ctx, `
		SELECT id, name, email, password_hash, created_at
		FROM companies
		WHERE email = $1`, email)
}

func (r *CompanyRepository) scanCompany(ctx context.Context, query string, args ...any) (*domain.Company, error) {
	var c domain.Company
	err := r.pool.QueryRow(ctx, query, args...).Scan(&c.ID, &c.Name, &c.Email, &c.PasswordHash, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan company: %w", err)
	}
	return &c, nil
}
