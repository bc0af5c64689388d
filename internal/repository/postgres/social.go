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

// SocialRepository implements repository.SocialRepository using PostgreSQL.
type SocialRepository struct {
	pool database.DBTX
}

// NewSocialRepository creates a new PostgreSQL-backed likes and comments repository.
func NewSocialRepository(pool database.DBTX) *SocialRepository {
	return &SocialRepository{pool: pool}
}

// Like records a like; an existing like is kept as is.
func (r *SocialRepository) Like(ctx context.Context, userID, promoID string) (err error) {
	ctx, end := database.TraceQuery(ctx, "LikePromo", "INSERT INTO promo_likes")
	defer func() { end(err) }()

	query := `
		INSERT INTO promo_likes (user_id, promo_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, promo_id) DO NOTHING`

	if _, err := r.pool.Exec(ctx, query, userID, promoID); err != nil {
		return fmt.Errorf("insert like: %w", err)
	}
	return nil
}

// Unlike removes a like if present.
func (r *SocialRepository) Unlike(ctx context.Context, userID, promoID string) (err error) {
	ctx, end := database.TraceQuery(ctx, "UnlikePromo", "DELETE FROM promo_likes")
	defer func() { end(err) }()

	if _, err := r.pool.Exec(ctx, `DELETE FROM promo_likes WHERE user_id = $1 AND promo_id = $2`, userID, promoID); err != nil {
		return fmt.Errorf("delete like: %w", err)
	}
	return nil
}

// CreateComment inserts a comment and loads its author.
func (r *SocialRepository) CreateComment(ctx context.Context, c *domain.Comment) (err error) {
	ctx, end := database.TraceQuery(ctx, "CreateComment", "INSERT INTO promo_comments")
	defer func() { end(err) }()

	query := `
		WITH inserted AS (
			INSERT INTO promo_comments (id, promo_id, author_id, text, created_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING author_id
		)
		SELECT u.name, u.surname, u.avatar_url
		FROM inserted
		JOIN users u ON u.id = inserted.author_id`

	err = r.pool.QueryRow(ctx, query, c.ID, c.PromoID, c.AuthorID, c.Text, c.CreatedAt).
		Scan(&c.Author.Name, &c.Author.Surname, &c.Author.AvatarURL)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

const commentSelect = `
		SELECT m.id, m.promo_id, m.author_id, m.text, m.created_at,
			   u.name, u.surname, u.avatar_url`

// GetComment retrieves a comment that belongs to the given promo.
func (r *SocialRepository) GetComment(ctx context.Context, promoID, commentID string) (_ *domain.Comment, err error) {
	ctx, end := database.TraceQuery(ctx, "GetComment", "SELECT promo_comments by id")
	defer func() { end(err) }()

	query := commentSelect + `
		FROM promo_comments m
		JOIN users u ON u.id = m.author_id
		WHERE m.id = $1 AND m.promo_id = $2`

	c, err := scanComment(r.pool.QueryRow(ctx, query, commentID, promoID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("comment", commentID)
		}
		return nil, fmt.Errorf("get comment: %w", err)
	}
	return c, nil
}

// UpdateComment overwrites the comment text.
func (r *SocialRepository) UpdateComment(ctx context.Context, c *domain.Comment) (err error) {
	ctx, end := database.TraceQuery(ctx, "UpdateComment", "UPDATE promo_comments")
	defer func() { end(err) }()

	ct, err := r.pool.Exec(ctx, `UPDATE promo_comments SET text = $1 WHERE id = $2 AND promo_id = $3`, c.Text, c.ID, c.PromoID)
	if err != nil {
		return fmt.Errorf("update comment: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("comment", c.ID)
	}
	return nil
}

// DeleteComment removes a comment of the given promo.
func (r *SocialRepository) DeleteComment(ctx context.Context, promoID, commentID string) (err error) {
	ctx, end := database.TraceQuery(ctx, "DeleteComment", "DELETE FROM promo_comments")
	defer func() { end(err) }()

	ct, err := r.pool.Exec(ctx, `DELETE FROM promo_comments WHERE id = $1 AND promo_id = $2`, commentID, promoID)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("comment", commentID)
	}
	return nil
}

// ListComments returns the promo's comments, newest first, with the total count.
func (r *SocialRepository) ListComments(ctx context.Context, promoID string, limit, offset int) (_ []domain.Comment, _ int, err error) {
	ctx, end := database.TraceQuery(ctx, "ListComments", "SELECT promo_comments by promo")
	defer func() { end(err) }()

	base := commentSelect + `,
			   count(*) OVER() AS total_count
		FROM promo_comments m
		JOIN users u ON u.id = m.author_id
		WHERE m.promo_id = $1`
	query := base + `
		ORDER BY m.created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, promoID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	var (
		comments   []domain.Comment
		totalCount int
	)
	for rows.Next() {
		c, err := scanComment(rows, &totalCount)
		if err != nil {
			return nil, 0, fmt.Errorf("scan comment row: %w", err)
		}
		comments = append(comments, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate comment rows: %w", err)
	}
	if totalCount, err = pageTotal(ctx, r.pool, len(comments), totalCount, limit, offset, base, promoID); err != nil {
		return nil, 0, err
	}

	if comments == nil {
		comments = []domain.Comment{}
	}
	return comments, totalCount, nil
}

func scanComment(row pgx.Row, extra ...any) (*domain.Comment, error) {
	var c domain.Comment
	dest := []any{
		&c.ID,
		&c.PromoID,
		&c.AuthorID,
		&c.Text,
		&c.CreatedAt,
		&c.Author.Name,
		&c.Author.Surname,
		&c.Author.AvatarURL,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &c, nil
}
