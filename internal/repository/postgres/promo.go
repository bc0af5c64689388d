package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/promocode/internal/domain"
	"github.com/utafrali/promocode/internal/repository"
	"github.com/utafrali/promocode/pkg/database"
	apperrors "github.com/utafrali/promocode/pkg/errors"
)

// PromoRepository implements repository.PromoRepository using PostgreSQL.
type PromoRepository struct {
	pool database.DBTX
}

// NewPromoRepository creates a new PostgreSQL-backed promo repository.
func NewPromoRepository(pool database.DBTX) *PromoRepository {
	return &PromoRepository{pool: pool}
}

// promoSelect loads a promo row with its owner name and the aggregates the
// read model needs, so views never issue follow-up queries.
const promoSelect = `
		SELECT p.id, p.company_id, c.name, p.description, p.image_url,
			   p.has_target, p.target_age_from, p.target_age_until, p.target_country, p.target_categories,
			   p.max_count, p.used_count, p.active_from, p.active_until, p.mode, p.promo_common, p.created_at,
			   (SELECT count(*) FROM promo_unique_values v WHERE v.promo_id = p.id AND NOT v.is_used) AS unique_remaining,
			   (SELECT count(*) FROM promo_likes l WHERE l.promo_id = p.id) AS like_count,
			   (SELECT count(*) FROM promo_comments m WHERE m.promo_id = p.id) AS comment_count`

// userFlagsSelect expects the user id as $1.
const userFlagsSelect = `,
			   EXISTS(SELECT 1 FROM promo_likes l WHERE l.promo_id = p.id AND l.user_id = $1) AS liked,
			   EXISTS(SELECT 1 FROM promo_activations a WHERE a.promo_id = p.id AND a.user_id = $1) AS activated`

// targetMatch expects the user's age as $2 and country as $3.
const targetMatch = `
		(NOT p.has_target OR (
			(p.target_age_from IS NULL OR p.target_age_from <= $2) AND
			(p.target_age_until IS NULL OR p.target_age_until >= $2) AND
			(p.target_country IS NULL OR lower(p.target_country) = lower($3))))`

// windowMatch expects the current day as $2.
const windowMatch = `
		(p.active_from IS NULL OR p.active_from <= $2) AND
		(p.active_until IS NULL OR p.active_until >= $2)`

// Create inserts the promo and, for UNIQUE promos, its code pool.
func (r *PromoRepository) Create(ctx context.Context, p *domain.Promo) (err error) {
	ctx, end := database.TraceQuery(ctx, "CreatePromo", "INSERT INTO promos")
	defer func() { end(err) }()

	return database.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		query := `
			INSERT INTO promos (
				id, company_id, description, image_url,
				has_target, target_age_from, target_age_until, target_country, target_categories,
				max_count, used_count, active_from, active_until, mode, promo_common, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

		t := targetColumnsOf(p.Target)
		_, err := tx.Exec(ctx, query,
			p.ID,
			p.CompanyID,
			p.Description,
			p.ImageURL,
			t.has,
			t.ageFrom,
			t.ageUntil,
			t.country,
			t.categories,
			p.MaxCount,
			p.UsedCount,
			p.ActiveFrom,
			p.ActiveUntil,
			p.Mode,
			p.PromoCommon,
			p.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert promo: %w", err)
		}

		if len(p.UniqueValues) == 0 {
			return nil
		}

		rows := make([][]any, len(p.UniqueValues))
		for i, v := range p.UniqueValues {
			rows[i] = []any{v.ID, p.ID, v.Value, v.IsUsed, i}
		}
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"promo_unique_values"},
			[]string{"id", "promo_id", "value", "is_used", "position"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			if database.IsUniqueViolation(err) {
				return apperrors.InvalidInput("promo_unique must not contain duplicates")
			}
			return fmt.Errorf("insert unique values: %w", err)
		}
		return nil
	})
}

// GetByID retrieves a promo and its unique pool.
func (r *PromoRepository) GetByID(ctx context.Context, id string) (_ *domain.Promo, err error) {
	ctx, end := database.TraceQuery(ctx, "GetPromo", "SELECT promos by id")
	defer func() { end(err) }()

	return r.getByID(ctx, r.pool, id)
}

func (r *PromoRepository) getByID(ctx context.Context, q querier, id string) (*domain.Promo, error) {
	query := promoSelect + `
		FROM promos p
		JOIN companies c ON c.id = p.company_id
		WHERE p.id = $1`

	p, err := scanPromo(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("promo", id)
		}
		return nil, fmt.Errorf("get promo: %w", err)
	}

	if p.Mode == domain.PromoModeUnique {
		if p.UniqueValues, err = loadUniqueValues(ctx, q, id); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Patch locks the promo row for the read-modify-write so it serializes with
// concurrent activations and patches of the same promo.
func (r *PromoRepository) Patch(
	ctx context.Context,
	id string,
	patch repository.PromoPatch,
	check func(*domain.Promo) error,
) (_ *domain.Promo, err error) {
	ctx, end := database.TraceQuery(ctx, "PatchPromo", "UPDATE promos")
	defer func() { end(err) }()

	var updated *domain.Promo
	err = database.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		var locked string
		err := tx.QueryRow(ctx, `SELECT id FROM promos WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NotFound("promo", id)
			}
			return fmt.Errorf("lock promo: %w", err)
		}

		p, err := r.getByID(ctx, tx, id)
		if err != nil {
			return err
		}
		patch.Apply(p)
		if check != nil {
			if err := check(p); err != nil {
				return err
			}
		}

		query := `
			UPDATE promos
			SET description = $1, image_url = $2,
			    has_target = $3, target_age_from = $4, target_age_until = $5,
			    target_country = $6, target_categories = $7,
			    max_count = $8, active_from = $9, active_until = $10
			WHERE id = $11`

		t := targetColumnsOf(p.Target)
		if _, err := tx.Exec(ctx, query,
			p.Description,
			p.ImageURL,
			t.has,
			t.ageFrom,
			t.ageUntil,
			t.country,
			t.categories,
			p.MaxCount,
			p.ActiveFrom,
			p.ActiveUntil,
			p.ID,
		); err != nil {
			return fmt.Errorf("update promo: %w", err)
		}

		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ListByCompany returns the company's promos with the total count.
func (r *PromoRepository) ListByCompany(
	ctx context.Context,
	companyID string,
	filter repository.CompanyPromoFilter,
) (_ []domain.Promo, _ int, err error) {
	ctx, end := database.TraceQuery(ctx, "ListCompanyPromos", "SELECT promos by company")
	defer func() { end(err) }()

	args := []any{companyID}
	where := "WHERE p.company_id = $1"

	if len(filter.Countries) > 0 {
		countries := make([]string, len(filter.Countries))
		for i, c := range filter.Countries {
			countries[i] = strings.ToLower(c)
		}
		args = append(args, countries)
		where += fmt.Sprintf(" AND (p.target_country IS NULL OR lower(p.target_country) = ANY($%d))", len(args))
	}

	var orderBy string
	switch filter.SortBy {
	case repository.SortByActiveFrom:
		orderBy = "COALESCE(p.active_from, '-infinity'::date) DESC, p.created_at DESC"
	case repository.SortByActiveUntil:
		orderBy = "COALESCE(p.active_until, 'infinity'::date) DESC, p.created_at DESC"
	default:
		orderBy = "p.created_at DESC"
	}

	base := promoSelect + `,
			   count(*) OVER() AS total_count
		FROM promos p
		JOIN companies c ON c.id = p.company_id
		` + where
	query := fmt.Sprintf(`%s
		ORDER BY %s
		LIMIT $%d OFFSET $%d`,
		base, orderBy, len(args)+1, len(args)+2,
	)

	rows, err := r.pool.Query(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list company promos: %w", err)
	}
	defer rows.Close()

	var (
		promos     []domain.Promo
		totalCount int
	)
	for rows.Next() {
		p, err := scanPromo(rows, &totalCount)
		if err != nil {
			return nil, 0, fmt.Errorf("scan promo row: %w", err)
		}
		promos = append(promos, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate promo rows: %w", err)
	}
	if totalCount, err = pageTotal(ctx, r.pool, len(promos), totalCount, filter.Limit, filter.Offset, base, args...); err != nil {
		return nil, 0, err
	}

	// The owner's view lists the whole pool.
	for i := range promos {
		if promos[i].Mode != domain.PromoModeUnique {
			continue
		}
		if promos[i].UniqueValues, err = loadUniqueValues(ctx, r.pool, promos[i].ID); err != nil {
			return nil, 0, err
		}
	}

	if promos == nil {
		promos = []domain.Promo{}
	}
	return promos, totalCount, nil
}

// GetForUser returns the promo when the user passes its targeting.
func (r *PromoRepository) GetForUser(ctx context.Context, id, userID string, age int, country string) (_ *repository.UserPromo, err error) {
	ctx, end := database.TraceQuery(ctx, "GetPromoForUser", "SELECT promos targeted by id")
	defer func() { end(err) }()

	query := promoSelect + userFlagsSelect + `
		FROM promos p
		JOIN companies c ON c.id = p.company_id
		WHERE p.id = $4 AND` + targetMatch

	up, err := scanUserPromo(r.pool.QueryRow(ctx, query, userID, age, country, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("promo", id)
		}
		return nil, fmt.Errorf("get promo for user: %w", err)
	}
	return up, nil
}

// ListFeed returns the promos targeted at the user, newest first.
func (r *PromoRepository) ListFeed(ctx context.Context, f repository.FeedFilter) (promos []repository.UserPromo, total int, err error) {
	ctx, end := database.TraceQuery(ctx, "ListFeed", "SELECT promos feed")
	defer func() { end(err) }()

	args := []any{f.UserID, f.Age, f.Country}
	where := "WHERE" + targetMatch

	if f.Category != nil {
		args = append(args, *f.Category)
		where += fmt.Sprintf(`
		AND EXISTS(SELECT 1 FROM unnest(p.target_categories) AS cat WHERE lower(cat) = lower($%d))`, len(args))
	}
	if f.Active != nil {
		args = append(args, domain.Date(f.Today))
		n := len(args)
		active := fmt.Sprintf(`(
			(p.active_from IS NULL OR p.active_from <= $%d) AND
			(p.active_until IS NULL OR p.active_until >= $%d) AND (
				(p.mode = 'COMMON' AND p.used_count < p.max_count) OR
				(p.mode = 'UNIQUE' AND EXISTS(SELECT 1 FROM promo_unique_values v WHERE v.promo_id = p.id AND NOT v.is_used))))`, n, n)
		if *f.Active {
			where += " AND " + active
		} else {
			where += " AND NOT " + active
		}
	}

	base := promoSelect + userFlagsSelect + `,
			   count(*) OVER() AS total_count
		FROM promos p
		JOIN companies c ON c.id = p.company_id
		` + where

	return r.listUserPromos(ctx, "list feed", base, "p.created_at DESC", f.Limit, f.Offset, args...)
}

// ListActivated returns one entry per activation of the user.
func (r *PromoRepository) ListActivated(ctx context.Context, userID string, limit, offset int) (_ []repository.UserPromo, _ int, err error) {
	ctx, end := database.TraceQuery(ctx, "ListActivatedPromos", "SELECT promo_activations by user")
	defer func() { end(err) }()

	base := promoSelect + userFlagsSelect + `,
			   count(*) OVER() AS total_count
		FROM promo_activations act
		JOIN promos p ON p.id = act.promo_id
		JOIN companies c ON c.id = p.company_id
		WHERE act.user_id = $1`

	return r.listUserPromos(ctx, "list activated promos", base, "act.activated_at DESC", limit, offset, userID)
}

// listUserPromos pages base, whose WHERE clause uses args, in the given order.
func (r *PromoRepository) listUserPromos(
	ctx context.Context,
	what, base, orderBy string,
	limit, offset int,
	args ...any,
) ([]repository.UserPromo, int, error) {
	query := fmt.Sprintf(`%s
		ORDER BY %s
		LIMIT $%d OFFSET $%d`,
		base, orderBy, len(args)+1, len(args)+2,
	)
	rows, err := r.pool.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", what, err)
	}
	defer rows.Close()

	var (
		promos     []repository.UserPromo
		totalCount int
	)
	for rows.Next() {
		up, err := scanUserPromo(rows, &totalCount)
		if err != nil {
			return nil, 0, fmt.Errorf("scan promo row: %w", err)
		}
		promos = append(promos, *up)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate promo rows: %w", err)
	}
	if totalCount, err = pageTotal(ctx, r.pool, len(promos), totalCount, limit, offset, base, args...); err != nil {
		return nil, 0, err
	}

	if promos == nil {
		promos = []repository.UserPromo{}
	}
	return promos, totalCount, nil
}

const (
	issueCommonSQL = `
		UPDATE promos p
		SET used_count = used_count + 1
		WHERE p.id = $1 AND p.used_count < p.max_count AND` + windowMatch

	uniqueInWindowSQL = `
		SELECT true
		FROM promos p
		WHERE p.id = $1 AND` + windowMatch

	pickUniqueSQL = `
		SELECT id, value
		FROM promo_unique_values
		WHERE promo_id = $1 AND NOT is_used
		ORDER BY position
		LIMIT 1
		FOR UPDATE SKIP LOCKED`

	flipUniqueSQL = `UPDATE promo_unique_values SET is_used = true WHERE id = $1 AND NOT is_used`

	insertActivationSQL = `
		INSERT INTO promo_activations (id, user_id, promo_id, code, activated_at)
		VALUES ($1, $2, $3, $4, $5)`
)

var errExhausted = apperrors.AccessDenied("promo is not active")

// Issue hands out a code and records the activation in one transaction.
// COMMON promos use a conditional increment; UNIQUE promos claim the next
// free pool value with SKIP LOCKED so concurrent callers never block on or
// receive the same row. used_count is a COMMON counter only.
func (r *PromoRepository) Issue(ctx context.Context, a *domain.Activation, today time.Time) (err error) {
	ctx, end := database.TraceQuery(ctx, "IssueCode", "UPDATE promos used_count")
	defer func() { end(err) }()

	day := domain.Date(today)
	return database.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		var (
			mode   string
			common *string
		)
		err := tx.QueryRow(ctx, `SELECT mode, promo_common FROM promos WHERE id = $1`, a.PromoID).Scan(&mode, &common)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NotFound("promo", a.PromoID)
			}
			return fmt.Errorf("load promo mode: %w", err)
		}

		switch mode {
		case domain.PromoModeCommon:
			ct, err := tx.Exec(ctx, issueCommonSQL, a.PromoID, day)
			if err != nil {
				return fmt.Errorf("increment used_count: %w", err)
			}
			if ct.RowsAffected() == 0 || common == nil {
				return errExhausted
			}
			a.Code = *common

		case domain.PromoModeUnique:
			var inWindow bool
			if err := tx.QueryRow(ctx, uniqueInWindowSQL, a.PromoID, day).Scan(&inWindow); err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return errExhausted
				}
				return fmt.Errorf("check promo window: %w", err)
			}

			var valueID string
			err := tx.QueryRow(ctx, pickUniqueSQL, a.PromoID).Scan(&valueID, &a.Code)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return errExhausted
				}
				return fmt.Errorf("pick unique value: %w", err)
			}
			ct, err := tx.Exec(ctx, flipUniqueSQL, valueID)
			if err != nil {
				return fmt.Errorf("mark unique value used: %w", err)
			}
			if ct.RowsAffected() == 0 {
				return errExhausted
			}

		default:
			return errExhausted
		}

		if _, err := tx.Exec(ctx, insertActivationSQL, a.ID, a.UserID, a.PromoID, a.Code, a.ActivatedAt); err != nil {
			return fmt.Errorf("insert activation: %w", err)
		}
		return nil
	})
}

// CountActivationsByCountry groups the promo's activations by user country.
func (r *PromoRepository) CountActivationsByCountry(ctx context.Context, promoID string) (_ map[string]int, err error) {
	ctx, end := database.TraceQuery(ctx, "CountActivationsByCountry", "SELECT promo_activations by country")
	defer func() { end(err) }()

	query := `
		SELECT lower(u.country), count(*)
		FROM promo_activations a
		JOIN users u ON u.id = a.user_id
		WHERE a.promo_id = $1
		GROUP BY lower(u.country)`

	rows, err := r.pool.Query(ctx, query, promoID)
	if err != nil {
		return nil, fmt.Errorf("count activations: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			country string
			n       int
		)
		if err := rows.Scan(&country, &n); err != nil {
			return nil, fmt.Errorf("scan activation count: %w", err)
		}
		counts[country] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activation counts: %w", err)
	}
	return counts, nil
}

// ---------------------------------------------------------------------------
// scanning helpers
// ---------------------------------------------------------------------------

// pageTotal returns how many rows base matches. The count(*) OVER() column
// of a page only carries it when the page has rows, so an empty page is
// counted again unless it is the first page of a positive limit, where the
// total is known to be zero.
func pageTotal(ctx context.Context, q querier, pageLen, windowTotal, limit, offset int, base string, args ...any) (int, error) {
	if pageLen > 0 || (limit > 0 && offset == 0) {
		return windowTotal, nil
	}
	var total int
	if err := q.QueryRow(ctx, `SELECT count(*) FROM (`+base+`) matched`, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count matching rows: %w", err)
	}
	return total, nil
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type targetColumns struct {
	has        bool
	ageFrom    *int
	ageUntil   *int
	country    *string
	categories []string
}

func targetColumnsOf(t *domain.Target) targetColumns {
	if t == nil {
		return targetColumns{categories: []string{}}
	}
	cols := targetColumns{
		has:        true,
		ageFrom:    t.AgeFrom,
		ageUntil:   t.AgeUntil,
		country:    t.Country,
		categories: t.Categories,
	}
	if cols.categories == nil {
		cols.categories = []string{}
	}
	return cols
}

// promoDest returns scan destinations for the promoSelect columns.
func promoDest(p *domain.Promo, t *targetColumns) []any {
	return []any{
		&p.ID,
		&p.CompanyID,
		&p.CompanyName,
		&p.Description,
		&p.ImageURL,
		&t.has,
		&t.ageFrom,
		&t.ageUntil,
		&t.country,
		&t.categories,
		&p.MaxCount,
		&p.UsedCount,
		&p.ActiveFrom,
		&p.ActiveUntil,
		&p.Mode,
		&p.PromoCommon,
		&p.CreatedAt,
		&p.UniqueRemaining,
		&p.LikeCount,
		&p.CommentCount,
	}
}

func (t targetColumns) target() *domain.Target {
	if !t.has {
		return nil
	}
	target := &domain.Target{
		AgeFrom:  t.ageFrom,
		AgeUntil: t.ageUntil,
		Country:  t.country,
	}
	if len(t.categories) > 0 {
		target.Categories = t.categories
	}
	return target
}

func scanPromo(row pgx.Row, extra ...any) (*domain.Promo, error) {
	var (
		p domain.Promo
		t targetColumns
	)
	if err := row.Scan(append(promoDest(&p, &t), extra...)...); err != nil {
		return nil, err
	}
	p.Target = t.target()
	return &p, nil
}

func scanUserPromo(row pgx.Row, extra ...any) (*repository.UserPromo, error) {
	var (
		up repository.UserPromo
		t  targetColumns
	)
	dest := append(promoDest(&up.Promo, &t), &up.Flags.Liked, &up.Flags.Activated)
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	up.Promo.Target = t.target()
	return &up, nil
}

func loadUniqueValues(ctx context.Context, q querier, promoID string) ([]domain.UniqueValue, error) {
	rows, err := q.Query(ctx, `
		SELECT id, value, is_used
		FROM promo_unique_values
		WHERE promo_id = $1
		ORDER BY position`, promoID)
	if err != nil {
		return nil, fmt.Errorf("load unique values: %w", err)
	}
	defer rows.Close()

	var values []domain.UniqueValue
	for rows.Next() {
		v := domain.UniqueValue{PromoID: promoID}
		if err := rows.Scan(&v.ID, &v.Value, &v.IsUsed); err != nil {
			return nil, fmt.Errorf("scan unique value: %w", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unique values: %w", err)
	}
	return values, nil
}
