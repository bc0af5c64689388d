package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/utafrali/promocode/internal/domain"
	"github.com/utafrali/promocode/internal/repository"
	apperrors "github.com/utafrali/promocode/pkg/errors"
)

// Store is an in-process implementation of every promo-platform repository.
// All state sits behind one RWMutex, so activations and patches of the same
// promo serialize exactly like they do on a locked Postgres row.
type Store struct {
	mu sync.RWMutex

	companies map[string]domain.Company
	users     map[string]domain.User

	promos     map[string]*domain.Promo
	promoOrder []string

	activations []domain.Activation
	likes       map[likeKey]struct{}
	comments    map[string]domain.Comment
}

type likeKey struct {
	userID  string
	promoID string
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		companies: make(map[string]domain.Company),
		users:     make(map[string]domain.User),
		promos:    make(map[string]*domain.Promo),
		likes:     make(map[likeKey]struct{}),
		comments:  make(map[string]domain.Comment),
	}
}

// Companies returns the company repository view of the store.
func (s *Store) Companies() *CompanyRepository { return &CompanyRepository{s: s} }

// Users returns the user repository view of the store.
func (s *Store) Users() *UserRepository { return &UserRepository{s: s} }

// Promos returns the promo repository view of the store.
func (s *Store) Promos() *PromoRepository { return &PromoRepository{s: s} }

// Social returns the likes and comments repository view of the store.
func (s *Store) Social() *SocialRepository { return &SocialRepository{s: s} }

// ---------------------------------------------------------------------------
// companies
// ---------------------------------------------------------------------------

// CompanyRepository implements repository.CompanyRepository in memory.
type CompanyRepository struct{ s *Store }

// Create stores a company; emails are unique.
func (r *CompanyRepository) Create(_ context.Context, c *domain.Company) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.companies {
		if existing.Email == c.Email {
			return apperrors.AlreadyExists("company", "email", c.Email)
		}
	}
	r.s.companies[c.ID] = *c
	return nil
}

// GetByID retrieves a company by its ID.
func (r *CompanyRepository) GetByID(_ context.Context, id string) (*domain.Company, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.companies[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &c, nil
}

// GetByEmail retrieves a company by its email.
func (r *CompanyRepository) GetByEmail(_ context.Context, email string) (*domain.Company, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, c := range r.s.companies {
		if c.Email == email {
			return &c, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

// ---------------------------------------------------------------------------
// users
// ---------------------------------------------------------------------------

// UserRepository implements repository.UserRepository in memory.
type UserRepository struct{ s *Store }

// Create stores a user; emails are unique.
func (r *UserRepository) Create(_ context.Context, u *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.users {
		if existing.Email == u.Email {
			return apperrors.AlreadyExists("user", "email", u.Email)
		}
	}
	r.s.users[u.ID] = *u
	return nil
}

// GetByID retrieves a user by its ID.
func (r *UserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &u, nil
}

// GetByEmail retrieves a user by its email.
func (r *UserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

// Update overwrites the profile fields of a user.
func (r *UserRepository) Update(_ context.Context, u *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.users[u.ID]
	if !ok {
		return apperrors.NotFound("user", u.ID)
	}
	existing.Name = u.Name
	existing.Surname = u.Surname
	existing.AvatarURL = u.AvatarURL
	existing.PasswordHash = u.PasswordHash
	r.s.users[u.ID] = existing
	return nil
}

// ---------------------------------------------------------------------------
// promos
// ---------------------------------------------------------------------------

// PromoRepository implements repository.PromoRepository in memory.
type PromoRepository struct{ s *Store }

// Create stores the promo together with its pool.
func (r *PromoRepository) Create(_ context.Context, p *domain.Promo) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.promos[p.ID]; ok {
		return apperrors.AlreadyExists("promo", "id", p.ID)
	}
	seen := make(map[string]struct{}, len(p.UniqueValues))
	for _, v := range p.UniqueValues {
		if _, dup := seen[v.Value]; dup {
			return apperrors.InvalidInput("promo_unique must not contain duplicates")
		}
		seen[v.Value] = struct{}{}
	}

	stored := clonePromo(p)
	stored.LikeCount, stored.CommentCount, stored.UniqueRemaining = 0, 0, 0
	r.s.promos[p.ID] = stored
	r.s.promoOrder = append(r.s.promoOrder, p.ID)
	return nil
}

// GetByID retrieves a promo and its pool.
func (r *PromoRepository) GetByID(_ context.Context, id string) (*domain.Promo, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.promos[id]
	if !ok {
		return nil, apperrors.NotFound("promo", id)
	}
	return r.s.snapshot(p), nil
}

// Patch applies the patch under the store lock.
func (r *PromoRepository) Patch(
	_ context.Context,
	id string,
	patch repository.PromoPatch,
	check func(*domain.Promo) error,
) (*domain.Promo, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.promos[id]
	if !ok {
		return nil, apperrors.NotFound("promo", id)
	}

	candidate := r.s.snapshot(stored)
	patch.Apply(candidate)
	if check != nil {
		if err := check(candidate); err != nil {
			return nil, err
		}
	}

	stored.Description = candidate.Description
	stored.ImageURL = candidate.ImageURL
	stored.Target = cloneTarget(candidate.Target)
	stored.MaxCount = candidate.MaxCount
	stored.ActiveFrom = candidate.ActiveFrom
	stored.ActiveUntil = candidate.ActiveUntil
	return r.s.snapshot(stored), nil
}

// ListByCompany returns the company's promos with the total count.
func (r *PromoRepository) ListByCompany(
	_ context.Context,
	companyID string,
	filter repository.CompanyPromoFilter,
) ([]domain.Promo, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var matched []*domain.Promo
	for _, p := range r.s.newestFirst() {
		if p.CompanyID != companyID {
			continue
		}
		if len(filter.Countries) > 0 && !countryAllowed(p.Target, filter.Countries) {
			continue
		}
		matched = append(matched, p)
	}

	switch filter.SortBy {
	case repository.SortByActiveFrom:
		sort.SliceStable(matched, func(i, j int) bool {
			return dateOr(matched[i].ActiveFrom, time.Time{}).After(dateOr(matched[j].ActiveFrom, time.Time{}))
		})
	case repository.SortByActiveUntil:
		sort.SliceStable(matched, func(i, j int) bool {
			return dateOr(matched[i].ActiveUntil, maxDate).After(dateOr(matched[j].ActiveUntil, maxDate))
		})
	}

	total := len(matched)
	lo, hi := window(total, filter.Limit, filter.Offset)
	promos := make([]domain.Promo, 0, hi-lo)
	for _, p := range matched[lo:hi] {
		promos = append(promos, *r.s.snapshot(p))
	}
	return promos, total, nil
}

// GetForUser returns the promo when the user passes its targeting.
func (r *PromoRepository) GetForUser(_ context.Context, id, userID string, age int, country string) (*repository.UserPromo, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.promos[id]
	if !ok || !p.Target.Matches(age, country) {
		return nil, apperrors.NotFound("promo", id)
	}
	return r.s.userPromo(p, userID), nil
}

// ListFeed returns the promos targeted at the user, newest first.
func (r *PromoRepository) ListFeed(_ context.Context, f repository.FeedFilter) ([]repository.UserPromo, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var matched []*domain.Promo
	for _, p := range r.s.newestFirst() {
		if !p.Target.Matches(f.Age, f.Country) {
			continue
		}
		if f.Category != nil && !p.Target.HasCategory(*f.Category) {
			continue
		}
		if f.Active != nil && r.s.snapshot(p).IsActive(f.Today) != *f.Active {
			continue
		}
		matched = append(matched, p)
	}

	total := len(matched)
	lo, hi := window(total, f.Limit, f.Offset)
	items := make([]repository.UserPromo, 0, hi-lo)
	for _, p := range matched[lo:hi] {
		items = append(items, *r.s.userPromo(p, f.UserID))
	}
	return items, total, nil
}

// ListActivated returns one entry per activation of the user, newest first.
func (r *PromoRepository) ListActivated(_ context.Context, userID string, limit, offset int) ([]repository.UserPromo, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var mine []domain.Activation
	for _, a := range r.s.activations {
		if a.UserID == userID {
			mine = append(mine, a)
		}
	}
	sort.SliceStable(mine, func(i, j int) bool {
		return mine[i].ActivatedAt.After(mine[j].ActivatedAt)
	})

	total := len(mine)
	lo, hi := window(total, limit, offset)
	items := make([]repository.UserPromo, 0, hi-lo)
	for _, a := range mine[lo:hi] {
		if p, ok := r.s.promos[a.PromoID]; ok {
			items = append(items, *r.s.userPromo(p, userID))
		}
	}
	return items, total, nil
}

// Issue hands out a code and records the activation under the store lock.
func (r *PromoRepository) Issue(ctx context.Context, a *domain.Activation, today time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	p, ok := r.s.promos[a.PromoID]
	if !ok {
		return apperrors.NotFound("promo", a.PromoID)
	}
	if !p.InWindow(today) {
		return apperrors.AccessDenied("promo is not active")
	}

	switch p.Mode {
	case domain.PromoModeCommon:
		if p.UsedCount >= p.MaxCount || p.PromoCommon == nil {
			return apperrors.AccessDenied("promo is not active")
		}
		p.UsedCount++
		a.Code = *p.PromoCommon

	case domain.PromoModeUnique:
		idx := -1
		for i := range p.UniqueValues {
			if !p.UniqueValues[i].IsUsed {
				idx = i
				break
			}
		}
		if idx < 0 {
			return apperrors.AccessDenied("promo is not active")
		}
		p.UniqueValues[idx].IsUsed = true
		a.Code = p.UniqueValues[idx].Value

	default:
		return apperrors.AccessDenied("promo is not active")
	}

	r.s.activations = append(r.s.activations, *a)
	return nil
}

// CountActivationsByCountry groups the promo's activations by user country.
func (r *PromoRepository) CountActivationsByCountry(_ context.Context, promoID string) (map[string]int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	counts := make(map[string]int)
	for _, a := range r.s.activations {
		if a.PromoID != promoID {
			continue
		}
		if u, ok := r.s.users[a.UserID]; ok {
			counts[strings.ToLower(u.Country)]++
		}
	}
	return counts, nil
}

// ---------------------------------------------------------------------------
// likes and comments
// ---------------------------------------------------------------------------

// SocialRepository implements repository.SocialRepository in memory.
type SocialRepository struct{ s *Store }

// Like records a like.
func (r *SocialRepository) Like(_ context.Context, userID, promoID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.promos[promoID]; !ok {
		return apperrors.NotFound("promo", promoID)
	}
	r.s.likes[likeKey{userID: userID, promoID: promoID}] = struct{}{}
	return nil
}

// Unlike removes a like if present.
func (r *SocialRepository) Unlike(_ context.Context, userID, promoID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	delete(r.s.likes, likeKey{userID: userID, promoID: promoID})
	return nil
}

// CreateComment stores a comment and fills in its author.
func (r *SocialRepository) CreateComment(_ context.Context, c *domain.Comment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.promos[c.PromoID]; !ok {
		return apperrors.NotFound("promo", c.PromoID)
	}
	u, ok := r.s.users[c.AuthorID]
	if !ok {
		return apperrors.NotFound("user", c.AuthorID)
	}
	c.Author = domain.CommentAuthor{Name: u.Name, Surname: u.Surname, AvatarURL: u.AvatarURL}
	r.s.comments[c.ID] = *c
	return nil
}

// GetComment retrieves a comment of the given promo.
func (r *SocialRepository) GetComment(_ context.Context, promoID, commentID string) (*domain.Comment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.comments[commentID]
	if !ok || c.PromoID != promoID {
		return nil, apperrors.NotFound("comment", commentID)
	}
	r.s.refreshAuthor(&c)
	return &c, nil
}

// UpdateComment overwrites the comment text.
func (r *SocialRepository) UpdateComment(_ context.Context, c *domain.Comment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.comments[c.ID]
	if !ok || existing.PromoID != c.PromoID {
		return apperrors.NotFound("comment", c.ID)
	}
	existing.Text = c.Text
	r.s.comments[c.ID] = existing
	return nil
}

// DeleteComment removes a comment of the given promo.
func (r *SocialRepository) DeleteComment(_ context.Context, promoID, commentID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.comments[commentID]
	if !ok || c.PromoID != promoID {
		return apperrors.NotFound("comment", commentID)
	}
	delete(r.s.comments, commentID)
	return nil
}

// ListComments returns the promo's comments, newest first.
func (r *SocialRepository) ListComments(_ context.Context, promoID string, limit, offset int) ([]domain.Comment, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var matched []domain.Comment
	for _, c := range r.s.comments {
		if c.PromoID == promoID {
			r.s.refreshAuthor(&c)
			matched = append(matched, c)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	lo, hi := window(total, limit, offset)
	return append([]domain.Comment{}, matched[lo:hi]...), total, nil
}

// ---------------------------------------------------------------------------
// helpers; callers hold the lock
// ---------------------------------------------------------------------------

var maxDate = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

// snapshot returns a detached copy of p with the read-model aggregates filled.
func (s *Store) snapshot(p *domain.Promo) *domain.Promo {
	out := clonePromo(p)
	if c, ok := s.companies[p.CompanyID]; ok {
		out.CompanyName = c.Name
	}
	for _, v := range p.UniqueValues {
		if !v.IsUsed {
			out.UniqueRemaining++
		}
	}
	for k := range s.likes {
		if k.promoID == p.ID {
			out.LikeCount++
		}
	}
	for _, c := range s.comments {
		if c.PromoID == p.ID {
			out.CommentCount++
		}
	}
	return out
}

func (s *Store) userPromo(p *domain.Promo, userID string) *repository.UserPromo {
	up := &repository.UserPromo{Promo: *s.snapshot(p)}
	_, up.Flags.Liked = s.likes[likeKey{userID: userID, promoID: p.ID}]
	for _, a := range s.activations {
		if a.UserID == userID && a.PromoID == p.ID {
			up.Flags.Activated = true
			break
		}
	}
	return up
}

func (s *Store) refreshAuthor(c *domain.Comment) {
	if u, ok := s.users[c.AuthorID]; ok {
		c.Author = domain.CommentAuthor{Name: u.Name, Surname: u.Surname, AvatarURL: u.AvatarURL}
	}
}

// newestFirst lists promos by created_at descending, later inserts first on ties.
func (s *Store) newestFirst() []*domain.Promo {
	out := make([]*domain.Promo, 0, len(s.promoOrder))
	for i := len(s.promoOrder) - 1; i >= 0; i-- {
		out = append(out, s.promos[s.promoOrder[i]])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func countryAllowed(t *domain.Target, countries []string) bool {
	if t == nil || t.Country == nil {
		return true
	}
	for _, c := range countries {
		if strings.EqualFold(c, *t.Country) {
			return true
		}
	}
	return false
}

func dateOr(t *time.Time, fallback time.Time) time.Time {
	if t == nil {
		return fallback
	}
	return domain.Date(*t)
}

// window clamps a limit/offset page to [0, total).
func window(total, limit, offset int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := offset + limit
	if limit < 0 || end > total {
		end = total
	}
	return offset, end
}

func clonePromo(p *domain.Promo) *domain.Promo {
	out := *p
	out.Target = cloneTarget(p.Target)
	if p.UniqueValues != nil {
		out.UniqueValues = append([]domain.UniqueValue(nil), p.UniqueValues...)
	}
	return &out
}

func cloneTarget(t *domain.Target) *domain.Target {
	if t == nil {
		return nil
	}
	out := *t
	if t.Categories != nil {
		out.Categories = append([]string(nil), t.Categories...)
	}
	return &out
}
