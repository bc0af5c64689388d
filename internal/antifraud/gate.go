package antifraud

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/utafrali/promocode/internal/domain"
	"github.com/utafrali/promocode/internal/repository"
	apperrors "github.com/utafrali/promocode/pkg/errors"
)

// Outcomes recorded in promocode_antifraud_requests_total.
const (
	ResultCacheHit = "cache_hit"
	ResultAllow    = "allow"
	ResultDeny     = "deny"
	ResultError    = "error"
)

var requestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "promocode_antifraud_requests_total",
		Help: "Anti-fraud gate decisions by result",
	},
	[]string{"result"},
)

// Checker obtains a fresh decision from the anti-fraud service.
type Checker interface {
	Check(ctx context.Context, userEmail, promoID string) (domain.FraudDecision, error)
}

// Gate decides whether a user may activate a promo, consulting the per-user
// decision cache before the remote service. It fails closed.
type Gate struct {
	checker Checker
	cache   repository.FraudDecisionCache
	logger  *slog.Logger
	now     func() time.Time
}

// NewGate creates an anti-fraud gate.
func NewGate(checker Checker, cache repository.FraudDecisionCache, logger *slog.Logger) *Gate {
	return &Gate{
		checker: checker,
		cache:   cache,
		logger:  logger,
		now:     time.Now,
	}
}

var errDenied = apperrors.AccessDenied("activation rejected by anti-fraud check")

// Allow returns nil when the user passes the gate and an AccessDenied error
// otherwise, including when no decision could be obtained.
func (g *Gate) Allow(ctx context.Context, user *domain.User, promoID string) error {
	if d, ok := g.cached(ctx, user.ID); ok {
		requestsTotal.WithLabelValues(ResultCacheHit).Inc()
		if !d.OK {
			return errDenied
		}
		return nil
	}

	d, err := g.checker.Check(ctx, user.Email, promoID)
	if err != nil {
		requestsTotal.WithLabelValues(ResultError).Inc()
		g.logger.WarnContext(ctx, "antifraud check failed, denying",
			slog.String("promo_id", promoID),
			slog.String("error", err.Error()),
		)
		return errDenied
	}

	if ttl, ok := d.CacheTTL(g.now()); ok {
		if err := g.cache.Put(ctx, user.ID, d, ttl); err != nil {
			g.logger.WarnContext(ctx, "failed to cache antifraud decision",
				slog.String("error", err.Error()),
			)
		}
	}

	if !d.OK {
		requestsTotal.WithLabelValues(ResultDeny).Inc()
		return errDenied
	}
	requestsTotal.WithLabelValues(ResultAllow).Inc()
	return nil
}

func (g *Gate) cached(ctx context.Context, userID string) (domain.FraudDecision, bool) {
	d, ok, err := g.cache.Get(ctx, userID)
	if err != nil {
		g.logger.WarnContext(ctx, "antifraud cache read failed",
			slog.String("error", err.Error()),
		)
		return domain.FraudDecision{}, false
	}
	if !ok {
		return domain.FraudDecision{}, false
	}
	if _, fresh := d.CacheTTL(g.now()); !fresh {
		return domain.FraudDecision{}, false
	}
	return d, true
}
