package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/promocode/internal/domain"
	"github.com/utafrali/promocode/internal/event"
	"github.com/utafrali/promocode/internal/repository"
	apperrors "github.com/utafrali/promocode/pkg/errors"
	"github.com/utafrali/promocode/pkg/tracing"
)

// Outcomes recorded in promocode_activations_total.
const (
	OutcomeIssued       = "issued"
	OutcomeDenied       = "denied"
	OutcomeNotFound     = "not_found"
	OutcomeUnauthorized = "unauthorized"
	OutcomeError        = "error"
)

var activationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "promocode_activations_total",
		Help: "Promo activation attempts by promo mode and outcome",
	},
	[]string{"mode", "outcome"},
)

var errInactive = apperrors.AccessDenied("promo is not active")

// FraudGate decides whether a user may activate a promo. It returns an
// AccessDenied error on deny and fails closed.
type FraudGate interface {
	Allow(ctx context.Context, user *domain.User, promoID string) error
}

// ActivationService redeems promos: targeting, anti-fraud, activity recheck
// and atomic code issuance, in that order.
type ActivationService struct {
	promos repository.PromoRepository
	users  repository.UserRepository
	gate   FraudGate
	events *event.Producer
	logger *slog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// NewActivationService creates a new activation service.
func NewActivationService(
	promos repository.PromoRepository,
	users repository.UserRepository,
	gate FraudGate,
	events *event.Producer,
	logger *slog.Logger,
) *ActivationService {
	return &ActivationService{
		promos: promos,
		users:  users,
		gate:   gate,
		events: events,
		logger: logger,
		tracer: tracing.Tracer("github.com/utafrali/promocode/internal/service"),
		now:    time.Now,
	}
}

// Activate issues a code of the promo to the user and records the
// activation. Promos the user is not targeted by are reported as not found.
// Storage locks are taken only for the issuance itself, after the anti-fraud
// decision is known.
func (s *ActivationService) Activate(ctx context.Context, userID, promoID string) (code string, err error) {
	ctx, span := s.tracer.Start(ctx, "ActivationService.Activate",
		trace.WithAttributes(attribute.String("promo.id", promoID)),
	)
	mode := "unknown"
	defer func() {
		outcome := outcomeOf(err)
		activationsTotal.WithLabelValues(mode, outcome).Inc()
		span.SetAttributes(attribute.String("promo.mode", mode), attribute.String("activation.outcome", outcome))
		if err != nil && outcome == OutcomeError {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	user, err := loadUser(ctx, s.users, userID)
	if err != nil {
		return "", err
	}

	up, err := s.promos.GetForUser(ctx, promoID, user.ID, user.Age, user.Country)
	if err != nil {
		return "", err
	}
	mode = up.Promo.Mode

	if err := s.gate.Allow(ctx, user, promoID); err != nil {
		s.logger.InfoContext(ctx, "activation denied",
			slog.String("promo_id", promoID),
			slog.String("reason", "antifraud"),
		)
		return "", err
	}

	now := s.now()
	if !up.Promo.IsActive(now) {
		s.logger.InfoContext(ctx, "activation denied",
			slog.String("promo_id", promoID),
			slog.String("reason", "inactive"),
		)
		return "", errInactive
	}

	activation := &domain.Activation{
		ID:          uuid.New().String(),
		UserID:      user.ID,
		PromoID:     promoID,
		ActivatedAt: now.UTC(),
	}
	if err := s.promos.Issue(ctx, activation, now); err != nil {
		if errors.Is(err, apperrors.ErrForbidden) {
			s.logger.InfoContext(ctx, "activation denied",
				slog.String("promo_id", promoID),
				slog.String("reason", "exhausted"),
			)
		}
		return "", err
	}

	s.logger.InfoContext(ctx, "activation issued",
		slog.String("promo_id", promoID),
		slog.String("activation_id", activation.ID),
		slog.String("mode", mode),
	)
	if err := s.events.PublishPromoActivated(ctx, activation); err != nil {
		s.logger.WarnContext(ctx, "failed to publish promo.activated event",
			slog.String("promo_id", promoID),
			slog.String("error", err.Error()),
		)
	}
	return activation.Code, nil
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeIssued
	case errors.Is(err, apperrors.ErrForbidden):
		return OutcomeDenied
	case errors.Is(err, apperrors.ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, apperrors.ErrUnauthorized):
		return OutcomeUnauthorized
	default:
		return OutcomeError
	}
}
