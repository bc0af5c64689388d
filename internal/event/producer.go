package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/utafrali/promocode/internal/domain"
	pkgkafka "github.com/utafrali/promocode/pkg/kafka"
	"github.com/utafrali/promocode/pkg/logger"
)

// Kafka topics for promo domain events.
var (
	TopicPromoCreated   = pkgkafka.Topic("promo", "created")
	TopicPromoUpdated   = pkgkafka.Topic("promo", "updated")
	TopicPromoActivated = pkgkafka.Topic("promo", "activated")
)

// AggregateTypePromo is the aggregate type of every event published here.
const AggregateTypePromo = "promo"

// SourcePromocode identifies events originating from this service.
const SourcePromocode = "promocode"

// PromoData is the payload for promo.created and promo.updated events.
type PromoData struct {
	PromoID     string     `json:"promo_id"`
	CompanyID   string     `json:"company_id"`
	Mode        string     `json:"mode"`
	MaxCount    int        `json:"max_count"`
	UsedCount   int        `json:"used_count"`
	ActiveFrom  *time.Time `json:"active_from,omitempty"`
	ActiveUntil *time.Time `json:"active_until,omitempty"`
}

// ActivationData is the payload for a promo.activated event. The issued code
// is not included.
type ActivationData struct {
	ActivationID string    `json:"activation_id"`
	PromoID      string    `json:"promo_id"`
	UserID       string    `json:"user_id"`
	ActivatedAt  time.Time `json:"activated_at"`
}

// Publisher is the kafka producer surface used for domain events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes promo domain events to Kafka.
type Producer struct {
	kafka  Publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer. A nil publisher turns every
// publish into a no-op.
func NewProducer(kafka Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

func promoData(p *domain.Promo) PromoData {
	return PromoData{
		PromoID:     p.ID,
		CompanyID:   p.CompanyID,
		Mode:        p.Mode,
		MaxCount:    p.MaxCount,
		UsedCount:   p.UsedCount,
		ActiveFrom:  p.ActiveFrom,
		ActiveUntil: p.ActiveUntil,
	}
}

// PublishPromoCreated publishes a promo.created event.
func (p *Producer) PublishPromoCreated(ctx context.Context, promo *domain.Promo) error {
	return p.publish(ctx, TopicPromoCreated, promo.ID, promoData(promo))
}

// PublishPromoUpdated publishes a promo.updated event.
func (p *Producer) PublishPromoUpdated(ctx context.Context, promo *domain.Promo) error {
	return p.publish(ctx, TopicPromoUpdated, promo.ID, promoData(promo))
}

// PublishPromoActivated publishes a promo.activated event.
func (p *Producer) PublishPromoActivated(ctx context.Context, a *domain.Activation) error {
	return p.publish(ctx, TopicPromoActivated, a.PromoID, ActivationData{
		ActivationID: a.ID,
		PromoID:      a.PromoID,
		UserID:       a.UserID,
		ActivatedAt:  a.ActivatedAt,
	})
}

func (p *Producer) publish(ctx context.Context, topic, promoID string, data any) error {
	if p == nil || p.kafka == nil {
		return nil
	}

	event, err := pkgkafka.NewEvent(topic, promoID, AggregateTypePromo, SourcePromocode, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.RequestIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("promo_id", promoID),
	)
	return nil
}
