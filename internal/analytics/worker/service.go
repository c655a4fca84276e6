package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/wardrobe-backend/internal/analytics/router"
	"github.com/angelmondragon/wardrobe-backend/internal/analytics/types"
	"github.com/angelmondragon/wardrobe-backend/pkg/enums"
	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
	"github.com/angelmondragon/wardrobe-backend/pkg/outbox"
)

// consumerName scopes idempotency claims so other consumers of the same topic
// keep their own dedupe state.
const consumerName = "analytics"

type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope) error
}

type HandlerFunc func(ctx context.Context, envelope types.Envelope) error

func (fn HandlerFunc) Handle(ctx context.Context, envelope types.Envelope) error {
	return fn(ctx, envelope)
}

type claimStore interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Release(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer reads the orders subscription and hands each event to Handler at
// most once per event id.
type Consumer struct {
	sub     *gcppubsub.Subscriber
	handler Handler
	claims  claimStore
	logg    *logger.Logger
}

func NewConsumer(sub *gcppubsub.Subscriber, handler Handler, claims claimStore, logg *logger.Logger) (*Consumer, error) {
	switch {
	case sub == nil:
		return nil, errors.New("worker: subscription is required")
	case handler == nil:
		return nil, errors.New("worker: handler is required")
	case claims == nil:
		return nil, errors.New("worker: idempotency store is required")
	case logg == nil:
		return nil, errors.New("worker: logger is required")
	}
	return &Consumer{sub: sub, handler: handler, claims: claims, logg: logg}, nil
}

// Run blocks in Receive until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.sub.Receive(ctx, func(ctx context.Context, msg *gcppubsub.Message) {
		if c.consume(ctx, msg) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// consume returns false when the message should be redelivered. Malformed
// and unsupported messages are acked so they do not loop.
func (c *Consumer) consume(ctx context.Context, msg *gcppubsub.Message) bool {
	ctx = c.logg.WithField(ctx, "message_id", msg.ID)

	env, err := decode(msg)
	if err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "dropping malformed analytics message")
		return true
	}
	ctx = c.logg.WithFields(ctx, map[string]any{
		"event_id":       env.EventID,
		"event_type":     env.EventType,
		"aggregate_type": env.AggregateType,
		"aggregate_id":   env.AggregateID,
		"occurred_at":    env.OccurredAt.Format(time.RFC3339Nano),
	})

	id, err := uuid.Parse(env.EventID)
	if err != nil {
		c.logg.Warn(ctx, "dropping analytics message with non-uuid event id")
		return true
	}

	seen, err := c.claims.CheckAndMarkProcessed(ctx, consumerName, id)
	if err != nil {
		c.logg.Error(ctx, "idempotency claim failed", err)
		return false
	}
	if seen {
		c.logg.Info(ctx, "duplicate analytics event skipped")
		return true
	}

	err = c.handler.Handle(ctx, *env)
	switch {
	case err == nil:
		c.logg.Info(ctx, "analytics event recorded")
		return true
	case errors.Is(err, router.ErrUnsupportedEventType):
		c.logg.Warn(ctx, "analytics event type not handled")
		return true
	}

	c.logg.Error(ctx, "analytics handler failed", err)
	if err := c.claims.Release(ctx, consumerName, id); err != nil {
		c.logg.Error(ctx, "releasing idempotency claim failed", err)
	}
	return false
}

// decode combines the stored payload envelope with the routing attributes
// the relay stamps on every message.
func decode(msg *gcppubsub.Message) (*types.Envelope, error) {
	var stored outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &stored); err != nil {
		return nil, fmt.Errorf("payload envelope: %w", err)
	}
	attr := func(key string) string { return strings.TrimSpace(msg.Attributes[key]) }

	eventType, err := enums.ParseOutboxEventType(attr("event_type"))
	if err != nil {
		return nil, fmt.Errorf("event_type: %w", err)
	}
	aggregateType, err := enums.ParseOutboxAggregateType(attr("aggregate_type"))
	if err != nil {
		return nil, fmt.Errorf("aggregate_type: %w", err)
	}
	aggregateID := attr("aggregate_id")
	if aggregateID == "" {
		return nil, errors.New("aggregate_id attribute missing")
	}

	eventID := strings.TrimSpace(stored.EventID)
	if eventID == "" {
		eventID = attr("event_id")
	}
	if eventID == "" {
		return nil, errors.New("event id missing")
	}

	occurredAt := stored.OccurredAt
	if occurredAt.IsZero() {
		// Older rows lack occurred_at in the envelope.
		if ts, err := time.Parse(time.RFC3339Nano, attr("created_at")); err == nil {
			occurredAt = ts
		}
	}

	return &types.Envelope{
		EventID:       eventID,
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Version:       stored.Version,
		OccurredAt:    occurredAt.UTC(),
		Payload:       stored.Data,
	}, nil
}
