package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/angelmondragon/wardrobe-backend/pkg/config"
	"github.com/angelmondragon/wardrobe-backend/pkg/db/models"
	"github.com/angelmondragon/wardrobe-backend/pkg/enums"
	"github.com/angelmondragon/wardrobe-backend/pkg/outbox"
	"github.com/angelmondragon/wardrobe-backend/pkg/outbox/payloads"
)

// EventDescriptor is the routing and schema for one event type.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// NonRetryableError marks a row that will never publish, however often it is
// retried.
type NonRetryableError struct {
	Err error
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func permanent(format string, args ...any) error {
	return NonRetryableError{Err: fmt.Errorf(format, args...)}
}

func newOf[T any]() func() any {
	return func() any { return new(T) }
}

type EventRegistry struct {
	byType map[enums.OutboxEventType]EventDescriptor
}

// NewEventRegistry routes every order and cart event to the orders topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.OrdersTopic == "" {
		return nil, errors.New("registry: orders topic is required")
	}
	descriptors := []EventDescriptor{
		{enums.EventOrderPlaced, enums.AggregateOrder, cfg.OrdersTopic, newOf[payloads.OrderPlacedEvent]()},
		{enums.EventCartMerged, enums.AggregateCart, cfg.OrdersTopic, newOf[payloads.CartMergedEvent]()},
	}
	reg := &EventRegistry{byType: make(map[enums.OutboxEventType]EventDescriptor, len(descriptors))}
	for _, d := range descriptors {
		reg.byType[d.EventType] = d
	}
	return reg, nil
}

// Decoders returns version 1 decoders for every registered payload.
func (r *EventRegistry) Decoders() *DecoderRegistry {
	out := NewDecoderRegistry()
	for t, d := range r.byType {
		out.Register(t, 1, JSONDecoder(d.PayloadFactory))
	}
	return out
}

// Resolve checks a stored row against its descriptor and decodes the typed
// payload. Every failure here is permanent.
func (r *EventRegistry) Resolve(row models.OutboxEvent) (*ResolvedEvent, error) {
	d, ok := r.byType[row.EventType]
	switch {
	case !ok:
		return nil, permanent("unsupported event type %s", row.EventType)
	case d.AggregateType != row.AggregateType:
		return nil, permanent("%s belongs to %s aggregates, row has %s", row.EventType, d.AggregateType, row.AggregateType)
	case row.AggregateID <= 0:
		return nil, permanent("%s row has no aggregate id", row.EventType)
	}

	var env outbox.PayloadEnvelope
	if err := json.Unmarshal(row.Payload, &env); err != nil {
		return nil, permanent("decode envelope: %w", err)
	}
	if data := bytes.TrimSpace(env.Data); len(data) == 0 || string(data) == "null" {
		return nil, permanent("%s row has an empty payload", row.EventType)
	}
	payload := d.PayloadFactory()
	if err := json.Unmarshal(env.Data, payload); err != nil {
		return nil, permanent("decode %s payload: %w", row.EventType, err)
	}
	return &ResolvedEvent{Descriptor: d, Envelope: env, Payload: payload}, nil
}
