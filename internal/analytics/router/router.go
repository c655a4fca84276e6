package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/angelmondragon/wardrobe-backend/internal/analytics/types"
	"github.com/angelmondragon/wardrobe-backend/pkg/enums"
	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
	"github.com/angelmondragon/wardrobe-backend/pkg/outbox/payloads"
)

var ErrUnsupportedEventType = errors.New("unsupported analytics event type")

// Writer accepts the rows produced for each event.
type Writer interface {
	InsertOrderEvent(ctx context.Context, row types.OrderEventRow) error
}

// Handler receives an envelope plus its decoded payload.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope, payload any) error
}

type payloadDecoder interface {
	Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (any, error)
}

// Router decodes envelopes and picks a handler by event type.
type Router struct {
	decoders payloadDecoder
	handlers map[enums.OutboxEventType]Handler
}

// NewRouter installs the row builders for every analytics event. Overrides
// replace a builder for a known event and are ignored otherwise.
func NewRouter(writer Writer, decoders payloadDecoder, logg *logger.Logger, overrides map[enums.OutboxEventType]Handler) (*Router, error) {
	switch {
	case writer == nil:
		return nil, errors.New("router: writer is required")
	case decoders == nil:
		return nil, errors.New("router: decoder registry is required")
	case logg == nil:
		return nil, errors.New("router: logger is required")
	}

	handlers := map[enums.OutboxEventType]Handler{
		enums.EventOrderPlaced: rowSink[payloads.OrderPlacedEvent]{writer: writer, logg: logg, build: orderPlacedRow},
		enums.EventCartMerged:  rowSink[payloads.CartMergedEvent]{writer: writer, logg: logg, build: cartMergedRow},
	}
	for event, custom := range overrides {
		if _, known := handlers[event]; known && custom != nil {
			handlers[event] = custom
		}
	}
	return &Router{decoders: decoders, handlers: handlers}, nil
}

func (r *Router) Handle(ctx context.Context, envelope types.Envelope) error {
	handler, ok := r.handlers[envelope.EventType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedEventType, envelope.EventType)
	}
	if len(envelope.Payload) == 0 {
		return fmt.Errorf("%s: empty payload", envelope.EventType)
	}
	payload, err := r.decoders.Decode(envelope.EventType, max(envelope.Version, 1), envelope.Payload)
	if err != nil {
		return fmt.Errorf("decode %s payload: %w", envelope.EventType, err)
	}
	return handler.Handle(ctx, envelope, payload)
}

// rowSink turns one payload type into an order_events row and writes it.
type rowSink[E any] struct {
	writer Writer
	logg   *logger.Logger
	build  func(types.Envelope, *E) (types.OrderEventRow, error)
}

func (s rowSink[E]) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*E)
	if !ok {
		return fmt.Errorf("%s: unexpected payload %T", envelope.EventType, payload)
	}
	row, err := s.build(envelope, event)
	if err != nil {
		s.logg.Error(ctx, "building order event row", err)
		return err
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"row_event_type": row.EventType,
		"item_count":     row.ItemCount,
	})
	if err := s.writer.InsertOrderEvent(ctx, row); err != nil {
		s.logg.Error(ctx, "inserting order event row", err)
		return err
	}
	s.logg.Debug(ctx, "order event row written")
	return nil
}
