package router

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/wardrobe-backend/internal/analytics/types"
	"github.com/angelmondragon/wardrobe-backend/pkg/config"
	"github.com/angelmondragon/wardrobe-backend/pkg/enums"
	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
	"github.com/angelmondragon/wardrobe-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/wardrobe-backend/pkg/outbox/registry"
)

func TestRouterUnsupportedEvent(t *testing.T) {
	router, _ := newTestRouter(t, nil)
	env := types.Envelope{
		EventType: enums.OutboxEventType("order_shipped"),
		Payload:   []byte(`{"order_id":1}`),
	}
	err := router.Handle(context.Background(), env)
	if !errors.Is(err, ErrUnsupportedEventType) {
		t.Fatalf("expected unsupported error, got %v", err)
	}
}

func TestRouterRejectsEmptyPayload(t *testing.T) {
	router, writer := newTestRouter(t, nil)
	err := router.Handle(context.Background(), types.Envelope{EventType: enums.EventOrderPlaced})
	if err == nil {
		t.Fatal("expected error for empty payload")
	}
	if len(writer.inserted) != 0 {
		t.Fatalf("expected no rows, got %d", len(writer.inserted))
	}
}

func TestRouterRoutesToOverride(t *testing.T) {
	handler := &stubHandler{}
	router, _ := newTestRouter(t, map[enums.OutboxEventType]Handler{
		enums.EventCartMerged: handler,
	})
	env := types.Envelope{
		EventType: enums.EventCartMerged,
		Payload:   mustJSON(t, payloads.CartMergedEvent{GuestCartID: 3, UserCartID: 4, UserID: 9, LinesMerged: 2}),
	}
	if err := router.Handle(context.Background(), env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !handler.called {
		t.Fatalf("handler not invoked")
	}
	if _, ok := handler.payload.(*payloads.CartMergedEvent); !ok {
		t.Fatalf("unexpected payload type %T", handler.payload)
	}
}

func TestOrderPlacedRow(t *testing.T) {
	router, writer := newTestRouter(t, nil)
	placedAt := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	eventID := uuid.NewString()
	env := types.Envelope{
		EventID:    eventID,
		EventType:  enums.EventOrderPlaced,
		Version:    1,
		OccurredAt: placedAt.Add(time.Second),
		Payload: mustJSON(t, payloads.OrderPlacedEvent{
			OrderID:    42,
			Code:       "ORD-1746093600000-7",
			UserID:     7,
			ItemCount:  3,
			TotalCents: 6500,
			PlacedAt:   placedAt,
		}),
	}

	if err := router.Handle(context.Background(), env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(writer.inserted) != 1 {
		t.Fatalf("expected one row, got %d", len(writer.inserted))
	}
	row := writer.inserted[0]
	if row.EventID != eventID || row.EventType != "order_placed" {
		t.Fatalf("unexpected identity %+v", row)
	}
	if row.OrderID == nil || *row.OrderID != 42 {
		t.Fatalf("unexpected order id %v", row.OrderID)
	}
	if row.Code == nil || *row.Code != "ORD-1746093600000-7" {
		t.Fatalf("unexpected code %v", row.Code)
	}
	if row.UserID == nil || *row.UserID != 7 {
		t.Fatalf("unexpected user id %v", row.UserID)
	}
	if row.ItemCount != 3 || row.TotalCents != 6500 {
		t.Fatalf("unexpected totals %d/%d", row.ItemCount, row.TotalCents)
	}
	if !row.OccurredAt.Equal(placedAt) {
		t.Fatalf("expected placed_at as occurred_at, got %v", row.OccurredAt)
	}
	if !row.Payload.Valid {
		t.Fatal("expected payload json")
	}
}

func TestCartMergedRow(t *testing.T) {
	router, writer := newTestRouter(t, nil)
	occurred := time.Date(2025, 5, 2, 9, 0, 0, 0, time.UTC)
	env := types.Envelope{
		EventID:    uuid.NewString(),
		EventType:  enums.EventCartMerged,
		OccurredAt: occurred,
		Payload:    mustJSON(t, payloads.CartMergedEvent{GuestCartID: 3, UserCartID: 4, UserID: 9, LinesMerged: 2}),
	}

	if err := router.Handle(context.Background(), env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	row := writer.inserted[0]
	if row.OrderID != nil || row.Code != nil {
		t.Fatalf("merge rows carry no order, got %+v", row)
	}
	if row.CartID == nil || *row.CartID != 4 {
		t.Fatalf("unexpected cart id %v", row.CartID)
	}
	if row.ItemCount != 2 || row.TotalCents != 0 {
		t.Fatalf("unexpected counts %d/%d", row.ItemCount, row.TotalCents)
	}
	if !row.OccurredAt.Equal(occurred) {
		t.Fatalf("unexpected occurred at %v", row.OccurredAt)
	}
}

func TestOrderEventRowSaveUsesEventIDAsInsertID(t *testing.T) {
	orderID := int64(42)
	row := types.OrderEventRow{EventID: "evt-1", EventType: "order_placed", OrderID: &orderID, TotalCents: 100}
	values, insertID, err := row.Save()
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if insertID != "evt-1" {
		t.Fatalf("unexpected insert id %q", insertID)
	}
	if values["order_id"] != int64(42) {
		t.Fatalf("unexpected order_id %v", values["order_id"])
	}
	if _, ok := values["user_id"]; ok {
		t.Fatal("nil user id should be omitted")
	}
}

func newTestRouter(t *testing.T, overrides map[enums.OutboxEventType]Handler) (*Router, *fakeWriter) {
	t.Helper()
	events, err := registry.NewEventRegistry(config.PubSubConfig{OrdersTopic: "orders-topic"})
	if err != nil {
		t.Fatalf("event registry: %v", err)
	}
	writer := &fakeWriter{}
	router, err := NewRouter(writer, events.Decoders(), logger.Discard(), overrides)
	if err != nil {
		t.Fatalf("construct router: %v", err)
	}
	return router, writer
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

type stubHandler struct {
	called  bool
	payload any
}

func (s *stubHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	s.called = true
	s.payload = payload
	return nil
}

type fakeWriter struct {
	inserted []types.OrderEventRow
}

func (f *fakeWriter) InsertOrderEvent(_ context.Context, row types.OrderEventRow) error {
	f.inserted = append(f.inserted, row)
	return nil
}
