package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/wardrobe-backend/pkg/config"
	"github.com/angelmondragon/wardrobe-backend/pkg/db/models"
	"github.com/angelmondragon/wardrobe-backend/pkg/enums"
	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
	"github.com/angelmondragon/wardrobe-backend/pkg/outbox"
	"github.com/angelmondragon/wardrobe-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/wardrobe-backend/pkg/outbox/registry"
)

func TestDrainKeepsGoingAfterSendFailure(t *testing.T) {
	store := &fakeStore{rows: []models.OutboxEvent{orderPlacedRow(t, 1, 0), orderPlacedRow(t, 2, 0)}}
	out := &fakeSender{errs: []error{errors.New("transient"), nil}}
	relay := newTestRelay(t, store, out, &fakeResolver{resolved: orderPlacedResolved()}, 5)

	n, err := relay.drainOnce(context.Background())
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rows drained, got %d", n)
	}
	if len(store.failed) != 1 || store.failed[0] != store.rows[0].ID {
		t.Fatalf("expected first row marked failed, got %v", store.failed)
	}
	if len(store.published) != 1 || store.published[0] != store.rows[1].ID {
		t.Fatalf("expected second row published, got %v", store.published)
	}
}

func TestDrainEmpty(t *testing.T) {
	relay := newTestRelay(t, &fakeStore{}, &fakeSender{}, &fakeResolver{resolved: orderPlacedResolved()}, 5)

	n, err := relay.drainOnce(context.Background())
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected nothing drained, got %d", n)
	}
}

func TestDeliverSetsMessageAttributes(t *testing.T) {
	row := orderPlacedRow(t, 42, 0)
	store := &fakeStore{rows: []models.OutboxEvent{row}}
	out := &fakeSender{}
	relay := newTestRelay(t, store, out, &fakeResolver{resolved: orderPlacedResolved()}, 5)

	if _, err := relay.drainOnce(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(out.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(out.sent))
	}
	attrs := out.sent[0].Attributes
	if attrs["event_type"] != "order_placed" || attrs["aggregate_type"] != "order" || attrs["aggregate_id"] != "42" {
		t.Fatalf("unexpected attributes %+v", attrs)
	}
	if attrs["event_id"] != row.ID.String() {
		t.Fatalf("unexpected event id %q", attrs["event_id"])
	}
	if len(store.published) != 1 {
		t.Fatalf("expected row published, got %d", len(store.published))
	}
}

func TestDrainParksUndecodableRow(t *testing.T) {
	row := orderPlacedRow(t, 1, 0)
	store := &fakeStore{rows: []models.OutboxEvent{row}}
	resolver := &fakeResolver{err: registry.NewNonRetryableError(errors.New("invalid payload"))}
	relay := newTestRelay(t, store, &fakeSender{}, resolver, 5)

	if _, err := relay.drainOnce(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(store.parked) != 1 || store.parked[0] != row.ID {
		t.Fatalf("expected row parked, got %v", store.parked)
	}
	if store.parkedAt != 5 {
		t.Fatalf("expected attempt ceiling 5, got %d", store.parkedAt)
	}
	if len(store.published) != 0 || len(store.failed) != 0 {
		t.Fatal("parked row must not be published or retried")
	}
}

func TestDrainParksAtAttemptCeiling(t *testing.T) {
	row := orderPlacedRow(t, 1, 1)
	store := &fakeStore{rows: []models.OutboxEvent{row}}
	out := &fakeSender{errs: []error{errors.New("transient")}}
	relay := newTestRelay(t, store, out, &fakeResolver{resolved: orderPlacedResolved()}, 2)

	if _, err := relay.drainOnce(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(store.parked) != 1 || store.parked[0] != row.ID {
		t.Fatalf("expected row parked at ceiling, got %v", store.parked)
	}
	if len(store.failed) != 0 {
		t.Fatal("parked row should not also be marked failed")
	}
}

func TestDrainParksUnknownTopic(t *testing.T) {
	store := &fakeStore{rows: []models.OutboxEvent{orderPlacedRow(t, 1, 0)}}
	relay, err := NewRelay(RelayParams{
		Outbox:    config.OutboxConfig{BatchSize: 1, MaxAttempts: 3},
		Logger:    logger.Discard(),
		DB:        &fakeDB{},
		Topics:    &fakeTopics{},
		Store:     store,
		Resolver:  &fakeResolver{resolved: orderPlacedResolved()},
		SenderFor: func(string) sender { return nil },
	})
	if err != nil {
		t.Fatalf("new relay: %v", err)
	}

	if _, err := relay.drainOnce(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(store.parked) != 1 {
		t.Fatalf("expected row parked, got %v", store.parked)
	}
}

func TestPollBackoffDoublesToCeiling(t *testing.T) {
	b := pollBackoff{base: 100 * time.Millisecond, ceiling: time.Second}
	if got := b.fail(); got != 200*time.Millisecond {
		t.Fatalf("unexpected first backoff %v", got)
	}
	for i := 0; i < 5; i++ {
		b.fail()
	}
	if b.cur != time.Second {
		t.Fatalf("expected ceiling, got %v", b.cur)
	}
	b.reset()
	if got := b.fail(); got != 200*time.Millisecond {
		t.Fatalf("expected reset backoff, got %v", got)
	}
	if d := withJitter(b.base); d < b.base || d >= b.base+jitterWindow {
		t.Fatalf("jitter out of window: %v", d)
	}
}

func newTestRelay(t *testing.T, store outboxStore, out sender, resolver eventResolver, maxAttempts int) *Relay {
	t.Helper()
	relay, err := NewRelay(RelayParams{
		Outbox:    config.OutboxConfig{BatchSize: 2, PollIntervalMS: 100, MaxAttempts: maxAttempts},
		Logger:    logger.Discard(),
		DB:        &fakeDB{},
		Topics:    &fakeTopics{},
		Store:     store,
		Resolver:  resolver,
		SenderFor: func(string) sender { return out },
	})
	if err != nil {
		t.Fatalf("new relay: %v", err)
	}
	return relay
}

func orderPlacedRow(tb testing.TB, orderID int64, attempts int) models.OutboxEvent {
	tb.Helper()
	id := uuid.New()
	data, err := json.Marshal(payloads.OrderPlacedEvent{OrderID: orderID, Code: "ORD-1-1"})
	if err != nil {
		tb.Fatalf("marshal payload: %v", err)
	}
	env, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    id.String(),
		OccurredAt: time.Now(),
		Data:       data,
	})
	if err != nil {
		tb.Fatalf("marshal envelope: %v", err)
	}
	return models.OutboxEvent{
		ID:            id,
		EventType:     enums.EventOrderPlaced,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Payload:       env,
		AttemptCount:  attempts,
	}
}

func orderPlacedResolved() *registry.ResolvedEvent {
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{
			EventType:     enums.EventOrderPlaced,
			AggregateType: enums.AggregateOrder,
			Topic:         "orders-topic",
		},
		Payload: &payloads.OrderPlacedEvent{},
	}
}

type fakeStore struct {
	rows      []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	parked    []uuid.UUID
	parkedAt  int
}

func (f *fakeStore) FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	return f.rows, nil
}

func (f *fakeStore) MarkPublishedTx(tx *gorm.DB, id uuid.UUID, at time.Time) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeStore) MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeStore) MarkTerminalTx(tx *gorm.DB, id uuid.UUID, maxAttempts int, err error) error {
	f.parked = append(f.parked, id)
	f.parkedAt = maxAttempts
	return nil
}

type fakeDB struct{}

func (fakeDB) Ping(context.Context) error { return nil }

func (fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error { return fn(nil) }

type fakeTopics struct{}

func (fakeTopics) Ping(context.Context) error { return nil }

func (fakeTopics) Publisher(string) *gcppubsub.Publisher { return nil }

type fakeSender struct {
	errs []error
	sent []*gcppubsub.Message
}

func (f *fakeSender) Send(_ context.Context, msg *gcppubsub.Message) error {
	f.sent = append(f.sent, msg)
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

type fakeResolver struct {
	resolved *registry.ResolvedEvent
	err      error
}

func (f *fakeResolver) Resolve(row models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	resolved := *f.resolved
	resolved.Envelope.EventID = row.ID.String()
	resolved.Envelope.OccurredAt = row.CreatedAt
	return &resolved, nil
}
