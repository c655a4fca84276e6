package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/wardrobe-backend/pkg/config"
	"github.com/angelmondragon/wardrobe-backend/pkg/db/models"
	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
	"github.com/angelmondragon/wardrobe-backend/pkg/outbox/registry"
)

const (
	fallbackBatch       = 50
	fallbackPoll        = 500 * time.Millisecond
	fallbackMaxAttempts = 10
	sendTimeout         = 15 * time.Second
	idleCeiling         = 10 * time.Second
	jitterWindow        = 250 * time.Millisecond
)

// delivery is what happened to a single outbox row within a drain.
type delivery int

const (
	delivered delivery = iota
	retryLater
	parked
)

type txRunner interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type topicSource interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxStore interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID, at time.Time) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, maxAttempts int, err error) error
}

type eventResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

// sender delivers one message and blocks until the broker acknowledges it.
type sender interface {
	Send(ctx context.Context, msg *gcppubsub.Message) error
}

type senderFor func(topic string) sender

type RelayParams struct {
	Outbox    config.OutboxConfig
	Logger    *logger.Logger
	DB        txRunner
	Topics    topicSource
	Store     outboxStore
	Resolver  eventResolver
	SenderFor senderFor
	Clock     func() time.Time
}

// Relay moves committed outbox rows onto their Pub/Sub topics.
type Relay struct {
	logg        *logger.Logger
	db          txRunner
	topics      topicSource
	store       outboxStore
	resolver    eventResolver
	senderFor   senderFor
	clock       func() time.Time
	batch       int
	maxAttempts int
	poll        time.Duration
}

func NewRelay(p RelayParams) (*Relay, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("relay: logger is required")
	case p.DB == nil:
		return nil, errors.New("relay: database is required")
	case p.Topics == nil:
		return nil, errors.New("relay: pubsub client is required")
	case p.Store == nil:
		return nil, errors.New("relay: outbox store is required")
	case p.Resolver == nil:
		return nil, errors.New("relay: event resolver is required")
	}

	r := &Relay{
		logg:        p.Logger,
		db:          p.DB,
		topics:      p.Topics,
		store:       p.Store,
		resolver:    p.Resolver,
		senderFor:   p.SenderFor,
		clock:       p.Clock,
		batch:       positiveOr(p.Outbox.BatchSize, fallbackBatch),
		maxAttempts: positiveOr(p.Outbox.MaxAttempts, fallbackMaxAttempts),
		poll:        fallbackPoll,
	}
	if p.Outbox.PollIntervalMS > 0 {
		r.poll = time.Duration(p.Outbox.PollIntervalMS) * time.Millisecond
	}
	if r.clock == nil {
		r.clock = time.Now
	}
	if r.senderFor == nil {
		r.senderFor = func(topic string) sender {
			if pub := p.Topics.Publisher(topic); pub != nil {
				return gcpSender{pub: pub}
			}
			return nil
		}
	}
	return r, nil
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// Run drains until ctx is cancelled. A full batch is followed immediately by
// another drain; an empty one waits a poll interval. Drain errors back off.
func (r *Relay) Run(ctx context.Context) error {
	for name, ping := range map[string]func(context.Context) error{
		"database": r.db.Ping,
		"pubsub":   r.topics.Ping,
	} {
		if err := ping(ctx); err != nil {
			r.logg.Error(ctx, name+" unreachable at startup", err)
			return fmt.Errorf("%s ping: %w", name, err)
		}
	}

	wait := pollBackoff{base: r.poll, ceiling: idleCeiling}
	for ctx.Err() == nil {
		n, err := r.drainOnce(ctx)
		var pause time.Duration
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox drain failed", err)
			pause = wait.fail()
		case n > 0:
			wait.reset()
			continue
		default:
			wait.reset()
			pause = r.poll
		}
		if err := sleepCtx(ctx, withJitter(pause)); err != nil {
			return err
		}
	}
	r.logg.Info(ctx, "outbox relay stopping")
	return ctx.Err()
}

// drainOnce handles one batch inside a single transaction and reports how many
// rows it touched. Row failures are recorded on the row; only bookkeeping
// failures abort the batch.
func (r *Relay) drainOnce(ctx context.Context) (int, error) {
	var n int
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := r.store.FetchUnpublishedForPublish(tx, r.batch, r.maxAttempts)
		if err != nil {
			return err
		}
		n = len(rows)
		for _, row := range rows {
			if err := r.settle(ctx, tx, row); err != nil {
				return err
			}
		}
		return nil
	})
	return n, err
}

func (r *Relay) settle(ctx context.Context, tx *gorm.DB, row models.OutboxEvent) error {
	outcome, topic, sendErr := r.deliver(ctx, row)
	fields := rowFields(row, topic)

	switch outcome {
	case delivered:
		if err := r.store.MarkPublishedTx(tx, row.ID, r.clock().UTC()); err != nil {
			return fmt.Errorf("mark %s published: %w", row.ID, err)
		}
		r.logg.Info(r.logg.WithFields(ctx, fields), "outbox event published")
	case retryLater:
		fields["attempt_count"] = row.AttemptCount + 1
		fields["error"] = sendErr.Error()
		r.logg.Warn(r.logg.WithFields(ctx, fields), "outbox publish failed, will retry")
		if err := r.store.MarkFailedTx(tx, row.ID, sendErr); err != nil {
			return fmt.Errorf("mark %s failed: %w", row.ID, err)
		}
	case parked:
		fields["error"] = sendErr.Error()
		r.logg.Warn(r.logg.WithFields(ctx, fields), "outbox event parked")
		if err := r.store.MarkTerminalTx(tx, row.ID, r.maxAttempts, sendErr); err != nil {
			return fmt.Errorf("park %s: %w", row.ID, err)
		}
	}
	return nil
}

// deliver resolves and sends one row. Undecodable rows, unknown topics and
// rows whose next attempt reaches the ceiling are parked.
func (r *Relay) deliver(ctx context.Context, row models.OutboxEvent) (delivery, string, error) {
	resolved, err := r.resolver.Resolve(row)
	if err != nil {
		return parked, "", err
	}
	topic := resolved.Descriptor.Topic

	out := r.senderFor(topic)
	if out == nil {
		return parked, topic, fmt.Errorf("no publisher for topic %q", topic)
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	err = out.Send(sendCtx, &gcppubsub.Message{
		Data: row.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(row.EventType),
			"aggregate_type": string(row.AggregateType),
			"aggregate_id":   strconv.FormatInt(row.AggregateID, 10),
			"created_at":     row.CreatedAt.Format(time.RFC3339Nano),
		},
	})
	switch {
	case err == nil:
		return delivered, topic, nil
	case errors.As(err, new(registry.NonRetryableError)):
		return parked, topic, err
	case row.AttemptCount+1 >= r.maxAttempts:
		return parked, topic, fmt.Errorf("gave up after %d attempts: %w", row.AttemptCount+1, err)
	default:
		return retryLater, topic, err
	}
}

func rowFields(row models.OutboxEvent, topic string) map[string]any {
	fields := map[string]any{
		"outbox_id":      row.ID.String(),
		"event_type":     row.EventType,
		"aggregate_type": row.AggregateType,
		"aggregate_id":   row.AggregateID,
		"attempt_count":  row.AttemptCount,
	}
	if topic != "" {
		fields["topic"] = topic
	}
	if row.LastError != nil {
		fields["last_error"] = *row.LastError
	}
	return fields
}

// pollBackoff doubles on each consecutive failure up to ceiling.
type pollBackoff struct {
	base, ceiling, cur time.Duration
}

func (b *pollBackoff) fail() time.Duration {
	if b.cur == 0 {
		b.cur = b.base
	}
	b.cur = min(b.cur*2, b.ceiling)
	return b.cur
}

func (b *pollBackoff) reset() { b.cur = 0 }

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + rand.N(jitterWindow)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type gcpSender struct {
	pub *gcppubsub.Publisher
}

func (s gcpSender) Send(ctx context.Context, msg *gcppubsub.Message) error {
	_, err := s.pub.Publish(ctx, msg).Get(ctx)
	return err
}
