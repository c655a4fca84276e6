package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/angelmondragon/wardrobe-backend/internal/analytics/router"
	"github.com/angelmondragon/wardrobe-backend/internal/analytics/worker"
	"github.com/angelmondragon/wardrobe-backend/internal/analytics/writer"
	"github.com/angelmondragon/wardrobe-backend/pkg/bigquery"
	"github.com/angelmondragon/wardrobe-backend/pkg/config"
	"github.com/angelmondragon/wardrobe-backend/pkg/instance"
	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
	"github.com/angelmondragon/wardrobe-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/wardrobe-backend/pkg/outbox/registry"
	"github.com/angelmondragon/wardrobe-backend/pkg/pubsub"
	"github.com/angelmondragon/wardrobe-backend/pkg/redis"
)

const serviceKind = "analytics-worker"

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Options{ServiceName: serviceKind}).Error(context.Background(), "config invalid", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceKind

	logg := logger.ForService(serviceKind, cfg.App)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceKind,
		"instance":    instance.GetID(),
	})

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "analytics worker exited", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	cache, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer func() { err = multierr.Append(err, cache.Close()) }()

	ps, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, true, logg)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}
	defer func() { err = multierr.Append(err, ps.Close()) }()

	bq, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
	if err != nil {
		return fmt.Errorf("bigquery: %w", err)
	}
	defer func() { err = multierr.Append(err, bq.Close()) }()

	sub := ps.OrdersSubscription()
	if sub == nil {
		return errors.New("orders subscription not configured")
	}

	claims, err := idempotency.NewManager(cache, cfg.Eventing.OutboxIdempotencyTTL)
	if err != nil {
		return err
	}
	rows, err := writer.New(bq, writer.Config{OrderEventsTable: bq.OrderEventsTable()})
	if err != nil {
		return err
	}
	events, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		return err
	}
	dispatch, err := router.NewRouter(rows, events.Decoders(), logg, nil)
	if err != nil {
		return err
	}
	consumer, err := worker.NewConsumer(sub, dispatch, claims, logg)
	if err != nil {
		return err
	}

	logg.Info(ctx, "analytics worker consuming")
	return consumer.Run(ctx)
}
