package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/wardrobe-backend/pkg/config"
	"github.com/angelmondragon/wardrobe-backend/pkg/db"
	"github.com/angelmondragon/wardrobe-backend/pkg/instance"
	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
	"github.com/angelmondragon/wardrobe-backend/pkg/migrate"
	"github.com/angelmondragon/wardrobe-backend/pkg/outbox"
	"github.com/angelmondragon/wardrobe-backend/pkg/outbox/registry"
	"github.com/angelmondragon/wardrobe-backend/pkg/pubsub"
)

const serviceKind = "outbox-publisher"

func main() {
	bootLog := logger.New(logger.Options{ServiceName: serviceKind})
	if err := godotenv.Load(); err != nil {
		bootLog.Warn(context.Background(), ".env not loaded; using process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		bootLog.Error(context.Background(), "config invalid", err)
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
		logg.Error(ctx, "outbox relay exited", err)
		os.Exit(1)
	}
	logg.Info(ctx, "outbox relay stopped")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	database, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer closeQuietly(ctx, logg, "database", database.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, database); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	topics, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, false, logg)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}
	defer closeQuietly(ctx, logg, "pubsub", topics.Close)

	resolver, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		return fmt.Errorf("event registry: %w", err)
	}

	relay, err := NewRelay(RelayParams{
		Outbox:   cfg.Outbox,
		Logger:   logg,
		DB:       database,
		Topics:   topics,
		Store:    outbox.NewRepository(database.DB()),
		Resolver: resolver,
	})
	if err != nil {
		return err
	}

	logg.Info(ctx, "outbox relay running")
	return relay.Run(ctx)
}

func closeQuietly(ctx context.Context, logg *logger.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(ctx, "closing "+name, err)
	}
}
