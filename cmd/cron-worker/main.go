package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/wardrobe-backend/internal/cart"
	"github.com/angelmondragon/wardrobe-backend/internal/cron"
	"github.com/angelmondragon/wardrobe-backend/pkg/config"
	"github.com/angelmondragon/wardrobe-backend/pkg/db"
	"github.com/angelmondragon/wardrobe-backend/pkg/instance"
	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
	"github.com/angelmondragon/wardrobe-backend/pkg/metrics"
	"github.com/angelmondragon/wardrobe-backend/pkg/migrate"
	"github.com/angelmondragon/wardrobe-backend/pkg/outbox"
	"github.com/angelmondragon/wardrobe-backend/pkg/redis"
)

const serviceKind = "cron-worker"

func main() {
	if err := godotenv.Load(); err != nil {
		logger.New(logger.Options{ServiceName: serviceKind}).Warn(context.Background(), ".env not loaded; using process environment")
	}
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
		logg.Error(ctx, "cron worker exited", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker stopped")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	database, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer func() { err = multierr.Append(err, database.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, database); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	cache, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer func() { err = multierr.Append(err, cache.Close()) }()

	env := cfg.App.Env
	if env == "" {
		env = "local"
	}
	lock, err := cron.NewRedisLock(cache, serviceKind+":"+env, 0)
	if err != nil {
		return err
	}

	reaper, err := cron.NewGuestCartReaperJob(cron.GuestCartReaperParams{
		DB:        database,
		Store:     cart.NewHousekeeping(database.DB()),
		Retention: cfg.Cron.GuestCartRetention,
	})
	if err != nil {
		return err
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		DB:         database,
		Repository: outbox.NewRepository(database.DB()),
		Retention:  cfg.Cron.OutboxRetentionDays,
		Target:     cfg.Cron.OutboxRetentionTarget,
	})
	if err != nil {
		return err
	}
	jobs, err := cron.NewRegistry(reaper, retention)
	if err != nil {
		return err
	}

	svc, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: jobs,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		return err
	}
	logg.Info(ctx, "cron worker running")
	return svc.Run(ctx)
}
