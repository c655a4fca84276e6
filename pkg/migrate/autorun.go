package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/wardrobe-backend/pkg/config"
	"github.com/angelmondragon/wardrobe-backend/pkg/db"
	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
)

// MaybeRunDev brings the schema up to date at boot, but only in dev with the
// auto-migrate flag on.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	if cfg.DB.IsSQLite() {
		logg.Info(ctx, "sqlite schema from models")
		return AutoMigrateModels(client.DB().WithContext(ctx))
	}

	pool, err := client.DB().DB()
	if err != nil {
		return err
	}
	fsys, err := Source("")
	if err != nil {
		return err
	}
	m, err := NewMigrator(pool, fsys)
	if err != nil {
		return err
	}
	applied, err := m.Up(ctx)
	if err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	logg.Info(logg.WithField(ctx, "applied", applied), "migrations up to date")
	return nil
}
