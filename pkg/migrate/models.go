package migrate

import (
	"fmt"

	"github.com/angelmondragon/wardrobe-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Models lists every table the service owns, parents first.
func Models() []any {
	return []any{
		&models.User{},
		&models.Category{},
		&models.Brand{},
		&models.Material{},
		&models.Color{},
		&models.Size{},
		&models.Item{},
		&models.Variant{},
		&models.Cart{},
		&models.LineItem{},
		&models.OutboxEvent{},
	}
}

// partialIndexes are the migration-defined indexes gorm tags cannot express.
var partialIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_carts_active_user ON carts (user_id) WHERE status = 'CART' AND user_id IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS idx_carts_guest_updated_at ON carts (updated_at) WHERE user_id IS NULL`,
}

// AutoMigrateModels creates the schema from the gorm models. It is used for
// sqlite databases (local dev and tests); Postgres uses the SQL migrations.
func AutoMigrateModels(conn *gorm.DB) error {
	if err := conn.AutoMigrate(Models()...); err != nil {
		return err
	}
	for _, stmt := range partialIndexes {
		if err := conn.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create partial index: %w", err)
		}
	}
	return nil
}
