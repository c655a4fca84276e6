package cart

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/angelmondragon/wardrobe-backend/pkg/db"
	"github.com/angelmondragon/wardrobe-backend/pkg/db/dbtest"
	"github.com/angelmondragon/wardrobe-backend/pkg/db/models"
	"github.com/angelmondragon/wardrobe-backend/pkg/enums"
)

// postgresDryRun opens a Postgres session that renders statements without a
// server and reports the last INSERT it built.
func postgresDryRun(t *testing.T) (*gorm.DB, func() string) {
	t.Helper()
	conn, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  "host=localhost user=wardrobe dbname=wardrobe sslmode=disable",
		PreferSimpleProtocol: true,
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true, SkipDefaultTransaction: true})
	require.NoError(t, err)

	var last string
	require.NoError(t, conn.Callback().Create().After("gorm:create").Register("test:capture_sql", func(tx *gorm.DB) {
		last = tx.Statement.SQL.String()
	}))
	return conn, func() string { return last }
}

func TestUpsertLineQualifiesExistingQuantityOnPostgres(t *testing.T) {
	conn, lastSQL := postgresDryRun(t)

	err := NewRepository(conn).UpsertLine(context.Background(), &models.LineItem{
		CartID: 1, VariantID: 2, Quantity: 3, UnitPriceCents: 2000,
	})
	require.NoError(t, err)

	sql := lastSQL()
	require.Contains(t, sql, `ON CONFLICT ("cart_id","variant_id") DO UPDATE SET`)
	require.Contains(t, sql, `"quantity"=line_items.quantity + excluded.quantity`)
	require.NotContains(t, sql, `"quantity"=quantity`)
}

func TestSchemaGuardsCartInvariants(t *testing.T) {
	conn := dbtest.Open(t).DB()
	item := dbtest.SeedItem(t, conn, dbtest.ItemFixture{
		Name: "Linen Shirt", PriceCents: 2000,
		Variants: []dbtest.VariantFixture{{Color: "White", Size: "M", Stock: dbtest.IntPtr(2)}},
	})
	variantID := item.Variants[0].ID
	user := dbtest.SeedUser(t, conn, "ada", "ada@example.com")
	uid := user.ID

	active := models.Cart{UserID: &uid, Status: enums.CartStatusCart}
	require.NoError(t, conn.Create(&active).Error)
	err := conn.Create(&models.Cart{UserID: &uid, Status: enums.CartStatusCart}).Error
	require.True(t, db.IsUniqueViolation(err, "ux_carts_active_user"), "expected active cart violation, got %v", err)

	require.NoError(t, conn.Create(&models.Cart{UserID: &uid, Status: enums.CartStatusMerged}).Error)
	require.NoError(t, conn.Create(&models.Cart{Status: enums.CartStatusCart}).Error)
	require.NoError(t, conn.Create(&models.Cart{Status: enums.CartStatusCart}).Error)

	for _, qty := range []int{0, -1} {
		err = conn.Create(&models.LineItem{CartID: active.ID, VariantID: variantID, Quantity: qty, UnitPriceCents: 2000}).Error
		require.Error(t, err, "quantity %d", qty)
	}

	err = conn.Model(&models.Variant{}).Where("id = ?", variantID).Update("stock", -1).Error
	require.Error(t, err)
	require.NoError(t, conn.Model(&models.Variant{}).Where("id = ?", variantID).Update("stock", nil).Error)
}
