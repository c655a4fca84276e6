// Package dbtest opens isolated sqlite databases carrying the full schema for
// repository and service tests.
package dbtest

import (
	"context"
	"fmt"
	"testing"

	"github.com/angelmondragon/wardrobe-backend/pkg/config"
	"github.com/angelmondragon/wardrobe-backend/pkg/db"
	"github.com/angelmondragon/wardrobe-backend/pkg/migrate"
	"github.com/google/uuid"
)

// Open returns a client over a fresh in-memory database. Each call gets its
// own database so parallel tests never share rows.
func Open(t testing.TB) *db.Client {
	t.Helper()

	cfg := config.DBConfig{
		Driver: config.DBDriverSQLite,
		DSN:    fmt.Sprintf("file:wardrobe_%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString()),
	}
	client, err := db.New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	if err := migrate.AutoMigrateModels(client.DB()); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return client
}
