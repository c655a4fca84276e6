// Package migrate applies the Postgres schema with goose and builds the
// sqlite schema from the gorm models.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/pressly/goose/v3"
)

// DefaultDir is where new migrations are created and validated on disk.
const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Source returns dir as a filesystem, or the migrations compiled into the
// binary when dir is empty.
func Source(dir string) (fs.FS, error) {
	if dir != "" {
		return os.DirFS(dir), nil
	}
	return fs.Sub(embedded, "migrations")
}

// Migrator runs goose against a Postgres database.
type Migrator struct {
	p *goose.Provider
}

func NewMigrator(db *sql.DB, fsys fs.FS) (*Migrator, error) {
	if db == nil {
		return nil, errors.New("migrate: db is required")
	}
	p, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("migrate: goose provider: %w", err)
	}
	return &Migrator{p: p}, nil
}

// Up applies every pending migration and returns how many ran.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	done, err := m.p.Up(ctx)
	return len(done), err
}

// Down rolls back the latest applied migration.
func (m *Migrator) Down(ctx context.Context) error {
	_, err := m.p.Down(ctx)
	return err
}

// Status renders one line per known migration.
func (m *Migrator) Status(ctx context.Context) ([]string, error) {
	rows, err := m.p.Status(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		line := fmt.Sprintf("%-14d %-8s %s", r.Source.Version, r.State, r.Source.Path)
		if !r.AppliedAt.IsZero() {
			line += " (" + r.AppliedAt.UTC().Format("2006-01-02 15:04:05") + ")"
		}
		out = append(out, line)
	}
	return out, nil
}

// To moves the schema up or down to version, a YYYYMMDDHHMMSS prefix.
func (m *Migrator) To(ctx context.Context, version string) error {
	target, err := strconv.ParseInt(strings.TrimSpace(version), 10, 64)
	if err != nil {
		return fmt.Errorf("migrate: version %q is not YYYYMMDDHHMMSS: %w", version, err)
	}
	current, err := m.p.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("migrate: current version: %w", err)
	}
	switch {
	case target > current:
		_, err = m.p.UpTo(ctx, target)
	case target < current:
		_, err = m.p.DownTo(ctx, target)
	}
	return err
}
