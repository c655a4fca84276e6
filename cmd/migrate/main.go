package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/wardrobe-backend/pkg/config"
	"github.com/angelmondragon/wardrobe-backend/pkg/db"
	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
	"github.com/angelmondragon/wardrobe-backend/pkg/migrate"
)

const usage = "up|down|status|version|create|validate"

func main() {
	cmd := flag.String("cmd", "up", "migration command: "+usage)
	dir := flag.String("dir", "", "migrations directory; empty uses the migrations built into the binary ("+migrate.DefaultDir+" for create)")
	name := flag.String("name", "", "migration name for -cmd=create")
	version := flag.String("version", "", "target YYYYMMDDHHMMSS for -cmd=version")
	flag.Parse()

	if err := run(context.Background(), *cmd, *dir, *name, *version); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd, dir, name, version string) error {
	// File-only commands never touch the database.
	switch cmd {
	case "create":
		if name == "" {
			return errors.New("-name is required for create")
		}
		if dir == "" {
			dir = migrate.DefaultDir
		}
		path, err := migrate.CreateSQLMigration(dir, name)
		if err == nil {
			fmt.Println("created", path)
		}
		return err
	case "validate":
		fsys, err := migrate.Source(dir)
		if err != nil {
			return err
		}
		if err := migrate.ValidateFS(fsys); err != nil {
			return err
		}
		fmt.Println("migrations valid")
		return nil
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logg := logger.ForService("migrate", cfg.App)
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "cmd": cmd, "driver": cfg.DB.Driver})

	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer closeLogged(ctx, logg, client)

	if cfg.DB.IsSQLite() {
		if cmd != "up" {
			return errors.New("sqlite only supports -cmd=up; its schema comes from the models")
		}
		if err := migrate.AutoMigrateModels(client.DB().WithContext(ctx)); err != nil {
			return err
		}
		logg.Info(ctx, "sqlite schema ready")
		return nil
	}

	pool, err := client.DB().DB()
	if err != nil {
		return err
	}
	fsys, err := migrate.Source(dir)
	if err != nil {
		return err
	}
	m, err := migrate.NewMigrator(pool, fsys)
	if err != nil {
		return err
	}

	switch cmd {
	case "up":
		n, err := m.Up(ctx)
		if err != nil {
			return err
		}
		logg.Info(logg.WithField(ctx, "applied", n), "migrations applied")
	case "down":
		return m.Down(ctx)
	case "status":
		lines, err := m.Status(ctx)
		if err != nil {
			return err
		}
		for _, l := range lines {
			fmt.Println(l)
		}
	case "version":
		if version == "" {
			return errors.New("-version is required for version")
		}
		return m.To(ctx, version)
	default:
		return fmt.Errorf("unknown -cmd %q (want %s)", cmd, usage)
	}
	return nil
}

func closeLogged(ctx context.Context, logg *logger.Logger, client *db.Client) {
	if err := client.Close(); err != nil {
		logg.Error(ctx, "closing database", err)
	}
}
