package main

// Apply, roll back or inspect database migrations:
//   go run ./cmd/migrate up
//   go run ./cmd/migrate down
//   go run ./cmd/migrate status

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"contract-backend/internal/shared/config"
	"contract-backend/internal/shared/storage/db"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := command(cfg).Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
}

func command(cfg config.Config) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Manage the contract-backend database schema",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Postgres connection `URL`",
				Value:   cfg.DatabaseURL,
				Sources: cli.EnvVars("DATABASE_URL"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "up",
				Usage:  "Apply all pending migrations",
				Action: withDB(db.RunMigrations),
			},
			{
				Name:   "down",
				Usage:  "Roll back the most recent migration",
				Action: withDB(db.RollbackMigration),
			},
			{
				Name:   "status",
				Usage:  "Print applied and pending migrations",
				Action: withDB(db.MigrationStatus),
			},
		},
		DefaultCommand: "up",
	}
}

func withDB(run func(context.Context, *sql.DB) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		url := cmd.String("database-url")
		if url == "" {
			return errors.New("--database-url or DATABASE_URL is required")
		}
		sqlDB, err := db.Connect(ctx, url, db.OptionsFromEnv(db.DefaultMigrateOptions()))
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer sqlDB.Close()
		return run(ctx, sqlDB)
	}
}
