package main

// Run database migrations:
//   go run ./cmd/migrate up
//   go run ./cmd/migrate down
//   go run ./cmd/migrate status

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"docflow-backend/internal/shared/config"
	"docflow-backend/internal/shared/storage/db"
	"docflow-backend/internal/shared/telemetry"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.New()
	var configFile string

	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the database schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to a YAML config file")
	root.PersistentFlags().String("database-url", "", "postgres:// or sqlite:// URL")
	_ = v.BindPFlag("database_url", root.PersistentFlags().Lookup("database-url"))

	withDB := func(fn func(ctx context.Context, conn *sql.DB, dialect db.Dialect) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			if err := config.ReadFiles(v, configFile); err != nil {
				return err
			}
			cfg := config.FromViper(v)
			if err := telemetry.Init(cfg.LogJSON, cfg.LogLevel, "stderr"); err != nil {
				return err
			}
			ctx := cmd.Context()
			conn, dialect, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultMigrateOptions()))
			if err != nil {
				return errors.Wrap(err, "connect database")
			}
			defer conn.Close()
			return fn(ctx, conn, dialect)
		}
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: withDB(func(ctx context.Context, conn *sql.DB, dialect db.Dialect) error {
				if err := db.RunMigrations(ctx, conn, dialect); err != nil {
					return err
				}
				telemetry.Info("migrate.up", map[string]any{"dialect": string(dialect)})
				return nil
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			RunE: withDB(func(ctx context.Context, conn *sql.DB, dialect db.Dialect) error {
				if err := db.RollbackMigration(ctx, conn, dialect); err != nil {
					return err
				}
				telemetry.Info("migrate.down", map[string]any{"dialect": string(dialect)})
				return nil
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print the current schema version",
			RunE: withDB(func(ctx context.Context, conn *sql.DB, dialect db.Dialect) error {
				version, err := db.MigrationVersion(ctx, conn, dialect)
				if err != nil {
					return err
				}
				fmt.Printf("%s schema version %d\n", dialect, version)
				return nil
			}),
		},
	)
	return root
}
