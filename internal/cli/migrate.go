package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"quiz-progression/internal/config"
	progressstore "quiz-progression/internal/infra/store"
	storemigrations "quiz-progression/internal/infra/store/migrations"
)

// NewMigrateCmd applies database migrations.
func NewMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			return runMigrations(cmd.Context(), db, logger)
		},
	}
}

func openDB(cfg config.Config) (*bun.DB, error) {
	if cfg.Store.Driver == driverMemory {
		return nil, fmt.Errorf("store driver %q has no database", driverMemory)
	}
	return progressstore.Open(cfg.Store.Driver, cfg.Store.DSN)
}

func runMigrations(ctx context.Context, db *bun.DB, logger *slog.Logger) error {
	group, err := storemigrations.Apply(ctx, db)
	if err != nil {
		return err
	}
	if group.IsZero() {
		logger.InfoContext(ctx, "no new migrations")
		return nil
	}
	logger.InfoContext(ctx, "migrations applied", slog.String("group", group.String()))
	return nil
}
