package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"quiz-progression/internal/config"
	"quiz-progression/internal/content"
	rediscache "quiz-progression/internal/infra/redis"
	progressstore "quiz-progression/internal/infra/store"
)

// NewSeedCmd loads levels and questions from a YAML catalog file into the store.
func NewSeedCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load quiz content from a YAML catalog file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if file == "" {
				file = cfg.Catalog.File
			}
			if file == "" {
				return fmt.Errorf("no catalog file given")
			}
			return runSeed(cmd.Context(), cfg, file)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "catalog YAML file (defaults to catalog.file from config)")
	return cmd
}

func runSeed(ctx context.Context, cfg config.Config, file string) error {
	logger := newLogger(cfg)
	cat, err := content.LoadFile(file)
	if err != nil {
		return err
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := runMigrations(ctx, db, logger); err != nil {
		return err
	}
	if err := progressstore.SeedCatalog(ctx, db, cat); err != nil {
		return err
	}

	if client := newRedisClient(cfg); client != nil {
		defer client.Close()
		if err := invalidateCatalog(ctx, client); err != nil {
			logger.WarnContext(ctx, "catalog cache not invalidated", slog.Any("error", err))
		}
	}
	logger.InfoContext(ctx, "catalog seeded",
		slog.String("file", file),
		slog.Int("levels", len(cat.Levels)),
		slog.Int("questions", len(cat.Questions)))
	return nil
}

func invalidateCatalog(ctx context.Context, client *redis.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return rediscache.NewCatalogRepository(client, nil, 0, nil).Invalidate(ctx)
}
