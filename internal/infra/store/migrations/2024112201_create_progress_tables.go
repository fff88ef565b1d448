package migrations

import (
	"context"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
	"quiz-progression/internal/infra/store"
)

var Migrations = migrate.NewMigrations()

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			return store.CreateSchema(ctx, db)
		},
		func(ctx context.Context, db *bun.DB) error {
			return store.DropSchema(ctx, db)
		},
	)
}
