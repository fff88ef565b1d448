package store

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"quiz-progression/internal/app"
)

// UnitOfWork runs one event per database transaction.
type UnitOfWork struct {
	db  *bun.DB
	now func() time.Time
}

func NewUnitOfWork(db *bun.DB) *UnitOfWork {
	return &UnitOfWork{db: db, now: time.Now}
}

// Do commits when fn returns nil and rolls back on error or panic. On Postgres
// the first statement takes a transaction-scoped advisory lock on the identity
// key so that concurrent events for one participant queue up across instances.
// The body runs detached from ctx cancellation so that shutdown lets in-flight
// work finish.
func (u *UnitOfWork) Do(ctx context.Context, identityKey string, fn func(ctx context.Context, repo app.ProgressRepository) error) error {
	ctx, err := app.EnterScope(ctx)
	if err != nil {
		return err
	}
	ctx = context.WithoutCancel(ctx)

	return u.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if u.db.Dialect().Name() == dialect.PG {
			if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext(?))", identityKey); err != nil {
				return fmt.Errorf("advisory lock: %w", err)
			}
		}
		return fn(ctx, &Repository{db: tx, now: u.now})
	})
}
