package store

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

type foreignKey struct {
	column, table string
}

var tables = []struct {
	model interface{}
	fks   []foreignKey
}{
	{model: (*participantModel)(nil)},
	{model: (*levelModel)(nil)},
	{model: (*questionModel)(nil), fks: []foreignKey{{"level_id", "levels"}}},
	{model: (*completionModel)(nil), fks: []foreignKey{{"participant_id", "participants"}, {"level_id", "levels"}}},
	{model: (*skipModel)(nil), fks: []foreignKey{{"participant_id", "participants"}, {"level_id", "levels"}}},
	{model: (*snapshotModel)(nil), fks: []foreignKey{{"participant_id", "participants"}}},
}

// CreateSchema creates every table and index if missing.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	for _, t := range tables {
		q := db.NewCreateTable().Model(t.model).IfNotExists()
		for _, fk := range t.fks {
			q = q.ForeignKey(fmt.Sprintf(`(%q) REFERENCES %q ("id") ON DELETE CASCADE`, fk.column, fk.table))
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	_, err := db.NewCreateIndex().
		Model((*questionModel)(nil)).
		Index("questions_level_id_created_at_idx").
		Column("level_id", "created_at").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// DropSchema removes every table in reverse dependency order.
func DropSchema(ctx context.Context, db bun.IDB) error {
	for i := len(tables) - 1; i >= 0; i-- {
		if _, err := db.NewDropTable().Model(tables[i].model).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("drop table: %w", err)
		}
	}
	return nil
}
