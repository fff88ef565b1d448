package store

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"quiz-progression/internal/domain"
)

// CatalogLoader reads the whole catalog for the content caches.
type CatalogLoader struct {
	db bun.IDB
}

func NewCatalogLoader(db bun.IDB) *CatalogLoader {
	return &CatalogLoader{db: db}
}

func (l *CatalogLoader) LoadCatalog(ctx context.Context) (domain.Catalog, error) {
	var levels []levelModel
	if err := l.db.NewSelect().Model(&levels).OrderExpr("l.rank ASC").Scan(ctx); err != nil {
		return domain.Catalog{}, wrap("load levels", err)
	}
	if len(levels) == 0 {
		return domain.Catalog{}, domain.ErrNoLevels
	}
	var questions []questionModel
	if err := l.db.NewSelect().Model(&questions).OrderExpr("q.created_at ASC, q.id ASC").Scan(ctx); err != nil {
		return domain.Catalog{}, wrap("load questions", err)
	}

	cat := domain.Catalog{
		Levels:    make([]domain.Level, 0, len(levels)),
		Questions: make([]domain.Question, 0, len(questions)),
	}
	for _, m := range levels {
		cat.Levels = append(cat.Levels, m.toDomain())
	}
	for _, m := range questions {
		cat.Questions = append(cat.Questions, m.toDomain())
	}
	return cat, nil
}

// SeedCatalog upserts levels and questions by id in one transaction. Rows that
// are not in the catalog are left alone so that progress pointing at them
// stays valid.
func SeedCatalog(ctx context.Context, db *bun.DB, catalog domain.Catalog) error {
	prepared, err := catalog.Prepare(time.Now().UTC())
	if err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}
	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, l := range prepared.Levels {
			m := newLevelModel(l)
			_, err := tx.NewInsert().Model(&m).
				On("CONFLICT (id) DO UPDATE").
				Set("rank = EXCLUDED.rank").
				Set("name = EXCLUDED.name").
				Set("intro_text = EXCLUDED.intro_text").
				Set("media = EXCLUDED.media").
				Set("reward = EXCLUDED.reward").
				Set("kind = EXCLUDED.kind").
				Exec(ctx)
			if err != nil {
				return wrap(fmt.Sprintf("upsert level %q", l.Name), err)
			}
		}
		for _, q := range prepared.Questions {
			m := newQuestionModel(q)
			_, err := tx.NewInsert().Model(&m).
				On("CONFLICT (id) DO UPDATE").
				Set("level_id = EXCLUDED.level_id").
				Set("text = EXCLUDED.text").
				Set("hint = EXCLUDED.hint").
				Set("answer = EXCLUDED.answer").
				Set("media = EXCLUDED.media").
				Exec(ctx)
			if err != nil {
				return wrap("upsert question", err)
			}
		}
		return nil
	})
}
