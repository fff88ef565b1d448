package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
	"quiz-progression/internal/domain"
)

// CatalogLoader reads levels and questions from Postgres over a pgx pool, kept
// apart from the transactional store so cache refreshes never queue behind
// participant transactions.
type CatalogLoader struct {
	pool *pgxpool.Pool
}

func NewCatalogLoader(pool *pgxpool.Pool) *CatalogLoader {
	return &CatalogLoader{pool: pool}
}

func (l *CatalogLoader) LoadCatalog(ctx context.Context) (domain.Catalog, error) {
	levels, err := l.loadLevels(ctx)
	if err != nil {
		return domain.Catalog{}, err
	}
	if len(levels) == 0 {
		return domain.Catalog{}, domain.ErrNoLevels
	}
	questions, err := l.loadQuestions(ctx)
	if err != nil {
		return domain.Catalog{}, err
	}
	return domain.Catalog{Levels: levels, Questions: questions}, nil
}

func (l *CatalogLoader) loadLevels(ctx context.Context) ([]domain.Level, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT id::text, rank, name, intro_text, media, reward, kind FROM levels ORDER BY rank`)
	if err != nil {
		return nil, fmt.Errorf("load levels: %w", err)
	}
	defer rows.Close()

	var out []domain.Level
	for rows.Next() {
		var (
			id   string
			kind string
			lv   domain.Level
		)
		if err := rows.Scan(&id, &lv.Rank, &lv.Name, &lv.IntroText, &lv.Media, &lv.Reward, &kind); err != nil {
			return nil, fmt.Errorf("scan level: %w", err)
		}
		if lv.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse level id: %w", err)
		}
		lv.Kind = domain.LevelKind(kind)
		out = append(out, lv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load levels: %w", err)
	}
	return out, nil
}

func (l *CatalogLoader) loadQuestions(ctx context.Context) ([]domain.Question, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT id::text, level_id::text, text, hint, answer, media, created_at FROM questions ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var out []domain.Question
	for rows.Next() {
		var (
			id, levelID string
			q           domain.Question
		)
		if err := rows.Scan(&id, &levelID, &q.Text, &q.Hint, &q.Answer, &q.Media, &q.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if q.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse question id: %w", err)
		}
		if q.LevelID, err = uuid.Parse(levelID); err != nil {
			return nil, fmt.Errorf("parse question level: %w", err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	return out, nil
}
