package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"quiz-progression/internal/domain"
)

// dispatch starts level, passing over question levels that have no questions.
// Ranks strictly increase along the way, so the loop is bounded by the number
// of levels.
func (t *turn) dispatch(ctx context.Context, level domain.Level) error {
	limit, err := t.repo.CountLevels(ctx)
	if err != nil {
		return fmt.Errorf("count levels: %w", err)
	}
	for i := 0; i <= limit; i++ {
		entered, err := t.enter(ctx, level)
		if err != nil {
			return err
		}
		if entered {
			return nil
		}
		next, ok, err := t.repo.NextLevel(ctx, level.ID, t.participant.ID)
		if err != nil {
			return fmt.Errorf("next level: %w", err)
		}
		if !ok {
			return t.finish(ctx)
		}
		level = next
	}
	return fmt.Errorf("%w: visited more than %d levels", domain.ErrLevelLoop, limit)
}

// enter makes level current and moves into the state its kind requires. It
// returns false for a question level without questions.
func (t *turn) enter(ctx context.Context, level domain.Level) (bool, error) {
	var questionID *uuid.UUID
	if level.Kind == domain.KindQuestion || !level.Kind.Valid() {
		questions, err := t.repo.QuestionsForLevel(ctx, level.ID)
		if err != nil {
			return false, fmt.Errorf("questions for level: %w", err)
		}
		if len(questions) == 0 {
			t.engine.log.WarnContext(ctx, "level has no questions, passing over",
				slog.String("level", level.ID.String()), slog.Int("rank", level.Rank))
			return false, nil
		}
		id := questions[0].ID
		questionID = &id
	}

	if err := t.setCurrentLevel(ctx, level.ID); err != nil {
		return false, err
	}
	p := &t.snap.Payload
	p.CurrentQuestionID = questionID
	p.HintUsed = false
	p.QuizCompleted = false

	switch level.Kind {
	case domain.KindIntro:
		t.transition(domain.StateIntro)
	case domain.KindInfoCollection:
		p.UserInfo = domain.UserInfo{}
		t.transition(domain.StateCollectName)
	case domain.KindObjectRecognition:
		t.transition(domain.StateObjectRecognition)
	default:
		t.transition(domain.StateQuestion)
	}
	return true, nil
}

func (t *turn) advanceFrom(ctx context.Context, levelID uuid.UUID) error {
	next, ok, err := t.repo.NextLevel(ctx, levelID, t.participant.ID)
	if err != nil {
		return fmt.Errorf("next level: %w", err)
	}
	if !ok {
		return t.finish(ctx)
	}
	return t.dispatch(ctx, next)
}

// finish handles the end of the sequence: offer skipped levels if there are
// any, otherwise the quiz is completed.
func (t *turn) finish(ctx context.Context) error {
	skipped, err := t.listSkipped(ctx)
	if err != nil {
		return err
	}
	p := &t.snap.Payload
	p.CurrentQuestionID = nil
	p.HintUsed = false
	if len(skipped) > 0 {
		p.QuizCompleted = false
		t.transition(domain.StateReturnToSkipped)
		return nil
	}
	p.QuizCompleted = true
	t.transition(domain.StateCompleted)
	return nil
}

func (t *turn) listSkipped(ctx context.Context) ([]domain.Level, error) {
	if t.skipped != nil {
		return t.skipped, nil
	}
	skipped, err := t.repo.ListSkipped(ctx, t.participant.ID)
	if err != nil {
		return nil, fmt.Errorf("list skipped: %w", err)
	}
	t.skipped = skipped
	return skipped, nil
}

func (t *turn) currentLevel(ctx context.Context) (domain.Level, error) {
	id := t.snap.Payload.CurrentLevelID
	if id == nil {
		return domain.Level{}, fmt.Errorf("%w: %s without current level", domain.ErrMalformedSnapshot, t.snap.State)
	}
	level, ok, err := t.level(ctx, *id)
	if err != nil {
		return domain.Level{}, err
	}
	if !ok {
		return domain.Level{}, fmt.Errorf("%w: %s", domain.ErrLevelNotFound, id)
	}
	return level, nil
}

func (t *turn) currentQuestion(ctx context.Context) (domain.Question, error) {
	id := t.snap.Payload.CurrentQuestionID
	if id == nil {
		return domain.Question{}, fmt.Errorf("%w: %s without current question", domain.ErrMalformedSnapshot, t.snap.State)
	}
	if cat, ok := t.catalog(ctx); ok {
		if q, found := cat.Question(*id); found {
			return q, nil
		}
	}
	q, ok, err := t.repo.Question(ctx, *id)
	if err != nil {
		return domain.Question{}, fmt.Errorf("load question: %w", err)
	}
	if !ok {
		return domain.Question{}, fmt.Errorf("%w: %s", domain.ErrQuestionNotFound, id)
	}
	return q, nil
}

// level reads content from the catalog cache first and falls back to the store.
func (t *turn) level(ctx context.Context, id uuid.UUID) (domain.Level, bool, error) {
	if cat, ok := t.catalog(ctx); ok {
		if l, found := cat.Level(id); found {
			return l, true, nil
		}
	}
	l, ok, err := t.repo.Level(ctx, id)
	if err != nil {
		return domain.Level{}, false, fmt.Errorf("load level: %w", err)
	}
	return l, ok, nil
}

func (t *turn) catalog(ctx context.Context) (domain.Catalog, bool) {
	if t.engine.catalog == nil || t.noCatalog {
		return domain.Catalog{}, false
	}
	if t.cat != nil {
		return *t.cat, true
	}
	cat, err := t.engine.catalog.GetCatalog(ctx)
	if err != nil {
		t.engine.log.WarnContext(ctx, "catalog unavailable, reading store", slog.Any("error", err))
		t.noCatalog = true
		return domain.Catalog{}, false
	}
	t.cat = &cat
	return cat, true
}
