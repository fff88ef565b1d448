package app

import (
	"context"

	"github.com/google/uuid"
	"quiz-progression/internal/domain"
)

// ProgressRepository is the query/command façade over the store. Every method
// runs inside the caller's unit of work. Lookups return (value, found, error)
// so a miss is a value, not an error.
type ProgressRepository interface {
	Participant(ctx context.Context, identityKey string) (domain.Participant, bool, error)
	CreateParticipant(ctx context.Context, profile domain.Profile) (domain.Participant, error)
	SaveProfile(ctx context.Context, participantID uuid.UUID, info domain.UserInfo) error
	AdjustBalance(ctx context.Context, participantID uuid.UUID, delta int64) (int64, error)
	SetCurrentLevel(ctx context.Context, participantID, levelID uuid.UUID) error

	FirstLevel(ctx context.Context) (domain.Level, bool, error)
	NextLevel(ctx context.Context, currentLevelID, participantID uuid.UUID) (domain.Level, bool, error)
	Level(ctx context.Context, id uuid.UUID) (domain.Level, bool, error)
	CountLevels(ctx context.Context) (int, error)
	QuestionsForLevel(ctx context.Context, levelID uuid.UUID) ([]domain.Question, error)
	Question(ctx context.Context, id uuid.UUID) (domain.Question, bool, error)

	HasCompletion(ctx context.Context, participantID, levelID uuid.UUID) (bool, error)
	RecordCompletion(ctx context.Context, participantID, levelID uuid.UUID, usedHint bool) error
	HasSkip(ctx context.Context, participantID, levelID uuid.UUID) (bool, error)
	RecordSkip(ctx context.Context, participantID, levelID uuid.UUID) error
	RemoveSkip(ctx context.Context, participantID, levelID uuid.UUID) error
	ListSkipped(ctx context.Context, participantID uuid.UUID) ([]domain.Level, error)

	ReadSnapshot(ctx context.Context, participantID uuid.UUID) (domain.Snapshot, bool, error)
	WriteSnapshot(ctx context.Context, participantID uuid.UUID, snap domain.Snapshot) error
}

// UnitOfWork runs fn in a single transaction: commit when fn returns nil,
// rollback otherwise. Implementations serialize work for one identity key.
type UnitOfWork interface {
	Do(ctx context.Context, identityKey string, fn func(ctx context.Context, repo ProgressRepository) error) error
}

// CatalogRepository serves read-mostly quiz content, usually from a cache.
type CatalogRepository interface {
	GetCatalog(ctx context.Context) (domain.Catalog, error)
}

// Locker provides mutual exclusion per participant identity.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Recognizer scores a photo submitted for an object recognition level.
type Recognizer interface {
	Recognize(ctx context.Context, level domain.Level, photoRef string) (bool, error)
}

type scopeKey struct{}

// EnterScope marks ctx as running inside a unit of work. Implementations of
// UnitOfWork call it first so nesting is rejected.
func EnterScope(ctx context.Context) (context.Context, error) {
	if ctx.Value(scopeKey{}) != nil {
		return ctx, domain.ErrNestedUnitOfWork
	}
	return context.WithValue(ctx, scopeKey{}, true), nil
}
