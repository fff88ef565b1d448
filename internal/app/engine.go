package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"quiz-progression/internal/domain"
	"quiz-progression/internal/logging"
)

// Deps is everything the engine needs, built once at process start.
type Deps struct {
	UnitOfWork UnitOfWork
	Locker     Locker
	// Catalog is optional; without it content is read through the repository.
	Catalog CatalogRepository
	// Recognizer is optional; without it photo submissions are rejected.
	Recognizer Recognizer
	Logger     *slog.Logger
}

// Engine drives participants through the level sequence. It is safe for
// concurrent use; events for one participant are serialized.
type Engine struct {
	uow        UnitOfWork
	locker     Locker
	catalog    CatalogRepository
	recognizer Recognizer
	log        *slog.Logger
}

func NewEngine(deps Deps) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	locker := deps.Locker
	if locker == nil {
		locker = noLock{}
	}
	return &Engine{
		uow:        deps.UnitOfWork,
		locker:     locker,
		catalog:    deps.Catalog,
		recognizer: deps.Recognizer,
		log:        logger,
	}
}

// Handle applies one inbound event for the participant identified by identityKey.
// The reply is returned only after the transaction committed. On failure the
// transaction is rolled back, the error is logged and the caller gets the
// generic retry reply together with the error.
func (e *Engine) Handle(ctx context.Context, identityKey string, ev domain.Event) (domain.Reply, error) {
	ctx = logging.WithAttrs(ctx,
		slog.String("participant", identityKey),
		slog.String("event", string(ev.Kind)),
	)

	if identityKey == "" {
		return e.fail(ctx, "validate", fmt.Errorf("%w: empty identity key", domain.ErrInvalidEvent))
	}
	if err := ev.Validate(); err != nil {
		return e.fail(ctx, "validate", err)
	}

	unlock, err := e.locker.Lock(ctx, identityKey)
	if err != nil {
		return e.fail(ctx, "lock", err)
	}
	defer unlock()

	var reply domain.Reply
	err = e.uow.Do(ctx, identityKey, func(ctx context.Context, repo ProgressRepository) error {
		t := &turn{engine: e, repo: repo}
		r, err := t.run(ctx, identityKey, ev)
		if err != nil {
			return err
		}
		reply = r
		return nil
	})
	if err != nil {
		return e.fail(ctx, string(ev.Kind), err)
	}

	e.log.DebugContext(ctx, "event handled", slog.String("state", string(reply.State)))
	return reply, nil
}

func (e *Engine) fail(ctx context.Context, op string, err error) (domain.Reply, error) {
	level := slog.LevelError
	if errors.Is(err, domain.ErrInvalidEvent) || errors.Is(err, context.Canceled) {
		level = slog.LevelWarn
	}
	e.log.Log(ctx, level, "event failed", slog.String("op", op), slog.Any("error", err))
	return domain.RetryReply(), err
}

type noLock struct{}

func (noLock) Lock(context.Context, string) (func(), error) { return func() {}, nil }
