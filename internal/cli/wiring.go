package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"quiz-progression/internal/app"
	"quiz-progression/internal/config"
	"quiz-progression/internal/content"
	"quiz-progression/internal/domain"
	"quiz-progression/internal/infra/memory"
	pgloader "quiz-progression/internal/infra/postgres"
	rediscache "quiz-progression/internal/infra/redis"
	progressstore "quiz-progression/internal/infra/store"
	"quiz-progression/internal/logging"
)

const driverMemory = "memory"

func newLogger(cfg config.Config) *slog.Logger {
	return newLoggerTo(os.Stdout, cfg)
}

func newLoggerTo(w io.Writer, cfg config.Config) *slog.Logger {
	return logging.New(w, logging.ParseLevel(cfg.Log.Level))
}

func newRedisClient(cfg config.Config) *redis.Client {
	if cfg.Redis.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// wiring holds everything the engine is built from plus what must be closed
// on shutdown.
type wiring struct {
	deps    app.Deps
	closers []func()
}

func (r *wiring) close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// buildWiring picks the store, catalog cache and locker from config.
func buildWiring(ctx context.Context, cfg config.Config, logger *slog.Logger) (*wiring, error) {
	rt := &wiring{deps: app.Deps{Logger: logger}}

	driver := cfg.Store.Driver
	if driver == "" && cfg.Store.DSN == "" {
		driver = driverMemory
	}

	var loader memory.CatalogLoader
	switch driver {
	case driverMemory:
		store := memory.NewStore()
		cat, err := demoCatalog(cfg)
		if err != nil {
			return nil, err
		}
		if err := store.Seed(ctx, cat); err != nil {
			return nil, err
		}
		rt.deps.UnitOfWork = store
		loader = store
	default:
		db, err := openDB(cfg)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() { _ = db.Close() })
		if err := runMigrations(ctx, db, logger); err != nil {
			rt.close()
			return nil, err
		}
		rt.deps.UnitOfWork = progressstore.NewUnitOfWork(db)
		loader = progressstore.NewCatalogLoader(db)
	}

	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			rt.close()
			return nil, fmt.Errorf("connect catalog pool: %w", err)
		}
		rt.closers = append(rt.closers, pool.Close)
		loader = pgloader.NewCatalogLoader(pool)
	}

	catalogTTL := config.TTLDuration(cfg.Catalog.TTL, 10*time.Minute)
	redisClient := newRedisClient(cfg)
	if redisClient != nil {
		rt.closers = append(rt.closers, func() { _ = redisClient.Close() })
		rt.deps.Catalog = rediscache.NewCatalogRepository(redisClient, loader, catalogTTL, logger)
	} else {
		rt.deps.Catalog = memory.NewCatalogRepository(loader, catalogTTL)
	}

	switch {
	case cfg.Lock.Backend == "redis" && redisClient != nil:
		lease := config.TTLDuration(cfg.Lock.Lease, 30*time.Second)
		rt.deps.Locker = rediscache.NewLocker(redisClient, lease, logger)
	case cfg.Lock.Backend == "redis":
		rt.close()
		return nil, fmt.Errorf("lock backend redis needs redis.addr")
	default:
		rt.deps.Locker = memory.NewLocker()
	}
	return rt, nil
}

// demoCatalog is the content for the in-memory driver: the configured file,
// or a small built-in quiz.
func demoCatalog(cfg config.Config) (domain.Catalog, error) {
	if cfg.Catalog.File != "" {
		return content.LoadFile(cfg.Catalog.File)
	}
	return content.Parse([]byte(demoCatalogYAML))
}

const demoCatalogYAML = `
levels:
  - name: Welcome
    rank: 1
    kind: intro
    intro_text: Welcome to the quiz. Answer questions, collect points, skip what you like.
  - name: Warm-up
    rank: 2
    reward: 10
    questions:
      - text: What is 2 + 2?
        answer: "4"
        hint: It is even.
  - name: About you
    rank: 3
    kind: info_collection
    reward: 5
  - name: Capitals
    rank: 4
    reward: 20
    questions:
      - text: What is the capital of France?
        answer: Paris
`
