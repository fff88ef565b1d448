package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"quiz-progression/internal/domain"
)

// CatalogLoader fetches quiz content from the backing store.
type CatalogLoader interface {
	LoadCatalog(ctx context.Context) (domain.Catalog, error)
}

// DefaultCatalogKey is where the encoded catalog lives.
const DefaultCatalogKey = "quiz:catalog"

// CatalogRepository caches the catalog in Redis as one JSON value so that all
// instances share a single copy, and falls back to the loader on a miss.
type CatalogRepository struct {
	client *redis.Client
	loader CatalogLoader
	ttl    time.Duration
	key    string
	sf     singleflight.Group
	log    *slog.Logger

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewCatalogRepository(client *redis.Client, loader CatalogLoader, ttl time.Duration, logger *slog.Logger) *CatalogRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		key:    DefaultCatalogKey,
		log:    logger,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *CatalogRepository) GetCatalog(ctx context.Context) (domain.Catalog, error) {
	if cat, ok := r.cached(ctx); ok {
		return cat, nil
	}

	result, err, _ := r.sf.Do(r.key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if cat, ok := r.cached(ctx); ok {
			return cat, nil
		}

		cat, err := r.loader.LoadCatalog(ctx)
		if err != nil {
			return domain.Catalog{}, err
		}

		raw, err := json.Marshal(cat)
		if err != nil {
			return domain.Catalog{}, fmt.Errorf("encode catalog: %w", err)
		}
		if err := r.client.Set(ctx, r.key, raw, r.ttlWithJitter()).Err(); err != nil {
			// the loaded catalog is still good; the next read retries the write
			r.log.WarnContext(ctx, "catalog cache write failed", slog.Any("error", err))
		}
		return cat, nil
	})
	if err != nil {
		return domain.Catalog{}, err
	}
	return result.(domain.Catalog), nil
}

// Invalidate drops the shared cache entry, e.g. after seeding new content.
func (r *CatalogRepository) Invalidate(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("invalidate catalog: %w", err)
	}
	return nil
}

func (r *CatalogRepository) cached(ctx context.Context) (domain.Catalog, bool) {
	raw, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.WarnContext(ctx, "catalog cache read failed", slog.Any("error", err))
		}
		return domain.Catalog{}, false
	}
	var cat domain.Catalog
	if err := json.Unmarshal(raw, &cat); err != nil {
		r.log.WarnContext(ctx, "catalog cache entry unreadable", slog.Any("error", err))
		return domain.Catalog{}, false
	}
	return cat, true
}

func (r *CatalogRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
