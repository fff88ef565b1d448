package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a per-participant lock shared by every instance. The lease expires
// on its own if the holder dies.
type Locker struct {
	client *redis.Client
	lease  time.Duration
	retry  time.Duration
	log    *slog.Logger
}

func NewLocker(client *redis.Client, lease time.Duration, logger *slog.Logger) *Locker {
	if lease <= 0 {
		lease = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Locker{client: client, lease: lease, retry: 10 * time.Millisecond, log: logger}
}

// Lock polls SET NX until it wins or ctx is done.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	lockKey := l.key(key)
	token := uuid.NewString()

	wait := l.retry
	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, l.lease).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("acquire lock: %w", err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
		if wait < 200*time.Millisecond {
			wait *= 2
		}
	}

	return func() {
		// release even if the caller's context is already gone
		ctx := context.WithoutCancel(ctx)
		if err := releaseScript.Run(ctx, l.client, []string{lockKey}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			l.log.WarnContext(ctx, "release lock failed", slog.String("key", lockKey), slog.Any("error", err))
		}
	}, nil
}

func (l *Locker) key(key string) string {
	return "quiz:lock:" + key
}
