// Package redislock provides short-lived distributed locks backed by Redis.
// The reminder dispatcher takes one per clinic so that overlapping scheduler
// invocations never send the same batch twice.
package redislock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/klinicq/queue-platform/pkg/logging"
)

// ErrNotAcquired is returned when another holder already owns the lock.
var ErrNotAcquired = errors.New("redislock: not acquired")

const defaultTTL = 2 * time.Minute

// releaseScript deletes the lock only when the caller still owns it, so a
// holder that outlived its TTL cannot release a lock someone else re-acquired.
var releaseScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

// Locker issues named locks with a fixed TTL.
type Locker struct {
	client *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewLocker creates a Locker. A non-positive ttl falls back to two minutes,
// long enough to cover a clinic's reminder batch.
func NewLocker(client *redis.Client, ttl time.Duration, logger *logging.Logger) *Locker {
	if client == nil {
		panic("redislock: client is required")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Locker{client: client, ttl: ttl, logger: logger}
}

// Lock is a held lock. Release it when done; the TTL bounds the damage if the
// holder dies first.
type Lock struct {
	client *redis.Client
	key    string
	token  string
	logger *logging.Logger
}

// Acquire takes the named lock or returns ErrNotAcquired if it is held.
func (l *Locker) Acquire(ctx context.Context, name string) (*Lock, error) {
	key := "lock:" + name
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redislock: acquire %s: %w", name, err)
	}
	if !ok {
		return nil, ErrNotAcquired
	}
	l.logger.Debug("lock acquired", "key", key)
	return &Lock{client: l.client, key: key, token: token, logger: l.logger}, nil
}

// Release gives the lock back. Releasing a lock that expired and was taken by
// someone else is a no-op.
func (k *Lock) Release(ctx context.Context) error {
	_, err := releaseScript.Run(ctx, k.client, []string{k.key}, k.token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redislock: release %s: %w", k.key, err)
	}
	k.logger.Debug("lock released", "key", k.key)
	return nil
}

// WithLock runs fn while holding the named lock, bounding fn by the lock TTL
// so slow work cannot outlive its claim. The lock is released on return.
func (l *Locker) WithLock(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	lock, err := l.Acquire(ctx, name)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			l.logger.Error("failed to release lock", "key", lock.key, "error", err)
		}
	}()

	bounded, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()
	return fn(bounded)
}
