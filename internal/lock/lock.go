package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/thomaseleff/bunsen/common/id"
)

// ErrNotAcquired is returned when the lock stays held for the whole wait.
var ErrNotAcquired = errors.New("lock not acquired")

// Locker serializes work on one key across processes. release is always
// safe to call and only deletes the lock if this holder still owns it.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

type Config struct {
	Prefix        string        // key namespace, default "bunsen:lock:"
	TTL           time.Duration // lock expiry if the holder dies
	Wait          time.Duration // how long Acquire polls before giving up
	RetryInterval time.Duration // poll interval, default 100ms
}

// releaseScript deletes the key only when it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLocker struct {
	client *redis.Client
	cfg    Config
}

func NewRedisLocker(client *redis.Client, cfg Config) *RedisLocker {
	if cfg.Prefix == "" {
		cfg.Prefix = "bunsen:lock:"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 2 * time.Minute
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 100 * time.Millisecond
	}
	return &RedisLocker{client: client, cfg: cfg}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	fullKey := l.cfg.Prefix + key
	token := id.NewString()
	deadline := time.Now().Add(l.cfg.Wait)

	for {
		ok, err := l.client.SetNX(ctx, fullKey, token, l.cfg.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquiring lock %s: %w", fullKey, err)
		}
		if ok {
			return l.releaser(fullKey, token), nil
		}

		if !time.Now().Before(deadline) {
			return nil, fmt.Errorf("%s: %w", fullKey, ErrNotAcquired)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquiring lock %s: %w", fullKey, ctx.Err())
		case <-time.After(l.cfg.RetryInterval):
		}
	}
}

// releaser runs on a fresh context so a cancelled request still frees the lock.
func (l *RedisLocker) releaser(key, token string) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			slog.WarnContext(ctx, "failed to release lock", "key", key, "error", err)
		}
	}
}

// NopLocker never blocks. Used when no Redis is configured.
type NopLocker struct{}

func (NopLocker) Acquire(context.Context, string) (func(), error) {
	return func() {}, nil
}
