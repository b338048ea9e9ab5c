package lock

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// unlockScript performs a compare-and-delete: only the holder that set
// the fencing token may release the lock, so a lease that has already
// expired and been claimed by someone else is never stolen back.
const unlockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`

// RedisKeyedLock is the distributed KeyedLock implementation: SET NX
// PX for acquisition, a Lua-scripted compare-and-delete for release.
// Used when Store is also Redis-backed and multiple engine instances
// run behind a load balancer.
type RedisKeyedLock struct {
	client *redis.Client
	prefix string

	acquired  atomic.Int64
	contended atomic.Int64
}

// NewRedisKeyedLock wraps an existing Redis client.
func NewRedisKeyedLock(client *redis.Client) *RedisKeyedLock {
	return &RedisKeyedLock{client: client, prefix: "auctionhouse:lock:"}
}

func (l *RedisKeyedLock) keyFor(key string) string { return l.prefix + key }

func (l *RedisKeyedLock) WithLock(ctx context.Context, key string, opts Options, fn func(ctx context.Context) error) error {
	if opts.Timeout <= 0 {
		opts = DefaultOptions()
	}
	token := uuid.NewString()
	redisKey := l.keyFor(key)
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		ok, err := l.client.SetNX(ctx, redisKey, token, opts.Timeout).Result()
		if err != nil {
			return fmt.Errorf("redis lock acquire: %w", err)
		}
		if ok {
			l.acquired.Add(1)
			defer l.client.Eval(context.Background(), unlockScript, []string{redisKey}, token)
			return fn(ctx)
		}
		l.contended.Add(1)
		if attempt == opts.MaxRetries {
			break
		}
		delay := opts.RetryDelay * time.Duration(attempt+1)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return busyErr(key)
}

func (l *RedisKeyedLock) IsLocked(key string) bool {
	n, err := l.client.Exists(context.Background(), l.keyFor(key)).Result()
	return err == nil && n > 0
}

func (l *RedisKeyedLock) Stats() Stats {
	return Stats{
		Acquired:  l.acquired.Load(),
		Contended: l.contended.Load(),
	}
}

var _ KeyedLock = (*RedisKeyedLock)(nil)
