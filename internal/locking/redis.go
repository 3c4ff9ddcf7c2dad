package locking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// unlockScript deletes the lock only if this holder still owns it, so an
// expired-and-reacquired lock is never released by the old holder.
var unlockScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// Redis is a distributed per-key lock manager for multi-instance
// deployments. Locks expire after TTL so a crashed holder cannot wedge an
// account forever.
type Redis struct {
	client     *redis.Client
	prefix     string
	ttl        time.Duration
	retryDelay time.Duration
}

// NewRedis creates a redis lock manager. Zero ttl defaults to 30s.
func NewRedis(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Redis{
		client:     client,
		prefix:     prefix,
		ttl:        ttl,
		retryDelay: 25 * time.Millisecond,
	}
}

func (r *Redis) key(raw string) string {
	if r.prefix == "" {
		return "lock:" + raw
	}
	return r.prefix + ":lock:" + raw
}

func (r *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	redisKey := r.key(key)

	for {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.retryDelay):
		}
	}

	return func() {
		// Best effort: if redis is unreachable the TTL reclaims the lock.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = unlockScript.Run(releaseCtx, r.client, []string{redisKey}, token).Result()
	}, nil
}
