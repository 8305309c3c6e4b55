/*
redis.go - Redis token lock

PURPOSE:
  Advisory locking across multiple server instances. A lock is a Redis
  key set with SetNX to a random token and a TTL; release deletes the
  key only if it still holds our token, so an expired lock taken over by
  another instance is never released by the stale holder.

ACQUISITION:
  Contended acquires retry with a fixed delay until the context is done.
  The TTL is the crash-safety bound: a holder that dies without
  releasing blocks others for at most ttl.
*/
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// releaseScript deletes the lock key only when it still holds the token
// that acquired it.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Redis is a single-node Redis token lock.
type Redis struct {
	client     *redis.Client
	retryDelay time.Duration
	keyPrefix  string
}

// NewRedis creates a Redis-backed locker. The connection is verified
// with a ping so misconfiguration fails at startup, not on first vote.
func NewRedis(addr, password string, db int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis lock backend unreachable: %w", err)
	}
	return &Redis{
		client:     client,
		retryDelay: 25 * time.Millisecond,
		keyPrefix:  "lock:",
	}, nil
}

func (r *Redis) Acquire(ctx context.Context, name string, ttl time.Duration) (ReleaseFunc, error) {
	key := r.keyPrefix + name
	token := uuid.NewString()

	for {
		ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", name, err)
		}
		if ok {
			release := func() {
				// Best-effort: the TTL reclaims the lock if this fails.
				_ = releaseScript.Run(context.Background(), r.client, []string{key}, token).Err()
			}
			return release, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.retryDelay):
		}
	}
}

// Close releases the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}
