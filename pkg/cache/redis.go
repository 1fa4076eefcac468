// Package cache wraps the shared Redis client used for caching and locks.
package cache

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(url, password string, db int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     url,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisCache{client: client}, nil
}

// Client exposes the underlying client for middleware that needs it directly.
func (c *RedisCache) Client() *redis.Client {
	return c.client
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, key, data, expiration).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return err
	}

	return json.Unmarshal([]byte(data), dest)
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

func (c *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	result, err := c.client.Exists(ctx, key).Result()
	return result > 0, err
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// AcquireRunLock takes a mutual-exclusion lock over a participant set so two
// netting runs never touch the same participants concurrently. The key is
// derived from the sorted participant ids, so overlapping sets hash to the
// same key only when identical; callers holding broader locks should pass
// the full superset. Returns false when another run holds the lock.
func (c *RedisCache) AcquireRunLock(ctx context.Context, participantIDs []uuid.UUID, token string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, runLockKey(participantIDs), token, ttl).Result()
}

// ReleaseRunLock releases a run lock if it is still held by token.
func (c *RedisCache) ReleaseRunLock(ctx context.Context, participantIDs []uuid.UUID, token string) error {
	key := runLockKey(participantIDs)

	// Compare-and-delete so an expired lock re-acquired by another run is
	// never released by the original holder.
	const script = `
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		end
		return 0
	`
	return c.client.Eval(ctx, script, []string{key}, token).Err()
}

func runLockKey(participantIDs []uuid.UUID) string {
	ids := make([]string, len(participantIDs))
	for i, id := range participantIDs {
		ids[i] = id.String()
	}
	sort.Strings(ids)
	return "netting:runlock:" + strings.Join(ids, ",")
}
