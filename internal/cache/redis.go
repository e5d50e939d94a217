// Package cache keeps public profile snapshots in Redis so the anonymous
// send page does not hit the database on every view.
//
// A nil *ProfileCache is valid and behaves as an always-empty cache, which
// is what the service gets when REDIS_ADDR is unset.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tbourn/go-kala-backend/internal/config"
)

const keyPrefix = "kala:profile:"

// ProfileCache stores JSON values under per-username keys.
type ProfileCache struct {
	Db  *redis.Client
	TTL time.Duration
}

// New connects to Redis and pings it. An empty address returns (nil, nil).
func New(ctx context.Context, cfg config.RedisConfig) (*ProfileCache, error) {
	const op = "cache.New"
	if cfg.Addr == "" {
		return nil, nil
	}
	db := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
	if err := db.Ping(ctx).Err(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &ProfileCache{Db: db, TTL: cfg.TTL}, nil
}

func key(username string) string { return keyPrefix + username }

// Get decodes the cached value for username into result. It reports false
// on a miss.
func (c *ProfileCache) Get(ctx context.Context, username string, result any) (bool, error) {
	const op = "cache.Get"
	if c == nil {
		return false, nil
	}
	val, err := c.Db.Get(ctx, key(username)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if err := json.Unmarshal(val, result); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// Set stores value for username with the configured TTL.
func (c *ProfileCache) Set(ctx context.Context, username string, value any) error {
	const op = "cache.Set"
	if c == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := c.Db.Set(ctx, key(username), data, c.TTL).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Invalidate drops the entries for the given usernames.
func (c *ProfileCache) Invalidate(ctx context.Context, usernames ...string) error {
	if c == nil || len(usernames) == 0 {
		return nil
	}
	keys := make([]string, 0, len(usernames))
	for _, u := range usernames {
		keys = append(keys, key(u))
	}
	return c.Db.Del(ctx, keys...).Err()
}

// Close releases the client.
func (c *ProfileCache) Close() error {
	if c == nil {
		return nil
	}
	return c.Db.Close()
}
