/*
cache.go - Alert list caching for owner dashboards

PURPOSE:
  Classification is cheap, but the dashboard asks for the same owner/day
  pair on every page load. Alert lists are cached per owner and date and
  dropped whenever a tenancy or payment for that owner changes.

KEYS:
  rentalerts:{owner}:version               invalidation counter
  rentalerts:{owner}:v{n}:{YYYY-MM-DD}     JSON-encoded []rent.Alert
  rentalerts:{owner}:index                 set of the alert keys above

VERSIONING:
  Readers take the owner's version before loading from the store and write
  the result under that version. Invalidate bumps the version, so a list
  computed from data that was current before the write lands on a key no
  later reader asks for, and simply expires.

SEE ALSO:
  - dashboard/service.go: Reads through the cache
  - api/handlers.go: Invalidates after writes
*/
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/warp/rent-engine/rent"
)

// Version identifies one generation of an owner's cached alerts.
type Version int64

// AlertCache stores classified alert lists keyed by owner, version and date.
type AlertCache interface {
	Version(ctx context.Context, owner rent.OwnerID) (Version, error)
	Get(ctx context.Context, owner rent.OwnerID, v Version, day rent.Date) ([]rent.Alert, bool, error)
	Set(ctx context.Context, owner rent.OwnerID, v Version, day rent.Date, alerts []rent.Alert) error
	Invalidate(ctx context.Context, owner rent.OwnerID) error
}

const keyPrefix = "rentalerts"

// =============================================================================
// REDIS
// =============================================================================

// Redis is an AlertCache backed by a Redis server.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

var _ AlertCache = (*Redis)(nil)

// NewRedis wraps an existing client. A zero ttl keeps entries until invalidated.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

// Dial parses a redis:// URL, connects and pings the server.
func Dial(ctx context.Context, url string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedis(client, ttl), nil
}

// Close releases the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}

func alertKey(owner rent.OwnerID, v Version, day rent.Date) string {
	return fmt.Sprintf("%s:%s:v%d:%s", keyPrefix, owner, v, day)
}

func versionKey(owner rent.OwnerID) string {
	return fmt.Sprintf("%s:%s:version", keyPrefix, owner)
}

func indexKey(owner rent.OwnerID) string {
	return fmt.Sprintf("%s:%s:index", keyPrefix, owner)
}

// Version returns the owner's current cache generation, 0 if never invalidated.
func (r *Redis) Version(ctx context.Context, owner rent.OwnerID) (Version, error) {
	n, err := r.client.Get(ctx, versionKey(owner)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read cache version: %w", err)
	}
	return Version(n), nil
}

func (r *Redis) Get(ctx context.Context, owner rent.OwnerID, v Version, day rent.Date) ([]rent.Alert, bool, error) {
	raw, err := r.client.Get(ctx, alertKey(owner, v, day)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached alerts: %w", err)
	}

	alerts := []rent.Alert{}
	if err := json.Unmarshal(raw, &alerts); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached alerts: %w", err)
	}
	return alerts, true, nil
}

func (r *Redis) Set(ctx context.Context, owner rent.OwnerID, v Version, day rent.Date, alerts []rent.Alert) error {
	if alerts == nil {
		alerts = []rent.Alert{}
	}
	raw, err := json.Marshal(alerts)
	if err != nil {
		return fmt.Errorf("failed to encode alerts: %w", err)
	}

	key := alertKey(owner, v, day)
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, key, raw, r.ttl)
	pipe.SAdd(ctx, indexKey(owner), key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache alerts: %w", err)
	}
	return nil
}

// Invalidate bumps the owner's version and drops every cached date.
func (r *Redis) Invalidate(ctx context.Context, owner rent.OwnerID) error {
	if err := r.client.Incr(ctx, versionKey(owner)).Err(); err != nil {
		return fmt.Errorf("failed to bump cache version: %w", err)
	}

	idx := indexKey(owner)
	keys, err := r.client.SMembers(ctx, idx).Result()
	if err != nil {
		return fmt.Errorf("failed to read cache index: %w", err)
	}
	keys = append(keys, idx)
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate alerts: %w", err)
	}
	return nil
}

// =============================================================================
// NOOP
// =============================================================================

// Noop never stores anything. Used when no Redis URL is configured.
type Noop struct{}

var _ AlertCache = Noop{}

func (Noop) Version(context.Context, rent.OwnerID) (Version, error) { return 0, nil }

func (Noop) Get(context.Context, rent.OwnerID, Version, rent.Date) ([]rent.Alert, bool, error) {
	return nil, false, nil
}

func (Noop) Set(context.Context, rent.OwnerID, Version, rent.Date, []rent.Alert) error { return nil }

func (Noop) Invalidate(context.Context, rent.OwnerID) error { return nil }
