package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/rent-engine/rent"
)

func newTestCache(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedis(client, ttl), mr
}

func sampleAlerts() []rent.Alert {
	return []rent.Alert{
		{
			ID:            "overdue-t1",
			TenancyID:     "t1",
			TenantName:    "Ana",
			PropertyLabel: "Unit 1",
			DueDay:        3,
			Kind:          rent.KindOverdue,
			Amount:        decimal.RequireFromString("1200.50"),
			Currency:      "USD",
		},
	}
}

func TestRedis_MissThenHit(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)
	ctx := context.Background()
	day := rent.NewDate(2024, time.June, 15)

	_, ok, err := c.Get(ctx, "owner-1", 0, day)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "owner-1", 0, day, sampleAlerts()))

	got, ok, err := c.Get(ctx, "owner-1", 0, day)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, "overdue-t1", got[0].ID)
	assert.Equal(t, rent.KindOverdue, got[0].Kind)
	assert.True(t, decimal.RequireFromString("1200.5").Equal(got[0].Amount))
}

func TestRedis_EmptyListIsAHit(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)
	ctx := context.Background()
	day := rent.NewDate(2024, time.June, 15)

	require.NoError(t, c.Set(ctx, "owner-1", 0, day, nil))

	got, ok, err := c.Get(ctx, "owner-1", 0, day)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRedis_InvalidateDropsAllDatesForOwner(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	ctx := context.Background()
	d1 := rent.NewDate(2024, time.June, 15)
	d2 := rent.NewDate(2024, time.June, 16)

	require.NoError(t, c.Set(ctx, "owner-1", 0, d1, sampleAlerts()))
	require.NoError(t, c.Set(ctx, "owner-1", 0, d2, sampleAlerts()))
	require.NoError(t, c.Set(ctx, "owner-2", 0, d1, sampleAlerts()))

	require.NoError(t, c.Invalidate(ctx, "owner-1"))

	for _, d := range []rent.Date{d1, d2} {
		_, ok, err := c.Get(ctx, "owner-1", 0, d)
		require.NoError(t, err)
		assert.False(t, ok, d.String())
	}
	_, ok, err := c.Get(ctx, "owner-2", 0, d1)
	require.NoError(t, err)
	assert.True(t, ok, "other owners are untouched")
	assert.False(t, mr.Exists("rentalerts:owner-1:index"))

	v, err := c.Version(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, Version(1), v)
	v, err = c.Version(ctx, "owner-2")
	require.NoError(t, err)
	assert.Equal(t, Version(0), v)
}

func TestRedis_WriteAfterInvalidateIsNeverRead(t *testing.T) {
	// GIVEN: A reader takes the version before loading from the store
	c, _ := newTestCache(t, time.Minute)
	ctx := context.Background()
	day := rent.NewDate(2024, time.June, 15)

	stale, err := c.Version(ctx, "owner-1")
	require.NoError(t, err)

	// WHEN: A write invalidates the owner while the reader is loading,
	// and the reader then stores its now-stale list
	require.NoError(t, c.Invalidate(ctx, "owner-1"))
	require.NoError(t, c.Set(ctx, "owner-1", stale, day, sampleAlerts()))

	// THEN: The next reader sees the new version and misses
	current, err := c.Version(ctx, "owner-1")
	require.NoError(t, err)
	assert.NotEqual(t, stale, current)

	_, ok, err := c.Get(ctx, "owner-1", current, day)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedis_EntriesExpire(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	ctx := context.Background()
	day := rent.NewDate(2024, time.June, 15)

	require.NoError(t, c.Set(ctx, "owner-1", 0, day, sampleAlerts()))
	mr.FastForward(2 * time.Minute)

	_, ok, err := c.Get(ctx, "owner-1", 0, day)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedis_CorruptEntryIsAnError(t *testing.T) {
	c, mr := newTestCache(t, 0)
	require.NoError(t, mr.Set("rentalerts:owner-1:v0:2024-06-15", "not json"))

	_, _, err := c.Get(context.Background(), "owner-1", 0, rent.NewDate(2024, time.June, 15))
	assert.Error(t, err)
}

func TestNoop_NeverHits(t *testing.T) {
	var c AlertCache = Noop{}
	ctx := context.Background()
	day := rent.NewDate(2024, time.June, 15)

	require.NoError(t, c.Set(ctx, "owner-1", 0, day, sampleAlerts()))
	_, ok, err := c.Get(ctx, "owner-1", 0, day)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, c.Invalidate(ctx, "owner-1"))
	v, err := c.Version(ctx, "owner-1")
	require.NoError(t, err)
	assert.Zero(t, v)
}
