package cache

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pastvra/pastvra/internal/domain/models"
)

func TestAnimalCacheL1(t *testing.T) {
	ctx := context.Background()
	c := NewAnimalCache(nil, 10, time.Minute, nil)
	now := time.Date(2025, time.September, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	hits := testutil.ToFloat64(lookupsCounter.WithLabelValues("hit"))
	misses := testutil.ToFloat64(lookupsCounter.WithLabelValues("miss"))

	_, ok := c.Get(ctx, "farm-1", "T-1")
	assert.False(t, ok)

	animal := models.Animal{ID: "a1", FarmID: "farm-1", ChipID: "chip-1", EarTag: "T-1"}
	c.Set(ctx, "farm-1", "T-1", animal)

	got, ok := c.Get(ctx, "farm-1", "T-1")
	require.True(t, ok)
	assert.Equal(t, "a1", got.ID)

	_, ok = c.Get(ctx, "farm-2", "T-1")
	assert.False(t, ok, "keys are scoped per farm")

	now = now.Add(2 * time.Minute)
	_, ok = c.Get(ctx, "farm-1", "T-1")
	assert.False(t, ok, "expired entries are dropped")

	assert.Equal(t, hits+1, testutil.ToFloat64(lookupsCounter.WithLabelValues("hit")))
	assert.Equal(t, misses+3, testutil.ToFloat64(lookupsCounter.WithLabelValues("miss")))
	assert.Empty(t, c.l1)
}

func TestAnimalCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	c := NewAnimalCache(nil, 10, time.Minute, nil)
	animal := models.Animal{ID: "a1", FarmID: "farm-1", ChipID: "chip-1", EarTag: "T-1"}
	c.Set(ctx, "farm-1", "chip-1", animal)
	c.Set(ctx, "farm-1", "T-1", animal)

	c.Invalidate(ctx, animal)

	_, ok := c.Get(ctx, "farm-1", "chip-1")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "farm-1", "T-1")
	assert.False(t, ok)
}

func TestAnimalCacheEvictsWhenFull(t *testing.T) {
	ctx := context.Background()
	c := NewAnimalCache(nil, 2, time.Minute, nil)
	now := time.Date(2025, time.September, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set(ctx, "farm-1", "first", models.Animal{ID: "1"})
	now = now.Add(time.Second)
	c.Set(ctx, "farm-1", "second", models.Animal{ID: "2"})
	now = now.Add(time.Second)
	c.Set(ctx, "farm-1", "third", models.Animal{ID: "3"})

	_, ok := c.Get(ctx, "farm-1", "first")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "farm-1", "third")
	assert.True(t, ok)
	assert.Len(t, c.l1, 2)
}

func TestAnimalCacheSurvivesUnreachableRedis(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	defer client.Close()
	c := NewAnimalCache(client, 10, time.Minute, nil)

	c.Set(ctx, "farm-1", "T-1", models.Animal{ID: "a1"})
	got, ok := c.Get(ctx, "farm-1", "T-1")
	require.True(t, ok, "L1 answers even when redis is down")
	assert.Equal(t, "a1", got.ID)

	_, ok = c.Get(ctx, "farm-1", "other")
	assert.False(t, ok)
}
