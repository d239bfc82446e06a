// Package cache provides the two-level animal lookup cache used by the API:
// an in-process map in front of an optional Redis instance.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/pastvra/pastvra/internal/domain/models"
)

const keyPrefix = "pastvra:animal"

type entry struct {
	animal    models.Animal
	expiresAt time.Time
}

// AnimalCache caches identifier lookups (chip id or ear tag) per farm.
type AnimalCache struct {
	l1      map[string]entry
	l1Mutex sync.RWMutex

	// nil disables the second level.
	redisClient *redis.Client

	maxL1Size int
	ttl       time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

// NewAnimalCache builds a cache. redisClient may be nil.
func NewAnimalCache(redisClient *redis.Client, maxL1Size int, ttl time.Duration, logger *zap.Logger) *AnimalCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxL1Size <= 0 {
		maxL1Size = 1024
	}
	return &AnimalCache{
		l1:          make(map[string]entry),
		redisClient: redisClient,
		maxL1Size:   maxL1Size,
		ttl:         ttl,
		now:         time.Now,
		logger:      logger.Named("cache.animals"),
	}
}

// Get returns the cached animal for the identifier, if any.
func (c *AnimalCache) Get(ctx context.Context, farmID, term string) (*models.Animal, bool) {
	key := cacheKey(farmID, term)

	if a := c.getFromL1(key); a != nil {
		c.record(true)
		return a, true
	}

	if c.redisClient != nil {
		a, err := c.getFromL2(ctx, key)
		if err == nil {
			c.setToL1(key, *a)
			c.record(true)
			return a, true
		}
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("redis lookup failed", zap.String("key", key), zap.Error(err))
		}
	}

	c.record(false)
	return nil, false
}

// Set stores the animal under the identifier in both levels.
func (c *AnimalCache) Set(ctx context.Context, farmID, term string, animal models.Animal) {
	key := cacheKey(farmID, term)
	c.setToL1(key, animal)

	if c.redisClient == nil {
		return
	}
	data, err := json.Marshal(animal)
	if err != nil {
		c.logger.Warn("encoding animal for redis", zap.Error(err))
		return
	}
	if err := c.redisClient.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("redis write failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate drops every identifier of the animal from both levels.
func (c *AnimalCache) Invalidate(ctx context.Context, animal models.Animal) {
	keys := make([]string, 0, 2)
	for _, term := range []string{animal.ChipID, animal.EarTag} {
		if term != "" {
			keys = append(keys, cacheKey(animal.FarmID, term))
		}
	}
	if len(keys) == 0 {
		return
	}

	c.l1Mutex.Lock()
	for _, k := range keys {
		delete(c.l1, k)
	}
	c.l1Mutex.Unlock()

	if c.redisClient != nil {
		if err := c.redisClient.Del(ctx, keys...).Err(); err != nil {
			c.logger.Warn("redis invalidation failed", zap.Strings("keys", keys), zap.Error(err))
		}
	}
}

func (c *AnimalCache) record(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	lookupsCounter.WithLabelValues(outcome).Inc()
}

func (c *AnimalCache) getFromL1(key string) *models.Animal {
	c.l1Mutex.RLock()
	e, ok := c.l1[key]
	c.l1Mutex.RUnlock()
	if !ok {
		return nil
	}
	if c.ttl > 0 && c.now().After(e.expiresAt) {
		c.l1Mutex.Lock()
		delete(c.l1, key)
		c.l1Mutex.Unlock()
		return nil
	}
	a := e.animal
	return &a
}

func (c *AnimalCache) setToL1(key string, animal models.Animal) {
	c.l1Mutex.Lock()
	defer c.l1Mutex.Unlock()

	if _, exists := c.l1[key]; !exists && len(c.l1) >= c.maxL1Size {
		c.evictOldest()
	}
	c.l1[key] = entry{animal: animal, expiresAt: c.now().Add(c.ttl)}
}

// evictOldest drops the entry closest to expiry. Caller holds l1Mutex.
func (c *AnimalCache) evictOldest() {
	var (
		oldestKey string
		oldest    time.Time
	)
	for k, e := range c.l1 {
		if oldestKey == "" || e.expiresAt.Before(oldest) {
			oldestKey, oldest = k, e.expiresAt
		}
	}
	delete(c.l1, oldestKey)
}

func (c *AnimalCache) getFromL2(ctx context.Context, key string) (*models.Animal, error) {
	data, err := c.redisClient.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}
	var a models.Animal
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decoding cached animal: %w", err)
	}
	return &a, nil
}

func cacheKey(farmID, term string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, farmID, term)
}
