package resultfeed

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const CardsCacheKey = "cr:cards:v1"

// Cache stores opaque values with a TTL.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

// MemoryCache is a process-local Cache, used by the CLI and tests.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || (!e.expiresAt.IsZero() && c.now().After(e.expiresAt)) {
		delete(c.entries, key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.entries[key] = e
	return nil
}

type CardSource interface {
	Cards(ctx context.Context) ([]CardInfo, error)
}

// Catalog maps card ids to icon URLs, cached for a day.
type Catalog struct {
	source CardSource
	cache  Cache
	ttl    time.Duration
	log    *zap.Logger
}

func NewCatalog(source CardSource, cache Cache, ttl time.Duration, log *zap.Logger) *Catalog {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Catalog{source: source, cache: cache, ttl: ttl, log: log.Named("catalog")}
}

// IconsByID never fails: feed or cache errors degrade to an empty map.
func (c *Catalog) IconsByID(ctx context.Context) map[int64]string {
	if raw, ok, err := c.cache.Get(ctx, CardsCacheKey); err != nil {
		c.log.Warn("cards cache read failed", zap.Error(err))
	} else if ok {
		var icons map[int64]string
		if err := json.Unmarshal(raw, &icons); err == nil && len(icons) > 0 {
			return icons
		}
	}

	icons, err := c.Refresh(ctx)
	if err != nil {
		c.log.Warn("cards fetch failed", zap.Error(err))
		return map[int64]string{}
	}
	return icons
}

// Refresh fetches the catalog from the feed and caches it when non-empty.
func (c *Catalog) Refresh(ctx context.Context) (map[int64]string, error) {
	cards, err := c.source.Cards(ctx)
	if err != nil {
		return nil, err
	}

	icons := make(map[int64]string, len(cards))
	for _, card := range cards {
		if card.ID == 0 {
			continue
		}
		if url := card.IconURL(); url != "" {
			icons[card.ID] = url
		}
	}

	if len(icons) > 0 {
		data, err := json.Marshal(icons)
		if err == nil {
			if err := c.cache.Set(ctx, CardsCacheKey, data, c.ttl); err != nil {
				c.log.Warn("cards cache write failed", zap.Error(err))
			}
		}
	}
	return icons, nil
}

func (c *Catalog) IconURL(ctx context.Context, cardID int64) (string, bool) {
	url, ok := c.IconsByID(ctx)[cardID]
	return url, ok
}
