// Package detector classifies indices as log-related by sending their
// schema and sample documents to a named detection agent, caching the
// verdict per (index, data-source) pair.
package detector

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dashboards-assistant/internal/jsonx"
)

// redisKeyPrefix namespaces detection entries in the shared cache.
const redisKeyPrefix = "assistant:index-type:"

// RedisCommands is the subset of redis the cache mirrors through.
// *redis.Client satisfies it; tests inject a fake.
type RedisCommands interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// IndexCacheData is one cached classification verdict.
type IndexCacheData struct {
	IsRelated bool   `json:"isRelated"`
	Reason    string `json:"reason"`
}

// Cache remembers classifications keyed by index name and data-source id.
// It is an explicit service with injected lifecycle rather than a bare
// package-level map: construct at startup, Clear on teardown.
//
// L1 is an in-process LRU sized so eviction does not fire in ordinary
// sessions. When a redis client is supplied, writes are mirrored there
// asynchronously and L1 misses are promoted from it, so multiple server
// instances converge. Concurrent detections of one key may still both
// miss and both write; the last writer wins.
type Cache struct {
	l1     *lru.Cache[string, IndexCacheData]
	l2     RedisCommands
	logger *zap.Logger

	mu     sync.Mutex
	hits   int64
	misses int64
}

// NewCache creates a detection cache holding up to size entries.
// redisClient may be nil to run purely in-process.
func NewCache(size int, redisClient RedisCommands, logger *zap.Logger) (*Cache, error) {
	l1, err := lru.New[string, IndexCacheData](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create lru cache: %w", err)
	}
	return &Cache{
		l1:     l1,
		l2:     redisClient,
		logger: logger.Named("detection-cache"),
	}, nil
}

// cacheKey joins index name and data-source id. An absent data-source id
// and an explicit empty string share one slot.
func cacheKey(index, dataSourceID string) string {
	return index + "|" + dataSourceID
}

// Get returns the cached verdict for an index on a data source.
func (c *Cache) Get(ctx context.Context, index, dataSourceID string) (IndexCacheData, bool) {
	key := cacheKey(index, dataSourceID)

	if entry, found := c.l1.Get(key); found {
		c.record(true)
		return entry, true
	}

	if c.l2 != nil {
		data, err := c.l2.Get(ctx, redisKeyPrefix+key).Bytes()
		if err == nil && len(data) > 0 {
			var entry IndexCacheData
			if err := jsonx.Unmarshal(data, &entry); err == nil {
				c.record(true)
				c.l1.Add(key, entry)
				return entry, true
			}
		}
	}

	c.record(false)
	return IndexCacheData{}, false
}

// Set stores a verdict, overwriting any previous entry wholesale.
func (c *Cache) Set(ctx context.Context, entry IndexCacheData, index, dataSourceID string) {
	key := cacheKey(index, dataSourceID)
	c.l1.Add(key, entry)

	if c.l2 != nil {
		go func() {
			data, err := jsonx.Marshal(entry)
			if err != nil {
				return
			}
			if err := c.l2.Set(context.WithoutCancel(ctx), redisKeyPrefix+key, data, 0).Err(); err != nil {
				c.logger.Warn("Failed to mirror detection entry to redis",
					zap.String("key", key),
					zap.Error(err))
			}
		}()
	}
}

// Dump returns a full snapshot of the in-process cache. Used only for
// diagnostic trace logging.
func (c *Cache) Dump() map[string]IndexCacheData {
	keys := c.l1.Keys()
	snapshot := make(map[string]IndexCacheData, len(keys))
	for _, key := range keys {
		if entry, found := c.l1.Peek(key); found {
			snapshot[key] = entry
		}
	}
	return snapshot
}

// Len returns the number of in-process entries.
func (c *Cache) Len() int {
	return c.l1.Len()
}

// Clear drops all in-process entries.
func (c *Cache) Clear() {
	c.l1.Purge()
}

// Stats returns hit/miss counters since startup.
func (c *Cache) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func (c *Cache) record(hit bool) {
	c.mu.Lock()
	if hit {
		c.hits++
	} else {
		c.misses++
	}
	c.mu.Unlock()
}
