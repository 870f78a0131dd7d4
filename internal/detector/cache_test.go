package detector

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap/zaptest"

	"github.com/dashboards-assistant/internal/jsonx"
)

// fakeRedis implements RedisCommands over a plain map and signals each
// mirrored write so tests can wait for the async Set.
type fakeRedis struct {
	mu     sync.Mutex
	data   map[string]string
	gets   int
	writes chan string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		data:   make(map[string]string),
		writes: make(chan string, 8),
	}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if v, ok := f.data[key]; ok {
		return redis.NewStringResult(v, nil)
	}
	return redis.NewStringResult("", redis.Nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	f.data[key] = string(value.([]byte))
	f.mu.Unlock()
	f.writes <- key
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) get(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	return v, ok
}

func (f *fakeRedis) getCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := NewCache(8, nil, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	return c
}

func TestCacheSetGet(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	if _, found := c.Get(ctx, "logs-app", ""); found {
		t.Fatal("empty cache must miss")
	}

	c.Set(ctx, IndexCacheData{IsRelated: true, Reason: "logs"}, "logs-app", "")

	entry, found := c.Get(ctx, "logs-app", "")
	if !found {
		t.Fatal("expected hit after Set")
	}
	if !entry.IsRelated || entry.Reason != "logs" {
		t.Errorf("unexpected entry: %+v", entry)
	}
}

func TestCacheOverwritesWholesale(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, IndexCacheData{IsRelated: true, Reason: "logs"}, "logs-app", "")
	c.Set(ctx, IndexCacheData{IsRelated: false, Reason: "reclassified"}, "logs-app", "")

	entry, _ := c.Get(ctx, "logs-app", "")
	if entry.IsRelated || entry.Reason != "reclassified" {
		t.Errorf("expected wholesale overwrite, got %+v", entry)
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", c.Len())
	}
}

func TestCacheKeysDoNotCollide(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, IndexCacheData{IsRelated: true, Reason: "a"}, "logs-app", "")
	c.Set(ctx, IndexCacheData{IsRelated: false, Reason: "b"}, "logs-app", "ds2")
	c.Set(ctx, IndexCacheData{IsRelated: false, Reason: "c"}, "other-index", "")

	if c.Len() != 3 {
		t.Fatalf("expected 3 distinct entries, got %d", c.Len())
	}
	a, _ := c.Get(ctx, "logs-app", "")
	b, _ := c.Get(ctx, "logs-app", "ds2")
	if a.Reason != "a" || b.Reason != "b" {
		t.Errorf("cross-contamination: a=%+v b=%+v", a, b)
	}
}

// The default (absent) data-source id and an explicit empty string share
// one cache slot.
func TestCacheKeyNormalization(t *testing.T) {
	if cacheKey("logs-app", "") != "logs-app|" {
		t.Errorf("unexpected default key: %q", cacheKey("logs-app", ""))
	}
	if cacheKey("logs-app", "") == cacheKey("logs-app", "ds2") {
		t.Error("distinct data sources must not share a key")
	}
}

func TestCacheDump(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, IndexCacheData{IsRelated: true, Reason: "logs"}, "logs-app", "")
	c.Set(ctx, IndexCacheData{IsRelated: false, Reason: "metrics"}, "metrics-app", "ds2")

	snapshot := c.Dump()
	if len(snapshot) != 2 {
		t.Fatalf("expected 2 entries in dump, got %d", len(snapshot))
	}
	if !snapshot["logs-app|"].IsRelated {
		t.Errorf("unexpected dump contents: %+v", snapshot)
	}
	if snapshot["metrics-app|ds2"].Reason != "metrics" {
		t.Errorf("unexpected dump contents: %+v", snapshot)
	}
}

func TestCacheClearAndStats(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	c.Get(ctx, "logs-app", "") // miss
	c.Set(ctx, IndexCacheData{IsRelated: true}, "logs-app", "")
	c.Get(ctx, "logs-app", "") // hit

	hits, misses := c.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("expected 1 hit / 1 miss, got %d / %d", hits, misses)
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("expected empty cache after Clear, got %d", c.Len())
	}
}

// An L1 miss consults redis; a hit there is promoted so the next lookup
// stays in process.
func TestCachePromotesFromRedisOnMiss(t *testing.T) {
	fr := newFakeRedis()
	fr.data["assistant:index-type:logs-app|"] = `{"isRelated":true,"reason":"logs"}`

	c, err := NewCache(8, fr, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	ctx := context.Background()

	entry, found := c.Get(ctx, "logs-app", "")
	if !found {
		t.Fatal("expected redis entry to satisfy the L1 miss")
	}
	if !entry.IsRelated || entry.Reason != "logs" {
		t.Errorf("unexpected promoted entry: %+v", entry)
	}
	if c.Len() != 1 {
		t.Errorf("expected promotion into L1, got %d entries", c.Len())
	}

	if _, found := c.Get(ctx, "logs-app", ""); !found {
		t.Fatal("expected L1 hit after promotion")
	}
	if got := fr.getCount(); got != 1 {
		t.Errorf("promoted entry must not hit redis again, saw %d gets", got)
	}

	hits, misses := c.Stats()
	if hits != 2 || misses != 0 {
		t.Errorf("expected 2 hits / 0 misses, got %d / %d", hits, misses)
	}
}

func TestCacheSetMirrorsToRedis(t *testing.T) {
	fr := newFakeRedis()
	c, err := NewCache(8, fr, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}

	c.Set(context.Background(), IndexCacheData{IsRelated: true, Reason: "logs"}, "logs-app", "ds2")

	select {
	case key := <-fr.writes:
		if key != "assistant:index-type:logs-app|ds2" {
			t.Errorf("unexpected redis key: %q", key)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("async redis mirror write never happened")
	}

	raw, ok := fr.get("assistant:index-type:logs-app|ds2")
	if !ok {
		t.Fatal("entry missing from redis")
	}
	var entry IndexCacheData
	if err := jsonx.UnmarshalFromString(raw, &entry); err != nil {
		t.Fatalf("failed to decode mirrored entry: %v", err)
	}
	if !entry.IsRelated || entry.Reason != "logs" {
		t.Errorf("unexpected mirrored entry: %+v", entry)
	}
}

func TestCacheEvictsBeyondBound(t *testing.T) {
	c := newTestCache(t) // size 8
	ctx := context.Background()

	for _, idx := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"} {
		c.Set(ctx, IndexCacheData{Reason: idx}, idx, "")
	}
	if c.Len() != 8 {
		t.Errorf("expected LRU bound of 8, got %d", c.Len())
	}
	if _, found := c.Get(ctx, "j", ""); !found {
		t.Error("most recent entry must survive eviction")
	}
}
