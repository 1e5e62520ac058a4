package cdn

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// InfoCache stores file descriptors for a short time. Keys already include
// the principal so tenants never see each other's entries.
type InfoCache interface {
	Get(ctx context.Context, key string) (*FileInfo, bool)
	Set(ctx context.Context, key string, info *FileInfo, ttl time.Duration)
}

func cacheKey(path, principalID string) string {
	return principalID + "|" + path
}

type memoryEntry struct {
	info    *FileInfo
	expires time.Time
}

// MemoryInfoCache is a process-local InfoCache.
type MemoryInfoCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryInfoCache() *MemoryInfoCache {
	return &MemoryInfoCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (c *MemoryInfoCache) Get(_ context.Context, key string) (*FileInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return e.info.clone(), true
}

func (c *MemoryInfoCache) Set(_ context.Context, key string, info *FileInfo, ttl time.Duration) {
	if info == nil || ttl <= 0 {
		return
	}

	c.mu.Lock()
	c.entries[key] = memoryEntry{info: info.clone(), expires: c.now().Add(ttl)}
	c.mu.Unlock()
}

// RedisInfoCache shares descriptors between processes through Redis.
// Redis errors degrade to cache misses.
type RedisInfoCache struct {
	rdb    redis.Cmdable
	prefix string
	logger *slog.Logger
}

func NewRedisInfoCache(rdb redis.Cmdable, logger *slog.Logger) *RedisInfoCache {
	return &RedisInfoCache{rdb: rdb, prefix: "cdn:fileinfo:", logger: logger}
}

func (c *RedisInfoCache) Get(ctx context.Context, key string) (*FileInfo, bool) {
	data, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("file info cache read failed", "key", key, "error", err)
		}
		return nil, false
	}

	var info FileInfo
	if err := json.Unmarshal(data, &info); err != nil {
		c.logger.Warn("file info cache entry corrupted", "key", key, "error", err)
		return nil, false
	}
	return &info, true
}

func (c *RedisInfoCache) Set(ctx context.Context, key string, info *FileInfo, ttl time.Duration) {
	if info == nil || ttl <= 0 {
		return
	}

	data, err := json.Marshal(info)
	if err != nil {
		c.logger.Warn("file info cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.rdb.Set(ctx, c.prefix+key, data, ttl).Err(); err != nil {
		c.logger.Warn("file info cache write failed", "key", key, "error", err)
	}
}
