package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/kataras/golog"
	"github.com/redis/go-redis/v9"

	"github.com/katakuxiko/vectorbrain/internal/vector"
)

// Cache stores embeddings by content digest. Implementations must be safe
// for concurrent use and must never expose a partially written vector.
type Cache interface {
	Get(ctx context.Context, key string) ([]float32, bool)
	// Add stores v unless key is already present.
	Add(ctx context.Context, key string, v []float32)
}

// Digest is the cache key for text embedded with model.
func Digest(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return model + ":" + hex.EncodeToString(sum[:])
}

// LRUCache — ограниченный по размеру кэш в памяти процесса.
type LRUCache struct {
	lru *lru.Cache[string, []float32]
}

func NewLRUCache(size int) (*LRUCache, error) {
	c, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}
	return &LRUCache{lru: c}, nil
}

func (c *LRUCache) Get(_ context.Context, key string) ([]float32, bool) {
	v, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	return clone(v), true
}

func (c *LRUCache) Add(_ context.Context, key string, v []float32) {
	c.lru.PeekOrAdd(key, clone(v))
}

// Len returns the number of cached vectors.
func (c *LRUCache) Len() int { return c.lru.Len() }

// RedisCache shares embeddings between replicas; entries expire after ttl.
// Redis failures are logged and treated as misses.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	log    *golog.Logger
}

func NewRedisCache(client *redis.Client, ttl time.Duration, log *golog.Logger) *RedisCache {
	return &RedisCache{client: client, prefix: "vectorbrain:emb:", ttl: ttl, log: log}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warnf("redis cache get: %v", err)
		}
		return nil, false
	}
	v, err := vector.Decode(data)
	if err != nil {
		c.log.Warnf("redis cache entry %s: %v", key, err)
		return nil, false
	}
	return v, true
}

func (c *RedisCache) Add(ctx context.Context, key string, v []float32) {
	if err := c.client.SetNX(ctx, c.prefix+key, vector.Encode(v), c.ttl).Err(); err != nil {
		c.log.Warnf("redis cache set: %v", err)
	}
}

// Tiered checks the in-process cache first, then the shared one, and
// promotes shared hits into the local tier.
type Tiered struct {
	local  Cache
	shared Cache
}

func NewTiered(local, shared Cache) *Tiered {
	return &Tiered{local: local, shared: shared}
}

func (t *Tiered) Get(ctx context.Context, key string) ([]float32, bool) {
	if v, ok := t.local.Get(ctx, key); ok {
		return v, true
	}
	v, ok := t.shared.Get(ctx, key)
	if ok {
		t.local.Add(ctx, key, v)
	}
	return v, ok
}

func (t *Tiered) Add(ctx context.Context, key string, v []float32) {
	t.local.Add(ctx, key, v)
	t.shared.Add(ctx, key, v)
}

func clone(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
