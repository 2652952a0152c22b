// Package cache memoises search responses in Redis. Keys embed the generation
// of the served snapshot, so a new commit makes older entries unreachable
// without any coordination; Invalidate only reclaims their memory early.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Conversation-Search/pkg/redis"
)

const keyPrefix = "search:"

// KV is the subset of the Redis client the cache uses.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Searcher is implemented by *executor.Executor.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) (*executor.Response, error)
	Limit(limit int) int
}

// GenerationFunc reports the generation currently served.
type GenerationFunc func() uint64

// QueryCache wraps a Searcher with a read-through Redis cache. Concurrent
// misses for the same key are collapsed into one search.
type QueryCache struct {
	kv         KV
	next       Searcher
	generation GenerationFunc
	ttl        time.Duration
	group      singleflight.Group
	metrics    *metrics.Metrics
	logger     *slog.Logger
	hits       atomic.Int64
	misses     atomic.Int64
}

// New creates a QueryCache. m may be nil.
func New(kv KV, next Searcher, generation GenerationFunc, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		kv:         kv,
		next:       next,
		generation: generation,
		ttl:        ttl,
		metrics:    m,
		logger:     slog.Default().With("component", "query-cache"),
	}
}

func (c *QueryCache) Limit(limit int) int {
	return c.next.Limit(limit)
}

// Search serves from the cache when possible. Cache failures degrade to an
// uncached search.
func (c *QueryCache) Search(ctx context.Context, query string, limit int) (*executor.Response, error) {
	limit = c.next.Limit(limit)
	normalized := normalizeQuery(query)
	if normalized == "" {
		return c.next.Search(ctx, query, limit)
	}
	start := time.Now()
	gen := c.generation()
	key := buildKey(gen, normalized, limit)

	if resp, ok := c.get(ctx, key); ok {
		c.recordHit(start)
		resp.Query = query
		resp.ElapsedMs = float64(time.Since(start).Microseconds()) / 1000
		return resp, nil
	}
	c.recordMiss()

	val, err, _ := c.group.Do(key, func() (any, error) {
		resp, err := c.next.Search(ctx, query, limit)
		if err != nil {
			return nil, err
		}
		// A commit may have landed since the key was built.
		if resp.Generation == gen {
			c.set(ctx, key, resp)
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	shared := *val.(*executor.Response)
	shared.Query = query
	return &shared, nil
}

func (c *QueryCache) get(ctx context.Context, key string) (*executor.Response, bool) {
	data, err := c.kv.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		return nil, false
	}
	var resp executor.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		return nil, false
	}
	return &resp, true
}

func (c *QueryCache) set(ctx context.Context, key string, resp *executor.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.kv.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// Invalidate deletes every cached response.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.kv.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) recordHit(start time.Time) {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
		c.metrics.SearchLatency.WithLabelValues("hit").Observe(time.Since(start).Seconds())
	}
}

func (c *QueryCache) recordMiss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

func buildKey(generation uint64, normalized string, limit int) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s|limit=%d", normalized, limit)))
	return fmt.Sprintf("%sg%d:%x", keyPrefix, generation, hash[:16])
}

// normalizeQuery folds case and whitespace. Word order is kept because it
// decides the order scores are summed in.
func normalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}
