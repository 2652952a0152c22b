package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Conversation-Search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/pkg/resilience"
)

type memKV struct {
	mu   sync.Mutex
	data map[string][]byte
	err  error
}

func newMemKV() *memKV { return &memKV{data: make(map[string][]byte)} }

func (m *memKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	v, ok := m.data[key]
	if !ok {
		return nil, goredis.Nil
	}
	return v, nil
}

func (m *memKV) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.data[key] = value
	return nil
}

func (m *memKV) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var n int64
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

type countingSearcher struct {
	calls      atomic.Int64
	generation uint64
	delay      time.Duration
}

func (s *countingSearcher) Search(_ context.Context, query string, limit int) (*executor.Response, error) {
	s.calls.Add(1)
	time.Sleep(s.delay)
	return &executor.Response{
		Query:      query,
		Results:    []executor.SearchResult{{ConversationID: "c1", Title: "t", Score: 1.5}},
		Total:      1,
		Generation: s.generation,
	}, nil
}

func (s *countingSearcher) Limit(limit int) int {
	if limit <= 0 {
		return 20
	}
	return limit
}

func TestCacheHitAfterMiss(t *testing.T) {
	next := &countingSearcher{generation: 1}
	m := metrics.New(prometheus.NewRegistry())
	c := New(newMemKV(), next, func() uint64 { return 1 }, time.Minute, m)
	ctx := context.Background()

	first, err := c.Search(ctx, "Hello  World", 0)
	require.NoError(t, err)
	second, err := c.Search(ctx, "hello world", 20)
	require.NoError(t, err)

	assert.Equal(t, int64(1), next.calls.Load())
	assert.Equal(t, first.Results, second.Results)
	assert.Equal(t, "hello world", second.Query)
	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHitsTotal))
}

func TestNewGenerationMissesCache(t *testing.T) {
	next := &countingSearcher{generation: 1}
	var gen atomic.Uint64
	gen.Store(1)
	c := New(newMemKV(), next, gen.Load, time.Minute, nil)
	ctx := context.Background()

	_, err := c.Search(ctx, "q", 5)
	require.NoError(t, err)
	gen.Store(2)
	next.generation = 2
	_, err = c.Search(ctx, "q", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(2), next.calls.Load())
}

func TestStaleGenerationNotStored(t *testing.T) {
	kv := newMemKV()
	next := &countingSearcher{generation: 2}
	c := New(kv, next, func() uint64 { return 1 }, time.Minute, nil)
	_, err := c.Search(context.Background(), "q", 5)
	require.NoError(t, err)
	assert.Empty(t, kv.data)
}

func TestBlankQueryBypassesCache(t *testing.T) {
	kv := newMemKV()
	next := &countingSearcher{}
	c := New(kv, next, func() uint64 { return 0 }, time.Minute, nil)
	_, err := c.Search(context.Background(), "   ", 0)
	require.NoError(t, err)
	assert.Empty(t, kv.data)
	hits, misses := c.Stats()
	assert.Zero(t, hits+misses)
}

func TestConcurrentMissesCollapse(t *testing.T) {
	next := &countingSearcher{generation: 1, delay: 50 * time.Millisecond}
	c := New(newMemKV(), next, func() uint64 { return 1 }, time.Minute, nil)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Search(context.Background(), "same", 3)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Less(t, next.calls.Load(), int64(10))
}

func TestBackendFailureDegrades(t *testing.T) {
	kv := newMemKV()
	kv.err = errors.New("connection reset")
	next := &countingSearcher{generation: 1}
	c := New(kv, next, func() uint64 { return 1 }, time.Minute, nil)
	resp, err := c.Search(context.Background(), "q", 5)
	require.NoError(t, err)
	assert.Len(t, resp.Results, 1)
}

func TestInvalidate(t *testing.T) {
	kv := newMemKV()
	next := &countingSearcher{generation: 1}
	c := New(kv, next, func() uint64 { return 1 }, time.Minute, nil)
	_, err := c.Search(context.Background(), "q", 5)
	require.NoError(t, err)
	require.Len(t, kv.data, 1)

	require.NoError(t, c.Invalidate(context.Background()))
	assert.Empty(t, kv.data)
}

func TestBuildKey(t *testing.T) {
	a := buildKey(3, "hello", 20)
	assert.True(t, strings.HasPrefix(a, keyPrefix+"g3:"))
	assert.NotEqual(t, a, buildKey(3, "hello", 10))
	assert.NotEqual(t, a, buildKey(4, "hello", 20))
	assert.Equal(t, "a b", normalizeQuery("  A\tB "))
}

type slowKV struct {
	*memKV
	delay time.Duration
}

func (s *slowKV) Get(ctx context.Context, key string) ([]byte, error) {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.memKV.Get(ctx, key)
}

func TestGuardedKVMissIsNotFailure(t *testing.T) {
	kv := NewGuardedKV(newMemKV(), time.Second, resilience.BreakerConfig{FailureThreshold: 1, ResetTimeout: time.Minute})
	for range 3 {
		_, err := kv.Get(context.Background(), "absent")
		assert.True(t, pkgredis.IsNilError(err))
	}
	assert.Equal(t, resilience.StateClosed, kv.State())

	require.NoError(t, kv.Set(context.Background(), "k", []byte("v"), time.Minute))
	got, err := kv.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestGuardedKVOpensOnErrors(t *testing.T) {
	inner := newMemKV()
	inner.err = errors.New("connection refused")
	kv := NewGuardedKV(inner, time.Second, resilience.BreakerConfig{FailureThreshold: 2, ResetTimeout: time.Minute})

	for range 2 {
		_, err := kv.Get(context.Background(), "k")
		require.Error(t, err)
	}
	assert.Equal(t, resilience.StateOpen, kv.State())
	_, err := kv.Get(context.Background(), "k")
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
}

func TestGuardedKVTimeout(t *testing.T) {
	kv := NewGuardedKV(&slowKV{memKV: newMemKV(), delay: time.Second}, 10*time.Millisecond, resilience.BreakerConfig{})
	start := time.Now()
	_, err := kv.Get(context.Background(), "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestCacheDegradesWhenCircuitOpen(t *testing.T) {
	inner := newMemKV()
	inner.err = errors.New("down")
	kv := NewGuardedKV(inner, time.Second, resilience.BreakerConfig{FailureThreshold: 1, ResetTimeout: time.Minute})
	next := &countingSearcher{generation: 1}
	c := New(kv, next, func() uint64 { return 1 }, time.Minute, nil)

	for range 3 {
		resp, err := c.Search(context.Background(), "ab", 10)
		require.NoError(t, err)
		assert.Equal(t, 1, resp.Total)
	}
	assert.EqualValues(t, 3, next.calls.Load())
}
