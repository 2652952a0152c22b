package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/pkg/resilience"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Conversation-Search/pkg/redis"
)

// GuardedKV bounds every call to the underlying KV by a timeout and stops
// calling it while the circuit is open, so an unhealthy Redis costs searches
// nothing beyond a failed lookup. A cache miss is not a failure.
type GuardedKV struct {
	kv      KV
	breaker *resilience.CircuitBreaker
	timeout time.Duration
}

func NewGuardedKV(kv KV, timeout time.Duration, cfg resilience.BreakerConfig) *GuardedKV {
	cfg.IsFailure = func(err error) bool { return err != nil && !pkgredis.IsNilError(err) }
	return &GuardedKV{
		kv:      kv,
		breaker: resilience.NewCircuitBreaker("redis-cache", cfg),
		timeout: timeout,
	}
}

func (g *GuardedKV) Get(ctx context.Context, key string) ([]byte, error) {
	// fn may still be running when the timeout fires.
	var data atomic.Pointer[[]byte]
	err := g.call(ctx, "cache get", func(ctx context.Context) error {
		b, err := g.kv.Get(ctx, key)
		if err == nil {
			data.Store(&b)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return *data.Load(), nil
}

func (g *GuardedKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return g.call(ctx, "cache set", func(ctx context.Context) error {
		return g.kv.Set(ctx, key, value, ttl)
	})
}

// FlushByPattern is administrative and bypasses the circuit.
func (g *GuardedKV) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	return g.kv.FlushByPattern(ctx, pattern)
}

func (g *GuardedKV) State() resilience.State {
	return g.breaker.State()
}

func (g *GuardedKV) call(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	return g.breaker.Execute(func() error {
		return resilience.WithTimeout(ctx, g.timeout, name, fn)
	})
}
