// Command searcher serves the committed index over HTTP and follows new
// commits.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/internal/events"
	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Conversation-Search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Conversation-Search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults and CS_* env when empty)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("search service failed", "error", err)
		stop()
		os.Exit(1)
	}
	slog.Info("search service stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	m := metrics.New(nil)
	tok := tokenizer.Config{MinGram: cfg.Tokenizer.MinGram, MaxGram: cfg.Tokenizer.MaxGram}

	// The indexer may still be producing the first generation.
	var idx *store.Store
	err := resilience.Retry(ctx, "open index", resilience.RetryConfig{
		MaxAttempts:  cfg.Index.OpenRetries,
		InitialDelay: time.Second,
		MaxDelay:     15 * time.Second,
		Retryable:    apperrors.IsRetriable,
	}, func(context.Context) error {
		var err error
		idx, err = store.Open(cfg.Index.Path, tok, store.WithMetrics(m))
		return err
	})
	if err != nil {
		return err
	}
	defer idx.Close()
	slog.Info("index opened", "path", idx.Path(), "generation", idx.Generation())

	execOpts := executor.DefaultOptions()
	execOpts.DefaultLimit = cfg.Search.DefaultLimit
	execOpts.MaxResults = cfg.Search.MaxResults
	execOpts.SnippetLength = cfg.Search.SnippetLength
	execOpts.Ranking = ranker.DefaultParams()
	execOpts.Ranking.TitleBoost = cfg.Search.TitleBoost
	execOpts.Ranking.LengthPivot = float64(cfg.Search.LengthPivot)
	exec := executor.New(idx, execOpts, m)

	var (
		searcher    handler.Searcher = exec
		invalidator events.Invalidator
		opts        = []handler.Option{handler.WithIndexInfo(handler.StoreInfo(idx))}
		redisPing   func(context.Context) error
	)
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			kv := cache.NewGuardedKV(redisClient, cfg.Redis.OpTimeout, resilience.BreakerConfig{
				FailureThreshold: cfg.Redis.BreakerThreshold,
				ResetTimeout:     cfg.Redis.BreakerReset,
			})
			queryCache := cache.New(kv, exec, idx.Generation, cfg.Redis.CacheTTL, m)
			searcher = queryCache
			invalidator = queryCache
			opts = append(opts, handler.WithCache(queryCache))
			redisPing = redisClient.Ping
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	checker := health.NewChecker()
	checker.Register("index", health.IndexCheck(func() (uint64, int, error) {
		snap, err := idx.Acquire()
		if err != nil {
			return 0, 0, err
		}
		defer snap.Release()
		return snap.Generation(), snap.DocCount(), nil
	}))
	checker.Register("redis", health.PingCheck(redisPing))

	mux := http.NewServeMux()
	handler.New(searcher, opts...).Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	if cfg.Metrics.Enabled {
		mux.Handle("GET /metrics", metrics.Handler())
	}

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	var limiter *middleware.Limiter
	if cfg.Server.RateLimit > 0 {
		limiter = middleware.NewLimiter(cfg.Server.RateLimit, time.Minute)
		chain = middleware.RateLimit(limiter)(chain)
	}
	chain = middleware.Metrics(m)(chain)
	chain = middleware.CORS(middleware.DefaultCORSConfig())(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return idx.Watch(gctx, cfg.Index.ReloadDelay)
	})
	if limiter != nil {
		g.Go(func() error {
			limiter.Sweep(gctx, 5*time.Minute)
			return nil
		})
	}
	if cfg.Kafka.Enabled {
		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexCommitted, events.CommitHandler(idx, invalidator))
		defer consumer.Close()
		g.Go(func() error {
			return consumer.Start(gctx)
		})
		slog.Info("commit consumer started", "topic", cfg.Kafka.Topics.IndexCommitted)
	}
	g.Go(func() error {
		slog.Info("search service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
