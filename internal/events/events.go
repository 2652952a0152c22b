// Package events carries index commit notifications between the indexer job
// and the search service over Kafka. The file watcher in the store already
// reloads on local commits; the event covers searchers whose index directory
// is synced from elsewhere and lets them drop cached results promptly.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/pkg/kafka"
)

// IndexCommitted announces that a new generation became visible.
type IndexCommitted struct {
	BuildID     string    `json:"build_id"`
	Path        string    `json:"path"`
	Generation  uint64    `json:"generation"`
	Segment     string    `json:"segment"`
	Documents   int       `json:"documents"`
	CommittedAt time.Time `json:"committed_at"`
}

func FromReport(r *indexer.BuildReport) IndexCommitted {
	return IndexCommitted{
		BuildID:     r.BuildID,
		Path:        r.Path,
		Generation:  r.Generation,
		Segment:     r.Segment,
		Documents:   r.Documents,
		CommittedAt: r.CommittedAt,
	}
}

type producer interface {
	Publish(ctx context.Context, events ...kafka.Event) error
}

// Publisher sends IndexCommitted events.
type Publisher struct {
	producer producer
	logger   *slog.Logger
}

func NewPublisher(p producer) *Publisher {
	return &Publisher{
		producer: p,
		logger:   slog.Default().With("component", "commit-publisher"),
	}
}

// PublishCommitted is keyed by index path so commits to one index stay ordered.
func (p *Publisher) PublishCommitted(ctx context.Context, ev IndexCommitted) error {
	if err := p.producer.Publish(ctx, kafka.Event{Key: ev.Path, Value: ev}); err != nil {
		return fmt.Errorf("publishing commit of generation %d: %w", ev.Generation, err)
	}
	p.logger.Info("commit published", "generation", ev.Generation, "build_id", ev.BuildID)
	return nil
}

// Reloader is implemented by store.Store.
type Reloader interface {
	Reload(ctx context.Context) (bool, error)
}

// Invalidator is implemented by the query cache.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// CommitHandler reloads r when a commit event arrives and, if the served
// generation changed, invalidates cache. cache may be nil. Undecodable
// messages are logged and dropped.
func CommitHandler(r Reloader, cache Invalidator) kafka.MessageHandler {
	logger := slog.Default().With("component", "commit-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		ev, err := kafka.DecodeJSON[IndexCommitted](value)
		if err != nil {
			logger.Error("failed to decode commit event", "key", string(key), "error", err)
			return nil
		}
		changed, err := r.Reload(ctx)
		if err != nil {
			return fmt.Errorf("reloading after commit of generation %d: %w", ev.Generation, err)
		}
		logger.Info("commit event handled",
			"generation", ev.Generation,
			"build_id", ev.BuildID,
			"swapped", changed,
		)
		if changed && cache != nil {
			if err := cache.Invalidate(ctx); err != nil {
				logger.Warn("cache invalidation failed", "error", err)
			}
		}
		return nil
	}
}
