// Package ingest turns exported conversations into flat records ready for
// indexing. Extraction is parallel across conversations; a conversation whose
// tree cannot be parsed or walked is skipped with a warning and never aborts
// the batch.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/internal/export"
	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/pkg/metrics"
)

// DefaultTitle is used for conversations exported without a title.
const DefaultTitle = "Untitled"

// ConversationRecord is the searchable form of one conversation.
type ConversationRecord struct {
	ID         string
	Title      string
	InsertedAt *time.Time
	UpdatedAt  *time.Time
	Content    string
}

// Date renders InsertedAt as RFC 3339, or "" when unknown.
func (r ConversationRecord) Date() string {
	if r.InsertedAt == nil {
		return ""
	}
	return r.InsertedAt.Format(time.RFC3339)
}

// Skip describes a conversation left out of the batch.
type Skip struct {
	Index int
	ID    string
	Err   error
}

// Result is the output of Extract. Records keep the export order.
type Result struct {
	Records []ConversationRecord
	Skipped []Skip
}

// Options tunes Extract.
type Options struct {
	Workers       int
	ProgressEvery int
	Metrics       *metrics.Metrics
}

// FromConversation extracts a single conversation.
func FromConversation(conv export.Conversation) (ConversationRecord, error) {
	mapping, err := export.ParseMapping(conv.Mapping)
	if err != nil {
		return ConversationRecord{}, fmt.Errorf("parsing mapping: %w", err)
	}
	content, err := export.Extract(mapping)
	if err != nil {
		return ConversationRecord{}, fmt.Errorf("walking mapping: %w", err)
	}
	rec := ConversationRecord{
		ID:      conv.ID,
		Title:   DefaultTitle,
		Content: content,
	}
	if conv.Title != nil && *conv.Title != "" {
		rec.Title = *conv.Title
	}
	rec.InsertedAt = parseOptionalTime(conv.ID, "inserted_at", conv.InsertedAt)
	rec.UpdatedAt = parseOptionalTime(conv.ID, "updated_at", conv.UpdatedAt)
	return rec, nil
}

// Extract runs FromConversation over convs on a bounded worker pool. It only
// fails when ctx is cancelled.
func Extract(ctx context.Context, convs []export.Conversation, opts Options) (*Result, error) {
	logger := slog.Default().With("component", "extractor")
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	every := opts.ProgressEvery
	if every <= 0 {
		every = 100
	}

	records := make([]ConversationRecord, len(convs))
	errs := make([]error, len(convs))
	var processed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range convs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			records[i], errs[i] = FromConversation(convs[i])
			if n := processed.Add(1); n%int64(every) == 0 {
				logger.Info("extraction progress", "processed", n, "total", len(convs))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("extracting conversations: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("extracting conversations: %w", err)
	}

	result := &Result{Records: make([]ConversationRecord, 0, len(convs))}
	for i := range convs {
		if errs[i] != nil {
			logger.Warn("skipping conversation",
				"conversation_id", convs[i].ID,
				"index", i,
				"error", errs[i],
			)
			result.Skipped = append(result.Skipped, Skip{Index: i, ID: convs[i].ID, Err: errs[i]})
			continue
		}
		result.Records = append(result.Records, records[i])
	}
	if opts.Metrics != nil {
		opts.Metrics.ConversationsExtracted.WithLabelValues("ok").Add(float64(len(result.Records)))
		opts.Metrics.ConversationsExtracted.WithLabelValues("skipped").Add(float64(len(result.Skipped)))
	}
	logger.Info("extraction complete",
		"records", len(result.Records),
		"skipped", len(result.Skipped),
		"workers", workers,
	)
	return result, nil
}

func parseOptionalTime(id, field string, raw *string) *time.Time {
	if raw == nil || *raw == "" {
		return nil
	}
	ts, err := export.ParseTime(*raw)
	if err != nil {
		slog.Default().With("component", "extractor").Warn("ignoring unparsable timestamp",
			"conversation_id", id,
			"field", field,
			"value", *raw,
		)
		return nil
	}
	return &ts
}
