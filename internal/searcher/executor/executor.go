// Package executor runs free-text queries against the served index snapshot:
// parse, look up every term in every indexed field, rank, hydrate.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/internal/searcher/snippet"
	apperrors "github.com/Adithya-Monish-Kumar-K/Conversation-Search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/pkg/metrics"
)

const DefaultLimit = 20

// SearchResult is one hydrated hit.
type SearchResult struct {
	ConversationID string  `json:"conversationId"`
	Title          string  `json:"title"`
	Date           string  `json:"date"`
	Score          float64 `json:"score"`
	Snippet        string  `json:"snippet"`
}

// Response is the outcome of one query. Total counts every matching
// conversation, not just the returned page.
type Response struct {
	Query      string         `json:"query"`
	Results    []SearchResult `json:"results"`
	Total      int            `json:"total"`
	ElapsedMs  float64        `json:"elapsedMs"`
	Generation uint64         `json:"generation"`
}

// Source hands out snapshots. *store.Store implements it.
type Source interface {
	Acquire() (*store.Snapshot, error)
}

type Options struct {
	DefaultLimit  int
	MaxResults    int
	SnippetLength int
	Ranking       ranker.Params
}

func DefaultOptions() Options {
	return Options{
		DefaultLimit:  DefaultLimit,
		MaxResults:    100,
		SnippetLength: snippet.DefaultLength,
		Ranking:       ranker.DefaultParams(),
	}
}

type Executor struct {
	source  Source
	opts    Options
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates an Executor. m may be nil.
func New(source Source, opts Options, m *metrics.Metrics) *Executor {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = DefaultLimit
	}
	return &Executor{
		source:  source,
		opts:    opts,
		metrics: m,
		logger:  slog.Default().With("component", "query-executor"),
	}
}

// Limit normalises a requested page size: non-positive means the default,
// and MaxResults caps it when set.
func (e *Executor) Limit(limit int) int {
	if limit <= 0 {
		limit = e.opts.DefaultLimit
	}
	if e.opts.MaxResults > 0 && limit > e.opts.MaxResults {
		limit = e.opts.MaxResults
	}
	return limit
}

// Search runs query and returns at most limit results. A query producing no
// terms (blank, or shorter than the minimum gram) yields an empty response.
func (e *Executor) Search(ctx context.Context, query string, limit int) (*Response, error) {
	start := time.Now()
	limit = e.Limit(limit)

	resp, err := e.search(ctx, query, limit)
	elapsed := time.Since(start)
	if e.metrics != nil {
		e.metrics.SearchLatency.WithLabelValues("uncached").Observe(elapsed.Seconds())
		e.metrics.SearchQueriesTotal.WithLabelValues(resultType(resp, err)).Inc()
	}
	if err != nil {
		return nil, err
	}
	resp.ElapsedMs = float64(elapsed.Microseconds()) / 1000
	if e.metrics != nil {
		e.metrics.SearchResultsCount.Observe(float64(len(resp.Results)))
	}
	return resp, nil
}

func (e *Executor) search(ctx context.Context, query string, limit int) (*Response, error) {
	snap, err := e.source.Acquire()
	if err != nil {
		if errors.Is(err, store.ErrClosed) {
			return nil, fmt.Errorf("%w: %w", apperrors.ErrIndexNotFound, err)
		}
		return nil, fmt.Errorf("acquiring snapshot: %w", err)
	}
	defer snap.Release()

	resp := &Response{
		Query:      query,
		Results:    []SearchResult{},
		Generation: snap.Generation(),
	}
	plan := parser.Parse(query, snap.Tokenizer())
	if plan.Empty() {
		return resp, nil
	}

	var postings []index.Posting
	for _, term := range plan.Terms {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, field := range index.IndexedFields {
			list, err := snap.Search(field, term)
			if err != nil {
				return nil, fmt.Errorf("searching %s:%q: %w", field, term, err)
			}
			postings = append(postings, list...)
		}
	}

	lengths := func(ord uint32) index.DocLengths {
		doc, _ := snap.Doc(ord)
		return doc.Lengths
	}
	ranked, total := ranker.Rank(postings, lengths, e.opts.Ranking, limit)
	resp.Total = total

	resp.Results = make([]SearchResult, 0, len(ranked))
	for _, hit := range ranked {
		doc, ok := snap.Doc(hit.Ordinal)
		if !ok {
			return nil, fmt.Errorf("%w: posting references missing document %d", apperrors.ErrIndexCorrupt, hit.Ordinal)
		}
		resp.Results = append(resp.Results, SearchResult{
			ConversationID: doc.ID,
			Title:          doc.Title,
			Date:           doc.Date,
			Score:          hit.Score,
			Snippet:        snippet.Excerpt(doc.Content, e.opts.SnippetLength),
		})
	}

	e.logger.Debug("query executed",
		"query", query,
		"terms", len(plan.Terms),
		"candidates", total,
		"results", len(resp.Results),
		"generation", resp.Generation,
	)
	return resp, nil
}

func resultType(resp *Response, err error) string {
	switch {
	case err != nil:
		return "error"
	case resp.Total > 0:
		return "hit"
	case resp.Query == "":
		return "empty_query"
	default:
		return "zero_result"
	}
}
