// Package handler exposes the query executor over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/internal/searcher/executor"
	apperrors "github.com/Adithya-Monish-Kumar-K/Conversation-Search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/pkg/logger"
)

// Searcher is satisfied by *executor.Executor and *cache.QueryCache.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) (*executor.Response, error)
	Limit(limit int) int
}

// CacheControl is the administrative surface of the query cache.
type CacheControl interface {
	Stats() (hits, misses int64)
	Invalidate(ctx context.Context) error
}

// IndexInfo describes the snapshot currently served.
type IndexInfo struct {
	Path        string    `json:"path"`
	Generation  uint64    `json:"generation"`
	BuildID     string    `json:"buildId"`
	Documents   int       `json:"documents"`
	Terms       int       `json:"terms"`
	CommittedAt time.Time `json:"committedAt"`

	Fields map[string]FieldInfo `json:"fields,omitempty"`
}

// FieldInfo reports the token volume of one indexed field.
type FieldInfo struct {
	TotalTokens int64   `json:"totalTokens"`
	AvgTokens   float64 `json:"avgTokens"`
}

type InfoFunc func() (IndexInfo, error)

// StoreInfo reads IndexInfo from the store's current snapshot.
func StoreInfo(s *store.Store) InfoFunc {
	return func() (IndexInfo, error) {
		snap, err := s.Acquire()
		if err != nil {
			return IndexInfo{}, fmt.Errorf("%w: %w", apperrors.ErrIndexNotFound, err)
		}
		defer snap.Release()

		stats := snap.Stats()
		docs := snap.DocCount()
		fields := make(map[string]FieldInfo, len(index.IndexedFields))
		for i, f := range index.IndexedFields {
			fi := FieldInfo{TotalTokens: stats[i].TotalTokens}
			if docs > 0 {
				fi.AvgTokens = float64(fi.TotalTokens) / float64(docs)
			}
			fields[f.String()] = fi
		}
		return IndexInfo{
			Path:        s.Path(),
			Generation:  snap.Generation(),
			BuildID:     snap.BuildID(),
			Documents:   docs,
			Terms:       snap.Terms(),
			CommittedAt: snap.CommittedAt(),
			Fields:      fields,
		}, nil
	}
}

type Option func(*Handler)

func WithCache(c CacheControl) Option {
	return func(h *Handler) { h.cache = c }
}

func WithIndexInfo(fn InfoFunc) Option {
	return func(h *Handler) { h.info = fn }
}

type Handler struct {
	searcher Searcher
	cache    CacheControl
	info     InfoFunc
	logger   *slog.Logger
}

func New(searcher Searcher, opts ...Option) *Handler {
	h := &Handler{
		searcher: searcher,
		logger:   slog.Default().With("component", "search-handler"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/index", h.Index)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

// Search handles GET /api/v1/search?q=&limit=. A blank q is not an error: it
// yields an empty result list.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = parsed
	}
	limit = h.searcher.Limit(limit)

	resp, err := h.searcher.Search(ctx, query, limit)
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		log.Error("search failed", "query", query, "status", status, "error", err)
		h.writeError(w, status, publicMessage(status))
		return
	}

	log.Info("search completed",
		"query", query,
		"total", resp.Total,
		"returned", len(resp.Results),
		"generation", resp.Generation,
		"elapsed_ms", resp.ElapsedMs,
	)
	h.writeJSON(w, http.StatusOK, resp)
}

// Index handles GET /api/v1/index.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	if h.info == nil {
		h.writeError(w, http.StatusNotFound, "index info unavailable")
		return
	}
	info, err := h.info()
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		h.writeError(w, status, publicMessage(status))
		return
	}
	h.writeJSON(w, http.StatusOK, info)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func publicMessage(status int) string {
	switch status {
	case http.StatusServiceUnavailable:
		return "index unavailable"
	case http.StatusBadRequest:
		return "invalid request"
	default:
		return "search failed"
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
