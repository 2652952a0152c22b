// Package store serves committed index generations to queries. A Store holds
// the current Snapshot behind an atomic pointer: queries never lock, and a
// reload swaps in the new generation while in-flight queries finish on the
// one they acquired.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/Conversation-Search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/pkg/metrics"
)

// ErrClosed is returned by Acquire after Close.
var ErrClosed = errors.New("index store closed")

// Option configures a Store.
type Option func(*Store)

// WithMetrics records reloads and the served generation on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// Store is a long-lived handle on an index directory.
type Store struct {
	path    string
	tok     tokenizer.Config
	current atomic.Pointer[Snapshot]
	closed  atomic.Bool
	reloads singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Open opens the committed generation at path. The index must have been built
// with tok. A missing directory or manifest yields ErrIndexNotFound; anything
// unreadable, invalid, or built with another tokenizer yields ErrIndexCorrupt.
func Open(path string, tok tokenizer.Config, opts ...Option) (*Store, error) {
	s := &Store{
		path:   path,
		tok:    tok,
		logger: slog.Default().With("component", "index-store", "path", path),
	}
	for _, opt := range opts {
		opt(s)
	}
	snap, err := s.load()
	if err != nil {
		return nil, err
	}
	s.current.Store(snap)
	s.observe(snap)
	s.logger.Info("index opened",
		"generation", snap.Generation(),
		"docs", snap.DocCount(),
		"terms", snap.Terms(),
	)
	return s, nil
}

func (s *Store) load() (*Snapshot, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrIndexNotFound, s.path)
		}
		return nil, fmt.Errorf("%w: stat %s: %w", apperrors.ErrIndexCorrupt, s.path, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", apperrors.ErrIndexCorrupt, s.path)
	}

	manifest, err := segment.ReadManifest(s.path)
	if err != nil {
		if segment.IsNotExist(err) {
			return nil, fmt.Errorf("%w: no committed build in %s", apperrors.ErrIndexNotFound, s.path)
		}
		return nil, asCorrupt(err)
	}
	if manifest.Tokenizer != s.tok {
		return nil, fmt.Errorf("%w: tokenizer mismatch: index built with %s, opened with %s",
			apperrors.ErrIndexCorrupt, manifest.Tokenizer, s.tok)
	}

	reader, err := segment.OpenReader(filepath.Join(s.path, manifest.Segment))
	if err != nil {
		return nil, asCorrupt(err)
	}
	if reader.Stored().Tokenizer != manifest.Tokenizer || int(reader.DocCount()) != manifest.DocCount {
		reader.Close()
		return nil, fmt.Errorf("%w: segment %s does not match manifest", apperrors.ErrIndexCorrupt, manifest.Segment)
	}
	return newSnapshot(reader, *manifest), nil
}

// Acquire returns the current snapshot with a reference held. Callers must
// Release it.
func (s *Store) Acquire() (*Snapshot, error) {
	for {
		snap := s.current.Load()
		if snap == nil {
			return nil, ErrClosed
		}
		if !snap.tryRef() {
			continue
		}
		if s.current.Load() == snap {
			return snap, nil
		}
		snap.Release()
	}
}

// Reload re-reads the manifest and swaps in a newer generation if one was
// committed. It reports whether the snapshot changed. On error the current
// snapshot keeps serving. Concurrent calls share one reload.
func (s *Store) Reload(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	v, err, _ := s.reloads.Do("reload", func() (any, error) {
		return s.reload()
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (s *Store) reload() (bool, error) {
	// current is only nil once Close has swapped it out.
	old := s.current.Load()
	if old == nil || s.closed.Load() {
		return false, ErrClosed
	}
	manifest, err := segment.ReadManifest(s.path)
	if err == nil && manifest.Segment == old.manifest.Segment {
		s.countReload("unchanged")
		return false, nil
	}

	snap, err := s.load()
	if err != nil {
		s.countReload("error")
		s.logger.Error("index reload failed", "error", err)
		return false, err
	}
	if !s.current.CompareAndSwap(old, snap) {
		// Closed while loading.
		snap.Release()
		return false, ErrClosed
	}
	old.Release()
	s.countReload("swapped")
	s.observe(snap)
	s.logger.Info("index reloaded",
		"generation", snap.Generation(),
		"build_id", snap.BuildID(),
		"docs", snap.DocCount(),
	)
	return true, nil
}

// Generation returns the generation currently served, or 0 after Close.
func (s *Store) Generation() uint64 {
	snap := s.current.Load()
	if snap == nil {
		return 0
	}
	return snap.Generation()
}

// Tokenizer is the configuration queries against this store must use.
func (s *Store) Tokenizer() tokenizer.Config {
	return s.tok
}

func (s *Store) Path() string {
	return s.path
}

// Close stops serving. Snapshots still held stay readable until released.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if snap := s.current.Swap(nil); snap != nil {
		snap.Release()
	}
	return nil
}

func (s *Store) observe(snap *Snapshot) {
	if s.metrics == nil {
		return
	}
	s.metrics.IndexGeneration.Set(float64(snap.Generation()))
	s.metrics.IndexDocCount.Set(float64(snap.DocCount()))
}

func (s *Store) countReload(status string) {
	if s.metrics != nil {
		s.metrics.IndexReloadsTotal.WithLabelValues(status).Inc()
	}
}

func asCorrupt(err error) error {
	if errors.Is(err, apperrors.ErrIndexCorrupt) {
		return err
	}
	return fmt.Errorf("%w: %w", apperrors.ErrIndexCorrupt, err)
}
