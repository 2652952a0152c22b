// Package indexer builds committed index generations from conversation
// records. A build tokenises every record on a pool of workers, merges the
// per-worker shards, writes one immutable segment, and commits it by
// replacing the directory's CURRENT manifest.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/internal/ingest"
	apperrors "github.com/Adithya-Monish-Kumar-K/Conversation-Search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/pkg/metrics"
)

// Config controls a Builder.
type Config struct {
	Tokenizer tokenizer.Config
	Workers   int
}

// BuildReport summarises a committed build.
type BuildReport struct {
	BuildID     string        `json:"build_id"`
	Path        string        `json:"path"`
	Segment     string        `json:"segment"`
	Generation  uint64        `json:"generation"`
	Documents   int           `json:"documents"`
	Duplicates  int           `json:"duplicates"`
	Terms       int           `json:"terms"`
	Pruned      int           `json:"pruned"`
	StartedAt   time.Time     `json:"started_at"`
	CommittedAt time.Time     `json:"committed_at"`
	Duration    time.Duration `json:"duration"`
}

// BuildError carries the id of a failed build so failures can be matched
// with the build's log lines.
type BuildError struct {
	BuildID string
	Err     error
}

func (e *BuildError) Error() string { return e.Err.Error() }

func (e *BuildError) Unwrap() error { return e.Err }

// Builder turns record batches into committed index generations.
type Builder struct {
	cfg     Config
	metrics *metrics.Metrics
	logger  *slog.Logger
	commit  func(dir string, m *segment.Manifest) error
}

// NewBuilder validates cfg and returns a Builder. m may be nil.
func NewBuilder(cfg Config, m *metrics.Metrics) (*Builder, error) {
	if err := cfg.Tokenizer.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidInput, err)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	return &Builder{
		cfg:     cfg,
		metrics: m,
		logger:  slog.Default().With("component", "index-builder"),
		commit:  segment.WriteManifest,
	}, nil
}

// Build indexes records into a new generation under outputPath. Either the
// new generation is fully committed or readers keep seeing the previous one.
// Only one build may target outputPath at a time; a concurrent attempt fails
// with ErrBuildInProgress. Storage errors wrap ErrStorageFailure. Errors are
// returned as *BuildError.
func (b *Builder) Build(ctx context.Context, records []ingest.ConversationRecord, outputPath string) (*BuildReport, error) {
	start := time.Now()
	buildID := uuid.NewString()
	report, err := b.build(ctx, records, outputPath, buildID, start)
	if b.metrics != nil {
		status := "committed"
		if err != nil {
			status = "failed"
		}
		b.metrics.IndexBuildsTotal.WithLabelValues(status).Inc()
		b.metrics.IndexBuildDuration.Observe(time.Since(start).Seconds())
		if err == nil {
			b.metrics.DocsIndexedTotal.Add(float64(report.Documents))
		}
	}
	if err != nil {
		b.logger.Error("index build failed", "build_id", buildID, "path", outputPath, "error", err)
		return nil, &BuildError{BuildID: buildID, Err: err}
	}
	return report, nil
}

func (b *Builder) build(ctx context.Context, records []ingest.ConversationRecord, outputPath, buildID string, start time.Time) (*BuildReport, error) {
	if err := os.MkdirAll(outputPath, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating index directory: %w", apperrors.ErrStorageFailure, err)
	}
	lock, err := acquireLock(outputPath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.release(); err != nil {
			b.logger.Warn("releasing build lock", "path", outputPath, "error", err)
		}
	}()

	report := &BuildReport{
		BuildID:   buildID,
		Path:      outputPath,
		StartedAt: start,
	}
	logger := b.logger.With("build_id", report.BuildID, "path", outputPath)

	docs, duplicates := b.storedDocs(records)
	report.Documents = len(docs)
	report.Duplicates = duplicates

	merged, err := b.indexShards(ctx, docs)
	if err != nil {
		return nil, err
	}
	entries := merged.Snapshot()
	report.Terms = len(entries)
	logger.Info("documents indexed in memory",
		"docs", len(docs),
		"terms", len(entries),
		"mem_size", merged.Size(),
	)

	// Abandoning here leaves nothing visible; the manifest is untouched.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("build cancelled before commit: %w", err)
	}

	previous, err := segment.ReadManifest(outputPath)
	if err != nil && !segment.IsNotExist(err) {
		logger.Warn("ignoring unreadable manifest", "error", err)
	}

	name, err := segment.NewWriter(outputPath).Write(segment.Data{
		Entries: entries,
		Stored: segment.StoredTable{
			Tokenizer: b.cfg.Tokenizer,
			Stats:     merged.Stats(),
			Docs:      docs,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: writing segment: %w", apperrors.ErrStorageFailure, err)
	}

	manifest := &segment.Manifest{
		Generation:  1,
		Segment:     name,
		BuildID:     report.BuildID,
		DocCount:    len(docs),
		TermCount:   len(entries),
		Tokenizer:   b.cfg.Tokenizer,
		CommittedAt: time.Now().UTC(),
	}
	if previous != nil {
		manifest.Generation = previous.Generation + 1
	}
	if err := b.commit(outputPath, manifest); err != nil {
		if !errors.Is(err, segment.ErrNotDurable) {
			os.Remove(filepath.Join(outputPath, name))
			return nil, fmt.Errorf("%w: committing manifest: %w", apperrors.ErrStorageFailure, err)
		}
		// CURRENT already names the new segment, so the build stands.
		logger.Warn("manifest committed without directory sync", "error", err)
	}

	keep := map[string]bool{name: true}
	if previous != nil {
		keep[previous.Segment] = true
	}
	report.Pruned = b.prune(outputPath, keep)

	report.Segment = name
	report.Generation = manifest.Generation
	report.CommittedAt = manifest.CommittedAt
	report.Duration = time.Since(start)
	logger.Info("index build committed",
		"generation", report.Generation,
		"segment", name,
		"docs", report.Documents,
		"duplicates", report.Duplicates,
		"terms", report.Terms,
		"pruned", report.Pruned,
		"duration", report.Duration,
	)
	return report, nil
}

// storedDocs assigns ordinals in input order. Records repeating an earlier id
// are dropped.
func (b *Builder) storedDocs(records []ingest.ConversationRecord) ([]segment.StoredDoc, int) {
	seen := make(map[string]struct{}, len(records))
	docs := make([]segment.StoredDoc, 0, len(records))
	duplicates := 0
	for i, rec := range records {
		if _, dup := seen[rec.ID]; dup {
			duplicates++
			b.logger.Warn("skipping duplicate conversation id",
				"conversation_id", rec.ID,
				"index", i,
			)
			continue
		}
		seen[rec.ID] = struct{}{}
		docs = append(docs, segment.StoredDoc{
			ID:      rec.ID,
			Title:   rec.Title,
			Date:    rec.Date(),
			Content: rec.Content,
		})
	}
	return docs, duplicates
}

// indexShards tokenises docs on the worker pool. Each worker owns one
// MemoryIndex and writes only the Lengths of its own ordinal range.
func (b *Builder) indexShards(ctx context.Context, docs []segment.StoredDoc) (*index.MemoryIndex, error) {
	ranges := shard.Split(len(docs), b.cfg.Workers)
	shards := make([]*index.MemoryIndex, len(ranges))

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range ranges {
		g.Go(func() error {
			mi := index.NewMemoryIndex(b.cfg.Tokenizer)
			for ord := r.Start; ord < r.End; ord++ {
				if ord%256 == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				docs[ord].Lengths = mi.AddDocument(uint32(ord), docs[ord].Title, docs[ord].Content)
			}
			shards[r.ID] = mi
			b.logger.Debug("shard indexed", "shard", r.String(), "terms", mi.Terms())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("indexing shards: %w", err)
	}

	merged := index.NewMemoryIndex(b.cfg.Tokenizer)
	merged.Merge(shards...)
	return merged, nil
}

// prune removes segment files other than those in keep, plus temp files left
// by interrupted writes. Failures are logged; the commit already happened.
func (b *Builder) prune(dir string, keep map[string]bool) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		b.logger.Warn("listing index directory for pruning", "path", dir, "error", err)
		return 0
	}
	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || keep[name] {
			continue
		}
		isSegment := strings.HasSuffix(name, segment.FileExt)
		isTemp := strings.HasSuffix(name, segment.FileExt+".tmp")
		if !isSegment && !isTemp {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			b.logger.Warn("pruning old segment", "segment", name, "error", err)
			continue
		}
		removed++
	}
	return removed
}
