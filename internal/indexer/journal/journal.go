// Package journal records every index build in PostgreSQL so operators can
// see which generation is live, when it was committed, and why a build failed.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/internal/indexer"
)

// Schema creates the journal table. EnsureSchema runs it on startup.
const Schema = `CREATE TABLE IF NOT EXISTS index_builds (
    build_id      TEXT PRIMARY KEY,
    index_path    TEXT NOT NULL,
    status        TEXT NOT NULL,
    generation    BIGINT,
    segment       TEXT,
    documents     INTEGER NOT NULL DEFAULT 0,
    duplicates    INTEGER NOT NULL DEFAULT 0,
    skipped       INTEGER NOT NULL DEFAULT 0,
    terms         INTEGER NOT NULL DEFAULT 0,
    error         TEXT,
    started_at    TIMESTAMPTZ NOT NULL,
    finished_at   TIMESTAMPTZ NOT NULL
)`

const (
	StatusCommitted = "committed"
	StatusFailed    = "failed"
)

// DB is the subset of *sql.DB the journal needs.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Entry is one journal row.
type Entry struct {
	BuildID    string
	Path       string
	Status     string
	Generation uint64
	Segment    string
	Documents  int
	Duplicates int
	Skipped    int
	Terms      int
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

type Journal struct {
	db     DB
	logger *slog.Logger
}

func New(db DB) *Journal {
	return &Journal{
		db:     db,
		logger: slog.Default().With("component", "build-journal"),
	}
}

func (j *Journal) EnsureSchema(ctx context.Context) error {
	if _, err := j.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("creating index_builds table: %w", err)
	}
	return nil
}

// RecordBuild stores a committed build. skipped counts conversations the
// extractor dropped before the build.
func (j *Journal) RecordBuild(ctx context.Context, report *indexer.BuildReport, skipped int) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO index_builds
			(build_id, index_path, status, generation, segment, documents, duplicates, skipped, terms, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		report.BuildID, report.Path, StatusCommitted, int64(report.Generation), report.Segment,
		report.Documents, report.Duplicates, skipped, report.Terms,
		report.StartedAt.UTC(), report.CommittedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording build %s: %w", report.BuildID, err)
	}
	j.logger.Info("build recorded", "build_id", report.BuildID, "generation", report.Generation)
	return nil
}

// RecordFailure stores a build that never committed. The row takes the
// build id carried by an *indexer.BuildError so it matches the build's logs;
// other errors get a fresh id.
func (j *Journal) RecordFailure(ctx context.Context, path string, startedAt time.Time, buildErr error) error {
	buildID := uuid.NewString()
	var be *indexer.BuildError
	if errors.As(buildErr, &be) {
		buildID = be.BuildID
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO index_builds (build_id, index_path, status, error, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		buildID, path, StatusFailed, buildErr.Error(), startedAt.UTC(), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording failed build %s: %w", buildID, err)
	}
	return nil
}

// Latest returns the most recent committed build for path, or nil, nil when
// there is none.
func (j *Journal) Latest(ctx context.Context, path string) (*Entry, error) {
	var (
		e          Entry
		generation sql.NullInt64
		segment    sql.NullString
	)
	err := j.db.QueryRowContext(ctx,
		`SELECT build_id, index_path, status, generation, segment, documents, duplicates, skipped, terms, started_at, finished_at
		 FROM index_builds
		 WHERE index_path = $1 AND status = $2
		 ORDER BY generation DESC LIMIT 1`,
		path, StatusCommitted,
	).Scan(&e.BuildID, &e.Path, &e.Status, &generation, &segment,
		&e.Documents, &e.Duplicates, &e.Skipped, &e.Terms, &e.StartedAt, &e.FinishedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest build: %w", err)
	}
	e.Generation = uint64(generation.Int64)
	e.Segment = segment.String
	return &e, nil
}
