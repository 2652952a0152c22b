package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/pkg/postgres"
)

type execCall struct {
	query string
	args  []any
}

type fakeDB struct {
	calls []execCall
	err   error
}

func (f *fakeDB) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	f.calls = append(f.calls, execCall{query: query, args: args})
	return nil, f.err
}

func (f *fakeDB) QueryRowContext(context.Context, string, ...any) *sql.Row {
	panic("not used by unit tests")
}

func sampleReport() *indexer.BuildReport {
	start := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	return &indexer.BuildReport{
		BuildID:     uuid.NewString(),
		Path:        "/var/lib/index",
		Segment:     "seg_1_abcd.seg",
		Generation:  7,
		Documents:   10,
		Duplicates:  1,
		Terms:       500,
		StartedAt:   start,
		CommittedAt: start.Add(time.Second),
	}
}

func TestRecordBuild(t *testing.T) {
	db := &fakeDB{}
	report := sampleReport()
	require.NoError(t, New(db).RecordBuild(context.Background(), report, 2))

	require.Len(t, db.calls, 1)
	args := db.calls[0].args
	require.Len(t, args, 11)
	assert.Equal(t, report.BuildID, args[0])
	assert.Equal(t, StatusCommitted, args[2])
	assert.Equal(t, int64(7), args[3])
	assert.Equal(t, 2, args[7])
}

func TestRecordFailure(t *testing.T) {
	db := &fakeDB{}
	err := New(db).RecordFailure(context.Background(), "/idx", time.Now(), errors.New("disk full"))
	require.NoError(t, err)
	require.Len(t, db.calls, 1)
	assert.NotEmpty(t, db.calls[0].args[0])
	assert.Equal(t, StatusFailed, db.calls[0].args[2])
	assert.Equal(t, "disk full", db.calls[0].args[3])
}

func TestRecordFailureUsesBuildID(t *testing.T) {
	db := &fakeDB{}
	buildErr := fmt.Errorf("indexing: %w", &indexer.BuildError{BuildID: "b-42", Err: errors.New("disk full")})
	require.NoError(t, New(db).RecordFailure(context.Background(), "/idx", time.Now(), buildErr))
	require.Len(t, db.calls, 1)
	assert.Equal(t, "b-42", db.calls[0].args[0])
	assert.Equal(t, "indexing: disk full", db.calls[0].args[3])
}

func TestRecordBuildPropagatesErrors(t *testing.T) {
	db := &fakeDB{err: errors.New("connection refused")}
	err := New(db).RecordBuild(context.Background(), sampleReport(), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

// TestJournalRoundTrip needs a PostgreSQL server; it is skipped otherwise.
func TestJournalRoundTrip(t *testing.T) {
	port, _ := strconv.Atoi(envOrDefault("TEST_POSTGRES_PORT", "5432"))
	cfg := config.Default().Postgres
	cfg.Host = envOrDefault("TEST_POSTGRES_HOST", "localhost")
	cfg.Port = port
	cfg.Database = envOrDefault("TEST_POSTGRES_DB", "conversationsearch_test")
	client, err := postgres.New(context.Background(), cfg)
	if err != nil {
		t.Skipf("skipping: postgres unavailable: %v", err)
	}
	defer client.Close()

	j := New(client.DB)
	ctx := context.Background()
	require.NoError(t, j.EnsureSchema(ctx))

	report := sampleReport()
	report.Path = "/test/" + uuid.NewString()
	require.NoError(t, j.RecordBuild(ctx, report, 3))

	entry, err := j.Latest(ctx, report.Path)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, report.BuildID, entry.BuildID)
	assert.Equal(t, uint64(7), entry.Generation)
	assert.Equal(t, 3, entry.Skipped)

	none, err := j.Latest(ctx, "/test/absent-"+uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, none)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
