package segment

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/Conversation-Search/pkg/errors"
)

func buildData(t *testing.T) Data {
	t.Helper()
	tok := tokenizer.DefaultConfig()
	mi := index.NewMemoryIndex(tok)
	docs := []StoredDoc{
		{ID: "a", Title: "Гравитация", Content: "что такое гравитация"},
		{ID: "b", Title: "Untitled", Date: "2024-01-02T00:00:00Z", Content: "формулы"},
	}
	for i := range docs {
		docs[i].Lengths = mi.AddDocument(uint32(i), docs[i].Title, docs[i].Content)
	}
	return Data{
		Entries: mi.Snapshot(),
		Stored: StoredTable{
			Tokenizer: tok,
			Stats:     mi.Stats(),
			Docs:      docs,
		},
	}
}

func writeSegment(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	name, err := NewWriter(dir).Write(buildData(t))
	require.NoError(t, err)
	return filepath.Join(dir, name)
}

func TestWriteThenRead(t *testing.T) {
	path := writeSegment(t)
	assert.Equal(t, FileExt, filepath.Ext(path))

	r, err := OpenReader(path)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, uint32(2), r.DocCount())
	assert.Equal(t, tokenizer.DefaultConfig(), r.Stored().Tokenizer)

	postings, err := r.Search(index.FieldContent, "грав")
	require.NoError(t, err)
	require.Len(t, postings, 1)
	assert.Equal(t, uint32(0), postings[0].Doc)
	assert.Equal(t, index.FieldContent, postings[0].Field)

	postings, err = r.Search(index.FieldTitle, "грав")
	require.NoError(t, err)
	assert.Len(t, postings, 1)

	postings, err = r.Search(index.FieldTitle, "форм")
	require.NoError(t, err)
	assert.Empty(t, postings)

	doc, ok := r.Doc(1)
	require.True(t, ok)
	assert.Equal(t, "b", doc.ID)
	assert.Equal(t, "2024-01-02T00:00:00Z", doc.Date)
	_, ok = r.Doc(2)
	assert.False(t, ok)
}

func TestNoTempFilesLeftBehind(t *testing.T) {
	path := writeSegment(t)
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Base(path), entries[0].Name())
}

func TestOpenReaderDetectsCorruption(t *testing.T) {
	path := writeSegment(t)
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"truncated", func(b []byte) []byte { return b[:HeaderSize] }},
		{"bad magic", func(b []byte) []byte { b[0] ^= 0xff; return b }},
		{"flipped stored byte", func(b []byte) []byte { b[len(b)-FooterSize-2] ^= 0x01; return b }},
		{"missing footer", func(b []byte) []byte { return b[:len(b)-FooterSize] }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := tt.mutate(append([]byte(nil), data...))
			bad := filepath.Join(t.TempDir(), "bad"+FileExt)
			require.NoError(t, os.WriteFile(bad, buf, 0o644))

			_, err := OpenReader(bad)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrIndexCorrupt), "got %v", err)
		})
	}
}

func TestOpenReaderMissingFile(t *testing.T) {
	_, err := OpenReader(filepath.Join(t.TempDir(), "absent"+FileExt))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestWriteManifestSyncFailureAfterRename(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteManifest(dir, &Manifest{Generation: 1, Segment: "seg_1.seg"}))

	syncDir = func(string) error { return errors.New("fsync: input/output error") }
	t.Cleanup(func() { syncDir = syncDirectory })

	err := WriteManifest(dir, &Manifest{Generation: 2, Segment: "seg_2.seg"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotDurable))

	m, err := ReadManifest(dir)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), m.Generation)
	assert.Equal(t, "seg_2.seg", m.Segment)
}
