package store

import (
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/internal/indexer/tokenizer"
)

// Snapshot is one committed generation opened for reading. It is immutable
// and safe for concurrent queries. Callers obtain it from Store.Acquire and
// must call Release when done; the segment is closed once the store has moved
// on and the last holder has released it.
type Snapshot struct {
	reader   *segment.Reader
	manifest segment.Manifest
	refs     atomic.Int64
}

func newSnapshot(r *segment.Reader, m segment.Manifest) *Snapshot {
	s := &Snapshot{reader: r, manifest: m}
	s.refs.Store(1)
	return s
}

// tryRef takes a reference unless the snapshot has already been closed.
func (s *Snapshot) tryRef() bool {
	for {
		n := s.refs.Load()
		if n <= 0 {
			return false
		}
		if s.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Release drops one reference.
func (s *Snapshot) Release() {
	if s.refs.Add(-1) == 0 {
		s.reader.Close()
	}
}

func (s *Snapshot) Search(field index.Field, term string) (index.PostingList, error) {
	return s.reader.Search(field, term)
}

func (s *Snapshot) Doc(ordinal uint32) (segment.StoredDoc, bool) {
	return s.reader.Doc(ordinal)
}

func (s *Snapshot) DocCount() int {
	return int(s.reader.DocCount())
}

func (s *Snapshot) Terms() int {
	return s.reader.Terms()
}

// Stats reports per-field token totals of the generation.
func (s *Snapshot) Stats() [index.NumIndexedFields]index.FieldStats {
	return s.reader.Stored().Stats
}

// Tokenizer is the configuration the generation was built with.
func (s *Snapshot) Tokenizer() tokenizer.Config {
	return s.manifest.Tokenizer
}

func (s *Snapshot) Generation() uint64 {
	return s.manifest.Generation
}

func (s *Snapshot) BuildID() string {
	return s.manifest.BuildID
}

func (s *Snapshot) CommittedAt() time.Time {
	return s.manifest.CommittedAt
}
