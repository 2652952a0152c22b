package segment

import (
	"cmp"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/Conversation-Search/pkg/errors"
)

// Reader serves lookups from one segment file. It is safe for concurrent use;
// postings are read with ReadAt and the dictionary is immutable.
type Reader struct {
	file     *os.File
	filePath string
	header   SegmentHeader
	dict     []DictEntry
	stored   StoredTable
	postBase int64
}

// OpenReader validates and opens a segment. Any structural problem is
// reported as apperrors.ErrIndexCorrupt.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening segment file: %w", err)
	}
	r, err := load(f, path)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func load(f *os.File, path string) (*Reader, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat segment file: %w", err)
	}
	size := info.Size()
	if size < int64(HeaderSize+FooterSize) {
		return nil, corrupt("segment file too small: %d bytes", size)
	}

	headerBytes := make([]byte, HeaderSize)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		return nil, corrupt("reading header: %v", err)
	}
	header := decodeHeader(headerBytes)
	if header.Magic != MagicBytes {
		return nil, corrupt("bad magic bytes %x", header.Magic)
	}
	if header.Version != FormatVersion {
		return nil, corrupt("unsupported format version %d", header.Version)
	}

	footerBytes := make([]byte, FooterSize)
	if _, err := f.ReadAt(footerBytes, size-int64(FooterSize)); err != nil {
		return nil, corrupt("reading footer: %v", err)
	}
	footer := decodeFooter(footerBytes)
	if footer.Magic != MagicBytes {
		return nil, corrupt("bad footer magic %x", footer.Magic)
	}

	body := size - int64(FooterSize)
	if !within(header.PostOffset, header.PostSize, body) ||
		!within(header.DictOffset, header.DictSize, body) ||
		!within(footer.StoredOffset, footer.StoredSize, body) {
		return nil, corrupt("section offsets out of range")
	}

	dictBytes := make([]byte, header.DictSize)
	if _, err := f.ReadAt(dictBytes, header.DictOffset); err != nil {
		return nil, corrupt("reading dictionary: %v", err)
	}
	if crc32.ChecksumIEEE(dictBytes) != footer.DictChecksum {
		return nil, corrupt("dictionary checksum mismatch")
	}
	var dict []DictEntry
	if err := json.Unmarshal(dictBytes, &dict); err != nil {
		return nil, corrupt("parsing dictionary: %v", err)
	}
	if len(dict) != int(header.TermCount) {
		return nil, corrupt("dictionary has %d terms, header says %d", len(dict), header.TermCount)
	}

	storedBytes := make([]byte, footer.StoredSize)
	if _, err := f.ReadAt(storedBytes, footer.StoredOffset); err != nil {
		return nil, corrupt("reading stored fields: %v", err)
	}
	if crc32.ChecksumIEEE(storedBytes) != footer.StoredChecksum {
		return nil, corrupt("stored fields checksum mismatch")
	}
	var stored StoredTable
	if err := json.Unmarshal(storedBytes, &stored); err != nil {
		return nil, corrupt("parsing stored fields: %v", err)
	}
	if len(stored.Docs) != int(header.DocCount) {
		return nil, corrupt("stored table has %d docs, header says %d", len(stored.Docs), header.DocCount)
	}

	return &Reader{
		file:     f,
		filePath: path,
		header:   header,
		dict:     dict,
		stored:   stored,
		postBase: header.PostOffset,
	}, nil
}

// Search returns the postings of a term in one field, sorted by document
// ordinal. An unknown term yields nil.
func (r *Reader) Search(field index.Field, term string) (index.PostingList, error) {
	entry, ok := r.lookup(field, term)
	if !ok {
		return nil, nil
	}
	if !within(r.postBase+entry.PostOffset, int64(entry.PostLen), r.postBase+r.header.PostSize) {
		return nil, corrupt("postings for %s:%q out of range", field, term)
	}
	postingsBytes := make([]byte, entry.PostLen)
	if _, err := r.file.ReadAt(postingsBytes, r.postBase+entry.PostOffset); err != nil {
		return nil, fmt.Errorf("reading postings: %w", err)
	}
	var postings index.PostingList
	if err := json.Unmarshal(postingsBytes, &postings); err != nil {
		return nil, corrupt("parsing postings for %s:%q: %v", field, term, err)
	}
	if len(postings) != entry.DocFreq {
		return nil, corrupt("postings for %s:%q hold %d docs, dictionary says %d", field, term, len(postings), entry.DocFreq)
	}
	for i := range postings {
		postings[i].Field = field
	}
	return postings, nil
}

func (r *Reader) lookup(field index.Field, term string) (DictEntry, bool) {
	idx := sort.Search(len(r.dict), func(i int) bool {
		e := r.dict[i]
		if c := cmp.Compare(e.Field, field); c != 0 {
			return c > 0
		}
		return e.Term >= term
	})
	if idx >= len(r.dict) || r.dict[idx].Field != field || r.dict[idx].Term != term {
		return DictEntry{}, false
	}
	return r.dict[idx], true
}

// Doc returns the stored fields of the document with the given ordinal.
func (r *Reader) Doc(ordinal uint32) (StoredDoc, bool) {
	if int(ordinal) >= len(r.stored.Docs) {
		return StoredDoc{}, false
	}
	return r.stored.Docs[ordinal], true
}

// Stored exposes the stored table metadata (tokenizer and field stats).
func (r *Reader) Stored() *StoredTable {
	return &r.stored
}

func (r *Reader) Terms() int {
	return len(r.dict)
}

func (r *Reader) DocCount() uint32 {
	return r.header.DocCount
}

func (r *Reader) Path() string {
	return r.filePath
}

func (r *Reader) Close() error {
	return r.file.Close()
}

func within(offset, length, limit int64) bool {
	return offset >= 0 && length >= 0 && offset+length <= limit
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", apperrors.ErrIndexCorrupt, fmt.Sprintf(format, args...))
}
