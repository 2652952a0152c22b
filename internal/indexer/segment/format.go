// Package segment reads and writes immutable index segment files. A segment
// holds every posting of one build, the term dictionary, and the stored
// fields table:
//
//	header (64 bytes) | postings blocks | dictionary | stored fields | footer (32 bytes)
//
// The dictionary is sorted by (field, term) and binary searched on lookup.
// Both the dictionary and the stored fields are covered by CRC32 checksums.
package segment

import (
	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/internal/indexer/tokenizer"
)

// MagicBytes identifies a valid segment file.
const (
	MagicBytes    uint32 = 0x43534547
	FormatVersion uint32 = 1
	HeaderSize    int    = 64
	FooterSize    int    = 32
	FileExt              = ".seg"
)

// SegmentHeader is the 64-byte header written at the start of every segment.
type SegmentHeader struct {
	Magic      uint32
	Version    uint32
	TermCount  uint32
	DocCount   uint32
	CreatedAt  int64
	DictOffset int64
	DictSize   int64
	PostOffset int64
	PostSize   int64
}

// SegmentFooter locates the stored fields table and carries checksums.
type SegmentFooter struct {
	DictChecksum   uint32
	StoredChecksum uint32
	StoredOffset   int64
	StoredSize     int64
	Magic          uint32
}

// DictEntry maps a (field, term) pair to its postings block.
type DictEntry struct {
	Field      index.Field `json:"f"`
	Term       string      `json:"t"`
	PostOffset int64       `json:"o"`
	PostLen    int         `json:"l"`
	DocFreq    int         `json:"d"`
}

// StoredDoc is one row of the stored fields table, in document-ordinal order.
type StoredDoc struct {
	ID      string           `json:"id"`
	Title   string           `json:"title"`
	Date    string           `json:"date"`
	Content string           `json:"content"`
	Lengths index.DocLengths `json:"lengths"`
}

// StoredTable is the stored fields section together with the build metadata
// the query path needs.
type StoredTable struct {
	Tokenizer tokenizer.Config                         `json:"tokenizer"`
	Stats     [index.NumIndexedFields]index.FieldStats `json:"stats"`
	Docs      []StoredDoc                              `json:"docs"`
}

// Data is everything a Writer persists for one build.
type Data struct {
	Entries []index.TermEntry
	Stored  StoredTable
}
