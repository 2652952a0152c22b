package index

import (
	"cmp"
	"slices"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/internal/indexer/tokenizer"
)

// MemoryIndex accumulates postings for a batch of documents, with one term
// map per indexed field so equal terms in different fields never collide.
// A MemoryIndex is owned by a single writer; parallel builds give each worker
// its own and combine them with Merge.
type MemoryIndex struct {
	tok      tokenizer.Config
	fields   [NumIndexedFields]map[string]*PostingList
	stats    [NumIndexedFields]FieldStats
	docCount int
	size     int64
}

func NewMemoryIndex(tok tokenizer.Config) *MemoryIndex {
	m := &MemoryIndex{tok: tok}
	for i := range m.fields {
		m.fields[i] = make(map[string]*PostingList)
	}
	return m
}

// AddDocument tokenises title and content and appends one posting per
// distinct term and field. It returns the per-field token counts.
func (m *MemoryIndex) AddDocument(doc uint32, title string, content string) DocLengths {
	var lengths DocLengths
	texts := [NumIndexedFields]string{title, content}
	for i, field := range IndexedFields {
		lengths[i] = m.addField(doc, field, texts[i])
	}
	m.docCount++
	return lengths
}

func (m *MemoryIndex) addField(doc uint32, field Field, text string) int {
	termData := make(map[string]*Posting)
	count := 0
	for term, pos := range m.tok.Tokens(text) {
		count++
		p, exists := termData[term]
		if !exists {
			p = &Posting{
				Doc:       doc,
				Field:     field,
				Positions: make([]int, 0, 2),
			}
			termData[term] = p
		}
		p.Frequency++
		p.Positions = append(p.Positions, pos)
	}

	postings := m.fields[field]
	for term, p := range termData {
		list, exists := postings[term]
		if !exists {
			// Terms are substrings of the lower-cased text; clone the key so
			// the map does not pin every document's full content.
			list = &PostingList{}
			postings[strings.Clone(term)] = list
		}
		*list = append(*list, *p)
		m.size += int64(len(term) + len(p.Positions)*8 + 24)
	}
	m.stats[field].TotalTokens += int64(count)
	return count
}

// Merge moves the postings of every shard into m. Shards must hold disjoint
// document ordinals.
func (m *MemoryIndex) Merge(shards ...*MemoryIndex) {
	for _, shard := range shards {
		if shard == nil || shard == m {
			continue
		}
		for i := range shard.fields {
			for term, postings := range shard.fields[i] {
				if list, exists := m.fields[i][term]; exists {
					*list = append(*list, *postings...)
				} else {
					m.fields[i][term] = postings
				}
			}
			m.stats[i].TotalTokens += shard.stats[i].TotalTokens
		}
		m.docCount += shard.docCount
		m.size += shard.size
		shard.Reset()
	}
}

// Snapshot returns every term entry sorted by field then term, with postings
// sorted by document ordinal.
func (m *MemoryIndex) Snapshot() []TermEntry {
	total := 0
	for i := range m.fields {
		total += len(m.fields[i])
	}
	entries := make([]TermEntry, 0, total)
	for i, field := range IndexedFields {
		for term, list := range m.fields[i] {
			postings := *list
			slices.SortFunc(postings, func(a, b Posting) int {
				return cmp.Compare(a.Doc, b.Doc)
			})
			entries = append(entries, TermEntry{
				Field:    field,
				Term:     term,
				Postings: postings,
			})
		}
	}
	slices.SortFunc(entries, func(a, b TermEntry) int {
		if c := cmp.Compare(a.Field, b.Field); c != 0 {
			return c
		}
		return cmp.Compare(a.Term, b.Term)
	})
	return entries
}

// Search returns the postings of a term in one field.
func (m *MemoryIndex) Search(field Field, term string) PostingList {
	if !field.Indexed() {
		return nil
	}
	list, ok := m.fields[field][term]
	if !ok {
		return nil
	}
	return *list
}

func (m *MemoryIndex) Stats() [NumIndexedFields]FieldStats {
	return m.stats
}

func (m *MemoryIndex) Terms() int {
	total := 0
	for i := range m.fields {
		total += len(m.fields[i])
	}
	return total
}

func (m *MemoryIndex) Size() int64 {
	return m.size
}

func (m *MemoryIndex) DocCount() int {
	return m.docCount
}

func (m *MemoryIndex) Reset() {
	for i := range m.fields {
		m.fields[i] = make(map[string]*PostingList)
	}
	m.stats = [NumIndexedFields]FieldStats{}
	m.docCount = 0
	m.size = 0
}
