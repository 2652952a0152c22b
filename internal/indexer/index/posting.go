package index

// Posting records the occurrences of one term in one field of one document.
// Doc is the document's ordinal in build order.
type Posting struct {
	Doc       uint32 `json:"d"`
	Field     Field  `json:"-"`
	Frequency int    `json:"f"`
	Positions []int  `json:"p"`
}

type PostingList []Posting

// TermEntry is a term with its postings sorted by document ordinal.
type TermEntry struct {
	Field    Field
	Term     string
	Postings PostingList
}

// FieldStats aggregates token counts of one field across a build. It is
// reported with the served index; scoring does not read it.
type FieldStats struct {
	TotalTokens int64 `json:"total_tokens"`
}

// DocLengths holds the token count of each indexed field of a document.
type DocLengths [NumIndexedFields]int
