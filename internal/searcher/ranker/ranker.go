// Package ranker scores candidate documents from their postings. Scoring uses
// BM25 term-frequency saturation per field, normalised against a fixed pivot
// length rather than corpus averages, and no inverse document frequency. A
// document's score therefore depends only on the document and the query, so
// adding or removing other conversations never changes it.
package ranker

import (
	"cmp"
	"math"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/internal/indexer/index"
)

const (
	DefaultK1          = 1.2
	DefaultB           = 0.75
	DefaultTitleBoost  = 2.0
	DefaultLengthPivot = 256
)

type Params struct {
	K1          float64
	B           float64
	TitleBoost  float64
	LengthPivot float64
}

func DefaultParams() Params {
	return Params{
		K1:          DefaultK1,
		B:           DefaultB,
		TitleBoost:  DefaultTitleBoost,
		LengthPivot: DefaultLengthPivot,
	}
}

type ScoredDoc struct {
	Ordinal uint32  `json:"ordinal"`
	Score   float64 `json:"score"`
}

// LengthsFunc returns the per-field token counts of a document.
type LengthsFunc func(ordinal uint32) index.DocLengths

// Rank scores every document that appears in postings and returns the top
// limit by descending score, ties broken by ascending ordinal, along with the
// total number of matching documents. A limit of zero or less returns all.
func Rank(postings []index.Posting, lengths LengthsFunc, params Params, limit int) ([]ScoredDoc, int) {
	scores := make(map[uint32]float64)
	for _, p := range postings {
		if !p.Field.Indexed() {
			continue
		}
		dl := lengths(p.Doc)[p.Field]
		contribution := tfNorm(float64(p.Frequency), float64(dl), params)
		if p.Field == index.FieldTitle {
			contribution *= params.TitleBoost
		}
		scores[p.Doc] += contribution
	}

	result := make([]ScoredDoc, 0, len(scores))
	for ord, score := range scores {
		result = append(result, ScoredDoc{
			Ordinal: ord,
			Score:   math.Round(score*10000) / 10000,
		})
	}
	total := len(result)
	if limit > 0 && total > limit {
		return topK(result, limit), total
	}
	slices.SortFunc(result, func(a, b ScoredDoc) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Ordinal, b.Ordinal)
	})
	return result, total
}

func tfNorm(termFreq, docLength float64, params Params) float64 {
	if termFreq <= 0 {
		return 0
	}
	pivot := params.LengthPivot
	if pivot <= 0 {
		pivot = DefaultLengthPivot
	}
	lengthRatio := docLength / pivot
	denominator := termFreq + params.K1*(1-params.B+params.B*lengthRatio)
	return (termFreq * (params.K1 + 1)) / denominator
}
