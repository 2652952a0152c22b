// Package parser turns free-text queries into term plans. Every input is a
// valid query: there are no operators, and words are matched independently
// (OR semantics) as substrings.
package parser

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/internal/indexer/tokenizer"
)

type QueryPlan struct {
	RawQuery string
	Words    []string
	// Terms holds each distinct ngram of the query once, in first-seen order.
	Terms []string
}

func (p *QueryPlan) Empty() bool {
	return len(p.Terms) == 0
}

// Parse splits query on whitespace and takes the widest grams of each word
// under tok, which must be the configuration the index was built with. A word
// up to MaxGram code points becomes a single term; a longer word contributes
// each of its MaxGram windows. Terms never span words.
func Parse(query string, tok tokenizer.Config) *QueryPlan {
	plan := &QueryPlan{
		RawQuery: query,
		Words:    strings.Fields(query),
		Terms:    make([]string, 0),
	}
	seen := make(map[string]struct{})
	for _, word := range plan.Words {
		for _, term := range tok.Widest(word) {
			if _, dup := seen[term]; dup {
				continue
			}
			seen[term] = struct{}{}
			plan.Terms = append(plan.Terms, term)
		}
	}
	return plan
}
