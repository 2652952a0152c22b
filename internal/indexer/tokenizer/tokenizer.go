// Package tokenizer splits text into overlapping character ngrams for the
// search engine. It lower-cases input and emits every contiguous run of
// MinGram..MaxGram code points at every starting offset, so a query for any
// substring of that length finds the documents containing it.
//
// The same Config must be used when building an index and when querying it.
// The config is persisted alongside each committed index and checked on open.
package tokenizer

import (
	"fmt"
	"iter"
	"strings"
)

const (
	DefaultMinGram = 2
	DefaultMaxGram = 10
)

// Config is the ngram window.
type Config struct {
	MinGram int `json:"min_gram"`
	MaxGram int `json:"max_gram"`
}

// DefaultConfig returns the 2..10 window.
func DefaultConfig() Config {
	return Config{MinGram: DefaultMinGram, MaxGram: DefaultMaxGram}
}

// Validate reports whether the window is usable.
func (c Config) Validate() error {
	if c.MinGram < 1 {
		return fmt.Errorf("min gram must be at least 1, got %d", c.MinGram)
	}
	if c.MaxGram < c.MinGram {
		return fmt.Errorf("max gram %d is below min gram %d", c.MaxGram, c.MinGram)
	}
	return nil
}

func (c Config) String() string {
	return fmt.Sprintf("ngram(%d,%d)", c.MinGram, c.MaxGram)
}

// Token represents a single normalised term and its code point offset in the
// lower-cased text.
type Token struct {
	Term     string
	Position int
}

// Tokens returns a lazy, restartable sequence of (term, offset) pairs. Terms
// are substrings of the lower-cased input and share its backing memory.
func (c Config) Tokens(text string) iter.Seq2[string, int] {
	return func(yield func(string, int) bool) {
		lower := strings.ToLower(text)
		bounds := runeBounds(lower)
		n := len(bounds) - 1
		for start := 0; start < n; start++ {
			for size := c.MinGram; size <= c.MaxGram; size++ {
				end := start + size
				if end > n {
					break
				}
				if !yield(lower[bounds[start]:bounds[end]], start) {
					return
				}
			}
		}
	}
}

// Tokenize collects Tokens into a slice.
func (c Config) Tokenize(text string) []Token {
	tokens := make([]Token, 0, len(text))
	for term, pos := range c.Tokens(text) {
		tokens = append(tokens, Token{Term: term, Position: pos})
	}
	return tokens
}

// runeBounds returns the byte offset of every code point in s, followed by
// len(s).
func runeBounds(s string) []int {
	bounds := make([]int, 0, len(s)+1)
	for i := range s {
		bounds = append(bounds, i)
	}
	return append(bounds, len(s))
}

// Widest returns the widest grams of text: the whole lower-cased text when it
// has between MinGram and MaxGram code points, every MaxGram window when it is
// longer, and nothing when it is shorter than MinGram. Every returned term is
// also produced by Tokens for any text containing text.
func (c Config) Widest(text string) []string {
	lower := strings.ToLower(text)
	bounds := runeBounds(lower)
	n := len(bounds) - 1
	if n < c.MinGram {
		return nil
	}
	size := min(n, c.MaxGram)
	terms := make([]string, 0, n-size+1)
	for start := 0; start+size <= n; start++ {
		terms = append(terms, lower[bounds[start]:bounds[start+size]])
	}
	return terms
}
