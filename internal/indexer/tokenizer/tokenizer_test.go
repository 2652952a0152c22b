package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func terms(tokens []Token) []string {
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.Term
	}
	return out
}

func TestTokenizeAllWindows(t *testing.T) {
	cfg := Config{MinGram: 2, MaxGram: 3}
	tokens := cfg.Tokenize("AbcD")

	assert.Equal(t, []string{"ab", "abc", "bc", "bcd", "cd"}, terms(tokens))
	assert.Equal(t, []int{0, 0, 1, 1, 2}, []int{
		tokens[0].Position, tokens[1].Position, tokens[2].Position, tokens[3].Position, tokens[4].Position,
	})
}

func TestTokenizeCodePointOffsets(t *testing.T) {
	cfg := Config{MinGram: 2, MaxGram: 2}
	tokens := cfg.Tokenize("ГрАв")

	assert.Equal(t, []string{"гр", "ра", "ав"}, terms(tokens))
	for i, tok := range tokens {
		assert.Equal(t, i, tok.Position)
	}
}

func TestTokenizeShortInput(t *testing.T) {
	cfg := DefaultConfig()
	assert.Empty(t, cfg.Tokenize(""))
	assert.Empty(t, cfg.Tokenize("я"))
	assert.Equal(t, []string{"🚀x"}, terms(cfg.Tokenize("🚀X")))
}

func TestTokenizeCountsDefaultWindow(t *testing.T) {
	cfg := DefaultConfig()
	// 12 code points: starts 0..10 contribute min(10, 12-start) - 1 grams each.
	tokens := cfg.Tokenize("гравитацияаб")
	want := 0
	for start := 0; start < 12; start++ {
		for size := 2; size <= 10 && start+size <= 12; size++ {
			want++
		}
	}
	assert.Len(t, tokens, want)
}

func TestTokensIsRestartableAndStoppable(t *testing.T) {
	cfg := DefaultConfig()
	seq := cfg.Tokens("формулы")

	first := 0
	for range seq {
		first++
	}
	second := 0
	for range seq {
		second++
	}
	assert.Equal(t, first, second)

	seen := 0
	for range seq {
		seen++
		if seen == 3 {
			break
		}
	}
	assert.Equal(t, 3, seen)
}

func TestTokenizeCaseInsensitive(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, terms(cfg.Tokenize("гравитация")), terms(cfg.Tokenize("ГРАВИТАЦИЯ")))
}

func TestValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
	assert.Error(t, Config{MinGram: 0, MaxGram: 3}.Validate())
	assert.Error(t, Config{MinGram: 3, MaxGram: 2}.Validate())
	assert.Equal(t, "ngram(2,10)", DefaultConfig().String())
}

func TestWidest(t *testing.T) {
	cfg := Config{MinGram: 2, MaxGram: 4}
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"я", nil},
		{"ГрАв", []string{"грав"}},
		{"abc", []string{"abc"}},
		{"abcdef", []string{"abcd", "bcde", "cdef"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cfg.Widest(tt.in), tt.in)
	}
}

func TestWidestTermsAreIndexTerms(t *testing.T) {
	cfg := DefaultConfig()
	indexed := make(map[string]bool)
	for term := range cfg.Tokens("Что такое гравитация и ускорение свободного падения") {
		indexed[term] = true
	}
	for _, q := range []string{"грав", "ГРАВИТАЦИЯ", "ускорение", "свободного"} {
		for _, term := range cfg.Widest(q) {
			assert.True(t, indexed[term], "%q from %q", term, q)
		}
	}
}
