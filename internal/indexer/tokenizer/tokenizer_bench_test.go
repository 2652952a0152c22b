package tokenizer

import (
	"fmt"
	"strings"
	"testing"
)

var sampleTexts = map[string]string{
	"short":  "Что такое гравитация",
	"medium": strings.Repeat("Правила работы с ngram индексом и поиском по подстрокам. ", 8),
	"long":   strings.Repeat("Formulas of mathematics, integrals and series; формулы математики. ", 60),
}

func BenchmarkTokenize(b *testing.B) {
	cfg := DefaultConfig()
	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for b.Loop() {
				_ = cfg.Tokenize(text)
			}
		})
	}
}

func BenchmarkTokensIter(b *testing.B) {
	cfg := DefaultConfig()
	text := sampleTexts["medium"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	for b.Loop() {
		n := 0
		for range cfg.Tokens(text) {
			n++
		}
		_ = n
	}
}

func BenchmarkTokenizeParallel(b *testing.B) {
	cfg := DefaultConfig()
	text := sampleTexts["medium"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = cfg.Tokenize(text)
		}
	})
}

func BenchmarkTokenizeGramWidth(b *testing.B) {
	text := sampleTexts["medium"]
	for _, maxGram := range []int{2, 4, 10} {
		cfg := Config{MinGram: 2, MaxGram: maxGram}
		b.Run(fmt.Sprintf("max_%d", maxGram), func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				_ = cfg.Tokenize(text)
			}
		})
	}
}
