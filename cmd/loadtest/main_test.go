package main

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func TestPercentile(t *testing.T) {
	sorted := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	tests := []struct {
		p    float64
		want time.Duration
	}{
		{50, 5},
		{99, 10},
		{0, 1},
	}
	for _, tt := range tests {
		if got := percentile(sorted, tt.p); got != tt.want {
			t.Errorf("percentile(p%.0f) = %d, want %d", tt.p, got, tt.want)
		}
	}
	if got := percentile(nil, 50); got != 0 {
		t.Errorf("percentile(nil) = %d, want 0", got)
	}
}

func TestReadQueries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queries.txt")
	if err := os.WriteFile(path, []byte("грав\n\n  формулы  \nngram\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := readQueries(path)
	if err != nil {
		t.Fatalf("readQueries: %v", err)
	}
	if want := []string{"грав", "формулы", "ngram"}; !slices.Equal(got, want) {
		t.Errorf("readQueries = %q, want %q", got, want)
	}

	empty := filepath.Join(t.TempDir(), "empty.txt")
	if err := os.WriteFile(empty, []byte("\n \n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := readQueries(empty); err == nil {
		t.Error("expected an error for a file without queries")
	}
}

func TestStatsRecord(t *testing.T) {
	s := NewStats()
	s.Record(time.Millisecond, 200, 3, nil)
	s.Record(time.Millisecond, 200, 0, nil)
	s.Record(time.Millisecond, 503, 0, nil)
	s.Record(0, 0, 0, errors.New("connection refused"))

	if got := s.requests.Load(); got != 4 {
		t.Errorf("requests = %d, want 4", got)
	}
	if got := s.errors.Load(); got != 2 {
		t.Errorf("errors = %d, want 2", got)
	}
	if got := s.zeroResults.Load(); got != 1 {
		t.Errorf("zeroResults = %d, want 1", got)
	}
	if len(s.latencies) != 3 {
		t.Errorf("latencies = %d, want 3", len(s.latencies))
	}
	if s.statusCodes[200] != 2 {
		t.Errorf("status 200 count = %d, want 2", s.statusCodes[200])
	}
}
