// Package shard splits the documents of a build into contiguous ordinal ranges,
// one per indexing worker. Each range is indexed into its own MemoryIndex and
// the shards are merged before the segment is written.
package shard

import "fmt"

// Range is a half-open interval [Start, End) of document ordinals.
type Range struct {
	ID    int
	Start int
	End   int
}

func (r Range) Len() int {
	return r.End - r.Start
}

func (r Range) String() string {
	return fmt.Sprintf("shard-%d[%d,%d)", r.ID, r.Start, r.End)
}

// Split divides n documents into at most workers non-empty ranges whose sizes
// differ by at most one. It returns nil when n is zero.
func Split(n, workers int) []Range {
	if n <= 0 {
		return nil
	}
	if workers <= 0 {
		workers = 1
	}
	if workers > n {
		workers = n
	}
	ranges := make([]Range, 0, workers)
	base, extra := n/workers, n%workers
	start := 0
	for i := 0; i < workers; i++ {
		size := base
		if i < extra {
			size++
		}
		ranges = append(ranges, Range{ID: i, Start: start, End: start + size})
		start += size
	}
	return ranges
}
