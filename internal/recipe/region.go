package recipe

import (
	"fmt"

	"github.com/yungbote/zarrpipe/internal/store"
)

// regionResolver maps sequence positions to target coordinates. It is built
// once per recipe from the per-position input lengths and the physical chunk
// size along the concatenation axis, independent of chunk grouping; grouping
// only determines which precomputed entries apply to which chunk key.
type regionResolver struct {
	// prefix[i] is the sum of the first i input lengths, so input i
	// occupies [prefix[i], prefix[i+1]).
	prefix []int
	// overlaps[i] lists, in ascending order, the physical chunk ordinals
	// input i's interval overlaps. Empty for zero-length inputs.
	overlaps [][]int
}

func newRegionResolver(lens []int, chunkSize int) (*regionResolver, error) {
	if chunkSize < 1 {
		return nil, fmt.Errorf("recipe: target chunk size must be >= 1, got %d", chunkSize)
	}
	prefix := make([]int, len(lens)+1)
	for i, n := range lens {
		if n < 0 {
			return nil, fmt.Errorf("recipe: negative input length %d at position %d", n, i)
		}
		prefix[i+1] = prefix[i] + n
	}
	overlaps := make([][]int, len(lens))
	for i := range lens {
		start, stop := prefix[i], prefix[i+1]
		if stop <= start {
			continue
		}
		// Half-open interval: an input ending exactly on a physical
		// boundary does not touch the following chunk.
		first := start / chunkSize
		last := (stop - 1) / chunkSize
		ords := make([]int, 0, last-first+1)
		for o := first; o <= last; o++ {
			ords = append(ords, o)
		}
		overlaps[i] = ords
	}
	return &regionResolver{prefix: prefix, overlaps: overlaps}, nil
}

// region returns the write interval covering the consecutive positions
// [first, last].
func (rr *regionResolver) region(first, last int) store.Region {
	return store.Region{Start: rr.prefix[first], Stop: rr.prefix[last+1]}
}

// conflicts returns the ascending union of the physical chunk ordinals
// overlapped by positions [first, last].
func (rr *regionResolver) conflicts(first, last int) []int {
	var out []int
	for p := first; p <= last; p++ {
		for _, o := range rr.overlaps[p] {
			if len(out) == 0 || o > out[len(out)-1] {
				out = append(out, o)
			}
		}
	}
	return out
}

func (rr *regionResolver) totalLen() int {
	return rr.prefix[len(rr.prefix)-1]
}
