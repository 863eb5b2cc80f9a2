package recipe

import (
	"context"
	"fmt"

	"github.com/yungbote/zarrpipe/internal/pattern"
	"github.com/yungbote/zarrpipe/internal/store"
)

// lengthResolver resolves each input's size along the concatenation axis.
// With a fixed configured length it does no I/O; otherwise it reads the
// per-input records that CacheInput wrote to the metadata cache, so caching
// must have run first.
type lengthResolver struct {
	fixed     int
	concatDim string
	metaCache store.KVCache
}

func (lr lengthResolver) lengths(ctx context.Context, keys []pattern.InputKey) ([]int, error) {
	if lr.fixed > 0 {
		out := make([]int, len(keys))
		for i := range out {
			out[i] = lr.fixed
		}
		return out, nil
	}
	if lr.metaCache == nil {
		return nil, fmt.Errorf("recipe: no fixed input length and no metadata cache configured")
	}
	cacheKeys := make([]string, len(keys))
	for i, k := range keys {
		cacheKeys[i] = inputMetaKey(k)
	}
	items, err := lr.metaCache.GetItems(ctx, cacheKeys)
	if err != nil {
		return nil, fmt.Errorf("recipe: read input metadata (has input caching run?): %w", err)
	}
	out := make([]int, len(keys))
	for i, k := range keys {
		dims, err := decodeInputRecord(items[cacheKeys[i]])
		if err != nil {
			return nil, fmt.Errorf("recipe: input %s: %w", k, err)
		}
		n, ok := dims[lr.concatDim]
		if !ok {
			return nil, fmt.Errorf("recipe: input %s metadata has no dimension %q", k, lr.concatDim)
		}
		if n < 0 {
			return nil, fmt.Errorf("recipe: input %s has negative length %d along %q", k, n, lr.concatDim)
		}
		out[i] = n
	}
	return out, nil
}

// sequenceLens returns the per-position lengths along the concatenation axis
// in canonical order. For multi-variable patterns every variable must report
// the same length list: target chunk boundaries are shared, so a mismatch is
// a fatal configuration error.
func (r *Recipe) sequenceLens(ctx context.Context) ([]int, error) {
	variables := r.pattern.Variables()
	if len(variables) == 0 {
		return r.lengths.lengths(ctx, r.pattern.Inputs())
	}
	var ref []int
	for _, v := range variables {
		keys := make([]pattern.InputKey, r.pattern.SequenceLen())
		for i := range keys {
			keys[i] = pattern.InputKey{Variable: v, Position: i}
		}
		lens, err := r.lengths.lengths(ctx, keys)
		if err != nil {
			return nil, err
		}
		if ref == nil {
			ref = lens
			continue
		}
		if !equalInts(ref, lens) {
			return nil, fmt.Errorf("recipe: inconsistent sequence lengths: variable %q reports %v, %q reports %v",
				variables[0], ref, v, lens)
		}
	}
	return ref, nil
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
