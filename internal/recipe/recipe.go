package recipe

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/yungbote/zarrpipe/internal/dataset"
	"github.com/yungbote/zarrpipe/internal/lock"
	"github.com/yungbote/zarrpipe/internal/pattern"
	"github.com/yungbote/zarrpipe/internal/platform/logger"
	"github.com/yungbote/zarrpipe/internal/store"
)

// Config is the recipe construction surface.
type Config struct {
	// ConcatDim is the dimension along which inputs are joined.
	ConcatDim string
	// NItemsPerInput is the fixed per-input length along ConcatDim.
	// Zero means lengths are unknown up front and must be discovered by
	// input caching and persisted in the metadata cache.
	NItemsPerInput int
	// TargetChunks maps axis name to physical chunk size in the target.
	// When it omits ConcatDim, the chunk size there defaults to
	// NItemsPerInput times the pattern's inputs-per-chunk.
	TargetChunks map[string]int
	// CacheInputs enables the input-caching stage. Mandatory when
	// NItemsPerInput is zero, since length discovery rides on it.
	CacheInputs bool
	// SkipConsolidate disables the metadata consolidation step.
	SkipConsolidate bool
	// ProcessInput, if set, transforms each opened input.
	ProcessInput func(ds *dataset.Dataset, locator string) (*dataset.Dataset, error)
	// ProcessChunk, if set, transforms each concatenated chunk.
	ProcessChunk func(ds *dataset.Dataset) (*dataset.Dataset, error)
}

// Deps are the recipe's collaborators.
type Deps struct {
	Log        *logger.Logger
	Target     store.Store
	InputCache store.KVCache
	MetaCache  store.KVCache
	Guard      lock.ConflictGuard
	Opener     dataset.Opener
}

// Recipe converts an ordered collection of source files into one logically
// contiguous, chunked array dataset. It exposes the four lifecycle
// operations (CacheInput, PrepareTarget, StoreChunk, FinalizeTarget) and the
// stage list that orders them; it performs no scheduling of its own.
type Recipe struct {
	cfg       Config
	deps      Deps
	pattern   pattern.Pattern
	log       *logger.Logger
	lengths   lengthResolver
	chunkSize int

	resolveMu sync.Mutex
	resolver  *regionResolver
}

func New(pat pattern.Pattern, cfg Config, deps Deps) (*Recipe, error) {
	if pat == nil {
		return nil, fmt.Errorf("recipe: pattern required")
	}
	if cfg.ConcatDim == "" {
		return nil, fmt.Errorf("recipe: concat dimension required")
	}
	if deps.Target == nil {
		return nil, fmt.Errorf("recipe: target store required")
	}
	if deps.Opener == nil {
		return nil, fmt.Errorf("recipe: input opener required")
	}
	if cfg.NItemsPerInput < 0 {
		return nil, fmt.Errorf("recipe: items per input must be >= 0, got %d", cfg.NItemsPerInput)
	}
	chunkSize := cfg.TargetChunks[cfg.ConcatDim]
	if chunkSize == 0 {
		if cfg.NItemsPerInput == 0 {
			return nil, fmt.Errorf("recipe: unable to determine target chunks: set TargetChunks[%q] or NItemsPerInput", cfg.ConcatDim)
		}
		chunkSize = cfg.NItemsPerInput * pat.InputsPerChunk()
	}
	if chunkSize < 1 {
		return nil, fmt.Errorf("recipe: target chunk size along %q must be >= 1, got %d", cfg.ConcatDim, chunkSize)
	}
	if cfg.NItemsPerInput == 0 {
		if !cfg.CacheInputs {
			return nil, fmt.Errorf("recipe: input lengths are not fixed, so CacheInputs is mandatory for length discovery")
		}
		if deps.MetaCache == nil {
			return nil, fmt.Errorf("recipe: input lengths are not fixed, so a metadata cache is required")
		}
	}
	if cfg.CacheInputs && deps.InputCache == nil {
		return nil, fmt.Errorf("recipe: input caching enabled but no input cache configured")
	}
	if deps.Guard == nil {
		deps.Guard = lock.NewLocalGuard()
	}
	log := deps.Log
	if log == nil {
		log = logger.NewNop()
	}
	return &Recipe{
		cfg:     cfg,
		deps:    deps,
		pattern: pat,
		log:     log.With("component", "recipe", "concat_dim", cfg.ConcatDim),
		lengths: lengthResolver{
			fixed:     cfg.NItemsPerInput,
			concatDim: cfg.ConcatDim,
			metaCache: deps.MetaCache,
		},
		chunkSize: chunkSize,
	}, nil
}

// Inputs returns every input key in canonical order.
func (r *Recipe) Inputs() []pattern.InputKey { return r.pattern.Inputs() }

// Chunks returns every chunk key in canonical order.
func (r *Recipe) Chunks() []pattern.ChunkKey { return r.pattern.Chunks() }

// CacheInput copies one input into the input cache and, when lengths are
// discovered rather than configured, records the input's dimension table in
// the metadata cache. Safe to call in any order and concurrently for
// distinct keys; re-running a key rewrites identical content.
func (r *Recipe) CacheInput(ctx context.Context, key pattern.InputKey) error {
	locator, err := r.pattern.Locator(key)
	if err != nil {
		return err
	}
	ds, err := r.deps.Opener.Open(ctx, locator)
	if err != nil {
		return fmt.Errorf("recipe: cache input %s: %w", key, err)
	}
	if r.cfg.CacheInputs {
		raw, err := ds.Encode()
		if err != nil {
			return fmt.Errorf("recipe: cache input %s: %w", key, err)
		}
		if err := r.deps.InputCache.Set(ctx, inputDataKey(key), raw); err != nil {
			return fmt.Errorf("recipe: cache input %s: %w", key, err)
		}
	}
	if r.cfg.NItemsPerInput == 0 {
		if r.cfg.ProcessInput != nil {
			if ds, err = r.cfg.ProcessInput(ds, locator); err != nil {
				return fmt.Errorf("recipe: process input %s: %w", key, err)
			}
		}
		raw, err := encodeInputRecord(ds.Dims)
		if err != nil {
			return fmt.Errorf("recipe: cache input metadata %s: %w", key, err)
		}
		if err := r.deps.MetaCache.Set(ctx, inputMetaKey(key), raw); err != nil {
			return fmt.Errorf("recipe: cache input metadata %s: %w", key, err)
		}
	}
	r.log.Debug("cached input", "input", key.Encode(), "locator", locator)
	return nil
}

// PrepareTarget probes for an existing compatible target, creates one from
// the pattern's initialization chunk set if absent, and declares the full
// concatenation-axis size. Idempotent; a failed run leaves the recipe
// retry-safe.
func (r *Recipe) PrepareTarget(ctx context.Context) error {
	schema, err := r.deps.Target.Open(ctx)
	switch {
	case err == nil:
		r.log.Info("found existing dataset in target")
		if size, ok := schema.Chunks[r.cfg.ConcatDim]; ok && size != r.chunkSize {
			return fmt.Errorf("recipe: existing target chunks %s by %d, recipe requires %d", r.cfg.ConcatDim, size, r.chunkSize)
		}
	case errors.Is(err, store.ErrNotFound):
		r.log.Info("creating a new dataset in target")
		if err := r.createTarget(ctx); err != nil {
			return err
		}
	default:
		// Only "not found" may trigger creation; anything else is a
		// real failure and must surface.
		return fmt.Errorf("recipe: probe target: %w", err)
	}

	lens, err := r.sequenceLens(ctx)
	if err != nil {
		return err
	}
	total := 0
	for _, n := range lens {
		total += n
	}
	if err := r.deps.Target.Resize(ctx, r.cfg.ConcatDim, total); err != nil {
		return fmt.Errorf("recipe: expand target along %q: %w", r.cfg.ConcatDim, err)
	}
	r.log.Info("target prepared", "total_len", total, "chunk_size", r.chunkSize)

	if r.cfg.NItemsPerInput == 0 {
		raw, err := encodeGlobalRecord(lens)
		if err != nil {
			return fmt.Errorf("recipe: encode global metadata: %w", err)
		}
		if err := r.deps.MetaCache.Set(ctx, GlobalMetadataKey, raw); err != nil {
			return fmt.Errorf("recipe: persist global metadata: %w", err)
		}
	}
	return nil
}

func (r *Recipe) createTarget(ctx context.Context) error {
	seed := dataset.New()
	for _, ck := range r.pattern.InitChunks() {
		ds, err := r.openChunk(ctx, ck)
		if err != nil {
			return fmt.Errorf("recipe: open init chunk %s: %w", ck, err)
		}
		if err := dataset.Merge(seed, ds); err != nil {
			return fmt.Errorf("recipe: merge init chunk %s: %w", ck, err)
		}
	}
	chunks := map[string]int{r.cfg.ConcatDim: r.chunkSize}
	for axis, size := range r.cfg.TargetChunks {
		chunks[axis] = size
	}
	if err := r.deps.Target.Create(ctx, seed, chunks); err != nil {
		return fmt.Errorf("recipe: create target: %w", err)
	}
	return nil
}

// StoreChunk reads a chunk's member inputs, concatenates them in canonical
// order, and writes the result into the chunk's target region under the
// conflict guard. Re-executing the same key always targets the same region,
// so retries after transient failures are idempotent.
func (r *Recipe) StoreChunk(ctx context.Context, key pattern.ChunkKey) error {
	resolver, err := r.regionResolver(ctx)
	if err != nil {
		return err
	}
	members, err := r.pattern.ChunkInputs(key)
	if err != nil {
		return err
	}
	ds, err := r.openChunk(ctx, key)
	if err != nil {
		return fmt.Errorf("recipe: open chunk %s: %w", key, err)
	}
	// A region write requires every variable to carry the concat axis.
	ds = ds.DropVarsWithout(r.cfg.ConcatDim)

	first := members[0].Position
	last := members[len(members)-1].Position
	region := resolver.region(first, last)
	conflicts := resolver.conflicts(first, last)
	if got := ds.Len(r.cfg.ConcatDim); got != region.Len() {
		return fmt.Errorf("recipe: chunk %s has %d items along %q for region [%d,%d)",
			key, got, r.cfg.ConcatDim, region.Start, region.Stop)
	}

	release, err := r.deps.Guard.Acquire(ctx, conflicts)
	if err != nil {
		return fmt.Errorf("recipe: acquire conflict guard for chunk %s: %w", key, err)
	}
	defer release()

	r.log.Info("storing chunk", "chunk", key.Encode(), "region_start", region.Start, "region_stop", region.Stop, "conflicts", conflicts)
	if err := r.deps.Target.WriteRegion(ctx, r.cfg.ConcatDim, region, ds); err != nil {
		return fmt.Errorf("recipe: write chunk %s: %w", key, err)
	}
	return nil
}

// FinalizeTarget runs the one-time closing step. Requires every chunk to be
// stored; idempotent.
func (r *Recipe) FinalizeTarget(ctx context.Context) error {
	if r.cfg.SkipConsolidate {
		return nil
	}
	r.log.Info("consolidating target metadata")
	if err := r.deps.Target.Consolidate(ctx); err != nil {
		return fmt.Errorf("recipe: consolidate target: %w", err)
	}
	return nil
}

// RegionAndConflicts exposes one chunk's write interval and conflict set;
// used by tests and diagnostics.
func (r *Recipe) RegionAndConflicts(ctx context.Context, key pattern.ChunkKey) (store.Region, []int, error) {
	resolver, err := r.regionResolver(ctx)
	if err != nil {
		return store.Region{}, nil, err
	}
	members, err := r.pattern.ChunkInputs(key)
	if err != nil {
		return store.Region{}, nil, err
	}
	first := members[0].Position
	last := members[len(members)-1].Position
	return resolver.region(first, last), resolver.conflicts(first, last), nil
}

// regionResolver builds the global interval/overlap table at most once per
// recipe. With fixed lengths it needs no I/O; otherwise it reads the global
// length table that PrepareTarget persisted. Only a successfully built
// resolver is memoized: a failed metadata read is reattempted on the next
// call, so retrying the same ChunkKey after a transient failure (or after a
// late PrepareTarget) can still succeed.
func (r *Recipe) regionResolver(ctx context.Context) (*regionResolver, error) {
	r.resolveMu.Lock()
	defer r.resolveMu.Unlock()
	if r.resolver != nil {
		return r.resolver, nil
	}
	var lens []int
	if r.cfg.NItemsPerInput > 0 {
		lens = make([]int, r.pattern.SequenceLen())
		for i := range lens {
			lens[i] = r.cfg.NItemsPerInput
		}
	} else {
		raw, err := store.GetItem(ctx, r.deps.MetaCache, GlobalMetadataKey)
		if err != nil {
			return nil, fmt.Errorf("recipe: read global metadata (has the target been prepared?): %w", err)
		}
		if lens, err = decodeGlobalRecord(raw); err != nil {
			return nil, err
		}
		if len(lens) != r.pattern.SequenceLen() {
			return nil, fmt.Errorf("recipe: global metadata has %d lengths, pattern has %d inputs along the sequence",
				len(lens), r.pattern.SequenceLen())
		}
	}
	resolver, err := newRegionResolver(lens, r.chunkSize)
	if err != nil {
		return nil, err
	}
	r.resolver = resolver
	return resolver, nil
}

func (r *Recipe) openInput(ctx context.Context, key pattern.InputKey) (*dataset.Dataset, error) {
	locator, err := r.pattern.Locator(key)
	if err != nil {
		return nil, err
	}
	var ds *dataset.Dataset
	if r.cfg.CacheInputs {
		raw, err := store.GetItem(ctx, r.deps.InputCache, inputDataKey(key))
		switch {
		case err == nil:
			if ds, err = dataset.Decode(raw); err != nil {
				return nil, fmt.Errorf("recipe: decode cached input %s: %w", key, err)
			}
		case errors.Is(err, store.ErrNotFound):
			// Not cached yet; fall back to the source.
		default:
			return nil, err
		}
	}
	if ds == nil {
		if ds, err = r.deps.Opener.Open(ctx, locator); err != nil {
			return nil, fmt.Errorf("recipe: open input %s: %w", key, err)
		}
	}
	if r.cfg.ProcessInput != nil {
		if ds, err = r.cfg.ProcessInput(ds, locator); err != nil {
			return nil, fmt.Errorf("recipe: process input %s: %w", key, err)
		}
	}
	return ds, nil
}

func (r *Recipe) openChunk(ctx context.Context, key pattern.ChunkKey) (*dataset.Dataset, error) {
	members, err := r.pattern.ChunkInputs(key)
	if err != nil {
		return nil, err
	}
	dss := make([]*dataset.Dataset, len(members))
	for i, ik := range members {
		if dss[i], err = r.openInput(ctx, ik); err != nil {
			return nil, err
		}
	}
	ds, err := dataset.Concat(dss, r.cfg.ConcatDim)
	if err != nil {
		return nil, fmt.Errorf("recipe: concat chunk %s: %w", key, err)
	}
	if r.cfg.ProcessChunk != nil {
		if ds, err = r.cfg.ProcessChunk(ds); err != nil {
			return nil, fmt.Errorf("recipe: process chunk %s: %w", key, err)
		}
	}
	return ds, nil
}
