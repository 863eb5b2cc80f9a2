package recipe

import (
	"context"

	"github.com/yungbote/zarrpipe/internal/pattern"
)

// Item is one unit of work inside a parallel stage.
type Item interface {
	Encode() string
}

// Stage is one step of the recipe pipeline. Stages form a strict dependency
// chain: a stage may not start until the previous one has fully completed.
// Items of a parallel stage are unordered and may run concurrently at
// whatever parallelism the executor chooses; the conflict guard inside
// StoreChunk is the only serialization the store stage needs.
type Stage struct {
	Name string
	// Items is nil for singleton stages, which must run exactly once
	// with a nil item.
	Items []Item
	Run   func(ctx context.Context, item Item) error
}

// Singleton reports whether the stage runs as a single indivisible step.
func (s Stage) Singleton() bool { return s.Items == nil }

// Pipeline translates the recipe into its ordered stage list for an
// external executor. The caching stage is present only when input caching
// is enabled.
func (r *Recipe) Pipeline() []Stage {
	var stages []Stage
	if r.cfg.CacheInputs {
		inputs := r.pattern.Inputs()
		items := make([]Item, len(inputs))
		for i, k := range inputs {
			items[i] = k
		}
		stages = append(stages, Stage{
			Name:  "cache_inputs",
			Items: items,
			Run: func(ctx context.Context, item Item) error {
				return r.CacheInput(ctx, item.(pattern.InputKey))
			},
		})
	}
	stages = append(stages, Stage{
		Name: "prepare_target",
		Run: func(ctx context.Context, _ Item) error {
			return r.PrepareTarget(ctx)
		},
	})
	chunks := r.pattern.Chunks()
	items := make([]Item, len(chunks))
	for i, k := range chunks {
		items[i] = k
	}
	stages = append(stages, Stage{
		Name:  "store_chunks",
		Items: items,
		Run: func(ctx context.Context, item Item) error {
			return r.StoreChunk(ctx, item.(pattern.ChunkKey))
		},
	})
	stages = append(stages, Stage{
		Name: "finalize_target",
		Run: func(ctx context.Context, _ Item) error {
			return r.FinalizeTarget(ctx)
		},
	})
	return stages
}
