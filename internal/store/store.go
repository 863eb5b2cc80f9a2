package store

import (
	"context"
	"errors"

	"github.com/yungbote/zarrpipe/internal/dataset"
)

// ErrNotFound is the only signal that distinguishes "target/key absent" from
// an I/O failure. Callers that probe for existence must treat any other
// error as fatal rather than as absence.
var ErrNotFound = errors.New("store: not found")

// Region is a half-open interval [Start, Stop) in target coordinate space
// along the concatenation axis.
type Region struct {
	Start int
	Stop  int
}

func (r Region) Len() int { return r.Stop - r.Start }

// Schema describes a persisted target: dimension lengths, the dimension each
// variable lies along, and the physical chunk size per axis.
type Schema struct {
	Dims   map[string]int    `json:"dims"`
	Vars   map[string]string `json:"vars"`
	Chunks map[string]int    `json:"chunks"`
	Attrs  map[string]string `json:"attrs,omitempty"`
}

// KVCache is a flat key-value blob cache. It backs both the raw-input cache
// and the metadata cache. Keys are write-once, read-many: each key has
// exactly one logical producer, so concurrent Set calls never race on the
// same key.
type KVCache interface {
	// GetItems fetches a batch of keys. A missing key fails the whole
	// call with an error wrapping ErrNotFound that names the key.
	GetItems(ctx context.Context, keys []string) (map[string][]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Store is the chunked array store the recipe writes into. Implementations
// must make WriteRegion all-or-nothing per invocation: a failed or cancelled
// call may not leave the region partially written.
type Store interface {
	// Open returns the schema of an existing target, or an error wrapping
	// ErrNotFound when no target exists yet.
	Open(ctx context.Context) (*Schema, error)
	// Create initializes the target from a seed dataset carrying one
	// chunk's worth of data per variable, with the given per-axis chunk
	// sizes.
	Create(ctx context.Context, seed *dataset.Dataset, chunks map[string]int) error
	// Resize grows (or shrinks) the named axis to newSize.
	Resize(ctx context.Context, axis string, newSize int) error
	// WriteRegion writes ds into [region.Start, region.Stop) along axis.
	// Every variable in ds must lie along axis and have exactly
	// region.Len() items.
	WriteRegion(ctx context.Context, axis string, region Region, ds *dataset.Dataset) error
	// Consolidate performs the one-time metadata consolidation step.
	Consolidate(ctx context.Context) error
}

// GetItem fetches a single key through the batched interface.
func GetItem(ctx context.Context, c KVCache, key string) ([]byte, error) {
	items, err := c.GetItems(ctx, []string{key})
	if err != nil {
		return nil, err
	}
	return items[key], nil
}
