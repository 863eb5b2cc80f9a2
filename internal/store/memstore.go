package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/yungbote/zarrpipe/internal/dataset"
)

// MemStore is an in-memory Store for tests and local runs. Writes are
// validated up front and applied under one lock, so a region write is
// all-or-nothing.
type MemStore struct {
	mu           sync.Mutex
	schema       *Schema
	data         map[string][]float64
	consolidated bool
}

func NewMemStore() *MemStore {
	return &MemStore{data: map[string][]float64{}}
}

func (s *MemStore) Open(ctx context.Context) (*Schema, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.schema == nil {
		return nil, fmt.Errorf("memstore: %w", ErrNotFound)
	}
	return cloneSchema(s.schema), nil
}

func (s *MemStore) Create(ctx context.Context, seed *dataset.Dataset, chunks map[string]int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := seed.Validate(); err != nil {
		return fmt.Errorf("memstore: create: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.schema != nil {
		return fmt.Errorf("memstore: create: target already exists")
	}
	schema := &Schema{
		Dims:   map[string]int{},
		Vars:   map[string]string{},
		Chunks: map[string]int{},
		Attrs:  seed.Attrs,
	}
	for name, n := range seed.Dims {
		schema.Dims[name] = n
	}
	for name, size := range chunks {
		schema.Chunks[name] = size
	}
	for name, v := range seed.Vars {
		schema.Vars[name] = v.Dim
		cp := make([]float64, len(v.Data))
		copy(cp, v.Data)
		s.data[name] = cp
	}
	s.schema = schema
	return nil
}

func (s *MemStore) Resize(ctx context.Context, axis string, newSize int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if newSize < 0 {
		return fmt.Errorf("memstore: resize %s to %d", axis, newSize)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.schema == nil {
		return fmt.Errorf("memstore: resize: %w", ErrNotFound)
	}
	if _, ok := s.schema.Dims[axis]; !ok {
		return fmt.Errorf("memstore: resize: unknown axis %q", axis)
	}
	s.schema.Dims[axis] = newSize
	for name, dim := range s.schema.Vars {
		if dim != axis {
			continue
		}
		old := s.data[name]
		if newSize <= len(old) {
			s.data[name] = old[:newSize]
			continue
		}
		grown := make([]float64, newSize)
		copy(grown, old)
		s.data[name] = grown
	}
	return nil
}

func (s *MemStore) WriteRegion(ctx context.Context, axis string, region Region, ds *dataset.Dataset) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.schema == nil {
		return fmt.Errorf("memstore: write region: %w", ErrNotFound)
	}
	if region.Start < 0 || region.Stop < region.Start || region.Stop > s.schema.Dims[axis] {
		return fmt.Errorf("memstore: region [%d,%d) out of bounds for axis %q (len %d)",
			region.Start, region.Stop, axis, s.schema.Dims[axis])
	}
	// Validate before touching anything so a failure writes nothing.
	for name, v := range ds.Vars {
		if v.Dim != axis {
			return fmt.Errorf("memstore: variable %q lies along %q, not the write axis %q", name, v.Dim, axis)
		}
		dim, ok := s.schema.Vars[name]
		if !ok {
			return fmt.Errorf("memstore: unknown variable %q", name)
		}
		if dim != axis {
			return fmt.Errorf("memstore: target variable %q lies along %q, not %q", name, dim, axis)
		}
		if len(v.Data) != region.Len() {
			return fmt.Errorf("memstore: variable %q has %d items for region of length %d", name, len(v.Data), region.Len())
		}
	}
	for name, v := range ds.Vars {
		copy(s.data[name][region.Start:region.Stop], v.Data)
	}
	return nil
}

func (s *MemStore) Consolidate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.schema == nil {
		return fmt.Errorf("memstore: consolidate: %w", ErrNotFound)
	}
	s.consolidated = true
	return nil
}

// Snapshot returns a copy of the stored dataset; used by tests and the CLI
// summary.
func (s *MemStore) Snapshot() *dataset.Dataset {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := dataset.New()
	if s.schema == nil {
		return out
	}
	for name, n := range s.schema.Dims {
		out.Dims[name] = n
	}
	for name, dim := range s.schema.Vars {
		cp := make([]float64, len(s.data[name]))
		copy(cp, s.data[name])
		out.Vars[name] = dataset.Variable{Dim: dim, Data: cp}
	}
	out.Attrs = s.schema.Attrs
	return out
}

func (s *MemStore) Consolidated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consolidated
}

func cloneSchema(in *Schema) *Schema {
	out := &Schema{
		Dims:   map[string]int{},
		Vars:   map[string]string{},
		Chunks: map[string]int{},
		Attrs:  map[string]string{},
	}
	for k, v := range in.Dims {
		out.Dims[k] = v
	}
	for k, v := range in.Vars {
		out.Vars[k] = v
	}
	for k, v := range in.Chunks {
		out.Chunks[k] = v
	}
	for k, v := range in.Attrs {
		out.Attrs[k] = v
	}
	return out
}
