package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/yungbote/zarrpipe/internal/dataset"
)

const (
	schemaFile       = "schema.json"
	consolidatedFile = ".consolidated.json"
	floatSize        = 8
)

// FSStore persists the target under a directory: schema.json plus one
// little-endian float64 file per variable. Each variable's region write is a
// single positioned write, so per variable a region is either fully written
// or untouched; a failure between variables leaves the earlier ones written,
// which an idempotent chunk retry overwrites in place.
type FSStore struct {
	root string
}

func NewFSStore(root string) *FSStore {
	return &FSStore{root: root}
}

func (s *FSStore) Open(ctx context.Context) (*Schema, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(filepath.Join(s.root, schemaFile))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("fsstore: %s: %w", s.root, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fsstore: open schema: %w", err)
	}
	var schema Schema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, fmt.Errorf("fsstore: decode schema: %w", err)
	}
	return &schema, nil
}

func (s *FSStore) Create(ctx context.Context, seed *dataset.Dataset, chunks map[string]int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := seed.Validate(); err != nil {
		return fmt.Errorf("fsstore: create: %w", err)
	}
	// Only a confirmed absence may be overwritten; an unreadable schema is
	// a real failure, not a free slot.
	switch _, err := s.Open(ctx); {
	case err == nil:
		return fmt.Errorf("fsstore: create: target already exists at %s", s.root)
	case !errors.Is(err, ErrNotFound):
		return fmt.Errorf("fsstore: create: %w", err)
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("fsstore: create: %w", err)
	}
	schema := &Schema{
		Dims:   seed.Dims,
		Vars:   map[string]string{},
		Chunks: chunks,
		Attrs:  seed.Attrs,
	}
	for name, v := range seed.Vars {
		schema.Vars[name] = v.Dim
		if err := os.WriteFile(s.varPath(name), encodeFloats(v.Data), 0o644); err != nil {
			return fmt.Errorf("fsstore: create variable %q: %w", name, err)
		}
	}
	return s.writeSchema(schema)
}

func (s *FSStore) Resize(ctx context.Context, axis string, newSize int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if newSize < 0 {
		return fmt.Errorf("fsstore: resize %s to %d", axis, newSize)
	}
	schema, err := s.Open(ctx)
	if err != nil {
		return err
	}
	if _, ok := schema.Dims[axis]; !ok {
		return fmt.Errorf("fsstore: resize: unknown axis %q", axis)
	}
	for name, dim := range schema.Vars {
		if dim != axis {
			continue
		}
		if err := os.Truncate(s.varPath(name), int64(newSize)*floatSize); err != nil {
			return fmt.Errorf("fsstore: resize variable %q: %w", name, err)
		}
	}
	schema.Dims[axis] = newSize
	return s.writeSchema(schema)
}

func (s *FSStore) WriteRegion(ctx context.Context, axis string, region Region, ds *dataset.Dataset) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	schema, err := s.Open(ctx)
	if err != nil {
		return err
	}
	if region.Start < 0 || region.Stop < region.Start || region.Stop > schema.Dims[axis] {
		return fmt.Errorf("fsstore: region [%d,%d) out of bounds for axis %q (len %d)",
			region.Start, region.Stop, axis, schema.Dims[axis])
	}
	for name, v := range ds.Vars {
		if v.Dim != axis {
			return fmt.Errorf("fsstore: variable %q lies along %q, not the write axis %q", name, v.Dim, axis)
		}
		if dim, ok := schema.Vars[name]; !ok || dim != axis {
			return fmt.Errorf("fsstore: no target variable %q along %q", name, axis)
		}
		if len(v.Data) != region.Len() {
			return fmt.Errorf("fsstore: variable %q has %d items for region of length %d", name, len(v.Data), region.Len())
		}
	}
	for name, v := range ds.Vars {
		f, err := os.OpenFile(s.varPath(name), os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("fsstore: write variable %q: %w", name, err)
		}
		_, werr := f.WriteAt(encodeFloats(v.Data), int64(region.Start)*floatSize)
		cerr := f.Close()
		if werr != nil {
			return fmt.Errorf("fsstore: write variable %q region [%d,%d): %w", name, region.Start, region.Stop, werr)
		}
		if cerr != nil {
			return fmt.Errorf("fsstore: close variable %q: %w", name, cerr)
		}
	}
	return nil
}

func (s *FSStore) Consolidate(ctx context.Context) error {
	schema, err := s.Open(ctx)
	if err != nil {
		return err
	}
	raw, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("fsstore: consolidate: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.root, consolidatedFile), raw, 0o644); err != nil {
		return fmt.Errorf("fsstore: consolidate: %w", err)
	}
	return nil
}

// ReadVar returns the full contents of one variable; used by tests and the
// CLI summary.
func (s *FSStore) ReadVar(name string) ([]float64, error) {
	raw, err := os.ReadFile(s.varPath(name))
	if err != nil {
		return nil, fmt.Errorf("fsstore: read variable %q: %w", name, err)
	}
	return decodeFloats(raw), nil
}

func (s *FSStore) varPath(name string) string {
	return filepath.Join(s.root, name+".bin")
}

func (s *FSStore) writeSchema(schema *Schema) error {
	raw, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("fsstore: encode schema: %w", err)
	}
	tmp := filepath.Join(s.root, schemaFile+".tmp")
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("fsstore: write schema: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(s.root, schemaFile)); err != nil {
		return fmt.Errorf("fsstore: write schema: %w", err)
	}
	return nil
}

func encodeFloats(data []float64) []byte {
	out := make([]byte, len(data)*floatSize)
	for i, v := range data {
		binary.LittleEndian.PutUint64(out[i*floatSize:], math.Float64bits(v))
	}
	return out
}

func decodeFloats(raw []byte) []float64 {
	out := make([]float64, len(raw)/floatSize)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*floatSize:]))
	}
	return out
}
