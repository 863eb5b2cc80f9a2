package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Variable is a one-dimensional array along a single named dimension.
type Variable struct {
	Dim  string    `json:"dim"`
	Data []float64 `json:"data"`
}

// Dataset is the minimal in-memory dataset the recipe engine moves around:
// named dimension lengths plus 1-D variables. Source-format parsing happens
// behind an Opener; the engine only ever sees this shape.
type Dataset struct {
	Dims  map[string]int      `json:"dims"`
	Vars  map[string]Variable `json:"vars"`
	Attrs map[string]string   `json:"attrs,omitempty"`
}

func New() *Dataset {
	return &Dataset{Dims: map[string]int{}, Vars: map[string]Variable{}}
}

func (d *Dataset) Len(dim string) int { return d.Dims[dim] }

// VarNames returns variable names in sorted order.
func (d *Dataset) VarNames() []string {
	names := make([]string, 0, len(d.Vars))
	for name := range d.Vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetVar adds or replaces a variable and reconciles the dimension table.
func (d *Dataset) SetVar(name, dim string, data []float64) error {
	if n, ok := d.Dims[dim]; ok && n != len(data) {
		return fmt.Errorf("dataset: variable %q has %d items along %q, dimension already has %d", name, len(data), dim, n)
	}
	d.Dims[dim] = len(data)
	d.Vars[name] = Variable{Dim: dim, Data: data}
	return nil
}

// Validate checks that every variable agrees with the dimension table.
func (d *Dataset) Validate() error {
	for name, v := range d.Vars {
		if v.Dim == "" {
			return fmt.Errorf("dataset: variable %q has no dimension", name)
		}
		n, ok := d.Dims[v.Dim]
		if !ok {
			return fmt.Errorf("dataset: variable %q uses undeclared dimension %q", name, v.Dim)
		}
		if len(v.Data) != n {
			return fmt.Errorf("dataset: variable %q has %d items, dimension %q has %d", name, len(v.Data), v.Dim, n)
		}
	}
	return nil
}

// DropVarsWithout returns a copy holding only the variables that lie along
// dim. Region writes require every written variable to carry the
// concatenation axis.
func (d *Dataset) DropVarsWithout(dim string) *Dataset {
	out := New()
	for name, v := range d.Vars {
		if v.Dim == dim {
			out.Vars[name] = v
		}
	}
	out.Dims[dim] = d.Dims[dim]
	out.Attrs = d.Attrs
	return out
}

// Concat joins datasets along dim in the order given. Every dataset must
// carry the same variable set along dim; variables off the axis are taken
// from the first dataset.
func Concat(dss []*Dataset, dim string) (*Dataset, error) {
	if len(dss) == 0 {
		return nil, fmt.Errorf("dataset: nothing to concatenate")
	}
	out := New()
	first := dss[0]
	for name, v := range first.Vars {
		if v.Dim != dim {
			out.Vars[name] = v
			out.Dims[v.Dim] = first.Dims[v.Dim]
		}
	}
	total := 0
	for _, ds := range dss {
		total += ds.Len(dim)
	}
	for _, name := range first.VarNames() {
		if first.Vars[name].Dim != dim {
			continue
		}
		data := make([]float64, 0, total)
		for i, ds := range dss {
			v, ok := ds.Vars[name]
			if !ok || v.Dim != dim {
				return nil, fmt.Errorf("dataset: concat member %d is missing variable %q along %q", i, name, dim)
			}
			data = append(data, v.Data...)
		}
		out.Vars[name] = Variable{Dim: dim, Data: data}
	}
	for i, ds := range dss {
		for name, v := range ds.Vars {
			if v.Dim == dim {
				if _, ok := first.Vars[name]; !ok {
					return nil, fmt.Errorf("dataset: concat member %d has extra variable %q", i, name)
				}
			}
		}
	}
	out.Dims[dim] = total
	out.Attrs = first.Attrs
	return out, nil
}

// Merge copies src variables into dst. Shared dimensions must agree; a
// variable present in both is an error.
func Merge(dst, src *Dataset) error {
	for name, n := range src.Dims {
		if m, ok := dst.Dims[name]; ok && m != n {
			return fmt.Errorf("dataset: merge dimension %q mismatch: %d vs %d", name, m, n)
		}
	}
	for name, v := range src.Vars {
		if _, ok := dst.Vars[name]; ok {
			return fmt.Errorf("dataset: merge would overwrite variable %q", name)
		}
		dst.Vars[name] = v
		dst.Dims[v.Dim] = src.Dims[v.Dim]
	}
	for name, val := range src.Attrs {
		if dst.Attrs == nil {
			dst.Attrs = map[string]string{}
		}
		if _, ok := dst.Attrs[name]; !ok {
			dst.Attrs[name] = val
		}
	}
	return nil
}

func (d *Dataset) Encode() ([]byte, error) {
	return json.Marshal(d)
}

func Decode(raw []byte) (*Dataset, error) {
	var d Dataset
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("dataset: decode: %w", err)
	}
	if d.Dims == nil {
		d.Dims = map[string]int{}
	}
	if d.Vars == nil {
		d.Vars = map[string]Variable{}
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Opener resolves a source locator to a dataset. Concrete source-format
// decoding lives behind this interface.
type Opener interface {
	Open(ctx context.Context, locator string) (*Dataset, error)
}

// FileOpener reads JSON-encoded datasets from the local filesystem.
type FileOpener struct{}

func (FileOpener) Open(ctx context.Context, locator string) (*Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(locator)
	if err != nil {
		return nil, fmt.Errorf("dataset: open %s: %w", locator, err)
	}
	return Decode(raw)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context, locator string) (*Dataset, error)

func (f OpenerFunc) Open(ctx context.Context, locator string) (*Dataset, error) {
	return f(ctx, locator)
}
