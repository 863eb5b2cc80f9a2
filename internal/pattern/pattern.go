package pattern

import (
	"fmt"
	"strconv"
	"strings"
)

// InputKey identifies one source unit. Position is the ordinal along the
// concatenation axis; Variable is empty for single-sequence patterns.
type InputKey struct {
	Variable string
	Position int
}

func (k InputKey) Encode() string {
	if k.Variable == "" {
		return strconv.Itoa(k.Position)
	}
	return k.Variable + "-" + strconv.Itoa(k.Position)
}

func (k InputKey) String() string { return k.Encode() }

// ChunkKey identifies one group of InputKeys written together. Index is the
// chunk ordinal along the concatenation axis within the key's variable.
type ChunkKey struct {
	Variable string
	Index    int
}

func (k ChunkKey) Encode() string {
	if k.Variable == "" {
		return strconv.Itoa(k.Index)
	}
	return k.Variable + "-" + strconv.Itoa(k.Index)
}

func (k ChunkKey) String() string { return k.Encode() }

// Pattern is a deterministic, invertible mapping between input keys and
// source locators, and between chunk keys and ordered groups of input keys.
// Chunk keys exactly partition the input keys: no gaps, no overlaps, and
// within a chunk the inputs preserve source order.
type Pattern interface {
	// Inputs returns every InputKey in canonical order (variable-major,
	// then ascending position).
	Inputs() []InputKey
	// Locator resolves an InputKey to its source locator.
	Locator(key InputKey) (string, error)
	// Chunks returns every ChunkKey in canonical order.
	Chunks() []ChunkKey
	// ChunkInputs returns a chunk's member InputKeys in source order.
	ChunkInputs(key ChunkKey) ([]InputKey, error)
	// ChunkOf returns the chunk an input belongs to.
	ChunkOf(key InputKey) (ChunkKey, error)
	// InitChunks is the minimal chunk set needed to discover the target
	// schema before any bulk write.
	InitChunks() []ChunkKey
	// Variables lists the pattern's variable names; nil for the
	// single-sequence variant.
	Variables() []string
	// SequenceLen is the number of inputs along the concatenation axis
	// (per variable for the multi-variable variant).
	SequenceLen() int
	// InputsPerChunk is the chunk grouping factor.
	InputsPerChunk() int
}

// Sequence is the single-sequence pattern: one ordered list of locators,
// grouped into consecutive fixed-size batches.
type Sequence struct {
	locators       []string
	inputsPerChunk int
}

func NewSequence(locators []string, inputsPerChunk int) (*Sequence, error) {
	if len(locators) == 0 {
		return nil, fmt.Errorf("pattern: no input locators")
	}
	if inputsPerChunk < 1 {
		return nil, fmt.Errorf("pattern: inputs per chunk must be >= 1, got %d", inputsPerChunk)
	}
	return &Sequence{locators: locators, inputsPerChunk: inputsPerChunk}, nil
}

func (p *Sequence) Inputs() []InputKey {
	keys := make([]InputKey, len(p.locators))
	for i := range p.locators {
		keys[i] = InputKey{Position: i}
	}
	return keys
}

func (p *Sequence) Locator(key InputKey) (string, error) {
	if key.Variable != "" || key.Position < 0 || key.Position >= len(p.locators) {
		return "", fmt.Errorf("pattern: unknown input key %s", key)
	}
	return p.locators[key.Position], nil
}

func (p *Sequence) Chunks() []ChunkKey {
	n := chunkCount(len(p.locators), p.inputsPerChunk)
	keys := make([]ChunkKey, n)
	for i := range keys {
		keys[i] = ChunkKey{Index: i}
	}
	return keys
}

func (p *Sequence) ChunkInputs(key ChunkKey) ([]InputKey, error) {
	n := chunkCount(len(p.locators), p.inputsPerChunk)
	if key.Variable != "" || key.Index < 0 || key.Index >= n {
		return nil, fmt.Errorf("pattern: unknown chunk key %s", key)
	}
	return memberKeys("", key.Index, p.inputsPerChunk, len(p.locators)), nil
}

func (p *Sequence) ChunkOf(key InputKey) (ChunkKey, error) {
	if key.Variable != "" || key.Position < 0 || key.Position >= len(p.locators) {
		return ChunkKey{}, fmt.Errorf("pattern: unknown input key %s", key)
	}
	return ChunkKey{Index: key.Position / p.inputsPerChunk}, nil
}

func (p *Sequence) InitChunks() []ChunkKey { return []ChunkKey{{Index: 0}} }

func (p *Sequence) Variables() []string { return nil }

func (p *Sequence) SequenceLen() int { return len(p.locators) }

func (p *Sequence) InputsPerChunk() int { return p.inputsPerChunk }

// MultiVariable is the multi-variable sequence pattern: a fixed set of
// variable names sharing one concatenation axis, with different variables
// living in different source files. Every variable's sequence is chunked
// identically because target chunk boundaries are shared.
type MultiVariable struct {
	variables      []string
	sequenceLen    int
	inputsPerChunk int
	locate         func(variable string, position int) string
}

// NewMultiVariable builds the pattern from a locator template or a custom
// locator function. The template substitutes {variable} and {position}.
func NewMultiVariable(variables []string, sequenceLen, inputsPerChunk int, template string) (*MultiVariable, error) {
	if template == "" {
		return nil, fmt.Errorf("pattern: locator template required")
	}
	locate := func(variable string, position int) string {
		s := strings.ReplaceAll(template, "{variable}", variable)
		return strings.ReplaceAll(s, "{position}", strconv.Itoa(position))
	}
	return NewMultiVariableFunc(variables, sequenceLen, inputsPerChunk, locate)
}

func NewMultiVariableFunc(variables []string, sequenceLen, inputsPerChunk int, locate func(variable string, position int) string) (*MultiVariable, error) {
	if len(variables) == 0 {
		return nil, fmt.Errorf("pattern: no variables")
	}
	seen := map[string]bool{}
	for _, v := range variables {
		if v == "" {
			return nil, fmt.Errorf("pattern: empty variable name")
		}
		if seen[v] {
			return nil, fmt.Errorf("pattern: duplicate variable %q", v)
		}
		seen[v] = true
	}
	if sequenceLen < 1 {
		return nil, fmt.Errorf("pattern: sequence length must be >= 1, got %d", sequenceLen)
	}
	if inputsPerChunk < 1 {
		return nil, fmt.Errorf("pattern: inputs per chunk must be >= 1, got %d", inputsPerChunk)
	}
	if locate == nil {
		return nil, fmt.Errorf("pattern: locator function required")
	}
	return &MultiVariable{
		variables:      variables,
		sequenceLen:    sequenceLen,
		inputsPerChunk: inputsPerChunk,
		locate:         locate,
	}, nil
}

func (p *MultiVariable) Inputs() []InputKey {
	keys := make([]InputKey, 0, len(p.variables)*p.sequenceLen)
	for _, v := range p.variables {
		for i := 0; i < p.sequenceLen; i++ {
			keys = append(keys, InputKey{Variable: v, Position: i})
		}
	}
	return keys
}

func (p *MultiVariable) Locator(key InputKey) (string, error) {
	if !p.hasVariable(key.Variable) || key.Position < 0 || key.Position >= p.sequenceLen {
		return "", fmt.Errorf("pattern: unknown input key %s", key)
	}
	return p.locate(key.Variable, key.Position), nil
}

func (p *MultiVariable) Chunks() []ChunkKey {
	n := chunkCount(p.sequenceLen, p.inputsPerChunk)
	keys := make([]ChunkKey, 0, len(p.variables)*n)
	for _, v := range p.variables {
		for i := 0; i < n; i++ {
			keys = append(keys, ChunkKey{Variable: v, Index: i})
		}
	}
	return keys
}

func (p *MultiVariable) ChunkInputs(key ChunkKey) ([]InputKey, error) {
	n := chunkCount(p.sequenceLen, p.inputsPerChunk)
	if !p.hasVariable(key.Variable) || key.Index < 0 || key.Index >= n {
		return nil, fmt.Errorf("pattern: unknown chunk key %s", key)
	}
	return memberKeys(key.Variable, key.Index, p.inputsPerChunk, p.sequenceLen), nil
}

func (p *MultiVariable) ChunkOf(key InputKey) (ChunkKey, error) {
	if !p.hasVariable(key.Variable) || key.Position < 0 || key.Position >= p.sequenceLen {
		return ChunkKey{}, fmt.Errorf("pattern: unknown input key %s", key)
	}
	return ChunkKey{Variable: key.Variable, Index: key.Position / p.inputsPerChunk}, nil
}

// InitChunks returns the chunk at index 0 for every variable: the target
// schema is only complete once one chunk per variable has been seen.
func (p *MultiVariable) InitChunks() []ChunkKey {
	keys := make([]ChunkKey, len(p.variables))
	for i, v := range p.variables {
		keys[i] = ChunkKey{Variable: v, Index: 0}
	}
	return keys
}

func (p *MultiVariable) Variables() []string { return p.variables }

func (p *MultiVariable) SequenceLen() int { return p.sequenceLen }

func (p *MultiVariable) InputsPerChunk() int { return p.inputsPerChunk }

func (p *MultiVariable) hasVariable(name string) bool {
	for _, v := range p.variables {
		if v == name {
			return true
		}
	}
	return false
}

func chunkCount(sequenceLen, inputsPerChunk int) int {
	return (sequenceLen + inputsPerChunk - 1) / inputsPerChunk
}

func memberKeys(variable string, chunkIndex, inputsPerChunk, sequenceLen int) []InputKey {
	start := chunkIndex * inputsPerChunk
	stop := start + inputsPerChunk
	if stop > sequenceLen {
		stop = sequenceLen
	}
	keys := make([]InputKey, 0, stop-start)
	for i := start; i < stop; i++ {
		keys = append(keys, InputKey{Variable: variable, Position: i})
	}
	return keys
}
