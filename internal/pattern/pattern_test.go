package pattern

import (
	"testing"
)

func TestSequencePartition(t *testing.T) {
	locators := []string{"a", "b", "c", "d", "e"}
	p, err := NewSequence(locators, 2)
	if err != nil {
		t.Fatalf("NewSequence: %v", err)
	}

	seen := map[InputKey]int{}
	for _, ck := range p.Chunks() {
		members, err := p.ChunkInputs(ck)
		if err != nil {
			t.Fatalf("ChunkInputs(%s): %v", ck, err)
		}
		for _, ik := range members {
			seen[ik]++
			got, err := p.ChunkOf(ik)
			if err != nil {
				t.Fatalf("ChunkOf(%s): %v", ik, err)
			}
			if got != ck {
				t.Fatalf("input %s: ChunkOf returned %s, member of %s", ik, got, ck)
			}
		}
	}
	inputs := p.Inputs()
	if len(seen) != len(inputs) {
		t.Fatalf("chunks cover %d inputs, pattern has %d", len(seen), len(inputs))
	}
	for _, ik := range inputs {
		if seen[ik] != 1 {
			t.Fatalf("input %s covered %d times", ik, seen[ik])
		}
	}
}

func TestSequenceChunkingAndOrder(t *testing.T) {
	p, err := NewSequence([]string{"u0", "u1", "u2", "u3", "u4"}, 2)
	if err != nil {
		t.Fatalf("NewSequence: %v", err)
	}
	chunks := p.Chunks()
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3 (last one short)", len(chunks))
	}
	members, err := p.ChunkInputs(ChunkKey{Index: 2})
	if err != nil {
		t.Fatalf("ChunkInputs: %v", err)
	}
	if len(members) != 1 || members[0].Position != 4 {
		t.Fatalf("short tail chunk members = %v", members)
	}
	for _, ck := range chunks {
		ms, _ := p.ChunkInputs(ck)
		for i := 1; i < len(ms); i++ {
			if ms[i].Position != ms[i-1].Position+1 {
				t.Fatalf("chunk %s members out of source order: %v", ck, ms)
			}
		}
	}
	loc, err := p.Locator(InputKey{Position: 3})
	if err != nil {
		t.Fatalf("Locator: %v", err)
	}
	if loc != "u3" {
		t.Fatalf("Locator = %q, want u3", loc)
	}
	if _, err := p.Locator(InputKey{Position: 9}); err == nil {
		t.Fatal("expected error for out-of-range input key")
	}
}

func TestSequenceInitChunks(t *testing.T) {
	p, _ := NewSequence([]string{"a", "b", "c"}, 2)
	init := p.InitChunks()
	if len(init) != 1 || init[0] != (ChunkKey{Index: 0}) {
		t.Fatalf("init chunks = %v, want just chunk 0", init)
	}
}

func TestMultiVariablePartition(t *testing.T) {
	p, err := NewMultiVariable([]string{"temp", "salt"}, 4, 2, "data/{variable}-{position}.json")
	if err != nil {
		t.Fatalf("NewMultiVariable: %v", err)
	}

	chunks := p.Chunks()
	if len(chunks) != 4 {
		t.Fatalf("got %d chunks, want 2 per variable", len(chunks))
	}
	seen := map[InputKey]int{}
	for _, ck := range chunks {
		members, err := p.ChunkInputs(ck)
		if err != nil {
			t.Fatalf("ChunkInputs(%s): %v", ck, err)
		}
		for _, ik := range members {
			if ik.Variable != ck.Variable {
				t.Fatalf("chunk %s contains input %s of another variable", ck, ik)
			}
			seen[ik]++
		}
	}
	inputs := p.Inputs()
	if len(seen) != len(inputs) {
		t.Fatalf("chunks cover %d inputs, pattern has %d", len(seen), len(inputs))
	}
	for _, ik := range inputs {
		if seen[ik] != 1 {
			t.Fatalf("input %s covered %d times", ik, seen[ik])
		}
	}
}

func TestMultiVariableInitChunks(t *testing.T) {
	p, err := NewMultiVariable([]string{"temp", "salt"}, 4, 2, "d/{variable}/{position}")
	if err != nil {
		t.Fatalf("NewMultiVariable: %v", err)
	}
	init := p.InitChunks()
	if len(init) != 2 {
		t.Fatalf("init chunks = %v, want one per variable", init)
	}
	for i, v := range []string{"temp", "salt"} {
		if init[i] != (ChunkKey{Variable: v, Index: 0}) {
			t.Fatalf("init[%d] = %s, want %s-0", i, init[i], v)
		}
	}
}

func TestMultiVariableLocatorTemplate(t *testing.T) {
	p, err := NewMultiVariable([]string{"temp"}, 3, 1, "data/{variable}-{position}.json")
	if err != nil {
		t.Fatalf("NewMultiVariable: %v", err)
	}
	loc, err := p.Locator(InputKey{Variable: "temp", Position: 2})
	if err != nil {
		t.Fatalf("Locator: %v", err)
	}
	if loc != "data/temp-2.json" {
		t.Fatalf("Locator = %q", loc)
	}
	if _, err := p.Locator(InputKey{Variable: "salt", Position: 0}); err == nil {
		t.Fatal("expected error for unknown variable")
	}
}

func TestPatternValidation(t *testing.T) {
	if _, err := NewSequence(nil, 1); err == nil {
		t.Fatal("expected error for empty locators")
	}
	if _, err := NewSequence([]string{"a"}, 0); err == nil {
		t.Fatal("expected error for inputs per chunk < 1")
	}
	if _, err := NewMultiVariable([]string{"a", "a"}, 2, 1, "x/{variable}{position}"); err == nil {
		t.Fatal("expected error for duplicate variable")
	}
	if _, err := NewMultiVariable([]string{"a"}, 0, 1, "x/{variable}{position}"); err == nil {
		t.Fatal("expected error for sequence length < 1")
	}
}
