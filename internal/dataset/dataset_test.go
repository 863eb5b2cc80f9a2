package dataset

import (
	"testing"
)

func seq(start float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)
	}
	return out
}

func TestConcatAlongAxis(t *testing.T) {
	a := New()
	if err := a.SetVar("temp", "time", seq(0, 3)); err != nil {
		t.Fatalf("SetVar: %v", err)
	}
	if err := a.SetVar("lat", "y", seq(100, 2)); err != nil {
		t.Fatalf("SetVar: %v", err)
	}
	b := New()
	if err := b.SetVar("temp", "time", seq(3, 4)); err != nil {
		t.Fatalf("SetVar: %v", err)
	}

	out, err := Concat([]*Dataset{a, b}, "time")
	if err != nil {
		t.Fatalf("Concat: %v", err)
	}
	if out.Len("time") != 7 {
		t.Fatalf("concat length = %d, want 7", out.Len("time"))
	}
	for i, v := range out.Vars["temp"].Data {
		if v != float64(i) {
			t.Fatalf("temp[%d] = %v", i, v)
		}
	}
	// Off-axis variables come from the first dataset.
	if got := out.Vars["lat"].Data; len(got) != 2 || got[0] != 100 {
		t.Fatalf("lat = %v", got)
	}
}

func TestConcatMissingVariable(t *testing.T) {
	a := New()
	_ = a.SetVar("temp", "time", seq(0, 2))
	b := New()
	_ = b.SetVar("salt", "time", seq(0, 2))
	if _, err := Concat([]*Dataset{a, b}, "time"); err == nil {
		t.Fatal("expected error when a member is missing a variable")
	}
}

func TestMerge(t *testing.T) {
	a := New()
	_ = a.SetVar("temp", "time", seq(0, 3))
	b := New()
	_ = b.SetVar("salt", "time", seq(10, 3))

	if err := Merge(a, b); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(a.Vars) != 2 || a.Len("time") != 3 {
		t.Fatalf("merged dataset = %+v", a)
	}

	c := New()
	_ = c.SetVar("salt", "time", seq(0, 5))
	if err := Merge(a, c); err == nil {
		t.Fatal("expected error on dimension mismatch")
	}
}

func TestCodecRoundTrip(t *testing.T) {
	a := New()
	_ = a.SetVar("temp", "time", seq(0, 4))
	a.Attrs = map[string]string{"units": "K"}

	raw, err := a.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Len("time") != 4 || got.Vars["temp"].Data[3] != 3 || got.Attrs["units"] != "K" {
		t.Fatalf("round trip = %+v", got)
	}
}

func TestDecodeRejectsInconsistent(t *testing.T) {
	raw := []byte(`{"dims":{"time":5},"vars":{"temp":{"dim":"time","data":[1,2]}}}`)
	if _, err := Decode(raw); err == nil {
		t.Fatal("expected error for variable shorter than its dimension")
	}
}

func TestDropVarsWithout(t *testing.T) {
	a := New()
	_ = a.SetVar("temp", "time", seq(0, 3))
	_ = a.SetVar("lat", "y", seq(0, 2))
	got := a.DropVarsWithout("time")
	if len(got.Vars) != 1 {
		t.Fatalf("vars = %v", got.VarNames())
	}
	if _, ok := got.Vars["temp"]; !ok {
		t.Fatal("temp dropped")
	}
}
