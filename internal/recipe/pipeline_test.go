package recipe

import (
	"testing"

	"github.com/yungbote/zarrpipe/internal/store"
)

func stageNames(stages []Stage) []string {
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = s.Name
	}
	return names
}

func TestPipelineStageOrder(t *testing.T) {
	r := variableLengthRecipe(t, store.NewMemStore(), store.NewMemCache(), store.NewMemCache())
	stages := r.Pipeline()
	want := []string{"cache_inputs", "prepare_target", "store_chunks", "finalize_target"}
	got := stageNames(stages)
	if len(got) != len(want) {
		t.Fatalf("stages = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("stages = %v, want %v", got, want)
		}
	}
	if stages[0].Singleton() || stages[2].Singleton() {
		t.Fatal("cache_inputs and store_chunks must be parallel stages")
	}
	if !stages[1].Singleton() || !stages[3].Singleton() {
		t.Fatal("prepare_target and finalize_target must be singleton stages")
	}
	if len(stages[0].Items) != 4 {
		t.Fatalf("cache_inputs items = %d, want one per input", len(stages[0].Items))
	}
	if len(stages[2].Items) != 4 {
		t.Fatalf("store_chunks items = %d, want one per chunk", len(stages[2].Items))
	}
}

func TestPipelineOmitsCacheStage(t *testing.T) {
	r := fixedLengthRecipe(t, store.NewMemStore())
	got := stageNames(r.Pipeline())
	want := []string{"prepare_target", "store_chunks", "finalize_target"}
	if len(got) != len(want) {
		t.Fatalf("stages = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("stages = %v, want %v", got, want)
		}
	}
}
