package executor

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/yungbote/zarrpipe/internal/recipe"
)

type testItem int

func (i testItem) Encode() string { return strconv.Itoa(int(i)) }

func items(n int) []recipe.Item {
	out := make([]recipe.Item, n)
	for i := range out {
		out[i] = testItem(i)
	}
	return out
}

func TestRunOrdersStages(t *testing.T) {
	var mu sync.Mutex
	var trace []string
	record := func(s string) {
		mu.Lock()
		trace = append(trace, s)
		mu.Unlock()
	}
	stages := []recipe.Stage{
		{Name: "first", Run: func(ctx context.Context, _ recipe.Item) error {
			record("first")
			return nil
		}},
		{Name: "second", Items: items(4), Run: func(ctx context.Context, item recipe.Item) error {
			record("second-" + item.Encode())
			return nil
		}},
		{Name: "third", Run: func(ctx context.Context, _ recipe.Item) error {
			record("third")
			return nil
		}},
	}
	if err := NewLocal(nil, 4).Run(context.Background(), stages); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(trace) != 6 {
		t.Fatalf("trace = %v", trace)
	}
	if trace[0] != "first" || trace[len(trace)-1] != "third" {
		t.Fatalf("stage boundaries not respected: %v", trace)
	}
	seen := map[string]bool{}
	for _, s := range trace[1:5] {
		seen[s] = true
	}
	for i := 0; i < 4; i++ {
		if !seen["second-"+strconv.Itoa(i)] {
			t.Fatalf("item %d of parallel stage did not run: %v", i, trace)
		}
	}
}

func TestRunParallelStageRunsEveryItem(t *testing.T) {
	const n = 32
	var mu sync.Mutex
	done := map[string]int{}
	stages := []recipe.Stage{
		{Name: "work", Items: items(n), Run: func(ctx context.Context, item recipe.Item) error {
			mu.Lock()
			done[item.Encode()]++
			mu.Unlock()
			return nil
		}},
	}
	if err := NewLocal(nil, 8).Run(context.Background(), stages); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(done) != n {
		t.Fatalf("ran %d distinct items, want %d", len(done), n)
	}
	for k, c := range done {
		if c != 1 {
			t.Fatalf("item %s ran %d times", k, c)
		}
	}
}

func TestRunAbortsOnStageFailure(t *testing.T) {
	boom := errors.New("boom")
	var ran bool
	stages := []recipe.Stage{
		{Name: "failing", Items: items(2), Run: func(ctx context.Context, item recipe.Item) error {
			if item.Encode() == "1" {
				return boom
			}
			return nil
		}},
		{Name: "unreached", Run: func(ctx context.Context, _ recipe.Item) error {
			ran = true
			return nil
		}},
	}
	err := NewLocal(nil, 1).Run(context.Background(), stages)
	if !errors.Is(err, boom) {
		t.Fatalf("Run = %v, want wrapped boom", err)
	}
	if !strings.Contains(err.Error(), "stage failing") {
		t.Fatalf("error does not name the stage: %v", err)
	}
	if ran {
		t.Fatal("later stage ran after a failure")
	}
}

func TestRunHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stages := []recipe.Stage{
		{Name: "never", Run: func(ctx context.Context, _ recipe.Item) error {
			t.Fatal("stage ran under a cancelled context")
			return nil
		}},
	}
	if err := NewLocal(nil, 2).Run(ctx, stages); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v, want context.Canceled", err)
	}
}
