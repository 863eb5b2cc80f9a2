// Package executor runs a recipe's stage list in-process. It is the bundled
// executor; the stage contract is executor-agnostic and a pooled or
// distributed runner can consume the same stages.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/zarrpipe/internal/platform/logger"
	"github.com/yungbote/zarrpipe/internal/recipe"
)

type Local struct {
	log *logger.Logger
	// Workers bounds item parallelism inside a parallel stage. <= 0
	// means serial execution.
	workers int
}

func NewLocal(log *logger.Logger, workers int) *Local {
	if log == nil {
		log = logger.NewNop()
	}
	return &Local{log: log.With("component", "executor"), workers: workers}
}

// Run executes the stages in order. A singleton stage runs inline; a
// parallel stage fans its items out over the worker pool and waits for all
// of them before the next stage starts. The first item failure cancels the
// remaining items of its stage and aborts the run.
func (e *Local) Run(ctx context.Context, stages []recipe.Stage) error {
	runID := uuid.NewString()
	log := e.log.With("run_id", runID)
	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			return err
		}
		started := time.Now()
		log.Info("stage starting", "stage", stage.Name, "items", len(stage.Items), "singleton", stage.Singleton())
		if err := e.runStage(ctx, stage); err != nil {
			log.Error("stage failed", "stage", stage.Name, "error", err)
			return fmt.Errorf("executor: stage %s: %w", stage.Name, err)
		}
		log.Info("stage finished", "stage", stage.Name, "elapsed", time.Since(started).String())
	}
	return nil
}

func (e *Local) runStage(ctx context.Context, stage recipe.Stage) error {
	if stage.Singleton() {
		return stage.Run(ctx, nil)
	}
	if e.workers <= 1 {
		for _, item := range stage.Items {
			if err := stage.Run(ctx, item); err != nil {
				return fmt.Errorf("item %s: %w", item.Encode(), err)
			}
		}
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for _, item := range stage.Items {
		g.Go(func() error {
			if err := stage.Run(gctx, item); err != nil {
				return fmt.Errorf("item %s: %w", item.Encode(), err)
			}
			return nil
		})
	}
	return g.Wait()
}
