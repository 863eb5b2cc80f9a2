// Package app assembles a recipe and its collaborators from a config file
// and runs it with the bundled local executor.
package app

import (
	"context"
	"fmt"
	"io"

	"github.com/yungbote/zarrpipe/internal/config"
	"github.com/yungbote/zarrpipe/internal/dataset"
	"github.com/yungbote/zarrpipe/internal/executor"
	"github.com/yungbote/zarrpipe/internal/lock"
	"github.com/yungbote/zarrpipe/internal/pattern"
	"github.com/yungbote/zarrpipe/internal/platform/logger"
	"github.com/yungbote/zarrpipe/internal/recipe"
	"github.com/yungbote/zarrpipe/internal/store"
)

type App struct {
	Log      *logger.Logger
	Cfg      *config.Config
	Recipe   *recipe.Recipe
	Executor *executor.Local

	closers []io.Closer
}

func New(configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &App{Log: log, Cfg: cfg}
	ctx := context.Background()

	pat, err := buildPattern(cfg)
	if err != nil {
		return nil, err
	}
	target, err := buildTarget(cfg)
	if err != nil {
		return nil, err
	}
	inputCache, err := a.buildCache(ctx, cfg.InputCache, "inputs")
	if err != nil {
		return nil, err
	}
	metaCache, err := a.buildCache(ctx, cfg.MetadataCache, "metadata")
	if err != nil {
		return nil, err
	}
	guard, err := a.buildGuard(ctx, cfg.Guard)
	if err != nil {
		return nil, err
	}

	r, err := recipe.New(pat, recipe.Config{
		ConcatDim:      cfg.ConcatDim,
		NItemsPerInput: cfg.NItemsPerInput,
		TargetChunks:   cfg.TargetChunks,
		CacheInputs:    *cfg.CacheInputs,
	}, recipe.Deps{
		Log:        log,
		Target:     target,
		InputCache: inputCache,
		MetaCache:  metaCache,
		Guard:      guard,
		Opener:     dataset.FileOpener{},
	})
	if err != nil {
		return nil, err
	}

	a.Recipe = r
	a.Executor = executor.NewLocal(log, cfg.Workers)
	return a, nil
}

func (a *App) Run(ctx context.Context) error {
	stages := a.Recipe.Pipeline()
	a.Log.Info("running recipe",
		"stages", len(stages),
		"inputs", len(a.Recipe.Inputs()),
		"chunks", len(a.Recipe.Chunks()),
		"workers", a.Cfg.Workers,
	)
	if err := a.Executor.Run(ctx, stages); err != nil {
		return err
	}
	a.Log.Info("recipe complete", "target", a.Cfg.Target.Path)
	return nil
}

func (a *App) Close() {
	for _, c := range a.closers {
		_ = c.Close()
	}
	a.Log.Sync()
}

func buildPattern(cfg *config.Config) (pattern.Pattern, error) {
	if len(cfg.Variables) > 0 {
		return pattern.NewMultiVariable(cfg.Variables, cfg.SequenceLen, cfg.InputsPerChunk, cfg.LocatorTemplate)
	}
	return pattern.NewSequence(cfg.Inputs, cfg.InputsPerChunk)
}

func buildTarget(cfg *config.Config) (store.Store, error) {
	switch cfg.Target.Kind {
	case "fs":
		return store.NewFSStore(cfg.Target.Path), nil
	case "memory":
		return store.NewMemStore(), nil
	default:
		return nil, fmt.Errorf("app: unknown target kind %q", cfg.Target.Kind)
	}
}

func (a *App) buildCache(ctx context.Context, cc config.CacheConfig, role string) (store.KVCache, error) {
	switch cc.Kind {
	case "memory":
		return store.NewMemCache(), nil
	case "fs":
		return store.NewFSCache(cc.Path)
	case "gcs":
		c, err := store.NewGCSCache(ctx, a.Log, cc.Bucket, cc.Prefix)
		if err != nil {
			return nil, fmt.Errorf("app: build %s cache: %w", role, err)
		}
		a.closers = append(a.closers, c)
		return c, nil
	case "redis":
		c, err := store.NewRedisCache(ctx, a.Log, cc.Addr, cc.Prefix)
		if err != nil {
			return nil, fmt.Errorf("app: build %s cache: %w", role, err)
		}
		a.closers = append(a.closers, c)
		return c, nil
	default:
		return nil, fmt.Errorf("app: unknown cache kind %q", cc.Kind)
	}
}

func (a *App) buildGuard(ctx context.Context, gc config.GuardConfig) (lock.ConflictGuard, error) {
	switch gc.Kind {
	case "local":
		return lock.NewLocalGuard(), nil
	case "redis":
		g, err := lock.NewRedisGuard(ctx, a.Log, gc.Addr, gc.Prefix)
		if err != nil {
			return nil, fmt.Errorf("app: build conflict guard: %w", err)
		}
		a.closers = append(a.closers, g)
		return g, nil
	default:
		return nil, fmt.Errorf("app: unknown guard kind %q", gc.Kind)
	}
}
