package lock

import (
	"context"
	"fmt"
	"sync"
)

// ConflictGuard serializes writers that touch the same physical chunk of the
// target. Acquire takes mutual exclusion on every ordinal in the set and
// returns a release function that must be called unconditionally, whether
// the guarded write succeeded or failed.
//
// Ordinals must be strictly ascending: overlapping-but-different conflict
// sets deadlock if two writers lock in different orders, so an out-of-order
// set is a programming error and is rejected, never retried.
type ConflictGuard interface {
	Acquire(ctx context.Context, ordinals []int) (release func(), err error)
}

func checkAscending(ordinals []int) error {
	for i := 1; i < len(ordinals); i++ {
		if ordinals[i] <= ordinals[i-1] {
			return fmt.Errorf("lock: ordinals must be strictly ascending, got %v", ordinals)
		}
	}
	return nil
}

// LocalGuard is an in-process ConflictGuard: one mutex per ordinal.
type LocalGuard struct {
	mu    sync.Mutex
	locks map[int]*sync.Mutex
}

func NewLocalGuard() *LocalGuard {
	return &LocalGuard{locks: map[int]*sync.Mutex{}}
}

func (g *LocalGuard) Acquire(ctx context.Context, ordinals []int) (func(), error) {
	if err := checkAscending(ordinals); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	held := make([]*sync.Mutex, 0, len(ordinals))
	for _, ord := range ordinals {
		held = append(held, g.lockFor(ord))
	}
	for _, m := range held {
		m.Lock()
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			for i := len(held) - 1; i >= 0; i-- {
				held[i].Unlock()
			}
		})
	}, nil
}

func (g *LocalGuard) lockFor(ordinal int) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()
	m, ok := g.locks[ordinal]
	if !ok {
		m = &sync.Mutex{}
		g.locks[ordinal] = m
	}
	return m
}
