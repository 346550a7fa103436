// Package coalesce merges concurrent identical requests into one call and
// remembers the resolved value.
//
// A Group is an explicit object owned by whoever builds the store; there is
// no package-level state, so tests can create a fresh one per case or Reset it.
package coalesce

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// stamp identifies the cache state a flight started from. A flight only
// stores its value if nothing invalidated the key in the meantime.
type stamp struct {
	epoch uint64
	gen   uint64
}

// Group coalesces calls per key and caches successful results until the key
// is invalidated. Failures are never cached. The zero value is not usable;
// call New.
type Group[T any] struct {
	mu     sync.Mutex
	flight *singleflight.Group
	values map[string]T
	gens   map[string]uint64
	epoch  uint64

	calls atomic.Int64
}

func New[T any]() *Group[T] {
	return &Group[T]{
		flight: &singleflight.Group{},
		values: make(map[string]T),
		gens:   make(map[string]uint64),
	}
}

// Resolve returns the cached value for key, or joins the in-flight call for
// key, or starts fn. Concurrent callers share a single invocation of fn and
// observe the same result.
//
// fn runs detached from the caller's cancellation: a caller that gives up
// gets ctx.Err(), while the shared call keeps running for everyone else.
func (g *Group[T]) Resolve(ctx context.Context, key string, fn func(ctx context.Context) (T, error)) (T, error) {
	if v, ok := g.Peek(key); ok {
		return v, nil
	}

	g.mu.Lock()
	flight := g.flight
	st := stamp{epoch: g.epoch, gen: g.gens[key]}
	g.mu.Unlock()

	detached := context.WithoutCancel(ctx)
	ch := flight.DoChan(key, func() (any, error) {
		// A previous flight may have finished between Peek and DoChan.
		if v, ok := g.Peek(key); ok {
			return v, nil
		}
		g.calls.Add(1)
		v, err := fn(detached)
		if err != nil {
			return v, err
		}
		g.store(key, st, v)
		return v, nil
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		v, _ := res.Val.(T)
		return v, nil
	}
}

// Peek returns the cached value without starting a call.
func (g *Group[T]) Peek(key string) (T, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	v, ok := g.values[key]
	return v, ok
}

// Set stores v for key directly, e.g. after a local write made the value known.
func (g *Group[T]) Set(key string, v T) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.values[key] = v
}

// Invalidate drops the cached value for key. A call already in flight still
// completes for its waiters but its result is not cached; the next Resolve
// starts a new call.
func (g *Group[T]) Invalidate(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.values, key)
	g.gens[key]++
	g.flight.Forget(key)
}

// Reset drops every cached value and detaches all in-flight calls.
func (g *Group[T]) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.values = make(map[string]T)
	g.gens = make(map[string]uint64)
	g.epoch++
	g.flight = &singleflight.Group{}
}

// Calls is the number of times a factory function was actually invoked.
func (g *Group[T]) Calls() int64 {
	return g.calls.Load()
}

func (g *Group[T]) store(key string, st stamp, v T) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.epoch != st.epoch || g.gens[key] != st.gen {
		return
	}
	g.values[key] = v
}
