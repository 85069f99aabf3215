package remote

import (
	"context"
	"sync"
)

// Future is a memoized asynchronous resolution. The resolver runs at most
// once, triggered by the first Await; every awaiter shares the settled
// value. This makes promise-likeness explicit at the boundary instead of
// probing values at runtime.
type Future[T any] struct {
	resolve func(context.Context) (T, error)
	once    sync.Once
	done    chan struct{}
	value   T
	err     error
}

func NewFuture[T any](resolve func(context.Context) (T, error)) *Future[T] {
	return &Future[T]{resolve: resolve, done: make(chan struct{})}
}

// Settled returns an already-resolved future.
func Settled[T any](v T) *Future[T] {
	return NewFuture(func(context.Context) (T, error) { return v, nil })
}

// Await resolves the future if needed and returns the settled value. The
// resolver runs detached from the awaiter's cancellation, so one caller
// giving up cannot poison the shared resolution; ctx bounds only this
// caller's wait.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	f.once.Do(func() {
		resolveCtx := context.WithoutCancel(ctx)
		go func() {
			defer close(f.done)
			f.value, f.err = f.resolve(resolveCtx)
		}()
	})

	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
