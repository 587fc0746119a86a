package async

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// ParallelTaskProcessor runs P independent consumers over a collection of
// task items, per spec.md §4.8: submit every task to a completion
// service, poll completions, and on the first failure cancel all
// in-flight tasks and wait for them before returning (no orphaned
// goroutines). Cancellation of the caller's context is handled the same
// way — it propagates to every in-flight task and Run still waits for
// all of them to unwind before returning.
type ParallelTaskProcessor[T any] struct {
	Parallelism int
}

// NewParallelTaskProcessor returns a processor bounding concurrency to p
// consumers (p <= 0 means unbounded).
func NewParallelTaskProcessor[T any](p int) *ParallelTaskProcessor[T] {
	return &ParallelTaskProcessor[T]{Parallelism: p}
}

// Run submits fn(item) for every item in tasks. It blocks until every
// task has finished. If any task returns an error (or ctx is cancelled),
// every other in-flight task is cancelled via the shared context and Run
// waits for all of them before returning that first error.
func (p *ParallelTaskProcessor[T]) Run(ctx context.Context, tasks []T, fn func(ctx context.Context, item T) error) error {
	g, gctx := errgroup.WithContext(ctx)
	if p.Parallelism > 0 {
		g.SetLimit(p.Parallelism)
	}
	for _, item := range tasks {
		item := item
		g.Go(func() error {
			return fn(gctx, item)
		})
	}
	return g.Wait()
}
