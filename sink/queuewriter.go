package sink

import (
	"context"

	"github.com/bgpfix/dataflow/async"
	"github.com/bgpfix/dataflow/pipe"
)

// QueueEvent is what QueueWriter enqueues: either a real item, or one of
// the two terminal sentinels spec.md §4.12 names (end, error) — mirroring
// async.ToSync's sentinel discipline but driven by a pull-based Sync[T]
// input instead of a push-based Async[T] one.
type QueueEvent[T any] struct {
	Item T
	End  bool
	Err  error
}

// QueueWriter drains a Sync[T] input, pushing every item into q as a
// QueueEvent, and terminates by enqueueing a single End (or error)
// sentinel — spec.md §4.11's "queue-bridge writer: pushes into a
// blocking queue; terminates by enqueueing a sentinel."
type QueueWriter[T any] struct {
	base *Base
	in   pipe.Sync[T]
	q    *async.BlockingQueue[QueueEvent[T]]
}

func NewQueueWriter[T any](in pipe.Sync[T], q *async.BlockingQueue[QueueEvent[T]]) *QueueWriter[T] {
	return &QueueWriter[T]{base: NewBase(nil), in: in, q: q}
}

func (w *QueueWriter[T]) Start(ctx context.Context) error {
	if err := w.base.Start(); err != nil {
		return err
	}
	if err := w.in.Start(ctx); err != nil {
		w.base.MarkError()
		return err
	}
	go w.run(ctx)
	return nil
}

func (w *QueueWriter[T]) run(ctx context.Context) {
	for {
		item, ok, err := w.in.Next()
		if err != nil {
			w.q.Put(ctx, QueueEvent[T]{End: true, Err: err})
			w.base.Finish(err)
			return
		}
		if !ok {
			w.q.Put(ctx, QueueEvent[T]{End: true})
			w.base.Finish(nil)
			return
		}
		if putErr := w.q.Put(ctx, QueueEvent[T]{Item: item}); putErr != nil {
			w.base.Finish(putErr)
			return
		}
	}
}

func (w *QueueWriter[T]) Wait() error      { return w.base.Wait() }
func (w *QueueWriter[T]) Progress() float64 { return w.in.Progress() }
func (w *QueueWriter[T]) Close() error     { return w.base.Close(w.in.Close) }

var _ pipe.Terminal = (*QueueWriter[int])(nil)
