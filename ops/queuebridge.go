package ops

import (
	"context"

	"github.com/bgpfix/dataflow/pipe"
)

// QueueBridge adapts an Async[T] producer into a Sync[T] consumer, per
// spec.md §4.12's async->sync bridge: the async listener enqueues items
// and a sentinel on completion, and Next drains the queue.
//
// The channel itself plays the role of the lock-free blocking queue
// described in §4.8 for the async runtime's task pool — Go channels
// already provide exactly that backoff-free blocking discipline natively,
// so QueueBridge uses one directly instead of the backoff-and-retry
// async.BlockingQueue, which async.ToSync and sink.QueueWriter use.
type QueueBridge[T any] struct {
	base *pipe.Base
	in   pipe.Async[T]

	items chan T
	done  chan error

	errOnce error
	la      *pipe.Lookahead[T]
}

func NewQueueBridge[T any](in pipe.Async[T], capacity int) *QueueBridge[T] {
	if capacity <= 0 {
		capacity = 64
	}
	q := &QueueBridge[T]{
		base:  pipe.NewBase(nil),
		in:    in,
		items: make(chan T, capacity),
		done:  make(chan error, 1),
	}
	q.in.SetListener(q)
	q.la = pipe.NewLookahead(q.produce)
	return q
}

func (q *QueueBridge[T]) Start(ctx context.Context) error {
	if err := q.base.Start(); err != nil {
		return err
	}
	return q.in.Start(ctx)
}

// OnNext implements pipe.Listener[T].
func (q *QueueBridge[T]) OnNext(item T) { q.items <- item }

// OnDone implements pipe.Listener[T].
func (q *QueueBridge[T]) OnDone() {
	close(q.items)
	q.done <- nil
}

// OnError implements pipe.Listener[T].
func (q *QueueBridge[T]) OnError(err error) {
	close(q.items)
	q.done <- err
}

func (q *QueueBridge[T]) produce() (item T, ok bool, err error) {
	item, ok = <-q.items
	if ok {
		q.base.SetProgress(q.in.Progress())
		return item, true, nil
	}
	if q.errOnce == nil {
		q.errOnce = <-q.done
	}
	if q.errOnce != nil {
		q.base.MarkError()
		return item, false, q.errOnce
	}
	q.base.MarkDone()
	return item, false, nil
}

func (q *QueueBridge[T]) Next() (T, bool, error) { return q.la.Next() }
func (q *QueueBridge[T]) Peek() (T, bool, error) { return q.la.Peek() }
func (q *QueueBridge[T]) Progress() float64      { return q.base.Progress() }
func (q *QueueBridge[T]) Close() error           { return q.base.Close(q.in.Close) }

var _ pipe.Sync[int] = (*QueueBridge[int])(nil)
var _ pipe.Listener[int] = (*QueueBridge[int])(nil)
