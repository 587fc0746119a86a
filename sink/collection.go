package sink

import (
	"context"
	"sync"

	"github.com/bgpfix/dataflow/pipe"
)

// CollectionWriter drains a Sync[T] input, appending every item to out.
// Per spec.md §4.11 this is the sync collection/queue writer: since the
// caller's own goroutine drives Next, out needs no synchronization of
// its own.
type CollectionWriter[T any] struct {
	base *Base
	in   pipe.Sync[T]
	out  *[]T
}

func NewCollectionWriter[T any](in pipe.Sync[T], out *[]T) *CollectionWriter[T] {
	return &CollectionWriter[T]{base: NewBase(nil), in: in, out: out}
}

func (c *CollectionWriter[T]) Start(ctx context.Context) error {
	if err := c.base.Start(); err != nil {
		return err
	}
	if err := c.in.Start(ctx); err != nil {
		c.base.MarkError()
		return err
	}
	go c.run()
	return nil
}

func (c *CollectionWriter[T]) run() {
	for {
		item, ok, err := c.in.Next()
		if err != nil {
			c.base.Finish(err)
			return
		}
		if !ok {
			c.base.Finish(nil)
			return
		}
		*c.out = append(*c.out, item)
	}
}

func (c *CollectionWriter[T]) Wait() error      { return c.base.Wait() }
func (c *CollectionWriter[T]) Progress() float64 { return c.in.Progress() }
func (c *CollectionWriter[T]) Close() error     { return c.base.Close(c.in.Close) }

var _ pipe.Terminal = (*CollectionWriter[int])(nil)

// AsyncCollectionWriter is CollectionWriter's async counterpart: since
// upstream's own worker goroutines invoke OnNext concurrently, out is
// guarded by a mutex — "the async variant requires a thread-safe
// container" per spec.md §4.11.
type AsyncCollectionWriter[T any] struct {
	base *Base
	in   pipe.Async[T]

	mu  sync.Mutex
	out *[]T
}

func NewAsyncCollectionWriter[T any](in pipe.Async[T], out *[]T) *AsyncCollectionWriter[T] {
	w := &AsyncCollectionWriter[T]{base: NewBase(nil), in: in, out: out}
	in.SetListener(w)
	return w
}

func (w *AsyncCollectionWriter[T]) Start(ctx context.Context) error {
	if err := w.base.Start(); err != nil {
		return err
	}
	return w.in.Start(ctx)
}

func (w *AsyncCollectionWriter[T]) OnNext(item T) {
	w.mu.Lock()
	*w.out = append(*w.out, item)
	w.mu.Unlock()
}

func (w *AsyncCollectionWriter[T]) OnDone()          { w.base.Finish(nil) }
func (w *AsyncCollectionWriter[T]) OnError(err error) { w.base.Finish(err) }

func (w *AsyncCollectionWriter[T]) Wait() error      { return w.base.Wait() }
func (w *AsyncCollectionWriter[T]) Progress() float64 { return w.in.Progress() }
func (w *AsyncCollectionWriter[T]) Close() error     { return w.base.Close(w.in.Close) }

var _ pipe.Terminal = (*AsyncCollectionWriter[int])(nil)
var _ pipe.Listener[int] = (*AsyncCollectionWriter[int])(nil)
