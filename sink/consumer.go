package sink

import (
	"context"

	"github.com/bgpfix/dataflow/pipe"
)

// Consumer drains a Sync[T] input to end-of-stream, per spec.md §4.11:
// "drains input to END; runs optional item callback and end callback."
// It runs the drain on its own goroutine so Start returns promptly and
// the caller observes completion via Wait, matching every other
// terminal pipe in this package.
type Consumer[T any] struct {
	base  *Base
	in    pipe.Sync[T]
	onNext func(T)
	onEnd  func(error)
}

// NewConsumer returns a Consumer over in. onNext (may be nil) is called
// for every item; onEnd (may be nil) is called once with the terminal
// error (nil on success) before Wait unblocks.
func NewConsumer[T any](in pipe.Sync[T], onNext func(T), onEnd func(error)) *Consumer[T] {
	return &Consumer[T]{base: NewBase(nil), in: in, onNext: onNext, onEnd: onEnd}
}

func (c *Consumer[T]) Start(ctx context.Context) error {
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

func (c *Consumer[T]) run() {
	for {
		item, ok, err := c.in.Next()
		if err != nil {
			if c.onEnd != nil {
				c.onEnd(err)
			}
			c.base.Finish(err)
			return
		}
		if !ok {
			if c.onEnd != nil {
				c.onEnd(nil)
			}
			c.base.Finish(nil)
			return
		}
		if c.onNext != nil {
			c.onNext(item)
		}
	}
}

func (c *Consumer[T]) Wait() error      { return c.base.Wait() }
func (c *Consumer[T]) Progress() float64 { return c.in.Progress() }
func (c *Consumer[T]) Close() error     { return c.base.Close(c.in.Close) }

var _ pipe.Terminal = (*Consumer[int])(nil)
