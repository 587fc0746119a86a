package ops

import (
	"context"

	"github.com/bgpfix/dataflow/pipe"
)

// Callback runs a side-effecting function for every item (and once at
// end-of-stream), passing items through unchanged — the Sync analogue of
// the teacher's pipe.Callback, generalized from BGP-message-only
// callbacks to any item type.
type Callback[T any] struct {
	base *pipe.Base
	in   pipe.Sync[T]
	onItem func(T)
	onEnd  func()
	ended  bool
	la     *pipe.Lookahead[T]
}

func NewCallback[T any](in pipe.Sync[T], onItem func(T), onEnd func()) *Callback[T] {
	c := &Callback[T]{base: pipe.NewBase(nil), in: in, onItem: onItem, onEnd: onEnd}
	c.la = pipe.NewLookahead(c.produce)
	return c
}

func (c *Callback[T]) Start(ctx context.Context) error {
	if err := c.base.Start(); err != nil {
		return err
	}
	return c.in.Start(ctx)
}

func (c *Callback[T]) produce() (item T, ok bool, err error) {
	item, ok, err = c.in.Next()
	if err != nil {
		c.base.MarkError()
		return item, false, err
	}
	if !ok {
		c.base.MarkDone()
		c.fireEnd()
		return item, false, nil
	}
	if c.onItem != nil {
		c.onItem(item)
	}
	return item, true, nil
}

func (c *Callback[T]) fireEnd() {
	if !c.ended && c.onEnd != nil {
		c.ended = true
		c.onEnd()
	}
}

func (c *Callback[T]) Next() (T, bool, error) { return c.la.Next() }
func (c *Callback[T]) Peek() (T, bool, error) { return c.la.Peek() }
func (c *Callback[T]) Progress() float64      { return c.in.Progress() }
func (c *Callback[T]) Close() error           { return c.base.Close(c.in.Close) }

var _ pipe.Sync[int] = (*Callback[int])(nil)
