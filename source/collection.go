// Package source implements the pull-based leaf pipes of spec.md §4.2:
// an in-memory collection/iterator source, a generator source, text/
// binary file sources, and a multi-file source with count- or
// volume-based sharding.
package source

import (
	"context"

	"github.com/bgpfix/dataflow/pipe"
)

// Collection is a finite, ordered Sync[T] source over a pre-built slice.
// It is restartable only by constructing a new Collection — spec.md §4.2
// is explicit that collection sources are not restartable in place.
type Collection[T any] struct {
	base  *pipe.Base
	items []T
	pos   int
	total int
	la    *pipe.Lookahead[T]
}

// NewCollection returns a Collection over items. items is not copied;
// callers must not mutate it after passing it in.
func NewCollection[T any](items []T) *Collection[T] {
	c := &Collection[T]{
		base:  pipe.NewBase(nil),
		items: items,
		total: len(items),
	}
	c.la = pipe.NewLookahead(c.produce)
	return c
}

func (c *Collection[T]) Start(ctx context.Context) error {
	if err := c.base.Start(); err != nil {
		return err
	}
	if c.total == 0 {
		c.base.MarkDone()
	}
	return nil
}

func (c *Collection[T]) produce() (item T, ok bool, err error) {
	if c.pos >= len(c.items) {
		c.base.MarkDone()
		return item, false, nil
	}
	item = c.items[c.pos]
	c.pos++
	c.base.SetProgress(float64(c.pos) / float64(c.total))
	return item, true, nil
}

func (c *Collection[T]) Next() (T, bool, error) { return c.la.Next() }
func (c *Collection[T]) Peek() (T, bool, error) { return c.la.Peek() }
func (c *Collection[T]) Progress() float64      { return c.base.Progress() }

func (c *Collection[T]) Close() error {
	return c.base.Close(nil)
}

var _ pipe.Sync[int] = (*Collection[int])(nil)
