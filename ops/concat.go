package ops

import (
	"context"

	"github.com/bgpfix/dataflow/pipe"
)

// Concat pulls from each input in turn, exhausting one before starting
// the next, presenting the result as a single Sync[T].
type Concat[T any] struct {
	base   *pipe.Base
	inputs []pipe.Sync[T]
	idx    int
	la     *pipe.Lookahead[T]
}

func NewConcat[T any](inputs ...pipe.Sync[T]) *Concat[T] {
	c := &Concat[T]{base: pipe.NewBase(nil), inputs: inputs}
	c.la = pipe.NewLookahead(c.produce)
	return c
}

func (c *Concat[T]) Start(ctx context.Context) error {
	if err := c.base.Start(); err != nil {
		return err
	}
	for _, in := range c.inputs {
		if err := in.Start(ctx); err != nil {
			return err
		}
	}
	if len(c.inputs) == 0 {
		c.base.MarkDone()
	}
	return nil
}

func (c *Concat[T]) produce() (item T, ok bool, err error) {
	for c.idx < len(c.inputs) {
		item, ok, err = c.inputs[c.idx].Next()
		if err != nil {
			c.base.MarkError()
			return item, false, err
		}
		if ok {
			return item, true, nil
		}
		c.idx++
	}
	c.base.MarkDone()
	return item, false, nil
}

// Progress is the average of the fully-drained inputs' implicit 1.0 and
// the current input's own Progress() — a reasonable sequential-consumption
// estimate absent any other total the engine could use.
func (c *Concat[T]) Progress() float64 {
	if len(c.inputs) == 0 {
		return 1
	}
	sum := float64(c.idx)
	if c.idx < len(c.inputs) {
		sum += c.inputs[c.idx].Progress()
	}
	return sum / float64(len(c.inputs))
}

func (c *Concat[T]) Next() (T, bool, error) { return c.la.Next() }
func (c *Concat[T]) Peek() (T, bool, error) { return c.la.Peek() }

func (c *Concat[T]) Close() error {
	return c.base.Close(func() error {
		closers := make([]pipe.Closer, len(c.inputs))
		for i, in := range c.inputs {
			closers[i] = in
		}
		return pipe.CloseAll(closers)
	})
}

func (c *Concat[T]) Inputs() []pipe.Closer {
	closers := make([]pipe.Closer, len(c.inputs))
	for i, in := range c.inputs {
		closers[i] = in
	}
	return closers
}

var _ pipe.Sync[int] = (*Concat[int])(nil)
var _ pipe.Owner = (*Concat[int])(nil)
