package ops

import (
	"context"

	"github.com/bgpfix/dataflow/pipe"
)

// Compound wraps a sub-pipeline built by a builder function behind a
// single Sync[T] facade. Per spec.md's Design Notes §9, the reference
// design's abstract-base-plus-decorator CompoundPipe is replaced here
// with a builder returning an inner pipe as a private field: Build runs
// once, lazily, on Start, so the caller can assemble arbitrarily deep
// sub-graphs without exposing their shape to whatever holds the Compound.
type Compound[T any] struct {
	base    *pipe.Base
	build   func() (pipe.Sync[T], error)
	inner   pipe.Sync[T]
}

func NewCompound[T any](build func() (pipe.Sync[T], error)) *Compound[T] {
	return &Compound[T]{base: pipe.NewBase(nil), build: build}
}

func (c *Compound[T]) Start(ctx context.Context) error {
	if err := c.base.Start(); err != nil {
		return err
	}
	inner, err := c.build()
	if err != nil {
		c.base.MarkError()
		return err
	}
	c.inner = inner
	if err := c.inner.Start(ctx); err != nil {
		c.base.MarkError()
		return err
	}
	return nil
}

func (c *Compound[T]) Next() (item T, ok bool, err error) {
	item, ok, err = c.inner.Next()
	switch {
	case err != nil:
		c.base.MarkError()
	case !ok:
		c.base.MarkDone()
	}
	return item, ok, err
}

func (c *Compound[T]) Peek() (T, bool, error) { return c.inner.Peek() }
func (c *Compound[T]) Progress() float64 {
	if c.inner == nil {
		return 0
	}
	return c.inner.Progress()
}

func (c *Compound[T]) Close() error {
	return c.base.Close(func() error {
		if c.inner == nil {
			return nil
		}
		return c.inner.Close()
	})
}

func (c *Compound[T]) Inputs() []pipe.Closer {
	if c.inner == nil {
		return nil
	}
	return []pipe.Closer{c.inner}
}

var _ pipe.Sync[int] = (*Compound[int])(nil)
var _ pipe.Owner = (*Compound[int])(nil)
