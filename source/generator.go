package source

import (
	"context"

	"github.com/bgpfix/dataflow/pipe"
)

// Generator is a Sync[T] source driven by a user function i -> (item,
// ok); ok=false marks end-of-stream. Count, if >0, both bounds emission
// and drives Progress (produced/count); otherwise Progress stays 0 until
// completion, per spec.md §4.2.
type Generator[T any] struct {
	base  *pipe.Base
	fn    func(i int) (T, bool)
	count int
	i     int
	la    *pipe.Lookahead[T]
}

// NewGenerator returns a Generator calling fn for i = 0, 1, 2, ... until
// it returns ok=false, or until count items have been produced if
// count > 0.
func NewGenerator[T any](fn func(i int) (T, bool), count int) *Generator[T] {
	g := &Generator[T]{base: pipe.NewBase(nil), fn: fn, count: count}
	g.la = pipe.NewLookahead(g.produce)
	return g
}

func (g *Generator[T]) Start(ctx context.Context) error {
	return g.base.Start()
}

func (g *Generator[T]) produce() (item T, ok bool, err error) {
	if g.count > 0 && g.i >= g.count {
		g.base.MarkDone()
		return item, false, nil
	}
	item, ok = g.fn(g.i)
	if !ok {
		g.base.MarkDone()
		return item, false, nil
	}
	g.i++
	if g.count > 0 {
		g.base.SetProgress(float64(g.i) / float64(g.count))
	}
	return item, true, nil
}

func (g *Generator[T]) Next() (T, bool, error) { return g.la.Next() }
func (g *Generator[T]) Peek() (T, bool, error) { return g.la.Peek() }
func (g *Generator[T]) Progress() float64      { return g.base.Progress() }
func (g *Generator[T]) Close() error           { return g.base.Close(nil) }

var _ pipe.Sync[int] = (*Generator[int])(nil)
