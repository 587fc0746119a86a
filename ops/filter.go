package ops

import (
	"context"

	"github.com/bgpfix/dataflow/pipe"
)

// Filter passes through only items for which pred returns true.
type Filter[T any] struct {
	base *pipe.Base
	in   pipe.Sync[T]
	pred func(T) bool
	la   *pipe.Lookahead[T]

	seen, kept int64
}

func NewFilter[T any](in pipe.Sync[T], pred func(T) bool) *Filter[T] {
	f := &Filter[T]{base: pipe.NewBase(nil), in: in, pred: pred}
	f.la = pipe.NewLookahead(f.produce)
	return f
}

func (f *Filter[T]) Start(ctx context.Context) error {
	if err := f.base.Start(); err != nil {
		return err
	}
	return f.in.Start(ctx)
}

func (f *Filter[T]) produce() (item T, ok bool, err error) {
	for {
		item, ok, err = f.in.Next()
		if err != nil {
			f.base.MarkError()
			return item, false, err
		}
		if !ok {
			f.base.MarkDone()
			return item, false, nil
		}
		f.seen++
		if f.pred(item) {
			f.kept++
			return item, true, nil
		}
	}
}

func (f *Filter[T]) Next() (T, bool, error) { return f.la.Next() }
func (f *Filter[T]) Peek() (T, bool, error) { return f.la.Peek() }
func (f *Filter[T]) Progress() float64      { return f.in.Progress() }
func (f *Filter[T]) Close() error           { return f.base.Close(f.in.Close) }

var _ pipe.Sync[int] = (*Filter[int])(nil)
