package ops

import (
	"context"

	"github.com/bgpfix/dataflow/pipe"
)

// Flatten turns a Sync[[]T] of groups into a Sync[T] of their elements,
// in group order — the "flat-mapping" step spec.md §4.6 calls for when
// the grouper operator turns each hash-reductor partition's materialized
// list back into an item stream.
type Flatten[T any] struct {
	base *pipe.Base
	in   pipe.Sync[[]T]
	la   *pipe.Lookahead[T]

	cur []T
	pos int
}

func NewFlatten[T any](in pipe.Sync[[]T]) *Flatten[T] {
	f := &Flatten[T]{base: pipe.NewBase(nil), in: in}
	f.la = pipe.NewLookahead(f.produce)
	return f
}

func (f *Flatten[T]) Start(ctx context.Context) error {
	if err := f.base.Start(); err != nil {
		return err
	}
	return f.in.Start(ctx)
}

func (f *Flatten[T]) produce() (item T, ok bool, err error) {
	for f.pos >= len(f.cur) {
		group, gok, gerr := f.in.Next()
		if gerr != nil {
			f.base.MarkError()
			return item, false, gerr
		}
		if !gok {
			f.base.MarkDone()
			return item, false, nil
		}
		f.cur = group
		f.pos = 0
	}
	item = f.cur[f.pos]
	f.pos++
	return item, true, nil
}

func (f *Flatten[T]) Next() (T, bool, error) { return f.la.Next() }
func (f *Flatten[T]) Peek() (T, bool, error) { return f.la.Peek() }
func (f *Flatten[T]) Progress() float64      { return f.in.Progress() }
func (f *Flatten[T]) Close() error           { return f.base.Close(f.in.Close) }

var _ pipe.Sync[int] = (*Flatten[int])(nil)
