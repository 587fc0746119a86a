package ops

import (
	"context"

	"github.com/bgpfix/dataflow/pipe"
)

// Progress is a pass-through pipe that reports its upstream's progress
// and additionally invokes onProgress whenever it changes — "implementations
// should position progress pipes in strategic points rather than only at
// the sink" per spec.md §4.1, so callers can wire one after any operator
// whose own Progress() is otherwise opaque from outside the pipeline.
type Progress[T any] struct {
	base       *pipe.Base
	in         pipe.Sync[T]
	onProgress func(float64)
	last       float64
	la         *pipe.Lookahead[T]
}

func NewProgress[T any](in pipe.Sync[T], onProgress func(float64)) *Progress[T] {
	p := &Progress[T]{base: pipe.NewBase(nil), in: in, onProgress: onProgress}
	p.la = pipe.NewLookahead(p.produce)
	return p
}

func (p *Progress[T]) Start(ctx context.Context) error {
	if err := p.base.Start(); err != nil {
		return err
	}
	return p.in.Start(ctx)
}

func (p *Progress[T]) produce() (item T, ok bool, err error) {
	item, ok, err = p.in.Next()
	if err != nil {
		p.base.MarkError()
		return item, false, err
	}
	if !ok {
		p.base.MarkDone()
		p.report()
		return item, false, nil
	}
	p.report()
	return item, true, nil
}

func (p *Progress[T]) report() {
	cur := p.in.Progress()
	if cur != p.last && p.onProgress != nil {
		p.last = cur
		p.onProgress(cur)
	}
}

func (p *Progress[T]) Next() (T, bool, error) { return p.la.Next() }
func (p *Progress[T]) Peek() (T, bool, error) { return p.la.Peek() }
func (p *Progress[T]) Progress() float64      { return p.in.Progress() }
func (p *Progress[T]) Close() error           { return p.base.Close(p.in.Close) }

var _ pipe.Sync[int] = (*Progress[int])(nil)
