// Package ops implements the intermediate Sync pipes of spec.md §4.2's
// component table: map, filter, head, skip, callback, progress, concat,
// compound, queue-bridge, and sampler. Most wrap one upstream
// pipe.Sync[T] input (Concat takes several, Compound builds its inner
// pipe, QueueBridge wraps a pipe.Async[T]), and each is itself a
// pipe.Sync[U] (or [T] when the item
// type doesn't change), so they compose by nesting constructors the way
// the teacher nests pipe.Callback closures over a Direction.
package ops

import (
	"context"

	"github.com/bgpfix/dataflow/pipe"
	"github.com/bgpfix/dataflow/pipeerr"
)

// Map applies fn to every item from in, which may itself fail — fn
// returning a non-nil error surfaces as a KindValidation error from Next.
type Map[T, U any] struct {
	base *pipe.Base
	in   pipe.Sync[T]
	fn   func(T) (U, error)
	la   *pipe.Lookahead[U]
}

func NewMap[T, U any](in pipe.Sync[T], fn func(T) (U, error)) *Map[T, U] {
	m := &Map[T, U]{base: pipe.NewBase(nil), in: in, fn: fn}
	m.la = pipe.NewLookahead(m.produce)
	return m
}

func (m *Map[T, U]) Start(ctx context.Context) error {
	if err := m.base.Start(); err != nil {
		return err
	}
	return m.in.Start(ctx)
}

func (m *Map[T, U]) produce() (out U, ok bool, err error) {
	item, ok, err := m.in.Next()
	if err != nil {
		m.base.MarkError()
		return out, false, err
	}
	if !ok {
		m.base.MarkDone()
		return out, false, nil
	}
	out, err = m.fn(item)
	if err != nil {
		m.base.MarkError()
		return out, false, pipeerr.New(pipeerr.KindValidation, "ops.Map", err)
	}
	return out, true, nil
}

func (m *Map[T, U]) Next() (U, bool, error) { return m.la.Next() }
func (m *Map[T, U]) Peek() (U, bool, error) { return m.la.Peek() }
func (m *Map[T, U]) Progress() float64      { return m.in.Progress() }
func (m *Map[T, U]) Close() error           { return m.base.Close(m.in.Close) }

var _ pipe.Sync[int] = (*Map[string, int])(nil)
