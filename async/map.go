package async

import (
	"context"

	"github.com/bgpfix/dataflow/pipe"
)

// Map is an Async[U] that transforms each item from an Async[T] upstream
// via fn, on whatever goroutine upstream delivers it on. Item order
// across concurrent upstream producers is unspecified, per spec.md
// §4.8's async ordering rule.
type Map[T any, U any] struct {
	*pipe.AsyncBase[U]
	in pipe.Async[T]
	fn func(T) (U, error)
}

func NewMap[T any, U any](in pipe.Async[T], fn func(T) (U, error)) *Map[T, U] {
	return &Map[T, U]{AsyncBase: pipe.NewAsyncBase[U](nil), in: in, fn: fn}
}

func (m *Map[T, U]) Start(ctx context.Context) error {
	if err := m.Base.Start(); err != nil {
		return err
	}
	m.in.SetListener(m)
	return m.in.Start(ctx)
}

func (m *Map[T, U]) OnNext(item T) {
	out, err := m.fn(item)
	if err != nil {
		m.NotifyError(err)
		return
	}
	m.NotifyNext(out)
}

func (m *Map[T, U]) OnDone()        { m.NotifyDone() }
func (m *Map[T, U]) OnError(err error) { m.NotifyError(err) }

func (m *Map[T, U]) Close() error { return m.Base.Close(m.in.Close) }

var _ pipe.Async[int] = (*Map[int, int])(nil)
var _ pipe.Listener[int] = (*Map[int, int])(nil)
