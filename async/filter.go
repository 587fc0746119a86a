package async

import (
	"context"

	"github.com/bgpfix/dataflow/pipe"
)

// Filter is an Async[T] that forwards only items matching pred.
type Filter[T any] struct {
	*pipe.AsyncBase[T]
	in   pipe.Async[T]
	pred func(T) bool
}

func NewFilter[T any](in pipe.Async[T], pred func(T) bool) *Filter[T] {
	return &Filter[T]{AsyncBase: pipe.NewAsyncBase[T](nil), in: in, pred: pred}
}

func (f *Filter[T]) Start(ctx context.Context) error {
	if err := f.Base.Start(); err != nil {
		return err
	}
	f.in.SetListener(f)
	return f.in.Start(ctx)
}

func (f *Filter[T]) OnNext(item T) {
	if f.pred(item) {
		f.NotifyNext(item)
	}
}

func (f *Filter[T]) OnDone()         { f.NotifyDone() }
func (f *Filter[T]) OnError(err error) { f.NotifyError(err) }

func (f *Filter[T]) Close() error { return f.Base.Close(f.in.Close) }

var _ pipe.Async[int] = (*Filter[int])(nil)
var _ pipe.Listener[int] = (*Filter[int])(nil)
