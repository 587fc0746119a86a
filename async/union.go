package async

import (
	"context"
	"sync/atomic"

	"github.com/bgpfix/dataflow/pipe"
)

// Union merges N async inputs into one: every item from every input is
// forwarded, in whatever order it arrives, and done fires only once
// every input has reported done (or any input errors, which fires
// immediately per the first-failure-wins semantics of AsyncBase).
type Union[T any] struct {
	*pipe.AsyncBase[T]
	inputs   []pipe.Async[T]
	pending  atomic.Int64
}

func NewUnion[T any](inputs ...pipe.Async[T]) *Union[T] {
	u := &Union[T]{AsyncBase: pipe.NewAsyncBase[T](nil), inputs: inputs}
	u.pending.Store(int64(len(inputs)))
	return u
}

func (u *Union[T]) Start(ctx context.Context) error {
	if err := u.Base.Start(); err != nil {
		return err
	}
	if len(u.inputs) == 0 {
		u.NotifyDone()
		return nil
	}
	for i, in := range u.inputs {
		in.SetListener(&unionBranch[T]{u: u, idx: i})
	}
	for _, in := range u.inputs {
		if err := in.Start(ctx); err != nil {
			u.NotifyError(err)
			return err
		}
	}
	return nil
}

func (u *Union[T]) Close() error {
	return u.Base.Close(func() error {
		closers := make([]pipe.Closer, len(u.inputs))
		for i, in := range u.inputs {
			closers[i] = in
		}
		return pipe.CloseAll(closers)
	})
}

// unionBranch forwards one input's events to the shared Union, so
// OnDone can be distinguished per-branch (to count completions) while
// OnNext/OnError are forwarded directly.
type unionBranch[T any] struct {
	u   *Union[T]
	idx int
}

func (b *unionBranch[T]) OnNext(item T) { b.u.NotifyNext(item) }

func (b *unionBranch[T]) OnDone() {
	if b.u.pending.Add(-1) == 0 {
		b.u.NotifyDone()
	}
}

func (b *unionBranch[T]) OnError(err error) { b.u.NotifyError(err) }

var _ pipe.Async[int] = (*Union[int])(nil)
var _ pipe.Listener[int] = (*unionBranch[int])(nil)
