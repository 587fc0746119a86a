package async

import (
	"context"
	"sync/atomic"

	"github.com/bgpfix/dataflow/pipe"
)

// Head forwards only the first n items delivered by an Async[T]
// upstream, then fires done and closes the upstream best-effort — it
// cannot prevent upstream from producing further items (push-based), so
// it discards anything delivered after the limit instead.
type Head[T any] struct {
	*pipe.AsyncBase[T]
	in    pipe.Async[T]
	limit int64
	seen  atomic.Int64
}

func NewHead[T any](in pipe.Async[T], n int) *Head[T] {
	return &Head[T]{AsyncBase: pipe.NewAsyncBase[T](nil), in: in, limit: int64(n)}
}

func (h *Head[T]) Start(ctx context.Context) error {
	if err := h.Base.Start(); err != nil {
		return err
	}
	if h.limit <= 0 {
		h.NotifyDone()
		return nil
	}
	h.in.SetListener(h)
	return h.in.Start(ctx)
}

func (h *Head[T]) OnNext(item T) {
	n := h.seen.Add(1)
	if n > h.limit {
		return
	}
	h.NotifyNext(item)
	if n == h.limit {
		h.NotifyDone()
		go h.in.Close()
	}
}

func (h *Head[T]) OnDone()         { h.NotifyDone() }
func (h *Head[T]) OnError(err error) { h.NotifyError(err) }

func (h *Head[T]) Close() error { return h.Base.Close(h.in.Close) }

var _ pipe.Async[int] = (*Head[int])(nil)
var _ pipe.Listener[int] = (*Head[int])(nil)
