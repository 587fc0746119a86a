package async

import (
	"context"

	"github.com/bgpfix/dataflow/pipe"
)

// sentinel distinguishes the two terminal markers ToSync enqueues
// alongside real items.
type sentinel int

const (
	sentinelEnd sentinel = iota
	sentinelErr
)

type toSyncItem[T any] struct {
	item T
	kind *sentinel // nil for a real item
}

// ToSync is the async->sync bridge of spec.md §4.12, built on
// BlockingQueue rather than a plain buffered channel (contrast
// ops.QueueBridge): it allocates a blocking queue and enqueues two
// unique sentinel values — end and error — so a consumer pulling via
// Next observes end-of-stream or the stored error exactly once, after
// every real item already enqueued ahead of it.
type ToSync[T any] struct {
	in    pipe.Async[T]
	q     *BlockingQueue[toSyncItem[T]]
	errCh chan error
	la    *pipe.Lookahead[T]
}

// NewToSync wraps in, buffering up to capacity in-flight items (<=0
// means unbounded).
func NewToSync[T any](in pipe.Async[T], capacity int) *ToSync[T] {
	s := &ToSync[T]{in: in, q: NewBlockingQueue[toSyncItem[T]](capacity), errCh: make(chan error, 1)}
	s.la = pipe.NewLookahead(s.take)
	in.SetListener(s)
	return s
}

func (s *ToSync[T]) Start(ctx context.Context) error {
	return s.in.Start(ctx)
}

func (s *ToSync[T]) OnNext(item T) {
	s.q.Put(context.Background(), toSyncItem[T]{item: item})
}

func (s *ToSync[T]) OnDone() {
	end := sentinelEnd
	s.q.Put(context.Background(), toSyncItem[T]{kind: &end})
}

func (s *ToSync[T]) OnError(err error) {
	s.errCh <- err
	errKind := sentinelErr
	s.q.Put(context.Background(), toSyncItem[T]{kind: &errKind})
}

// Next blocks until the next item, end-of-stream (ok=false, err=nil), or
// the stored upstream error (ok=false, err=the stored error).
func (s *ToSync[T]) Next() (item T, ok bool, err error) { return s.la.Next() }

// Peek blocks exactly as Next does and returns the same result, which
// the following Next call then returns without taking from the queue again.
func (s *ToSync[T]) Peek() (item T, ok bool, err error) { return s.la.Peek() }

// take pulls one queue entry and translates sentinels into Next's results.
func (s *ToSync[T]) take() (item T, ok bool, err error) {
	v, gotItem := s.q.Take(context.Background())
	if !gotItem {
		return item, false, nil
	}
	if v.kind == nil {
		return v.item, true, nil
	}
	switch *v.kind {
	case sentinelEnd:
		return item, false, nil
	case sentinelErr:
		return item, false, <-s.errCh
	default:
		return item, false, nil
	}
}

func (s *ToSync[T]) Progress() float64 { return s.in.Progress() }

func (s *ToSync[T]) Close() error { return s.in.Close() }

var _ pipe.Sync[int] = (*ToSync[int])(nil)
var _ pipe.Listener[int] = (*ToSync[int])(nil)
