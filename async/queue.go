package async

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"
)

const (
	yieldMax      = 64
	sleepInitial  = time.Millisecond
	sleepMax      = 1024 * time.Millisecond
)

// BlockingQueue wraps a lock-free, non-blocking queue with the
// backoff-and-retry blocking discipline of spec.md §4.8: Put, on a full
// queue, yields up to yieldMax times then enters a doubling sleep loop
// from sleepInitial to sleepMax, re-checking capacity at each step; Take
// is the dual, polling until an element is available. The capacity
// check is approximate — size is a separate atomic counter racing with
// the underlying lock-free enqueue/dequeue, exactly as the spec
// stipulates.
type BlockingQueue[T any] struct {
	q        *lockFreeQueue[T]
	size     atomic.Int64
	capacity int64
}

// NewBlockingQueue returns a BlockingQueue with the given approximate
// capacity; capacity <= 0 means unbounded (Put never blocks on size).
func NewBlockingQueue[T any](capacity int) *BlockingQueue[T] {
	return &BlockingQueue[T]{q: newLockFreeQueue[T](), capacity: int64(capacity)}
}

// Put blocks until there is approximate room, then enqueues item. It
// returns ctx.Err() if ctx is cancelled while waiting.
func (b *BlockingQueue[T]) Put(ctx context.Context, item T) error {
	if err := b.backoff(ctx, func() bool {
		return b.capacity <= 0 || b.size.Load() < b.capacity
	}); err != nil {
		return err
	}
	b.q.enqueue(item)
	b.size.Add(1)
	return nil
}

// Take blocks until an item is available, returning it. ok is false iff
// ctx was cancelled while waiting.
func (b *BlockingQueue[T]) Take(ctx context.Context) (item T, ok bool) {
	var v T
	err := b.backoff(ctx, func() bool {
		item, ok = b.q.dequeue()
		return ok
	})
	if err != nil || !ok {
		return v, false
	}
	b.size.Add(-1)
	return item, true
}

// Size returns the approximate current length.
func (b *BlockingQueue[T]) Size() int64 { return b.size.Load() }

// backoff spins/sleeps, re-evaluating ready() at each step, until ready()
// reports true or ctx is done.
func (b *BlockingQueue[T]) backoff(ctx context.Context, ready func() bool) error {
	if ready() {
		return nil
	}
	for i := 0; i < yieldMax; i++ {
		runtime.Gosched()
		if ready() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	sleep := sleepInitial
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
		if ready() {
			return nil
		}
		if sleep < sleepMax {
			sleep *= 2
			if sleep > sleepMax {
				sleep = sleepMax
			}
		}
	}
}
