package pipe

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/bgpfix/dataflow/pipeerr"
)

// AsyncBase implements the async pipe contract of spec.md §4.1: a
// Listener is registered before Start; notifyNext/notifyDone/notifyError
// are the only way a pipe's worker goroutines reach the listener; the
// first of notifyDone/notifyError wins a one-shot compare-and-swap and
// the loser is silently suppressed; a notifyNext that panics (the Go
// analogue of the listener throwing) is recovered into a synthesized
// notifyError instead of crashing the worker.
//
// Concrete async pipes embed a *AsyncBase from NewAsyncBase, spawn their background
// goroutines with Go (so Finish can establish a happens-before edge by
// joining them first), and call Finish exactly once when upstream work
// completes.
type AsyncBase[T any] struct {
	*Base

	mu       sync.Mutex
	listener Listener[T]

	workers sync.WaitGroup
	fired   atomic.Bool // CAS winner of the terminal event
}

// NewAsyncBase returns an AsyncBase with the given logger (nil -> no-op).
func NewAsyncBase[T any](logger *zerolog.Logger) *AsyncBase[T] {
	return &AsyncBase[T]{Base: NewBase(logger)}
}

// SetListener registers l. Must be called before Start; concrete pipes
// are expected to enforce that ordering themselves (the base only stores
// the reference).
func (a *AsyncBase[T]) SetListener(l Listener[T]) {
	a.mu.Lock()
	a.listener = l
	a.mu.Unlock()
}

func (a *AsyncBase[T]) getListener() Listener[T] {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.listener
}

// Go runs fn on a new goroutine tracked by AsyncBase, so that Finish can
// join it before firing the terminal event — the "happens-before all
// notify_next calls" requirement of spec.md §4.1/§4.2.
func (a *AsyncBase[T]) Go(fn func()) {
	a.workers.Add(1)
	go func() {
		defer a.workers.Done()
		fn()
	}()
}

// NotifyNext delivers item to the listener. A panic inside the listener
// is recovered and converted into a synthesized NotifyError, matching
// spec.md's "notify_next that causes the listener to fail ... is
// recovered by the base into a synthesized notify_error."
func (a *AsyncBase[T]) NotifyNext(item T) {
	if a.fired.Load() {
		return // terminal already fired, drop further items
	}
	l := a.getListener()
	if l == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			a.Error().Interface("panic", r).Msg("pipe: listener panicked in OnNext, recovering as NotifyError")
			a.NotifyError(pipeerr.New(pipeerr.KindInternal, "listener", asError(r)))
		}
	}()
	l.OnNext(item)
}

// NotifyDone fires OnDone if no terminal event has fired yet. Safe to call
// from multiple goroutines; only the first caller (across NotifyDone and
// NotifyError) wins.
func (a *AsyncBase[T]) NotifyDone() {
	if !a.fired.CompareAndSwap(false, true) {
		return
	}
	a.MarkDone()
	if l := a.getListener(); l != nil {
		l.OnDone()
	}
}

// NotifyError fires OnError if no terminal event has fired yet.
func (a *AsyncBase[T]) NotifyError(err error) {
	if !a.fired.CompareAndSwap(false, true) {
		return
	}
	a.Error().Err(err).Msg("pipe: notifying listener of terminal error")
	a.MarkError()
	if l := a.getListener(); l != nil {
		l.OnError(err)
	}
}

// Finish waits for every goroutine started via Go to return (establishing
// the happens-before edge required by spec.md), then fires NotifyError(err)
// if err is non-nil, else NotifyDone(). Call this exactly once per pipe,
// typically from a supervisor goroutine spawned by Start.
func (a *AsyncBase[T]) Finish(err error) {
	a.workers.Wait()
	if err != nil {
		a.NotifyError(err)
	} else {
		a.NotifyDone()
	}
}

func asError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return pipeerr.New(pipeerr.KindInternal, "panic", nil)
}
