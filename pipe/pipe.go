// Package pipe defines the base contracts shared by every processing node
// in the engine: the lifecycle state machine, the Sync/Async/Terminal pipe
// families, and the progress model. Concrete operators (source, ops,
// sortmerge, reduce, async, sink, shuffle) build on top of this package.
package pipe

import (
	"context"
	"errors"

	"github.com/bgpfix/dataflow/pipeerr"
)

// State is a pipe's lifecycle state. Start moves Unstarted -> Working,
// which ends in Done or Error; Close moves a pipe to Closed from any
// state. Closed is terminal.
type State int32

const (
	Unstarted State = iota
	Working
	Done
	Error
	Closed
)

func (s State) String() string {
	switch s {
	case Unstarted:
		return "unstarted"
	case Working:
		return "working"
	case Done:
		return "done"
	case Error:
		return "error"
	case Closed:
		return "closed"
	default:
		return "invalid"
	}
}

// Sync is the pull contract: the caller's own goroutine drives Next/Peek.
// Start must recursively start all inputs before returning. Next blocks
// until the next item or end-of-stream; once it reports ok=false it must
// keep doing so on every subsequent call. Peek reports what the next call
// to Next would return, without consuming it.
type Sync[T any] interface {
	// Start primes the pipe (and recursively its inputs) for pulling.
	Start(ctx context.Context) error
	// Next returns the next item, or ok=false at end-of-stream.
	Next() (item T, ok bool, err error)
	// Peek previews the next item without consuming it.
	Peek() (item T, ok bool, err error)
	// Progress reports a monotonically non-decreasing value in [0,1].
	Progress() float64
	// Close releases owned resources and recursively closes inputs.
	// Idempotent.
	Close() error
}

// Listener receives push notifications from an Async pipe. Exactly one of
// OnDone/OnError fires, exactly once, after all OnNext calls for that
// pipe have happened-before it.
type Listener[T any] interface {
	OnNext(item T)
	OnDone()
	OnError(err error)
}

// Async is the push contract: background goroutines owned by the pipe
// invoke the registered Listener. SetListener must be called before
// Start. Start returns promptly; emission happens on internal goroutines.
type Async[T any] interface {
	SetListener(l Listener[T])
	Start(ctx context.Context) error
	Progress() float64
	Close() error
}

// Terminal is a sink: it drives its own inputs to completion and reports
// a single terminal outcome via Wait, instead of producing items for a
// downstream consumer.
type Terminal interface {
	Start(ctx context.Context) error
	// Wait blocks until the terminal pipe finishes, returning the first
	// error encountered (classified via pipeerr), or nil on success.
	Wait() error
	Progress() float64
	Close() error
}

// Closer is the minimal interface composition operators need in order to
// recursively close whatever kind of pipe (sync, async, terminal) they own.
type Closer interface {
	Close() error
}

// Owner is implemented by any pipe that owns further inputs it must close
// transitively. Composition operators (concat, compound, sorted-merge,
// joins) hold their inputs behind this interface so Close can recurse
// without knowing concrete operator types.
type Owner interface {
	Inputs() []Closer
}

// CloseAll closes every input, joining (not stopping on) errors. This
// matches the spec's close() propagation policy: a failure closing one
// resource must not prevent closing the rest.
func CloseAll(inputs []Closer) error {
	var errs []error
	for _, in := range inputs {
		if in == nil {
			continue
		}
		if err := in.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return pipeerr.New(pipeerr.KindInternal, "close", errors.Join(errs...))
}
