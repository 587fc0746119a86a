package pipe

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/bgpfix/dataflow/pipeerr"
)

// Base implements the lifecycle state machine and progress bookkeeping
// shared by every pipe, sync or async. Concrete pipes hold a *Base from
// NewBase and call its methods from their own Start/Next/Close — the same
// "small struct holding atomic flags, embedded by the concrete type"
// shape as bgpfix's Pipe.started/Pipe.stopped atomics, generalized to a
// reusable helper since this engine has many pipe kinds instead of one.
type Base struct {
	*zerolog.Logger

	state        atomic.Int32
	progressBits atomic.Uint64
	closeOnce    sync.Once
	closeErr     error
}

// NewBase returns a Base ready for use. logger may be nil, in which case
// a no-op logger is installed (the DefaultOptions pattern used throughout
// this module).
func NewBase(logger *zerolog.Logger) *Base {
	b := &Base{}
	if logger != nil {
		b.Logger = logger
	} else {
		nop := zerolog.Nop()
		b.Logger = &nop
	}
	return b
}

// State returns the current lifecycle state.
func (b *Base) State() State {
	return State(b.state.Load())
}

// Start transitions Unstarted -> Working. Returns ErrAlreadyStarted if
// called twice.
func (b *Base) Start() error {
	if !b.state.CompareAndSwap(int32(Unstarted), int32(Working)) {
		return pipeerr.ErrAlreadyStarted
	}
	return nil
}

// MarkDone transitions Working -> Done and sets progress to 1.0. No-op if
// not currently Working (idempotent against a concurrent MarkError/Close).
func (b *Base) MarkDone() {
	if b.state.CompareAndSwap(int32(Working), int32(Done)) {
		b.SetProgress(1)
		b.Debug().Msg("pipe: marked done")
	}
}

// MarkError transitions Working -> Error. No-op if not currently Working.
func (b *Base) MarkError() {
	if b.state.CompareAndSwap(int32(Working), int32(Error)) {
		b.Warn().Msg("pipe: marked error")
	}
}

// SetProgress stores p, clamped to [0,1] and to be monotonically
// non-decreasing against any previously stored value — a concurrent
// caller reporting a smaller value is silently ignored rather than
// regressing progress backwards.
func (b *Base) SetProgress(p float64) {
	if p < 0 {
		p = 0
	} else if p > 1 {
		p = 1
	}
	next := math.Float64bits(p)
	for {
		cur := b.progressBits.Load()
		if math.Float64frombits(cur) >= p {
			return
		}
		if b.progressBits.CompareAndSwap(cur, next) {
			return
		}
	}
}

// Progress returns the last stored progress value.
func (b *Base) Progress() float64 {
	return math.Float64frombits(b.progressBits.Load())
}

// Close transitions any state -> Closed exactly once,
// invoking closeFn to release owned resources. Subsequent calls are
// no-ops returning the first result, matching spec.md's "close() is
// idempotent" invariant.
func (b *Base) Close(closeFn func() error) error {
	b.closeOnce.Do(func() {
		b.state.Store(int32(Closed))
		if closeFn != nil {
			b.closeErr = closeFn()
		}
		if b.closeErr != nil {
			b.Error().Err(b.closeErr).Msg("pipe: close failed")
		} else {
			b.Debug().Msg("pipe: closed")
		}
	})
	return b.closeErr
}

// Closed reports whether Close has already run.
func (b *Base) Closed() bool {
	return b.State() == Closed
}
