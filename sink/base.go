// Package sink implements the terminal pipes of spec.md §4.11: a
// consumer that drains to end-of-stream, collection/queue writers,
// codec-backed file writers, and sharders that fan items out across
// many output files by property, hash, or sequence.
package sink

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/bgpfix/dataflow/pipe"
)

// Base implements the pipe.Terminal lifecycle on top of pipe.Base: a
// terminal pipe has no downstream listener, so instead of AsyncBase's
// notify_next/notify_done/notify_error it exposes a single Wait that
// blocks until Finish is called exactly once, echoing the same
// first-caller-wins discipline AsyncBase uses for its terminal event.
type Base struct {
	*pipe.Base

	finishOnce sync.Once
	done       chan struct{}
	err        error
}

// NewBase returns a Base ready for use. logger may be nil.
func NewBase(logger *zerolog.Logger) *Base {
	return &Base{Base: pipe.NewBase(logger), done: make(chan struct{})}
}

// Finish records err (nil on success) and transitions the lifecycle
// state accordingly. Only the first call has any effect.
func (b *Base) Finish(err error) {
	b.finishOnce.Do(func() {
		b.err = err
		if err != nil {
			b.Error().Err(err).Msg("sink: finished with error")
			b.MarkError()
		} else {
			b.Debug().Msg("sink: finished")
			b.MarkDone()
		}
		close(b.done)
	})
}

// Wait blocks until Finish has been called, returning the error it was
// given (nil on success).
func (b *Base) Wait() error {
	<-b.done
	return b.err
}
