package pipe

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingListener[T any] struct {
	mu    sync.Mutex
	items []T
	done  bool
	err   error
}

func (l *recordingListener[T]) OnNext(item T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, item)
}

func (l *recordingListener[T]) OnDone() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.done = true
}

func (l *recordingListener[T]) OnError(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.err = err
}

func TestAsyncBaseExactlyOneTerminal(t *testing.T) {
	ab := NewAsyncBase[int](nil)
	lst := &recordingListener[int]{}
	ab.SetListener(lst)
	require.NoError(t, ab.Start())

	var produced atomic.Int64
	for i := 0; i < 8; i++ {
		ab.Go(func() {
			ab.NotifyNext(1)
			produced.Add(1)
		})
	}
	ab.Finish(nil)

	lst.mu.Lock()
	defer lst.mu.Unlock()
	assert.True(t, lst.done)
	assert.Nil(t, lst.err)
	assert.Len(t, lst.items, int(produced.Load()))
	assert.Equal(t, Done, ab.State())

	// a second Finish call must not fire OnDone/OnError again.
	ab.Finish(assertUnreachableErr)
	assert.True(t, lst.done)
	assert.Nil(t, lst.err)
}

var assertUnreachableErr = assertErr{}

type assertErr struct{}

func (assertErr) Error() string { return "must not be observed" }

func TestAsyncBaseRecoversPanicIntoError(t *testing.T) {
	ab := NewAsyncBase[int](nil)
	lst := &recordingListener[int]{}
	ab.SetListener(lst)
	require.NoError(t, ab.Start())

	panicky := &panicListener{}
	ab.SetListener(panicky)
	ab.NotifyNext(1)

	require.Eventually(t, func() bool {
		return ab.State() == Error
	}, time.Second, time.Millisecond)
}

type panicListener struct{}

func (panicListener) OnNext(int)       { panic("boom") }
func (panicListener) OnDone()          {}
func (panicListener) OnError(err error) {}
