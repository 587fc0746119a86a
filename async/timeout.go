package async

import (
	"context"
	"sync"
	"time"

	"github.com/bgpfix/dataflow/pipe"
	"github.com/bgpfix/dataflow/pipeerr"
)

// Timeout forwards an Async[T] upstream unchanged, unless d elapses
// before upstream reports a terminal event first: the scheduled timer
// and upstream's terminal event race via AsyncBase's one-shot CAS
// (NotifyDone/NotifyError), and whichever fires first wins. If the
// timer wins, it emits a timeout error downstream and closes upstream
// best-effort.
type Timeout[T any] struct {
	*pipe.AsyncBase[T]
	in      pipe.Async[T]
	d       time.Duration
	stop    chan struct{}
	once    sync.Once
	timerWg sync.WaitGroup
}

func NewTimeout[T any](in pipe.Async[T], d time.Duration) *Timeout[T] {
	return &Timeout[T]{AsyncBase: pipe.NewAsyncBase[T](nil), in: in, d: d, stop: make(chan struct{})}
}

func (t *Timeout[T]) Start(ctx context.Context) error {
	if err := t.Base.Start(); err != nil {
		return err
	}
	t.in.SetListener(t)
	t.timerWg.Add(1)
	go func() {
		defer t.timerWg.Done()
		timer := time.NewTimer(t.d)
		defer timer.Stop()
		select {
		case <-timer.C:
			t.NotifyError(pipeerr.New(pipeerr.KindTimeout, "async.Timeout", nil))
			go t.in.Close()
		case <-t.stop:
		}
	}()
	return t.in.Start(ctx)
}

func (t *Timeout[T]) stopTimer() {
	t.once.Do(func() { close(t.stop) })
}

func (t *Timeout[T]) OnNext(item T) { t.NotifyNext(item) }

func (t *Timeout[T]) OnDone() {
	t.stopTimer()
	t.NotifyDone()
}

func (t *Timeout[T]) OnError(err error) {
	t.stopTimer()
	t.NotifyError(err)
}

func (t *Timeout[T]) Close() error {
	return t.Base.Close(func() error {
		t.stopTimer()
		t.timerWg.Wait()
		return t.in.Close()
	})
}

var _ pipe.Async[int] = (*Timeout[int])(nil)
var _ pipe.Listener[int] = (*Timeout[int])(nil)
