package async_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bgpfix/dataflow/async"
	"github.com/bgpfix/dataflow/pipe"
	"github.com/bgpfix/dataflow/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testSource is a minimal Async[T] that pushes a fixed slice of items on a
// background goroutine, used across this package's tests to exercise
// async intermediate pipes without pulling in a real I/O source.
type testSource[T any] struct {
	*pipe.AsyncBase[T]
	items []T
	fail  error
}

func newTestSource[T any](items []T) *testSource[T] {
	return &testSource[T]{AsyncBase: pipe.NewAsyncBase[T](nil), items: items}
}

func newFailingTestSource[T any](items []T, err error) *testSource[T] {
	return &testSource[T]{AsyncBase: pipe.NewAsyncBase[T](nil), items: items, fail: err}
}

func (s *testSource[T]) Start(ctx context.Context) error {
	if err := s.Base.Start(); err != nil {
		return err
	}
	s.Go(func() {
		for _, item := range s.items {
			s.NotifyNext(item)
		}
	})
	go func() {
		s.Finish(s.fail)
	}()
	return nil
}

func (s *testSource[T]) Close() error { return s.Base.Close(func() error { return nil }) }

type recorder[T any] struct {
	mu    sync.Mutex
	items []T
	done  bool
	err   error
	wg    sync.WaitGroup
}

func newRecorder[T any]() *recorder[T] {
	r := &recorder[T]{}
	r.wg.Add(1)
	return r
}

func (r *recorder[T]) OnNext(item T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, item)
}

func (r *recorder[T]) OnDone() {
	r.mu.Lock()
	r.done = true
	r.mu.Unlock()
	r.wg.Done()
}

func (r *recorder[T]) OnError(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
	r.wg.Done()
}

func (r *recorder[T]) wait(t *testing.T) {
	t.Helper()
	done := make(chan struct{})
	go func() { r.wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for terminal event")
	}
}

func TestMapTransformsItems(t *testing.T) {
	src := newTestSource([]int{1, 2, 3})
	m := async.NewMap[int, int](src, func(v int) (int, error) { return v * 2, nil })
	rec := newRecorder[int]()
	m.SetListener(rec)
	require.NoError(t, m.Start(context.Background()))
	rec.wait(t)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.True(t, rec.done)
	assert.ElementsMatch(t, []int{2, 4, 6}, rec.items)
}

func TestMapPropagatesFnError(t *testing.T) {
	boom := errors.New("boom")
	src := newTestSource([]int{1, 2, 3})
	m := async.NewMap[int, int](src, func(v int) (int, error) {
		if v == 2 {
			return 0, boom
		}
		return v, nil
	})
	rec := newRecorder[int]()
	m.SetListener(rec)
	require.NoError(t, m.Start(context.Background()))
	rec.wait(t)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.False(t, rec.done)
	assert.ErrorIs(t, rec.err, boom)
}

func TestFilterKeepsMatching(t *testing.T) {
	src := newTestSource([]int{1, 2, 3, 4, 5, 6})
	f := async.NewFilter(src, func(v int) bool { return v%2 == 0 })
	rec := newRecorder[int]()
	f.SetListener(rec)
	require.NoError(t, f.Start(context.Background()))
	rec.wait(t)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.True(t, rec.done)
	assert.ElementsMatch(t, []int{2, 4, 6}, rec.items)
}

func TestHeadStopsAtLimit(t *testing.T) {
	src := newTestSource([]int{1, 2, 3, 4, 5})
	h := async.NewHead(src, 2)
	rec := newRecorder[int]()
	h.SetListener(rec)
	require.NoError(t, h.Start(context.Background()))
	rec.wait(t)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.True(t, rec.done)
	assert.Len(t, rec.items, 2)
}

func TestHeadZero(t *testing.T) {
	src := newTestSource([]int{1, 2, 3})
	h := async.NewHead(src, 0)
	rec := newRecorder[int]()
	h.SetListener(rec)
	require.NoError(t, h.Start(context.Background()))
	rec.wait(t)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.True(t, rec.done)
	assert.Empty(t, rec.items)
}

func TestUnionMergesAllInputsAndWaitsForEveryDone(t *testing.T) {
	a := newTestSource([]int{1, 2})
	b := newTestSource([]int{3, 4})
	u := async.NewUnion[int](a, b)
	rec := newRecorder[int]()
	u.SetListener(rec)
	require.NoError(t, u.Start(context.Background()))
	rec.wait(t)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.True(t, rec.done)
	assert.ElementsMatch(t, []int{1, 2, 3, 4}, rec.items)
}

func TestUnionErrorsOnFirstFailure(t *testing.T) {
	boom := errors.New("boom")
	a := newTestSource([]int{1, 2})
	b := newFailingTestSource([]int{3}, boom)
	u := async.NewUnion[int](a, b)
	rec := newRecorder[int]()
	u.SetListener(rec)
	require.NoError(t, u.Start(context.Background()))
	rec.wait(t)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.ErrorIs(t, rec.err, boom)
}

func TestTimeoutFiresBeforeSlowUpstream(t *testing.T) {
	slow := &blockingSource[int]{AsyncBase: pipe.NewAsyncBase[int](nil)}
	to := async.NewTimeout[int](slow, 10*time.Millisecond)
	rec := newRecorder[int]()
	to.SetListener(rec)
	require.NoError(t, to.Start(context.Background()))
	rec.wait(t)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Error(t, rec.err)
	require.NoError(t, to.Close())
}

// blockingSource never notifies a terminal event on its own; Close
// unblocks it so Timeout's forced Close() can still complete.
type blockingSource[T any] struct {
	*pipe.AsyncBase[T]
	closed chan struct{}
	once   sync.Once
}

func (s *blockingSource[T]) Start(ctx context.Context) error { return s.Base.Start() }

func (s *blockingSource[T]) Close() error {
	s.once.Do(func() {
		if s.closed != nil {
			close(s.closed)
		}
	})
	return s.Base.Close(func() error { return nil })
}

func TestFromSyncDrainsAllInputs(t *testing.T) {
	c1 := source.NewCollection([]int{1, 2})
	c2 := source.NewCollection([]int{3, 4, 5})
	fs := async.NewFromSync[int](2, c1, c2)
	rec := newRecorder[int]()
	fs.SetListener(rec)
	require.NoError(t, fs.Start(context.Background()))
	rec.wait(t)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.True(t, rec.done)
	assert.ElementsMatch(t, []int{1, 2, 3, 4, 5}, rec.items)
}

func TestFromSyncReportsInputError(t *testing.T) {
	boom := errors.New("boom")
	bad := &failingSyncPipe{err: boom}
	fs := async.NewFromSync[int](1, bad)
	rec := newRecorder[int]()
	fs.SetListener(rec)
	require.NoError(t, fs.Start(context.Background()))
	rec.wait(t)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.ErrorIs(t, rec.err, boom)
}

type failingSyncPipe struct {
	err error
}

func (f *failingSyncPipe) Start(ctx context.Context) error   { return nil }
func (f *failingSyncPipe) Next() (int, bool, error)          { return 0, false, f.err }
func (f *failingSyncPipe) Peek() (int, bool, error)          { return 0, false, f.err }
func (f *failingSyncPipe) Progress() float64                 { return 0 }
func (f *failingSyncPipe) Close() error                      { return nil }

func TestToSyncDrainsItemsThenEnd(t *testing.T) {
	src := newTestSource([]int{1, 2, 3})
	ts := async.NewToSync[int](src, 0)
	require.NoError(t, ts.Start(context.Background()))

	var got []int
	for {
		item, ok, err := ts.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, item)
	}
	assert.Equal(t, []int{1, 2, 3}, got)
	require.NoError(t, ts.Close())
}

func TestToSyncSurfacesUpstreamError(t *testing.T) {
	boom := errors.New("boom")
	src := newFailingTestSource([]int{1}, boom)
	ts := async.NewToSync[int](src, 0)
	require.NoError(t, ts.Start(context.Background()))

	_, ok, err := ts.Next()
	require.True(t, ok)
	_, ok, err = ts.Next()
	assert.False(t, ok)
	assert.ErrorIs(t, err, boom)
}

func TestBlockingQueuePutTake(t *testing.T) {
	q := async.NewBlockingQueue[int](2)
	ctx := context.Background()
	require.NoError(t, q.Put(ctx, 1))
	require.NoError(t, q.Put(ctx, 2))

	v, ok := q.Take(ctx)
	require.True(t, ok)
	assert.Equal(t, 1, v)
	v, ok = q.Take(ctx)
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestBlockingQueueBlocksUntilCapacityFrees(t *testing.T) {
	q := async.NewBlockingQueue[int](1)
	ctx := context.Background()
	require.NoError(t, q.Put(ctx, 1))

	putDone := make(chan struct{})
	go func() {
		require.NoError(t, q.Put(ctx, 2))
		close(putDone)
	}()

	select {
	case <-putDone:
		t.Fatal("Put should have blocked while at capacity")
	case <-time.After(50 * time.Millisecond):
	}

	v, ok := q.Take(ctx)
	require.True(t, ok)
	assert.Equal(t, 1, v)

	select {
	case <-putDone:
	case <-time.After(time.Second):
		t.Fatal("Put did not unblock after Take freed capacity")
	}

	v, ok = q.Take(ctx)
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestBlockingQueueTakeRespectsContextCancellation(t *testing.T) {
	q := async.NewBlockingQueue[int](1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, ok := q.Take(ctx)
	assert.False(t, ok)
}

func TestParallelTaskProcessorRunsAllTasks(t *testing.T) {
	p := async.NewParallelTaskProcessor[int](4)
	var mu sync.Mutex
	var seen []int
	err := p.Run(context.Background(), []int{1, 2, 3, 4, 5}, func(ctx context.Context, item int) error {
		mu.Lock()
		seen = append(seen, item)
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{1, 2, 3, 4, 5}, seen)
}

func TestParallelTaskProcessorCancelsOnFirstFailure(t *testing.T) {
	boom := errors.New("boom")
	p := async.NewParallelTaskProcessor[int](2)
	var started atomic32
	err := p.Run(context.Background(), []int{1, 2, 3, 4, 5}, func(ctx context.Context, item int) error {
		started.add(1)
		if item == 1 {
			return boom
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
			return nil
		}
	})
	require.Error(t, err)
}

type atomic32 struct {
	mu sync.Mutex
	n  int
}

func (a *atomic32) add(d int) {
	a.mu.Lock()
	a.n += d
	a.mu.Unlock()
}
