package async

import (
	"context"
	"sync"

	"github.com/bgpfix/dataflow/pipe"
)

// FromSync is the sync->async bridge of spec.md §4.12: a worker pool of
// size workers, each exclusively draining one or more of the given sync
// pipes and pushing every item via NotifyNext. It fires done once every
// worker's assigned pipes are fully drained; on the first failure from
// any pipe, it fires error and lets the remaining workers unwind.
type FromSync[T any] struct {
	*pipe.AsyncBase[T]
	inputs  []pipe.Sync[T]
	workers int
}

// NewFromSync distributes inputs round-robin across workers goroutines
// (workers <= 0 or workers > len(inputs) is clamped to len(inputs)).
func NewFromSync[T any](workers int, inputs ...pipe.Sync[T]) *FromSync[T] {
	if workers <= 0 || workers > len(inputs) {
		workers = len(inputs)
	}
	return &FromSync[T]{AsyncBase: pipe.NewAsyncBase[T](nil), inputs: inputs, workers: workers}
}

func (f *FromSync[T]) Start(ctx context.Context) error {
	if err := f.Base.Start(); err != nil {
		return err
	}
	if len(f.inputs) == 0 {
		f.NotifyDone()
		return nil
	}

	shards := make([][]pipe.Sync[T], f.workers)
	for i, in := range f.inputs {
		shards[i%f.workers] = append(shards[i%f.workers], in)
		if err := in.Start(ctx); err != nil {
			f.NotifyError(err)
			return err
		}
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	for _, shard := range shards {
		shard := shard
		wg.Add(1)
		f.Go(func() {
			defer wg.Done()
			for _, in := range shard {
				for {
					item, ok, err := in.Next()
					if err != nil {
						mu.Lock()
						if firstErr == nil {
							firstErr = err
						}
						mu.Unlock()
						return
					}
					if !ok {
						break
					}
					f.NotifyNext(item)
				}
			}
		})
	}

	go func() {
		wg.Wait()
		mu.Lock()
		err := firstErr
		mu.Unlock()
		f.Finish(err)
	}()
	return nil
}

func (f *FromSync[T]) Close() error {
	return f.Base.Close(func() error {
		closers := make([]pipe.Closer, len(f.inputs))
		for i, in := range f.inputs {
			closers[i] = in
		}
		return pipe.CloseAll(closers)
	})
}

var _ pipe.Async[int] = (*FromSync[int])(nil)
