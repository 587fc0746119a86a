package reduce

import (
	"container/heap"
	"context"

	"github.com/bgpfix/dataflow/pipe"
	"github.com/bgpfix/dataflow/sortmerge"
)

// TopK keeps the K greatest items (under cmp) seen from in, the way
// ops.Sampler keeps a random K — both must buffer the entire input
// eagerly, since any later item can still displace an earlier pick.
// cmp(a, b) > 0 means a ranks above b.
type TopK[T any] struct {
	base *pipe.Base
	in   pipe.Sync[T]
	k    int
	cmp  sortmerge.Comparator[T]

	items []T
	pos   int
}

func NewTopK[T any](in pipe.Sync[T], k int, cmp sortmerge.Comparator[T]) *TopK[T] {
	return &TopK[T]{base: pipe.NewBase(nil), in: in, k: k, cmp: cmp}
}

func (t *TopK[T]) Start(ctx context.Context) error {
	if err := t.base.Start(); err != nil {
		return err
	}
	if err := t.in.Start(ctx); err != nil {
		t.base.MarkError()
		return err
	}
	if t.k <= 0 {
		t.base.MarkDone()
		return nil
	}

	h := &minHeap[T]{cmp: t.cmp}
	for {
		item, ok, err := t.in.Next()
		if err != nil {
			t.base.MarkError()
			return err
		}
		if !ok {
			break
		}
		if h.Len() < t.k {
			heap.Push(h, item)
		} else if t.cmp(item, h.items[0]) > 0 {
			h.items[0] = item
			heap.Fix(h, 0)
		}
	}

	t.items = make([]T, h.Len())
	for i := len(t.items) - 1; i >= 0; i-- {
		t.items[i] = heap.Pop(h).(T)
	}
	t.base.MarkDone()
	return nil
}

func (t *TopK[T]) Next() (item T, ok bool, err error) {
	if t.pos >= len(t.items) {
		return item, false, nil
	}
	item = t.items[t.pos]
	t.pos++
	t.base.SetProgress(float64(t.pos) / float64(len(t.items)))
	return item, true, nil
}

func (t *TopK[T]) Peek() (item T, ok bool, err error) {
	if t.pos >= len(t.items) {
		return item, false, nil
	}
	return t.items[t.pos], true, nil
}

func (t *TopK[T]) Progress() float64 { return t.base.Progress() }

func (t *TopK[T]) Close() error {
	return t.base.Close(t.in.Close)
}

// minHeap is a binary min-heap under cmp, used to keep only the K
// greatest items seen so far: the smallest kept item sits at the root
// and is evicted first when a larger candidate arrives.
type minHeap[T any] struct {
	items []T
	cmp   sortmerge.Comparator[T]
}

func (h *minHeap[T]) Len() int            { return len(h.items) }
func (h *minHeap[T]) Less(i, j int) bool  { return h.cmp(h.items[i], h.items[j]) < 0 }
func (h *minHeap[T]) Swap(i, j int)       { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *minHeap[T]) Push(x interface{})  { h.items = append(h.items, x.(T)) }
func (h *minHeap[T]) Pop() interface{} {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}

var _ pipe.Sync[int] = (*TopK[int])(nil)
