// Package sortmerge implements spec.md §4.4's unified multi-way
// sorted-merge engine: a plain order-preserving k-way merge (used by
// external sort to reassemble spilled chunks) and a duplicate-folding
// grouped merge that drives the sorted set-operations and sorted join.
package sortmerge

import (
	"container/heap"
	"context"

	"github.com/bgpfix/dataflow/pipe"
	"github.com/bgpfix/dataflow/pipeerr"
)

// Comparator orders two values of T; it must be consistent with equality
// for the set-operation and join engines (cmp(a,b)==0 iff a==b).
type Comparator[T any] func(a, b T) int

// Merge performs a plain k-way merge of already-sorted inputs, preserving
// every duplicate — the "merge, not a set-union" §4.5 requires when
// external sort reassembles spilled chunks.
type Merge[T any] struct {
	base   *pipe.Base
	inputs []pipe.Sync[T]
	cmp    Comparator[T]
	la     *pipe.Lookahead[T]

	h        *mergeHeap[T]
	lastSeen []T
	hasLast  []bool
}

func NewMerge[T any](cmp Comparator[T], inputs ...pipe.Sync[T]) *Merge[T] {
	m := &Merge[T]{
		base:     pipe.NewBase(nil),
		inputs:   inputs,
		cmp:      cmp,
		lastSeen: make([]T, len(inputs)),
		hasLast:  make([]bool, len(inputs)),
	}
	m.la = pipe.NewLookahead(m.produce)
	return m
}

func (m *Merge[T]) Start(ctx context.Context) error {
	if err := m.base.Start(); err != nil {
		return err
	}
	m.h = &mergeHeap[T]{cmp: m.cmp}
	for i, in := range m.inputs {
		if err := in.Start(ctx); err != nil {
			m.base.MarkError()
			return err
		}
		item, ok, err := in.Next()
		if err != nil {
			m.base.MarkError()
			return err
		}
		if ok {
			heap.Push(m.h, mergeEntry[T]{idx: i, item: item})
		}
	}
	if m.h.Len() == 0 {
		m.base.MarkDone()
	}
	return nil
}

func (m *Merge[T]) produce() (item T, ok bool, err error) {
	if m.h.Len() == 0 {
		m.base.MarkDone()
		return item, false, nil
	}
	entry := heap.Pop(m.h).(mergeEntry[T])
	if m.hasLast[entry.idx] && m.cmp(entry.item, m.lastSeen[entry.idx]) < 0 {
		m.base.MarkError()
		return item, false, pipeerr.New(pipeerr.KindOrdering, "sortmerge.Merge", pipeerr.ErrOrderViolation)
	}
	m.lastSeen[entry.idx] = entry.item
	m.hasLast[entry.idx] = true

	next, nok, nerr := m.inputs[entry.idx].Next()
	if nerr != nil {
		m.base.MarkError()
		return item, false, nerr
	}
	if nok {
		heap.Push(m.h, mergeEntry[T]{idx: entry.idx, item: next})
	}
	m.reportProgress()
	return entry.item, true, nil
}

func (m *Merge[T]) reportProgress() {
	min := 1.0
	for _, in := range m.inputs {
		if p := in.Progress(); p < min {
			min = p
		}
	}
	m.base.SetProgress(min)
}

func (m *Merge[T]) Next() (T, bool, error) { return m.la.Next() }
func (m *Merge[T]) Peek() (T, bool, error) { return m.la.Peek() }
func (m *Merge[T]) Progress() float64      { return m.base.Progress() }

func (m *Merge[T]) Close() error {
	return m.base.Close(func() error {
		closers := make([]pipe.Closer, len(m.inputs))
		for i, in := range m.inputs {
			closers[i] = in
		}
		return pipe.CloseAll(closers)
	})
}

func (m *Merge[T]) Inputs() []pipe.Closer {
	closers := make([]pipe.Closer, len(m.inputs))
	for i, in := range m.inputs {
		closers[i] = in
	}
	return closers
}

var _ pipe.Sync[int] = (*Merge[int])(nil)
var _ pipe.Owner = (*Merge[int])(nil)

type mergeEntry[T any] struct {
	idx  int
	item T
}

type mergeHeap[T any] struct {
	entries []mergeEntry[T]
	cmp     Comparator[T]
}

func (h *mergeHeap[T]) Len() int { return len(h.entries) }
func (h *mergeHeap[T]) Less(i, j int) bool {
	c := h.cmp(h.entries[i].item, h.entries[j].item)
	if c != 0 {
		return c < 0
	}
	return h.entries[i].idx < h.entries[j].idx
}
func (h *mergeHeap[T]) Swap(i, j int) { h.entries[i], h.entries[j] = h.entries[j], h.entries[i] }
func (h *mergeHeap[T]) Push(x interface{}) {
	h.entries = append(h.entries, x.(mergeEntry[T]))
}
func (h *mergeHeap[T]) Pop() interface{} {
	old := h.entries
	n := len(old)
	item := old[n-1]
	h.entries = old[:n-1]
	return item
}
