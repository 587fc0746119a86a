// Package sched implements the Longest-Processing-Time-first heuristic
// spec.md §4.9 calls for when a multi-file reader shards by approximate
// data volume: sort items by size descending, then greedily place each
// onto the currently least-loaded shard. Worst-case makespan is
// (4/3 − 1/(3m)) × optimum for m shards.
package sched

import (
	"container/heap"
	"sort"
)

// Sized is anything the scheduler can weigh by size.
type Sized interface {
	SchedSize() int64
}

// Balance assigns each item in items to one of shardCount shards using
// LPT, and returns, for each original index, the shard it was assigned
// to. items is not mutated.
func Balance[T Sized](items []T, shardCount int) []int {
	if shardCount < 1 {
		shardCount = 1
	}

	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}
	// sort indices by descending size (stable so equal-size files keep a
	// deterministic, input-order tiebreak — needed for reproducible
	// shard assignment across runs with identical inputs).
	sort.SliceStable(order, func(i, j int) bool {
		return items[order[i]].SchedSize() > items[order[j]].SchedSize()
	})

	h := &loadHeap{loads: make([]shardLoad, shardCount)}
	for i := range h.loads {
		h.loads[i].index = i
	}
	heap.Init(h)

	assignment := make([]int, len(items))
	for _, idx := range order {
		least := heap.Pop(h).(shardLoad)
		assignment[idx] = least.index
		least.load += items[idx].SchedSize()
		heap.Push(h, least)
	}
	return assignment
}

type shardLoad struct {
	index int
	load  int64
}

// loadHeap is a min-heap keyed by accumulated load, giving O(log m)
// selection of the least-loaded shard per item.
type loadHeap struct {
	loads []shardLoad
}

func (h *loadHeap) Len() int            { return len(h.loads) }
func (h *loadHeap) Less(i, j int) bool  { return h.loads[i].load < h.loads[j].load }
func (h *loadHeap) Swap(i, j int)       { h.loads[i], h.loads[j] = h.loads[j], h.loads[i] }
func (h *loadHeap) Push(x interface{})  { h.loads = append(h.loads, x.(shardLoad)) }
func (h *loadHeap) Pop() interface{} {
	old := h.loads
	n := len(old)
	item := old[n-1]
	h.loads = old[:n-1]
	return item
}
