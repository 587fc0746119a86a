package sortmerge

import (
	"container/heap"
	"context"

	"github.com/bgpfix/dataflow/pipe"
	"github.com/bgpfix/dataflow/pipeerr"
)

// SetMode selects which emission selector of spec.md §4.4 the grouped
// merge applies to each equivalence class.
type SetMode int

const (
	// Union always emits the equivalence class.
	Union SetMode = iota
	// IntersectionAny emits iff input 0 contributed and at least one
	// other input also contributed.
	IntersectionAny
	// FullIntersection emits iff input 0 contributed and every right-hand
	// input (indices 1..N-1) contributed.
	FullIntersection
	// Subtraction emits iff input 0 contributed and input 1 did not.
	Subtraction
)

// SetOp drives union/intersection/subtraction over N already-sorted
// inputs via the grouped multi-way merge of spec.md §4.4: each round
// extracts the minimal key and every input whose current head equals
// it (folding same-input and cross-input duplicates alike), decides
// emission from the contributor bitset, then advances.
type SetOp[T any] struct {
	base   *pipe.Base
	inputs []pipe.Sync[T]
	cmp    Comparator[T]
	mode   SetMode
	la     *pipe.Lookahead[T]

	h        *mergeHeap[T]
	lastSeen []T
	hasLast  []bool
	exhausted []bool
	terminated bool
}

// NewSetOp builds a SetOp over inputs, ordered by cmp, which must be
// consistent with equality. mode Subtraction requires exactly 2 inputs
// (A, B) per spec.md; FullIntersection/IntersectionAny treat input 0 as
// the left/required side and the rest as the right-hand set.
func NewSetOp[T any](mode SetMode, cmp Comparator[T], inputs ...pipe.Sync[T]) *SetOp[T] {
	s := &SetOp[T]{
		base:      pipe.NewBase(nil),
		inputs:    inputs,
		cmp:       cmp,
		mode:      mode,
		lastSeen:  make([]T, len(inputs)),
		hasLast:   make([]bool, len(inputs)),
		exhausted: make([]bool, len(inputs)),
	}
	s.la = pipe.NewLookahead(s.produce)
	return s
}

func (s *SetOp[T]) Start(ctx context.Context) error {
	if err := s.base.Start(); err != nil {
		return err
	}
	s.h = &mergeHeap[T]{cmp: s.cmp}
	for i, in := range s.inputs {
		if err := in.Start(ctx); err != nil {
			s.base.MarkError()
			return err
		}
		item, ok, err := in.Next()
		if err != nil {
			s.base.MarkError()
			return err
		}
		if ok {
			heap.Push(s.h, mergeEntry[T]{idx: i, item: item})
		} else {
			s.exhausted[i] = true
		}
	}
	return nil
}

func (s *SetOp[T]) advance(idx int, item T) error {
	if s.hasLast[idx] && s.cmp(item, s.lastSeen[idx]) < 0 {
		return pipeerr.New(pipeerr.KindOrdering, "sortmerge.SetOp", pipeerr.ErrOrderViolation)
	}
	s.lastSeen[idx] = item
	s.hasLast[idx] = true

	next, ok, err := s.inputs[idx].Next()
	if err != nil {
		return err
	}
	if ok {
		heap.Push(s.h, mergeEntry[T]{idx: idx, item: next})
	} else {
		s.exhausted[idx] = true
	}
	return nil
}

func (s *SetOp[T]) produce() (item T, ok bool, err error) {
	for {
		if s.terminated || s.h.Len() == 0 {
			s.base.MarkDone()
			return item, false, nil
		}

		first := heap.Pop(s.h).(mergeEntry[T])
		minKey := first.item
		var bitset uint64
		bitset |= 1 << uint(first.idx)
		representative := first.item
		if err := s.advance(first.idx, first.item); err != nil {
			s.base.MarkError()
			return item, false, err
		}
		for s.h.Len() > 0 && s.cmp(s.h.entries[0].item, minKey) == 0 {
			next := heap.Pop(s.h).(mergeEntry[T])
			bitset |= 1 << uint(next.idx)
			if err := s.advance(next.idx, next.item); err != nil {
				s.base.MarkError()
				return item, false, err
			}
		}

		s.reportProgress()

		emit, terminate := s.classify(bitset)
		if terminate {
			s.terminated = true
		}
		if emit {
			return representative, true, nil
		}
		if s.terminated {
			s.base.MarkDone()
			return item, false, nil
		}
	}
}

func (s *SetOp[T]) classify(bitset uint64) (emit, terminate bool) {
	hasLeft := bitset&1 != 0
	switch s.mode {
	case Union:
		return true, false
	case IntersectionAny:
		otherMask := ^uint64(1)
		any := bitset&otherMask != 0
		terminate = s.exhausted[0]
		return hasLeft && any, terminate
	case FullIntersection:
		rightCount := len(s.inputs) - 1
		var rightMask uint64
		for i := 1; i < len(s.inputs); i++ {
			rightMask |= 1 << uint(i)
		}
		full := popcount(bitset&rightMask) == rightCount
		for i := 1; i < len(s.inputs); i++ {
			if s.exhausted[i] {
				terminate = true
			}
		}
		if s.exhausted[0] {
			terminate = true
		}
		return hasLeft && full, terminate
	case Subtraction:
		hasRight := bitset&2 != 0
		terminate = s.exhausted[0]
		return hasLeft && !hasRight, terminate
	default:
		return false, true
	}
}

func popcount(b uint64) int {
	n := 0
	for b != 0 {
		b &= b - 1
		n++
	}
	return n
}

func (s *SetOp[T]) reportProgress() {
	min := 1.0
	for _, in := range s.inputs {
		if p := in.Progress(); p < min {
			min = p
		}
	}
	s.base.SetProgress(min)
}

func (s *SetOp[T]) Next() (T, bool, error) { return s.la.Next() }
func (s *SetOp[T]) Peek() (T, bool, error) { return s.la.Peek() }
func (s *SetOp[T]) Progress() float64      { return s.base.Progress() }

func (s *SetOp[T]) Close() error {
	return s.base.Close(func() error {
		closers := make([]pipe.Closer, len(s.inputs))
		for i, in := range s.inputs {
			closers[i] = in
		}
		return pipe.CloseAll(closers)
	})
}

func (s *SetOp[T]) Inputs() []pipe.Closer {
	closers := make([]pipe.Closer, len(s.inputs))
	for i, in := range s.inputs {
		closers[i] = in
	}
	return closers
}

var _ pipe.Sync[int] = (*SetOp[int])(nil)
var _ pipe.Owner = (*SetOp[int])(nil)
