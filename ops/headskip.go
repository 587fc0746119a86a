package ops

import (
	"context"

	"github.com/bgpfix/dataflow/pipe"
)

// Head passes through at most n items, then reports end-of-stream
// without draining the remainder of in (the caller's Close still closes
// in, but Head itself stops pulling once n is reached).
type Head[T any] struct {
	base *pipe.Base
	in   pipe.Sync[T]
	n    int64
	emitted int64
	la   *pipe.Lookahead[T]
}

func NewHead[T any](in pipe.Sync[T], n int64) *Head[T] {
	h := &Head[T]{base: pipe.NewBase(nil), in: in, n: n}
	h.la = pipe.NewLookahead(h.produce)
	return h
}

func (h *Head[T]) Start(ctx context.Context) error {
	if err := h.base.Start(); err != nil {
		return err
	}
	return h.in.Start(ctx)
}

func (h *Head[T]) produce() (item T, ok bool, err error) {
	if h.emitted >= h.n {
		h.base.MarkDone()
		return item, false, nil
	}
	item, ok, err = h.in.Next()
	if err != nil {
		h.base.MarkError()
		return item, false, err
	}
	if !ok {
		h.base.MarkDone()
		return item, false, nil
	}
	h.emitted++
	if h.n > 0 {
		h.base.SetProgress(float64(h.emitted) / float64(h.n))
	}
	if h.emitted >= h.n {
		h.base.MarkDone()
	}
	return item, true, nil
}

func (h *Head[T]) Next() (T, bool, error) { return h.la.Next() }
func (h *Head[T]) Peek() (T, bool, error) { return h.la.Peek() }
func (h *Head[T]) Progress() float64      { return h.base.Progress() }
func (h *Head[T]) Close() error           { return h.base.Close(h.in.Close) }

var _ pipe.Sync[int] = (*Head[int])(nil)

// Skip discards the first n items from in, then passes through the rest.
type Skip[T any] struct {
	base    *pipe.Base
	in      pipe.Sync[T]
	n       int64
	skipped int64
	la      *pipe.Lookahead[T]
}

func NewSkip[T any](in pipe.Sync[T], n int64) *Skip[T] {
	s := &Skip[T]{base: pipe.NewBase(nil), in: in, n: n}
	s.la = pipe.NewLookahead(s.produce)
	return s
}

func (s *Skip[T]) Start(ctx context.Context) error {
	if err := s.base.Start(); err != nil {
		return err
	}
	return s.in.Start(ctx)
}

func (s *Skip[T]) produce() (item T, ok bool, err error) {
	for s.skipped < s.n {
		_, ok, err = s.in.Next()
		if err != nil {
			s.base.MarkError()
			return item, false, err
		}
		if !ok {
			s.base.MarkDone()
			return item, false, nil
		}
		s.skipped++
	}
	item, ok, err = s.in.Next()
	if err != nil {
		s.base.MarkError()
		return item, false, err
	}
	if !ok {
		s.base.MarkDone()
	}
	return item, ok, nil
}

func (s *Skip[T]) Next() (T, bool, error) { return s.la.Next() }
func (s *Skip[T]) Peek() (T, bool, error) { return s.la.Peek() }
func (s *Skip[T]) Progress() float64      { return s.in.Progress() }
func (s *Skip[T]) Close() error           { return s.base.Close(s.in.Close) }

var _ pipe.Sync[int] = (*Skip[int])(nil)
