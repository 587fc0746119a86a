package ops

import (
	"context"
	"math/rand"

	"github.com/bgpfix/dataflow/pipe"
)

// Sampler performs reservoir sampling (Algorithm R) over its input,
// producing at most k items chosen uniformly at random from the full
// stream. Because any later item can still displace an earlier pick,
// the reservoir can only be finalized once the input is exhausted, so
// Start eagerly drains in and Next replays the finished reservoir —
// the same eager-buffer shape as the external sort and hash-reductor
// spill operators use for stream-wide operations.
type Sampler[T any] struct {
	base *pipe.Base
	in   pipe.Sync[T]
	k    int
	rng  *rand.Rand

	reservoir []T
	pos       int
}

// NewSampler builds a reservoir sampler keeping at most k items. seed
// fixes the PRNG for reproducible tests; pass a value derived from the
// current time for production use.
func NewSampler[T any](in pipe.Sync[T], k int, seed int64) *Sampler[T] {
	return &Sampler[T]{
		base: pipe.NewBase(nil),
		in:   in,
		k:    k,
		rng:  rand.New(rand.NewSource(seed)),
	}
}

func (s *Sampler[T]) Start(ctx context.Context) error {
	if err := s.base.Start(); err != nil {
		return err
	}
	if err := s.in.Start(ctx); err != nil {
		s.base.MarkError()
		return err
	}
	if err := s.fill(); err != nil {
		s.base.MarkError()
		return err
	}
	s.base.MarkDone()
	return nil
}

func (s *Sampler[T]) fill() error {
	if s.k <= 0 {
		return nil
	}
	s.reservoir = make([]T, 0, s.k)
	var seen int64
	for {
		item, ok, err := s.in.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		seen++
		if len(s.reservoir) < s.k {
			s.reservoir = append(s.reservoir, item)
			continue
		}
		j := s.rng.Int63n(seen)
		if j < int64(s.k) {
			s.reservoir[j] = item
		}
	}
}

func (s *Sampler[T]) Next() (item T, ok bool, err error) {
	if s.pos >= len(s.reservoir) {
		return item, false, nil
	}
	item = s.reservoir[s.pos]
	s.pos++
	return item, true, nil
}

func (s *Sampler[T]) Peek() (item T, ok bool, err error) {
	if s.pos >= len(s.reservoir) {
		return item, false, nil
	}
	return s.reservoir[s.pos], true, nil
}

func (s *Sampler[T]) Progress() float64 { return s.base.Progress() }
func (s *Sampler[T]) Close() error      { return s.base.Close(s.in.Close) }

var _ pipe.Sync[int] = (*Sampler[int])(nil)
