package sortmerge

import (
	"context"

	"github.com/bgpfix/dataflow/pipe"
	"github.com/bgpfix/dataflow/pipeerr"
)

// JoinRecord is the output of a sorted or hash join: a key, every
// matching left item, and for each right-hand input, every matching
// item from that input.
type JoinRecord[K any, L any, R any] struct {
	Key   K
	Left  []L
	Right [][]R
}

// JoinMode selects which equivalence classes a SortedJoin emits.
type JoinMode int

const (
	// LeftJoin emits every class the left pipe contributes to,
	// regardless of whether any right pipe matches.
	LeftJoin JoinMode = iota
	// InnerJoin emits iff the left pipe and at least one right pipe
	// match.
	InnerJoin
	// FullInnerJoin emits iff the left pipe and every right pipe match.
	FullInnerJoin
	// OuterJoin emits any class either side contributes to.
	OuterJoin
)

// SortedJoin consumes one left pipe and K right pipes, all sorted by
// their own key extractor under a shared comparator, per spec.md §4.7.
type SortedJoin[K any, L any, R any] struct {
	base   *pipe.Base
	left   pipe.Sync[L]
	rights []pipe.Sync[R]
	keyL   func(L) K
	keyR   func(R) K
	cmp    Comparator[K]
	mode   JoinMode
	la     *pipe.Lookahead[JoinRecord[K, L, R]]

	leftItem L
	leftOK   bool
	leftKey  K
	leftHasLast bool
	leftLast K

	rightItem   []R
	rightOK     []bool
	rightKey    []K
	rightHasLast []bool
	rightLast   []K
}

func NewSortedJoin[K any, L any, R any](
	mode JoinMode,
	cmp Comparator[K],
	keyL func(L) K,
	keyR func(R) K,
	left pipe.Sync[L],
	rights ...pipe.Sync[R],
) *SortedJoin[K, L, R] {
	j := &SortedJoin[K, L, R]{
		base:   pipe.NewBase(nil),
		left:   left,
		rights: rights,
		keyL:   keyL,
		keyR:   keyR,
		cmp:    cmp,
		mode:   mode,

		rightItem:    make([]R, len(rights)),
		rightOK:      make([]bool, len(rights)),
		rightKey:     make([]K, len(rights)),
		rightHasLast: make([]bool, len(rights)),
		rightLast:    make([]K, len(rights)),
	}
	j.la = pipe.NewLookahead(j.produce)
	return j
}

func (j *SortedJoin[K, L, R]) Start(ctx context.Context) error {
	if err := j.base.Start(); err != nil {
		return err
	}
	if err := j.left.Start(ctx); err != nil {
		j.base.MarkError()
		return err
	}
	for _, r := range j.rights {
		if err := r.Start(ctx); err != nil {
			j.base.MarkError()
			return err
		}
	}
	if err := j.pullLeft(); err != nil {
		j.base.MarkError()
		return err
	}
	for i := range j.rights {
		if err := j.pullRight(i); err != nil {
			j.base.MarkError()
			return err
		}
	}
	return nil
}

func (j *SortedJoin[K, L, R]) pullLeft() error {
	item, ok, err := j.left.Next()
	if err != nil {
		return err
	}
	j.leftItem, j.leftOK = item, ok
	if ok {
		key := j.keyL(item)
		if j.leftHasLast && j.cmp(key, j.leftLast) < 0 {
			return pipeerr.New(pipeerr.KindOrdering, "sortmerge.SortedJoin", pipeerr.ErrOrderViolation)
		}
		j.leftKey, j.leftLast, j.leftHasLast = key, key, true
	}
	return nil
}

func (j *SortedJoin[K, L, R]) pullRight(i int) error {
	item, ok, err := j.rights[i].Next()
	if err != nil {
		return err
	}
	j.rightItem[i], j.rightOK[i] = item, ok
	if ok {
		key := j.keyR(item)
		if j.rightHasLast[i] && j.cmp(key, j.rightLast[i]) < 0 {
			return pipeerr.New(pipeerr.KindOrdering, "sortmerge.SortedJoin", pipeerr.ErrOrderViolation)
		}
		j.rightKey[i], j.rightLast[i], j.rightHasLast[i] = key, key, true
	}
	return nil
}

func (j *SortedJoin[K, L, R]) produce() (rec JoinRecord[K, L, R], ok bool, err error) {
	for {
		haveCandidate := false
		var minKey K
		if j.leftOK {
			minKey, haveCandidate = j.leftKey, true
		}
		for i := range j.rights {
			if !j.rightOK[i] {
				continue
			}
			if !haveCandidate || j.cmp(j.rightKey[i], minKey) < 0 {
				minKey, haveCandidate = j.rightKey[i], true
			}
		}
		if !haveCandidate {
			j.base.MarkDone()
			return rec, false, nil
		}

		matchLeft := j.leftOK && j.cmp(j.leftKey, minKey) == 0
		matchRight := make([]bool, len(j.rights))
		anyRight := false
		for i := range j.rights {
			if j.rightOK[i] && j.cmp(j.rightKey[i], minKey) == 0 {
				matchRight[i] = true
				anyRight = true
			}
		}

		group := JoinRecord[K, L, R]{Key: minKey, Right: make([][]R, len(j.rights))}
		if matchLeft {
			for j.leftOK && j.cmp(j.leftKey, minKey) == 0 {
				group.Left = append(group.Left, j.leftItem)
				if err := j.pullLeft(); err != nil {
					j.base.MarkError()
					return rec, false, err
				}
			}
		}
		for i := range j.rights {
			if !matchRight[i] {
				continue
			}
			for j.rightOK[i] && j.cmp(j.rightKey[i], minKey) == 0 {
				group.Right[i] = append(group.Right[i], j.rightItem[i])
				if err := j.pullRight(i); err != nil {
					j.base.MarkError()
					return rec, false, err
				}
			}
		}

		j.reportProgress()

		if j.emit(matchLeft, anyRight, matchRight) {
			return group, true, nil
		}
	}
}

func (j *SortedJoin[K, L, R]) emit(matchLeft, anyRight bool, matchRight []bool) bool {
	switch j.mode {
	case LeftJoin:
		return matchLeft
	case InnerJoin:
		return matchLeft && anyRight
	case FullInnerJoin:
		if !matchLeft {
			return false
		}
		for _, m := range matchRight {
			if !m {
				return false
			}
		}
		return true
	case OuterJoin:
		return matchLeft || anyRight
	default:
		return false
	}
}

func (j *SortedJoin[K, L, R]) reportProgress() {
	min := j.left.Progress()
	for _, r := range j.rights {
		if p := r.Progress(); p < min {
			min = p
		}
	}
	j.base.SetProgress(min)
}

func (j *SortedJoin[K, L, R]) Next() (JoinRecord[K, L, R], bool, error) { return j.la.Next() }
func (j *SortedJoin[K, L, R]) Peek() (JoinRecord[K, L, R], bool, error) { return j.la.Peek() }
func (j *SortedJoin[K, L, R]) Progress() float64                       { return j.base.Progress() }

func (j *SortedJoin[K, L, R]) Close() error {
	return j.base.Close(func() error {
		closers := make([]pipe.Closer, 0, len(j.rights)+1)
		closers = append(closers, j.left)
		for _, r := range j.rights {
			closers = append(closers, r)
		}
		return pipe.CloseAll(closers)
	})
}

func (j *SortedJoin[K, L, R]) Inputs() []pipe.Closer {
	closers := make([]pipe.Closer, 0, len(j.rights)+1)
	closers = append(closers, j.left)
	for _, r := range j.rights {
		closers = append(closers, r)
	}
	return closers
}

var _ pipe.Sync[JoinRecord[int, int, int]] = (*SortedJoin[int, int, int])(nil)
var _ pipe.Owner = (*SortedJoin[int, int, int])(nil)
