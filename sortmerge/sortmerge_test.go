package sortmerge_test

import (
	"context"
	"testing"

	"github.com/bgpfix/dataflow/pipe"
	"github.com/bgpfix/dataflow/sortmerge"
	"github.com/bgpfix/dataflow/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intCmp(a, b int) int { return a - b }

func drain[T any](t *testing.T, s pipe.Sync[T]) []T {
	t.Helper()
	require.NoError(t, s.Start(context.Background()))
	var out []T
	for {
		item, ok, err := s.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		out = append(out, item)
	}
	require.NoError(t, s.Close())
	return out
}

func TestMergePreservesDuplicates(t *testing.T) {
	a := source.NewCollection([]int{1, 3, 5})
	b := source.NewCollection([]int{2, 3, 4})
	m := sortmerge.NewMerge(intCmp, a, b)
	assert.Equal(t, []int{1, 2, 3, 3, 4, 5}, drain(t, m))
}

func TestUnionDedupes(t *testing.T) {
	a := source.NewCollection([]int{1, 2, 2, 3})
	b := source.NewCollection([]int{2, 3, 4})
	u := sortmerge.NewSetOp(sortmerge.Union, intCmp, a, b)
	assert.Equal(t, []int{1, 2, 3, 4}, drain(t, u))
}

func TestIntersectionAny(t *testing.T) {
	a := source.NewCollection([]int{1, 2, 3, 4})
	b := source.NewCollection([]int{2, 4, 6})
	i := sortmerge.NewSetOp(sortmerge.IntersectionAny, intCmp, a, b)
	assert.Equal(t, []int{2, 4}, drain(t, i))
}

func TestIntersectionSelf(t *testing.T) {
	a := source.NewCollection([]int{1, 2, 2, 3})
	b := source.NewCollection([]int{1, 2, 2, 3})
	i := sortmerge.NewSetOp(sortmerge.IntersectionAny, intCmp, a, b)
	assert.Equal(t, []int{1, 2, 3}, drain(t, i))
}

func TestSubtraction(t *testing.T) {
	a := source.NewCollection([]int{1, 2, 2, 3, 5})
	b := source.NewCollection([]int{2, 5})
	sub := sortmerge.NewSetOp(sortmerge.Subtraction, intCmp, a, b)
	assert.Equal(t, []int{1, 3}, drain(t, sub))
}

func TestSubtractionSelfIsEmpty(t *testing.T) {
	a := source.NewCollection([]int{1, 2, 3})
	b := source.NewCollection([]int{1, 2, 3})
	sub := sortmerge.NewSetOp(sortmerge.Subtraction, intCmp, a, b)
	assert.Empty(t, drain(t, sub))
}

func TestSubtractionDetectsOrderViolation(t *testing.T) {
	a := source.NewCollection([]int{2, 1, 3})
	b := source.NewCollection([]int{2})
	sub := sortmerge.NewSetOp(sortmerge.Subtraction, intCmp, a, b)
	require.NoError(t, sub.Start(context.Background()))
	for {
		_, ok, err := sub.Next()
		if err != nil {
			assert.Contains(t, err.Error(), "order")
			return
		}
		if !ok {
			t.Fatal("expected an ordering error before end of stream")
		}
	}
}

func TestFullIntersection(t *testing.T) {
	a := source.NewCollection([]int{1, 2, 3})
	r1 := source.NewCollection([]int{1, 2})
	r2 := source.NewCollection([]int{1, 3})
	fi := sortmerge.NewSetOp(sortmerge.FullIntersection, intCmp, a, r1, r2)
	assert.Equal(t, []int{1}, drain(t, fi))
}

type pair struct {
	key int
	val string
}

func TestSortedInnerJoin(t *testing.T) {
	left := source.NewCollection([]pair{{1, "L1"}, {2, "L2"}})
	right := source.NewCollection([]pair{{1, "R1"}, {1, "R2"}, {3, "R3"}})

	join := sortmerge.NewSortedJoin[int, pair, pair](
		sortmerge.InnerJoin, intCmp,
		func(p pair) int { return p.key },
		func(p pair) int { return p.key },
		left, right,
	)
	got := drain(t, join)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Key)
	require.Len(t, got[0].Left, 1)
	assert.Equal(t, "L1", got[0].Left[0].val)
	require.Len(t, got[0].Right[0], 2)
	assert.ElementsMatch(t, []string{"R1", "R2"}, []string{got[0].Right[0][0].val, got[0].Right[0][1].val})
}

func TestSortedLeftJoinIncludesUnmatched(t *testing.T) {
	left := source.NewCollection([]pair{{1, "L1"}, {2, "L2"}})
	right := source.NewCollection([]pair{{1, "R1"}})

	join := sortmerge.NewSortedJoin[int, pair, pair](
		sortmerge.LeftJoin, intCmp,
		func(p pair) int { return p.key },
		func(p pair) int { return p.key },
		left, right,
	)
	got := drain(t, join)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Key)
	assert.Equal(t, 2, got[1].Key)
	assert.Empty(t, got[1].Right[0])
}
