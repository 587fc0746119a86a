package reduce_test

import (
	"context"
	"sort"
	"testing"

	"github.com/bgpfix/dataflow/codec"
	"github.com/bgpfix/dataflow/pipe"
	"github.com/bgpfix/dataflow/reduce"
	"github.com/bgpfix/dataflow/sortmerge"
	"github.com/bgpfix/dataflow/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hashInt64(k int64) uint64 { return uint64(k) }

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

func intCodec() codec.Codec[int64] { return codec.NewInt64Codec(codec.BigEndian) }

func TestDedupFoldsRepeats(t *testing.T) {
	in := source.NewCollection([]int64{1, 2, 2, 3, 1, 4})
	d := reduce.NewDedup(in, func(v int64) int64 { return v }, hashInt64, 4, intCodec(), t.TempDir())
	got := drain(t, d)
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	assert.Equal(t, []int64{1, 2, 3, 4}, got)
}

func TestDedupSinglePartition(t *testing.T) {
	in := source.NewCollection([]int64{5, 5, 5})
	d := reduce.NewDedup(in, func(v int64) int64 { return v }, hashInt64, 1, intCodec(), t.TempDir())
	assert.Equal(t, []int64{5}, drain(t, d))
}

func TestGrouperKeepsItemsContiguousByKey(t *testing.T) {
	in := source.NewCollection([]int64{1, 2, 1, 3, 2, 1})
	g := reduce.NewGrouper(in, func(v int64) int64 { return v % 2 }, hashInt64, 3, intCodec(), t.TempDir())
	got := drain(t, g)
	require.Len(t, got, 6)

	seen := map[int64]bool{}
	for i, v := range got {
		k := v % 2
		if i > 0 && got[i-1]%2 == k {
			continue
		}
		assert.False(t, seen[k], "key %d's items were not contiguous", k)
		seen[k] = true
	}
}

func TestTopKKeepsGreatest(t *testing.T) {
	in := source.NewCollection([]int{3, 1, 4, 1, 5, 9, 2, 6})
	top := reduce.NewTopK(in, 3, func(a, b int) int { return a - b })
	got := drain(t, top)
	sort.Ints(got)
	assert.Equal(t, []int{5, 6, 9}, got)
}

func TestTopKZero(t *testing.T) {
	in := source.NewCollection([]int{1, 2, 3})
	top := reduce.NewTopK(in, 0, func(a, b int) int { return a - b })
	assert.Empty(t, drain(t, top))
}

type employee struct {
	id   int64
	dept int64
	name string
}

type dept struct {
	id   int64
	name string
}

func TestHashJoinInner(t *testing.T) {
	emps := source.NewCollection([]employee{
		{id: 1, dept: 10, name: "alice"},
		{id: 2, dept: 10, name: "bob"},
		{id: 3, dept: 20, name: "carol"},
		{id: 4, dept: 99, name: "orphan"},
	})
	depts := source.NewCollection([]dept{
		{id: 10, name: "eng"},
		{id: 20, name: "sales"},
	})

	empCodec := codec.NewByteStreamCodec[employee](employeeByteCodec{})
	deptCodec := codec.NewByteStreamCodec[dept](deptByteCodec{})

	join := reduce.NewHashJoin[int64, employee, dept](emps, depts, reduce.HashJoinConfig[int64, employee, dept]{
		KeyLeft:        func(e employee) int64 { return e.dept },
		KeyRight:       func(d dept) int64 { return d.id },
		Hash:           hashInt64,
		PartitionCount: 3,
		Mode:           sortmerge.InnerJoin,
		CodecLeft:      empCodec,
		CodecRight:     deptCodec,
		Dir:            t.TempDir(),
	})

	recs := drain(t, join)
	require.Len(t, recs, 2)

	byKey := map[int64][]string{}
	for _, r := range recs {
		var names []string
		for _, e := range r.Left {
			names = append(names, e.name)
		}
		byKey[r.Key] = names
	}
	assert.ElementsMatch(t, []string{"alice", "bob"}, byKey[10])
	assert.ElementsMatch(t, []string{"carol"}, byKey[20])
	assert.NotContains(t, byKey, int64(99))
}

func TestHashJoinLeftIncludesUnmatched(t *testing.T) {
	emps := source.NewCollection([]employee{
		{id: 1, dept: 10, name: "alice"},
		{id: 4, dept: 99, name: "orphan"},
	})
	depts := source.NewCollection([]dept{{id: 10, name: "eng"}})

	join := reduce.NewHashJoin[int64, employee, dept](emps, depts, reduce.HashJoinConfig[int64, employee, dept]{
		KeyLeft:        func(e employee) int64 { return e.dept },
		KeyRight:       func(d dept) int64 { return d.id },
		Hash:           hashInt64,
		PartitionCount: 2,
		Mode:           sortmerge.LeftJoin,
		CodecLeft:      codec.NewByteStreamCodec[employee](employeeByteCodec{}),
		CodecRight:     codec.NewByteStreamCodec[dept](deptByteCodec{}),
		Dir:            t.TempDir(),
	})

	recs := drain(t, join)
	require.Len(t, recs, 2)
	total := 0
	for _, r := range recs {
		total += len(r.Left)
	}
	assert.Equal(t, 2, total)
}
