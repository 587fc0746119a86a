package reduce

import (
	"github.com/bgpfix/dataflow/codec"
	"github.com/bgpfix/dataflow/ops"
	"github.com/bgpfix/dataflow/pipe"
)

// NewGrouper is a HashReductor materializing each partition's per-key
// items as a list, flat-mapped back into an item stream via ops.Flatten
// — "the grouper operator is this reductor materializing each partition
// as a list then flat-mapping", per spec.md §4.6. Items sharing a key
// arrive contiguously in the output, though group order and item order
// within a group are not otherwise preserved.
func NewGrouper[T any, K comparable](
	in pipe.Sync[T],
	key func(T) K,
	hash func(K) uint64,
	partitionCount int,
	c codec.Codec[T],
	dir string,
) pipe.Sync[T] {
	cfg := ReductorConfig[T, K, *[]T, []T]{
		Key: key,
		New: func(K) *[]T { return new([]T) },
		Add: func(acc *[]T, item T) error {
			*acc = append(*acc, item)
			return nil
		},
		Finalize: func(acc *[]T) []T { return *acc },
	}
	r := NewHashReductor(in, cfg, hash, partitionCount, c, dir)
	return ops.NewFlatten[T](r)
}
