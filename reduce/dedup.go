package reduce

import (
	"github.com/bgpfix/dataflow/codec"
	"github.com/bgpfix/dataflow/pipe"
)

// dedupAcc keeps the first item seen for a key; later items with the
// same key are folded away without replacing it.
type dedupAcc[T any] struct {
	item T
	set  bool
}

// NewDedup is a HashReductor with an identity discriminator and a no-op
// accumulator, per spec.md §4.6 ("the dedup operator is this reductor
// with identity discriminator and no-op accumulator"): the first
// occurrence of each key survives, later ones are folded away.
func NewDedup[T any, K comparable](
	in pipe.Sync[T],
	key func(T) K,
	hash func(K) uint64,
	partitionCount int,
	c codec.Codec[T],
	dir string,
) *HashReductor[T, K, *dedupAcc[T], T] {
	cfg := ReductorConfig[T, K, *dedupAcc[T], T]{
		Key: key,
		New: func(K) *dedupAcc[T] { return &dedupAcc[T]{} },
		Add: func(acc *dedupAcc[T], item T) error {
			if !acc.set {
				acc.item, acc.set = item, true
			}
			return nil
		},
		Finalize: func(acc *dedupAcc[T]) T { return acc.item },
	}
	return NewHashReductor(in, cfg, hash, partitionCount, c, dir)
}
