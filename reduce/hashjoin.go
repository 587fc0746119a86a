package reduce

import (
	"context"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bgpfix/dataflow/codec"
	"github.com/bgpfix/dataflow/ops"
	"github.com/bgpfix/dataflow/pipe"
	"github.com/bgpfix/dataflow/sortmerge"
	"github.com/bgpfix/dataflow/source"
)

// HashJoinConfig parameterizes NewHashJoin.
type HashJoinConfig[K comparable, L any, R any] struct {
	KeyLeft        func(L) K
	KeyRight       func(R) K
	Hash           func(K) uint64
	PartitionCount int
	Mode           sortmerge.JoinMode
	CodecLeft      codec.Codec[L]
	CodecRight     codec.Codec[R]
	Dir            string

	// Logger receives partition spill create/remove events; nil installs
	// a no-op logger.
	Logger *zerolog.Logger
}

// NewHashJoin builds the join spec.md §4.7 describes: "a compound built
// by partitioning both sides with a hash-reductor by join key ... then
// running a sorted/in-memory join per partition and concatenating".
// Both sides are hash-partitioned with the same hash and partition
// count, so partition i on the left only ever needs to be joined
// against partition i on the right; each partition is then small enough
// to join with plain in-memory maps, and the per-partition results are
// concatenated lazily via ops.Concat/ops.Compound so only one
// partition's data is resident at a time. The partitioning itself
// happens on Start, like every other pipe here — not in this
// constructor — so it can be cancelled via the caller's context.
func NewHashJoin[K comparable, L any, R any](
	left pipe.Sync[L],
	right pipe.Sync[R],
	cfg HashJoinConfig[K, L, R],
) pipe.Sync[sortmerge.JoinRecord[K, L, R]] {
	if cfg.PartitionCount <= 0 {
		cfg.PartitionCount = 1
	}
	return &hashJoin[K, L, R]{base: pipe.NewBase(cfg.Logger), left: left, right: right, cfg: cfg}
}

// hashJoin defers partitioning to Start, then delegates Next/Peek/Close
// to the concatenated per-partition pipeline built there.
type hashJoin[K comparable, L any, R any] struct {
	base *pipe.Base
	left pipe.Sync[L]
	right pipe.Sync[R]
	cfg  HashJoinConfig[K, L, R]

	out                    pipe.Sync[sortmerge.JoinRecord[K, L, R]]
	leftPaths, rightPaths  []string
}

func (h *hashJoin[K, L, R]) Start(ctx context.Context) error {
	if err := h.base.Start(); err != nil {
		return err
	}
	n := h.cfg.PartitionCount
	cfg := h.cfg
	runID := uuid.NewString()

	leftHash := func(item L) uint64 { return cfg.Hash(cfg.KeyLeft(item)) }
	rightHash := func(item R) uint64 { return cfg.Hash(cfg.KeyRight(item)) }

	leftPaths, err := partitionToFiles(ctx, h.left, leftHash, n, cfg.CodecLeft, cfg.Dir, "reduce-join-left-"+runID+"-", cfg.Logger)
	if err != nil {
		h.base.Error().Err(err).Msg("reduce.hashJoin: left partitioning failed")
		h.base.MarkError()
		return err
	}
	h.leftPaths = leftPaths
	rightPaths, err := partitionToFiles(ctx, h.right, rightHash, n, cfg.CodecRight, cfg.Dir, "reduce-join-right-"+runID+"-", cfg.Logger)
	if err != nil {
		h.base.Error().Err(err).Msg("reduce.hashJoin: right partitioning failed")
		h.base.MarkError()
		return err
	}
	h.rightPaths = rightPaths

	builders := make([]pipe.Sync[[]sortmerge.JoinRecord[K, L, R]], n)
	for i := 0; i < n; i++ {
		i := i
		builders[i] = ops.NewCompound(func() (pipe.Sync[[]sortmerge.JoinRecord[K, L, R]], error) {
			recs, err := joinPartition(cfg, leftPaths[i], rightPaths[i])
			if err != nil {
				return nil, err
			}
			return source.NewCollection(recs), nil
		})
	}
	groups := ops.NewConcat(builders...)
	flat := ops.NewFlatten[sortmerge.JoinRecord[K, L, R]](groups)
	h.out = flat
	return h.out.Start(ctx)
}

func (h *hashJoin[K, L, R]) Next() (sortmerge.JoinRecord[K, L, R], bool, error) { return h.out.Next() }
func (h *hashJoin[K, L, R]) Peek() (sortmerge.JoinRecord[K, L, R], bool, error) { return h.out.Peek() }
func (h *hashJoin[K, L, R]) Progress() float64                                 { return h.out.Progress() }

func (h *hashJoin[K, L, R]) Close() error {
	return h.base.Close(func() error {
		defer removeAll(h.leftPaths, h.cfg.Logger)
		defer removeAll(h.rightPaths, h.cfg.Logger)
		return h.out.Close()
	})
}

func joinPartition[K comparable, L any, R any](cfg HashJoinConfig[K, L, R], leftPath, rightPath string) ([]sortmerge.JoinRecord[K, L, R], error) {
	leftItems, err := loadJoinSide(leftPath, cfg.CodecLeft)
	if err != nil {
		return nil, err
	}
	rightItems, err := loadJoinSide(rightPath, cfg.CodecRight)
	if err != nil {
		return nil, err
	}

	leftByKey := make(map[K][]L, len(leftItems))
	for _, item := range leftItems {
		k := cfg.KeyLeft(item)
		leftByKey[k] = append(leftByKey[k], item)
	}
	rightByKey := make(map[K][]R, len(rightItems))
	for _, item := range rightItems {
		k := cfg.KeyRight(item)
		rightByKey[k] = append(rightByKey[k], item)
	}

	seen := make(map[K]bool, len(leftByKey)+len(rightByKey))
	var recs []sortmerge.JoinRecord[K, L, R]
	for k := range leftByKey {
		seen[k] = true
	}
	for k := range rightByKey {
		seen[k] = true
	}
	for k := range seen {
		ls, hasLeft := leftByKey[k]
		rs, hasRight := rightByKey[k]
		if !emitJoin(cfg.Mode, hasLeft, hasRight) {
			continue
		}
		recs = append(recs, sortmerge.JoinRecord[K, L, R]{
			Key:   k,
			Left:  ls,
			Right: [][]R{rs},
		})
	}
	return recs, nil
}

func emitJoin(mode sortmerge.JoinMode, hasLeft, hasRight bool) bool {
	switch mode {
	case sortmerge.LeftJoin:
		return hasLeft
	case sortmerge.InnerJoin, sortmerge.FullInnerJoin:
		return hasLeft && hasRight
	case sortmerge.OuterJoin:
		return hasLeft || hasRight
	default:
		return false
	}
}

func loadJoinSide[T any](path string, c codec.Codec[T]) ([]T, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec, err := c.Decoders.NewDecoder(f, codec.ReadOptions{})
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []T
	for {
		item, ok, err := dec.Decode()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		out = append(out, item)
	}
	return out, nil
}

var _ pipe.Sync[sortmerge.JoinRecord[int, int, int]] = (*hashJoin[int, int, int])(nil)
