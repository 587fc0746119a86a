package reduce

import (
	"context"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bgpfix/dataflow/codec"
	"github.com/bgpfix/dataflow/pipe"
	"github.com/bgpfix/dataflow/pipeerr"
)

// ReductorConfig parameterizes HashReductor: Key extracts the grouping
// key from an item, New seeds a fresh accumulator for a key (and may
// embed the key in it, since Finalize only sees the accumulator), Add
// folds one item into an accumulator in place (A should be a pointer
// type whenever Add needs to mutate state beyond what New seeded), and
// Finalize turns a completed accumulator into an output value.
type ReductorConfig[I any, K comparable, A any, O any] struct {
	Key      func(I) K
	New      func(K) A
	Add      func(A, I) error
	Finalize func(A) O

	// Logger receives partition spill create/remove events; nil installs
	// a no-op logger.
	Logger *zerolog.Logger
}

// HashReductor implements spec.md §4.6: partition an unsorted input by
// hash(key) mod P into P spill files bounded by partition count rather
// than item count, then process one partition at a time — building an
// in-memory K -> A map by replaying the partition's spill file and
// streaming out Finalize(A) for every key once the partition is
// exhausted.
type HashReductor[I any, K comparable, A any, O any] struct {
	base *pipe.Base
	in   pipe.Sync[I]
	cfg  ReductorConfig[I, K, A, O]
	hash func(K) uint64
	n    int
	c    codec.Codec[I]
	dir  string

	paths   []string
	pidx    int
	pending []O
	ppos    int
	la      *pipe.Lookahead[O]
}

// NewHashReductor builds a HashReductor over in, keyed by cfg.Key, hashed
// by hash, spread across partitionCount spill files encoded with c under
// dir ("" selects os.TempDir).
func NewHashReductor[I any, K comparable, A any, O any](
	in pipe.Sync[I],
	cfg ReductorConfig[I, K, A, O],
	hash func(K) uint64,
	partitionCount int,
	c codec.Codec[I],
	dir string,
) *HashReductor[I, K, A, O] {
	if partitionCount <= 0 {
		partitionCount = 1
	}
	r := &HashReductor[I, K, A, O]{base: pipe.NewBase(cfg.Logger), in: in, cfg: cfg, hash: hash, n: partitionCount, c: c, dir: dir}
	r.la = pipe.NewLookahead(r.produce)
	return r
}

func (r *HashReductor[I, K, A, O]) Start(ctx context.Context) error {
	if err := r.base.Start(); err != nil {
		return err
	}
	keyHash := func(item I) uint64 { return r.hash(r.cfg.Key(item)) }
	paths, err := partitionToFiles(ctx, r.in, keyHash, r.n, r.c, r.dir, "reduce-"+uuid.NewString()+"-", r.cfg.Logger)
	if err != nil {
		r.base.Error().Err(err).Msg("reduce.HashReductor: partitioning failed")
		r.base.MarkError()
		return err
	}
	r.paths = paths
	return nil
}

// loadPartition replays paths[i] (if any) into an in-memory map and
// finalizes every key's accumulator, in map iteration order — spec.md
// §4.6 makes no ordering promise across or within partitions.
func (r *HashReductor[I, K, A, O]) loadPartition(i int) ([]O, error) {
	path := r.paths[i]
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, pipeerr.Wrap("reduce.HashReductor.loadPartition", err)
	}
	defer f.Close()

	dec, err := r.c.Decoders.NewDecoder(f, codec.ReadOptions{})
	if err != nil {
		return nil, pipeerr.New(pipeerr.KindValidation, "reduce.HashReductor.loadPartition", err)
	}
	defer dec.Close()

	accs := make(map[K]A)
	for {
		item, ok, err := dec.Decode()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		k := r.cfg.Key(item)
		acc, exists := accs[k]
		if !exists {
			acc = r.cfg.New(k)
			accs[k] = acc
		}
		if err := r.cfg.Add(acc, item); err != nil {
			return nil, err
		}
	}

	out := make([]O, 0, len(accs))
	for _, acc := range accs {
		out = append(out, r.cfg.Finalize(acc))
	}
	return out, nil
}

func (r *HashReductor[I, K, A, O]) produce() (item O, ok bool, err error) {
	for r.ppos >= len(r.pending) {
		if r.pidx >= len(r.paths) {
			r.base.MarkDone()
			return item, false, nil
		}
		out, err := r.loadPartition(r.pidx)
		if path := r.paths[r.pidx]; path != "" {
			if rmErr := os.Remove(path); rmErr == nil {
				r.base.Debug().Str("path", path).Int("partition", r.pidx).Msg("reduce.HashReductor: removed consumed partition")
			} else if !os.IsNotExist(rmErr) {
				r.base.Warn().Str("path", path).Err(rmErr).Msg("reduce.HashReductor: failed to remove consumed partition")
			}
		}
		if err != nil {
			r.base.Error().Err(err).Int("partition", r.pidx).Msg("reduce.HashReductor: loadPartition failed")
			r.base.MarkError()
			return item, false, err
		}
		r.pending, r.ppos = out, 0
		r.pidx++
		r.base.SetProgress(float64(r.pidx) / float64(len(r.paths)))
	}
	item = r.pending[r.ppos]
	r.ppos++
	return item, true, nil
}

func (r *HashReductor[I, K, A, O]) Next() (O, bool, error) { return r.la.Next() }
func (r *HashReductor[I, K, A, O]) Peek() (O, bool, error) { return r.la.Peek() }
func (r *HashReductor[I, K, A, O]) Progress() float64      { return r.base.Progress() }

func (r *HashReductor[I, K, A, O]) Close() error {
	return r.base.Close(func() error {
		removeAll(r.paths, r.cfg.Logger)
		return nil
	})
}

var _ pipe.Sync[int] = (*HashReductor[int, int, int, int])(nil)
