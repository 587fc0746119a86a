// Package reduce implements spec.md §4.6's hash-reductor (dedup, grouper)
// and §4.7's hash join: partition an unsorted input into P bounded spill
// files by hash(key) mod P, then process each partition entirely in
// memory, the way extsort bounds memory by sorting in runs instead. Its
// top-K operator keeps a bounded heap in memory and does not partition.
package reduce

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/bgpfix/dataflow/codec"
	"github.com/bgpfix/dataflow/pipe"
	"github.com/bgpfix/dataflow/pipeerr"
)

// partitionPaths builds P distinct temp file paths under dir named
// "<prefix><partition-index>", following the "<Prefix><chunk-index>"
// convention extsort.Sort.spill uses for its own chunk files.
func partitionPaths(dir, prefix string, n int) []string {
	paths := make([]string, n)
	for i := range paths {
		paths[i] = filepath.Join(dir, fmt.Sprintf("%s%05d", prefix, i))
	}
	return paths
}

// partitionToFiles drains in, routing each item to partitionPaths[hash(item)%n],
// and returns one path per partition, "" for a partition that saw no items. Every
// encoder is open simultaneously for the duration of the drain, per spec.md
// §4.6's phase 1 ("route every input item ... by writing it to one of P open
// spill files").
func partitionToFiles[T any](ctx context.Context, in pipe.Sync[T], hash func(T) uint64, n int, c codec.Codec[T], dir, prefix string, logger *zerolog.Logger) ([]string, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if dir == "" {
		dir = os.TempDir()
	}
	paths := partitionPaths(dir, prefix, n)
	files := make([]*os.File, n)
	encs := make([]codec.Encoder[T], n)
	written := make([]bool, n)

	cleanup := func() {
		for i := range files {
			if encs[i] != nil {
				encs[i].Close()
			}
			if files[i] != nil {
				files[i].Close()
			}
			if err := os.Remove(paths[i]); err == nil {
				logger.Debug().Str("path", paths[i]).Msg("reduce.partitionToFiles: removed partition file on cleanup")
			}
		}
	}

	if err := in.Start(ctx); err != nil {
		return nil, err
	}

	for {
		item, ok, err := in.Next()
		if err != nil {
			cleanup()
			return nil, err
		}
		if !ok {
			break
		}
		p := int(hash(item) % uint64(n))
		if files[p] == nil {
			f, err := os.Create(paths[p])
			if err != nil {
				cleanup()
				return nil, pipeerr.Wrap("reduce.partitionToFiles", err)
			}
			logger.Debug().Str("path", paths[p]).Int("partition", p).Msg("reduce.partitionToFiles: opened partition spill file")
			enc, err := c.Encoders.NewEncoder(f, codec.WriteOptions{Temp: true})
			if err != nil {
				f.Close()
				cleanup()
				return nil, pipeerr.New(pipeerr.KindValidation, "reduce.partitionToFiles", err)
			}
			files[p], encs[p] = f, enc
		}
		if err := encs[p].Encode(item); err != nil {
			cleanup()
			return nil, pipeerr.New(pipeerr.KindValidation, "reduce.partitionToFiles", err)
		}
		written[p] = true
	}

	// out is indexed by partition number, "" meaning the partition saw no
	// items; callers that must keep two partitionings aligned (hash join)
	// rely on this index correspondence.
	out := make([]string, n)
	for i := range files {
		if encs[i] != nil {
			if err := encs[i].Close(); err != nil {
				cleanup()
				return nil, pipeerr.Wrap("reduce.partitionToFiles", err)
			}
		}
		if files[i] != nil {
			if err := files[i].Close(); err != nil {
				cleanup()
				return nil, pipeerr.Wrap("reduce.partitionToFiles", err)
			}
		}
		if written[i] {
			out[i] = paths[i]
		} else {
			os.Remove(paths[i]) // never opened, nothing to log
		}
	}
	return out, nil
}

func removeAll(paths []string, logger *zerolog.Logger) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil {
			if !os.IsNotExist(err) {
				logger.Warn().Str("path", p).Err(err).Msg("reduce: failed to remove partition spill file")
			}
			continue
		}
		logger.Debug().Str("path", p).Msg("reduce: removed partition spill file")
	}
}
