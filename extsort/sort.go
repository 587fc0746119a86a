// Package extsort implements spec.md §4.5's external sort: accumulate up
// to max_in_memory items, sort them in place, and either return the
// single in-memory run directly (input exhausted before ever spilling)
// or spill sorted runs to temp files and feed them back through
// sortmerge.Merge, preserving duplicates.
package extsort

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bgpfix/dataflow/codec"
	"github.com/bgpfix/dataflow/pipe"
	"github.com/bgpfix/dataflow/pipeerr"
	"github.com/bgpfix/dataflow/sortmerge"
	"github.com/bgpfix/dataflow/source"
)

// Options configures Sort's spill behavior.
type Options struct {
	// MaxInMemory bounds the size of each accumulated, sorted run.
	MaxInMemory int
	// TempDir is the directory spilled chunk files are created under;
	// "" uses os.TempDir.
	TempDir string
	// Prefix names chunk files "<Prefix><chunk-index><suffix>" per
	// spec.md §6's persisted-state convention.
	Prefix string
	// Compression picks the spill file's compression; None, Gzip or Zstd.
	Compression codec.Compression
	// Logger receives spill create/remove events; nil installs a no-op
	// logger like every other component in this module.
	Logger *zerolog.Logger
}

// Sort is a Sync[T] that yields in's items in ascending order under cmp.
type Sort[T any] struct {
	base  *pipe.Base
	in    pipe.Sync[T]
	cmp   sortmerge.Comparator[T]
	opts  Options
	codec codec.Codec[T]

	chunkPaths []string
	merged     pipe.Sync[T]
	useMemory  bool
	buf        []T
	pos        int
	total      int
	la         *pipe.Lookahead[T]
}

// NewSort builds a Sort over in, using cmp for ordering and c to encode
// spilled chunks.
func NewSort[T any](in pipe.Sync[T], cmp sortmerge.Comparator[T], c codec.Codec[T], opts Options) *Sort[T] {
	if opts.MaxInMemory <= 0 {
		opts.MaxInMemory = 1 << 20
	}
	if opts.Prefix == "" {
		// A random per-run prefix keeps concurrent Sort instances sharing
		// the same TempDir from colliding on chunk file names.
		opts.Prefix = "extsort-" + uuid.NewString() + "-"
	}
	s := &Sort[T]{base: pipe.NewBase(opts.Logger), in: in, cmp: cmp, codec: c, opts: opts}
	s.la = pipe.NewLookahead(s.produce)
	return s
}

func (s *Sort[T]) Start(ctx context.Context) error {
	if err := s.base.Start(); err != nil {
		return err
	}
	if err := s.in.Start(ctx); err != nil {
		s.base.Error().Err(err).Msg("extsort.Sort: upstream Start failed")
		s.base.MarkError()
		return err
	}

	for {
		batch := make([]T, 0, s.opts.MaxInMemory)
		for len(batch) < s.opts.MaxInMemory {
			item, ok, err := s.in.Next()
			if err != nil {
				s.base.Error().Err(err).Msg("extsort.Sort: upstream Next failed")
				s.removeChunks()
				s.base.MarkError()
				return err
			}
			if !ok {
				break
			}
			batch = append(batch, item)
		}
		sort.Slice(batch, func(i, j int) bool { return s.cmp(batch[i], batch[j]) < 0 })
		exhausted := len(batch) < s.opts.MaxInMemory

		if exhausted && len(s.chunkPaths) == 0 {
			s.buf = batch
			s.total = len(batch)
			s.useMemory = true
			break
		}
		if len(batch) > 0 {
			path, err := s.spill(batch)
			if err != nil {
				s.removeChunks()
				s.base.MarkError()
				return err
			}
			s.chunkPaths = append(s.chunkPaths, path)
		}
		if exhausted {
			break
		}
	}

	if !s.useMemory {
		readers := make([]pipe.Sync[T], len(s.chunkPaths))
		for i, path := range s.chunkPaths {
			readers[i] = source.NewFile(path, s.codec.Decoders, codec.ReadOptions{Compression: s.opts.Compression})
		}
		merged := sortmerge.NewMerge(s.cmp, readers...)
		if err := merged.Start(ctx); err != nil {
			s.removeChunks()
			s.base.MarkError()
			return err
		}
		s.merged = merged
	}
	return nil
}

func (s *Sort[T]) spill(batch []T) (string, error) {
	dir := s.opts.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	name := fmt.Sprintf("%s%05d%s", s.opts.Prefix, len(s.chunkPaths), s.opts.Compression.Suffix())
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", pipeerr.Wrap("extsort.Sort.spill", err)
	}
	enc, err := s.codec.Encoders.NewEncoder(f, codec.WriteOptions{Compression: s.opts.Compression, Temp: true})
	if err != nil {
		f.Close()
		os.Remove(path)
		return "", pipeerr.New(pipeerr.KindValidation, "extsort.Sort.spill", err)
	}
	for _, item := range batch {
		if err := enc.Encode(item); err != nil {
			enc.Close()
			f.Close()
			os.Remove(path)
			return "", pipeerr.New(pipeerr.KindValidation, "extsort.Sort.spill", err)
		}
	}
	if err := enc.Close(); err != nil {
		f.Close()
		os.Remove(path)
		return "", pipeerr.Wrap("extsort.Sort.spill", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", pipeerr.Wrap("extsort.Sort.spill", err)
	}
	s.base.Debug().Str("path", path).Int("items", len(batch)).Msg("extsort.Sort: spilled run")
	return path, nil
}

func (s *Sort[T]) removeChunks() {
	for _, p := range s.chunkPaths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			s.base.Warn().Str("path", p).Err(err).Msg("extsort.Sort: failed to remove spill chunk")
			continue
		}
		s.base.Debug().Str("path", p).Msg("extsort.Sort: removed spill chunk")
	}
}

func (s *Sort[T]) produce() (item T, ok bool, err error) {
	if s.useMemory {
		if s.pos >= len(s.buf) {
			s.base.MarkDone()
			return item, false, nil
		}
		item = s.buf[s.pos]
		s.pos++
		s.base.SetProgress(float64(s.pos) / float64(s.total))
		return item, true, nil
	}

	item, ok, err = s.merged.Next()
	if err != nil {
		s.base.MarkError()
		return item, false, err
	}
	if !ok {
		s.base.MarkDone()
		return item, false, nil
	}
	s.base.SetProgress(s.merged.Progress())
	return item, true, nil
}

func (s *Sort[T]) Next() (T, bool, error) { return s.la.Next() }
func (s *Sort[T]) Peek() (T, bool, error) { return s.la.Peek() }
func (s *Sort[T]) Progress() float64      { return s.base.Progress() }

// Close releases the merged chunk readers (if any), the upstream input,
// and unconditionally removes every spilled chunk file, even if a prior
// error left some unread.
func (s *Sort[T]) Close() error {
	return s.base.Close(func() error {
		defer s.removeChunks()
		closers := []pipe.Closer{s.in}
		if s.merged != nil {
			closers = append(closers, s.merged)
		}
		return pipe.CloseAll(closers)
	})
}

var _ pipe.Sync[int] = (*Sort[int])(nil)
