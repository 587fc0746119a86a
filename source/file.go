package source

import (
	"context"
	"os"

	"github.com/bgpfix/dataflow/codec"
	"github.com/bgpfix/dataflow/pipe"
	"github.com/bgpfix/dataflow/pipeerr"
)

// File is a Sync[T] source reading items from a single path through a
// codec.DecoderFactory[T]. Compression is auto-detected from the path's
// suffix unless opts.Compression is set explicitly — the same
// filepath.Ext-driven choice as the teacher's mrt.Reader.ReadFromPath,
// generalized from its fixed bzip2/gzip pair to the engine's full
// codec.Compression set.
type File[T any] struct {
	base    *pipe.Base
	path    string
	factory codec.DecoderFactory[T]
	opts    codec.ReadOptions

	f   *os.File
	dec codec.Decoder[T]
	la  *pipe.Lookahead[T]

	sizeBytes int64
	readItems int64
}

// NewFile returns a File source over path, decoded with factory.
func NewFile[T any](path string, factory codec.DecoderFactory[T], opts codec.ReadOptions) *File[T] {
	if opts.Compression == codec.None {
		opts.Compression = codec.DetectCompression(path)
	}
	f := &File[T]{base: pipe.NewBase(nil), path: path, factory: factory, opts: opts}
	f.la = pipe.NewLookahead(f.produce)
	return f
}

func (f *File[T]) Start(ctx context.Context) error {
	if err := f.base.Start(); err != nil {
		return err
	}

	fh, err := os.Open(f.path)
	if err != nil {
		f.base.MarkError()
		return pipeerr.Wrap("source.File.Start", err)
	}
	if info, statErr := fh.Stat(); statErr == nil {
		f.sizeBytes = info.Size()
	}

	dec, err := f.factory.NewDecoder(fh, f.opts)
	if err != nil {
		fh.Close()
		f.base.MarkError()
		return pipeerr.New(pipeerr.KindValidation, "source.File.Start", err)
	}

	f.f = fh
	f.dec = dec
	return nil
}

func (f *File[T]) produce() (item T, ok bool, err error) {
	item, ok, err = f.dec.Decode()
	if err != nil {
		f.base.MarkError()
		return item, false, pipeerr.New(pipeerr.KindValidation, "source.File.Decode", err)
	}
	if !ok {
		f.base.MarkDone()
		return item, false, nil
	}
	f.readItems++
	return item, true, nil
}

func (f *File[T]) Next() (T, bool, error) { return f.la.Next() }
func (f *File[T]) Peek() (T, bool, error) { return f.la.Peek() }
func (f *File[T]) Progress() float64      { return f.base.Progress() }

func (f *File[T]) Close() error {
	return f.base.Close(func() error {
		var errs []error
		if f.dec != nil {
			if err := f.dec.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if f.f != nil {
			if err := f.f.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		return joinErrs(errs)
	})
}

var _ pipe.Sync[int] = (*File[int])(nil)
