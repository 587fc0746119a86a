package sink

import (
	"context"
	"io"

	"github.com/bgpfix/dataflow/bucket"
	"github.com/bgpfix/dataflow/codec"
	"github.com/bgpfix/dataflow/pipe"
	"github.com/bgpfix/dataflow/pipeerr"
)

// FileWriter drains a Sync[T] input, encoding every item with factory and
// writing it to a single bucket-backed path, per spec.md §4.11: "encode
// items using a codec; respect append/temp flags; close underlying stream
// on close() even on error paths."
type FileWriter[T any] struct {
	base    *Base
	in      pipe.Sync[T]
	bkt     bucket.Bucket
	path    string
	factory codec.EncoderFactory[T]
	opts    codec.WriteOptions

	stream io.WriteCloser
	enc    codec.Encoder[T]
}

func NewFileWriter[T any](in pipe.Sync[T], bkt bucket.Bucket, path string, factory codec.EncoderFactory[T], opts codec.WriteOptions) *FileWriter[T] {
	return &FileWriter[T]{base: NewBase(nil), in: in, bkt: bkt, path: path, factory: factory, opts: opts}
}

func (w *FileWriter[T]) Start(ctx context.Context) error {
	if err := w.base.Start(); err != nil {
		return err
	}
	if err := w.in.Start(ctx); err != nil {
		w.base.MarkError()
		return err
	}

	stream, err := w.bkt.OpenWrite(ctx, w.path, bucket.WriteOptions{
		BufferSize: w.opts.BufferSize,
		Append:     w.opts.Append,
		Temp:       w.opts.Temp,
	})
	if err != nil {
		w.base.MarkError()
		return pipeerr.Wrap("sink.FileWriter.Start", err)
	}
	enc, err := w.factory.NewEncoder(stream, w.opts)
	if err != nil {
		stream.Close()
		w.base.MarkError()
		return pipeerr.New(pipeerr.KindValidation, "sink.FileWriter.Start", err)
	}

	w.stream = stream
	w.enc = enc
	go w.run()
	return nil
}

func (w *FileWriter[T]) run() {
	for {
		item, ok, err := w.in.Next()
		if err != nil {
			w.base.Finish(err)
			return
		}
		if !ok {
			w.base.Finish(nil)
			return
		}
		if err := w.enc.Encode(item); err != nil {
			w.base.Finish(pipeerr.Wrap("sink.FileWriter.Encode", err))
			return
		}
	}
}

func (w *FileWriter[T]) Wait() error      { return w.base.Wait() }
func (w *FileWriter[T]) Progress() float64 { return w.in.Progress() }

func (w *FileWriter[T]) Close() error {
	return w.base.Close(func() error {
		var errs []error
		if w.enc != nil {
			if err := w.enc.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if w.stream != nil {
			if err := w.stream.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if err := w.in.Close(); err != nil {
			errs = append(errs, err)
		}
		return joinErrs(errs)
	})
}

var _ pipe.Terminal = (*FileWriter[int])(nil)
