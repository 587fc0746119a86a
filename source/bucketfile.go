package source

import (
	"context"

	"github.com/bgpfix/dataflow/bucket"
	"github.com/bgpfix/dataflow/codec"
	"github.com/bgpfix/dataflow/ops"
	"github.com/bgpfix/dataflow/pipe"
	"github.com/bgpfix/dataflow/pipeerr"
	"github.com/bgpfix/dataflow/sched"
)

// BucketFile is the bucket-backed analogue of File: a Sync[T] source
// reading one blob from a bucket.Bucket through a codec.DecoderFactory.
type BucketFile[T any] struct {
	base    *pipe.Base
	bkt     bucket.Bucket
	path    string
	factory codec.DecoderFactory[T]
	opts    codec.ReadOptions

	stream bucket.SizedStream
	dec    codec.Decoder[T]
	la     *pipe.Lookahead[T]
}

func NewBucketFile[T any](bkt bucket.Bucket, path string, factory codec.DecoderFactory[T], opts codec.ReadOptions) *BucketFile[T] {
	if opts.Compression == codec.None {
		opts.Compression = codec.DetectCompression(path)
	}
	f := &BucketFile[T]{base: pipe.NewBase(nil), bkt: bkt, path: path, factory: factory, opts: opts}
	f.la = pipe.NewLookahead(f.produce)
	return f
}

func (f *BucketFile[T]) Start(ctx context.Context) error {
	if err := f.base.Start(); err != nil {
		return err
	}
	bufSize := f.opts.BufferSize
	if bufSize <= 0 {
		bufSize = codec.DefaultBufferSize
	}
	stream, err := f.bkt.OpenRead(ctx, f.path, bufSize)
	if err != nil {
		f.base.MarkError()
		return pipeerr.Wrap("source.BucketFile.Start", err)
	}
	dec, err := f.factory.NewDecoder(stream, f.opts)
	if err != nil {
		stream.Close()
		f.base.MarkError()
		return pipeerr.New(pipeerr.KindValidation, "source.BucketFile.Start", err)
	}
	f.stream = stream
	f.dec = dec
	return nil
}

func (f *BucketFile[T]) produce() (item T, ok bool, err error) {
	item, ok, err = f.dec.Decode()
	if err != nil {
		f.base.MarkError()
		return item, false, pipeerr.New(pipeerr.KindValidation, "source.BucketFile.Decode", err)
	}
	if !ok {
		f.base.MarkDone()
		return item, false, nil
	}
	return item, true, nil
}

func (f *BucketFile[T]) Next() (T, bool, error) { return f.la.Next() }
func (f *BucketFile[T]) Peek() (T, bool, error) { return f.la.Peek() }
func (f *BucketFile[T]) Progress() float64      { return f.base.Progress() }

func (f *BucketFile[T]) Close() error {
	return f.base.Close(func() error {
		var errs []error
		if f.dec != nil {
			if err := f.dec.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if f.stream != nil {
			if err := f.stream.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		return joinErrs(errs)
	})
}

var _ pipe.Sync[int] = (*BucketFile[int])(nil)

// bucketBlob adapts bucket.BlobMeta to sched.Sized for LPT sharding.
type bucketBlob struct{ meta bucket.BlobMeta }

func (b bucketBlob) SchedSize() int64 { return b.meta.Size }

// ListBucketShardBlobs lists blobs under prefix/regex and, if shard.Total
// > 1, returns only those assigned to shard.Index under discipline.
func ListBucketShardBlobs(ctx context.Context, bkt bucket.Bucket, prefix, regex string, shard ShardSpec, discipline ShardDiscipline) ([]bucket.BlobMeta, error) {
	it, err := bkt.List(ctx, prefix, regex)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var all []bucket.BlobMeta
	for {
		meta, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		all = append(all, meta)
	}

	if shard.Total <= 1 {
		return all, nil
	}

	switch discipline {
	case ShardByVolume:
		blobs := make([]bucketBlob, len(all))
		for i, m := range all {
			blobs[i] = bucketBlob{meta: m}
		}
		assignment := sched.Balance(blobs, shard.Total)
		var out []bucket.BlobMeta
		for i, s := range assignment {
			if s == shard.Index {
				out = append(out, all[i])
			}
		}
		return out, nil
	default:
		var out []bucket.BlobMeta
		for i, m := range all {
			if i%shard.Total == shard.Index {
				out = append(out, m)
			}
		}
		return out, nil
	}
}

// NewMultiFileBucket builds a Sync[T] that concatenates the decoders for
// every blob ListBucketShardBlobs selects, the bucketed counterpart to
// NewMultiFile.
func NewMultiFileBucket[T any](ctx context.Context, bkt bucket.Bucket, prefix, regex string, shard ShardSpec, discipline ShardDiscipline, factory codec.DecoderFactory[T], readOpts codec.ReadOptions) (pipe.Sync[T], error) {
	blobs, err := ListBucketShardBlobs(ctx, bkt, prefix, regex, shard, discipline)
	if err != nil {
		return nil, err
	}
	inputs := make([]pipe.Sync[T], len(blobs))
	for i, m := range blobs {
		inputs[i] = NewBucketFile(bkt, bkt.Path(m), factory, readOpts)
	}
	return ops.NewConcat(inputs...), nil
}
