// Package bucket defines the narrow interface the engine depends on for
// cloud object storage, per spec.md §6's "Bucket interface (consumed, not
// implemented here)". Concrete GCS/S3 clients are explicitly out of
// scope; LocalDisk below is a reference implementation over the local
// filesystem so source.MultiFile and sink.FileWriter are exercisable
// end-to-end without a real cloud SDK.
package bucket

import (
	"context"
	"io"
)

// BlobMeta describes one object a Bucket lists.
type BlobMeta struct {
	Path string
	Size int64
}

// SizedStream is a readable stream that knows its own length, so callers
// (chunked readers, progress reporters) don't need a separate stat call.
type SizedStream interface {
	io.ReadCloser
	Size() int64
}

// Bucket is the minimal surface the engine needs from an object store.
type Bucket interface {
	// List enumerates blobs whose path starts with prefix and, if regex
	// is non-empty, matches it.
	List(ctx context.Context, prefix, regex string) (Iterator, error)
	// Path returns the canonical path string for a blob, for use in
	// OpenRead/OpenWrite/Download.
	Path(b BlobMeta) string
	// OpenRead opens path for streaming reads, in chunkSize-sized pulls
	// from the backing store.
	OpenRead(ctx context.Context, path string, chunkSize int) (SizedStream, error)
	// OpenWrite opens path for streaming writes under opts.
	OpenWrite(ctx context.Context, path string, opts WriteOptions) (io.WriteCloser, error)
	// Download copies path to a local file.
	Download(ctx context.Context, path, local string) error
	// UploadAll uploads local_dir's contents under prefix, optionally
	// recursing into subdirectories, using up to parallelism concurrent
	// uploads.
	UploadAll(ctx context.Context, prefix, localDir string, parallelism int, recursive bool) error
}

// WriteOptions mirrors spec.md §6's file write options at the Bucket
// boundary (distinct from codec.WriteOptions, which governs the
// encoder/stream layered on top of whatever OpenWrite returns).
type WriteOptions struct {
	BufferSize int
	Append     bool
	Temp       bool
}

// Iterator walks a List result one BlobMeta at a time.
type Iterator interface {
	Next() (BlobMeta, bool, error)
	Close() error
}
