// Package codec is the encoder/decoder factory framework described in
// spec.md §4.3: ReadOptions/WriteOptions, a byte-array (stateless,
// single-item) codec variant, a text codec, a fixed-width binary integer
// codec, and the stream wrapper that layers buffering and compression
// under any stream-based encoder/decoder.
package codec

import "fmt"

// Compression selects the algorithm a Stream applies under buffering.
type Compression int

const (
	None Compression = iota
	Gzip
	Zstd
)

func (c Compression) String() string {
	switch c {
	case None:
		return "none"
	case Gzip:
		return "gzip"
	case Zstd:
		return "zstd"
	default:
		return "unknown"
	}
}

// Suffix returns the canonical file suffix encoding c, per spec.md §6's
// "<suffix> encodes compression (e.g. .zst)" convention.
func (c Compression) Suffix() string {
	switch c {
	case Gzip:
		return ".gz"
	case Zstd:
		return ".zst"
	default:
		return ""
	}
}

// DetectCompression maps a path's extension to a Compression, the way
// mrt.Reader.ReadFromPath in the teacher repo switches on filepath.Ext to
// decide between bzip2/gzip/passthrough decoding.
func DetectCompression(path string) Compression {
	switch {
	case hasSuffix(path, ".gz"):
		return Gzip
	case hasSuffix(path, ".zst"), hasSuffix(path, ".zstd"):
		return Zstd
	default:
		return None
	}
}

func hasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}

const DefaultBufferSize = 64 * 1024

// ReadOptions configures a decoder's underlying stream.
type ReadOptions struct {
	// BufferSize is the buffered-reader size in bytes; 0 selects
	// DefaultBufferSize.
	BufferSize int
	// Compression selects decompression; None passes bytes through
	// unchanged.
	Compression Compression
}

// WriteOptions configures an encoder's underlying stream.
type WriteOptions struct {
	// BufferSize is the buffered-writer size in bytes; 0 selects
	// DefaultBufferSize.
	BufferSize int
	// Compression selects compression; None passes bytes through
	// unchanged.
	Compression Compression
	// CompressionLevel is algorithm-specific; 0 selects the algorithm's
	// default.
	CompressionLevel int
	// Append opens an existing file for append instead of truncating it.
	Append bool
	// Temp marks the file for delete-on-close (spill files, sharder
	// scratch output).
	Temp bool
}

func (o ReadOptions) bufSize() int {
	if o.BufferSize > 0 {
		return o.BufferSize
	}
	return DefaultBufferSize
}

func (o WriteOptions) bufSize() int {
	if o.BufferSize > 0 {
		return o.BufferSize
	}
	return DefaultBufferSize
}

func (o WriteOptions) String() string {
	return fmt.Sprintf("compression=%s level=%d append=%v temp=%v", o.Compression, o.CompressionLevel, o.Append, o.Temp)
}
