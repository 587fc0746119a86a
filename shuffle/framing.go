package shuffle

import (
	"bufio"
	"fmt"
	"io"

	"github.com/bgpfix/dataflow/binary"
	"github.com/bgpfix/dataflow/pipeerr"
)

// Wire framing per spec.md §4.10: each connection carries a stream of
// frames, big-endian int32 length prefix followed by that many bytes of
// codec-encoded payload. length == frameEnd introduces an int64 total
// byte count and marks a clean end-of-stream; length == frameAbort
// marks an abnormal abort with no trailer.
const (
	frameEnd   int32 = -1
	frameAbort int32 = -2
)

// frameWriter writes length-prefixed frames to an underlying
// io.Writer, tracking the total payload bytes written so it can emit
// the frameEnd trailer spec.md §4.10 requires. If the underlying
// writer also implements Flush (e.g. lz4Conn, which buffers at the
// compression-block level below bufio), Flush/WriteEnd/WriteAbort push
// through that layer too so a blocked reader on the other end of the
// connection actually sees the bytes.
type frameWriter struct {
	w         *bufio.Writer
	flushable interface{ Flush() error }
	total     int64
}

func newFrameWriter(w io.Writer) *frameWriter {
	fw := &frameWriter{w: bufio.NewWriter(w)}
	if f, ok := w.(interface{ Flush() error }); ok {
		fw.flushable = f
	}
	return fw
}

func (fw *frameWriter) flushAll() error {
	if err := fw.w.Flush(); err != nil {
		return err
	}
	if fw.flushable != nil {
		return fw.flushable.Flush()
	}
	return nil
}

func (fw *frameWriter) WriteFrame(payload []byte) error {
	if _, err := binary.Msb.WriteInt32(fw.w, int32(len(payload))); err != nil {
		return pipeerr.Wrap("shuffle.frameWriter.WriteFrame", err)
	}
	if _, err := fw.w.Write(payload); err != nil {
		return pipeerr.Wrap("shuffle.frameWriter.WriteFrame", err)
	}
	fw.total += int64(len(payload))
	return nil
}

func (fw *frameWriter) WriteEnd() error {
	if _, err := binary.Msb.WriteInt32(fw.w, frameEnd); err != nil {
		return pipeerr.Wrap("shuffle.frameWriter.WriteEnd", err)
	}
	if _, err := binary.Msb.WriteInt64(fw.w, fw.total); err != nil {
		return pipeerr.Wrap("shuffle.frameWriter.WriteEnd", err)
	}
	return fw.flushAll()
}

func (fw *frameWriter) WriteAbort() error {
	if _, err := binary.Msb.WriteInt32(fw.w, frameAbort); err != nil {
		return pipeerr.Wrap("shuffle.frameWriter.WriteAbort", err)
	}
	return fw.flushAll()
}

func (fw *frameWriter) Flush() error { return fw.flushAll() }

// frameReader reads frames back off a connection.
type frameReader struct {
	r *bufio.Reader
}

func newFrameReader(r io.Reader) *frameReader {
	return &frameReader{r: bufio.NewReader(r)}
}

// frameKind distinguishes what ReadFrame returned.
type frameKind int

const (
	frameKindData frameKind = iota
	frameKindEnd
	frameKindAbort
)

// ReadFrame reads the next frame. For frameKindData, payload holds the
// decoded bytes. For frameKindEnd, total holds the peer's declared
// total byte count (for a cheap end-to-end sanity check).
func (fr *frameReader) ReadFrame() (kind frameKind, payload []byte, total int64, err error) {
	length, err := binary.Msb.ReadInt32(fr.r)
	if err != nil {
		return 0, nil, 0, pipeerr.Wrap("shuffle.frameReader.ReadFrame", err)
	}
	switch {
	case length == frameEnd:
		total, err = binary.Msb.ReadInt64(fr.r)
		if err != nil {
			return 0, nil, 0, pipeerr.Wrap("shuffle.frameReader.ReadFrame", err)
		}
		return frameKindEnd, nil, total, nil
	case length == frameAbort:
		return frameKindAbort, nil, 0, nil
	case length < 0:
		return 0, nil, 0, pipeerr.New(pipeerr.KindValidation, "shuffle.frameReader.ReadFrame", errInvalidFrameLength(length))
	default:
		buf := make([]byte, length)
		if _, err := io.ReadFull(fr.r, buf); err != nil {
			return 0, nil, 0, pipeerr.Wrap("shuffle.frameReader.ReadFrame", err)
		}
		return frameKindData, buf, 0, nil
	}
}

type errInvalidFrameLength int32

func (e errInvalidFrameLength) Error() string {
	return fmt.Sprintf("shuffle: invalid frame length %d", int32(e))
}
