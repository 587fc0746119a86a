package shuffle

import (
	"io"
	"net"

	"github.com/pierrec/lz4/v4"
)

// lz4Conn wraps a net.Conn with LZ4 frame compression on the write
// side and decompression on the read side, mirroring codec/stream.go's
// bufio-plus-compressor wrapping idiom but applied to a socket instead
// of a file.
type lz4Conn struct {
	net.Conn
	zr *lz4.Reader
	zw *lz4.Writer
}

func newLZ4Conn(c net.Conn) *lz4Conn {
	zr := lz4.NewReader(c)
	zw := lz4.NewWriter(c)
	return &lz4Conn{Conn: c, zr: zr, zw: zw}
}

func (c *lz4Conn) Read(p []byte) (int, error)  { return c.zr.Read(p) }
func (c *lz4Conn) Write(p []byte) (int, error) { return c.zw.Write(p) }

func (c *lz4Conn) Flush() error { return c.zw.Flush() }

// Close flushes and closes the LZ4 writer, then closes the underlying
// connection. It does not close the reader side separately; lz4.Reader
// holds no resources of its own beyond the wrapped net.Conn.
func (c *lz4Conn) Close() error {
	var errs []error
	if err := c.zw.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Conn.Close(); err != nil {
		errs = append(errs, err)
	}
	return joinErrs(errs)
}

var _ io.ReadWriteCloser = (*lz4Conn)(nil)
