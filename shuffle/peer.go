package shuffle

import (
	"errors"
	"fmt"
	"net"

	"github.com/bgpfix/dataflow/pipeerr"
)

var (
	errPeerAborted         = errors.New("shuffle: peer aborted the connection")
	errByteCounterMismatch = errors.New("shuffle: end-of-stream byte counter mismatch")
)

// outboundPeer is the client-role half of one connection to another
// worker: a writer goroutine drains buf and frames each payload onto
// conn, per spec.md §4.10's "one outbound client connection per peer".
type outboundPeer struct {
	addr WorkerAddr
	conn *lz4Conn
	fw   *frameWriter
	buf  *outboundBuffer

	done chan error // closed when the writer goroutine exits
}

func newOutboundPeer(addr WorkerAddr, conn net.Conn, low, high int) *outboundPeer {
	c := newLZ4Conn(conn)
	return &outboundPeer{
		addr: addr,
		conn: c,
		fw:   newFrameWriter(c),
		buf:  newOutboundBuffer(low, high),
		done: make(chan error, 1),
	}
}

// runWriter drains p.buf and writes frames until the buffer is closed,
// then emits the end-of-stream trailer and closes the connection.
func (p *outboundPeer) runWriter() {
	var err error
	for {
		payload, ok := p.buf.Pop()
		if !ok {
			break
		}
		if werr := p.fw.WriteFrame(payload); werr != nil {
			err = werr
			break
		}
	}
	if err == nil {
		err = p.fw.WriteEnd()
	}
	p.done <- err
	close(p.done)
}

// Send enqueues item (already encoded) for delivery to this peer.
func (p *outboundPeer) Send(payload []byte) { p.buf.Push(payload) }

// Finish signals no more items are coming and waits for the writer to
// flush the end-of-stream trailer.
func (p *outboundPeer) Finish() error {
	p.buf.Close()
	return <-p.done
}

func (p *outboundPeer) Abort() error {
	err := p.fw.WriteAbort()
	p.conn.Close()
	return err
}

func (p *outboundPeer) Close() error { return p.conn.Close() }

// runReader decodes items of type T off the connection via decode,
// invoking onItem for each, and onEnd exactly once when the peer sends
// its end-of-stream frame (err nil) or the connection breaks/aborts
// (err non-nil). Per spec.md §4.10, the cumulative payload bytes
// received across every data frame must match the peer's declared
// totalBytesSent trailer exactly — a mismatch is a transport integrity
// failure, not a clean end-of-stream, and is reported via onEnd instead
// of being silently accepted.
func runReader[T any](fr *frameReader, decode func([]byte) (T, error), onItem func(T), onEnd func(error)) {
	var received int64
	for {
		kind, payload, total, err := fr.ReadFrame()
		if err != nil {
			onEnd(err)
			return
		}
		switch kind {
		case frameKindData:
			received += int64(len(payload))
			item, derr := decode(payload)
			if derr != nil {
				onEnd(pipeerr.New(pipeerr.KindValidation, "shuffle.runReader.decode", derr))
				return
			}
			onItem(item)
		case frameKindEnd:
			if received != total {
				onEnd(pipeerr.New(pipeerr.KindIO, "shuffle.runReader",
					fmt.Errorf("%w: got %d, peer declared %d", errByteCounterMismatch, received, total)))
				return
			}
			onEnd(nil)
			return
		case frameKindAbort:
			onEnd(pipeerr.New(pipeerr.KindIO, "shuffle.runReader", errPeerAborted))
			return
		}
	}
}
