package shuffle

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/bgpfix/dataflow/pipeerr"
	"github.com/puzpuzpuz/xsync/v3"
)

var (
	errBadHandshake  = errors.New("shuffle: expected handshake frame")
	errAcceptTimeout = errors.New("shuffle: timed out waiting for peers to connect")
)

// handshake is the first frame every connection exchanges: the dialing
// side announces its own WorkerAddr so the accepting side can match the
// connection to a peer in its canonical worker list.
func writeHandshake(fw *frameWriter, self WorkerAddr) error {
	return fw.WriteFrame([]byte(self.String()))
}

func readHandshake(fr *frameReader) (WorkerAddr, error) {
	kind, payload, _, err := fr.ReadFrame()
	if err != nil {
		return WorkerAddr{}, err
	}
	if kind != frameKindData {
		return WorkerAddr{}, pipeerr.New(pipeerr.KindValidation, "shuffle.readHandshake", errBadHandshake)
	}
	addr, err := parseWorkerAddr(string(payload))
	if err != nil {
		return WorkerAddr{}, pipeerr.New(pipeerr.KindValidation, "shuffle.readHandshake", err)
	}
	return addr, nil
}

// topology listens for inbound peer connections and dials every other
// worker in the canonical list, implementing the
// "one server socket + one outbound client connection per peer" full
// mesh of spec.md §4.10.
type topology struct {
	self      WorkerAddr
	selfShard int
	workers   []WorkerAddr // canonical order, len == N

	listener net.Listener

	// registry of inbound connections, keyed by the remote worker's
	// canonical address string — an xsync.MapOf per SPEC_FULL.md's
	// dependency wiring for "the shuffle server's per-connection
	// registry".
	inbound *xsync.MapOf[string, *lz4Conn]

	outbound map[int]*outboundPeer // by shard index, excludes selfShard

	logger *zerolog.Logger
}

func newTopology(self WorkerAddr, selfShard int, workers []WorkerAddr, logger *zerolog.Logger) *topology {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &topology{
		self: self, selfShard: selfShard, workers: workers,
		inbound:  xsync.NewMapOf[*lz4Conn](),
		outbound: make(map[int]*outboundPeer),
		logger:   logger,
	}
}

// listen opens the local server socket. Call before dial so peers
// racing to connect to us never find a closed port.
func (t *topology) listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		t.logger.Error().Str("addr", addr).Err(err).Msg("shuffle.topology: listen failed")
		return pipeerr.Wrap("shuffle.topology.listen", err)
	}
	t.logger.Debug().Str("addr", addr).Msg("shuffle.topology: listening")
	t.listener = ln
	return nil
}

// acceptAll accepts exactly len(workers)-1 inbound connections (one per
// peer), running onConn for each as soon as its handshake is read. It
// returns once every expected peer has connected or deadline elapses.
func (t *topology) acceptAll(ctx context.Context, deadline time.Duration, onConn func(peer WorkerAddr, conn *lz4Conn)) error {
	expect := len(t.workers) - 1
	if expect <= 0 {
		return nil
	}
	type result struct {
		peer WorkerAddr
		conn *lz4Conn
		err  error
	}
	results := make(chan result, expect)

	go func() {
		for i := 0; i < expect; i++ {
			conn, err := t.listener.Accept()
			if err != nil {
				t.logger.Warn().Err(err).Msg("shuffle.topology: accept failed")
				results <- result{err: pipeerr.Wrap("shuffle.topology.accept", err)}
				continue
			}
			go func(c net.Conn) {
				lc := newLZ4Conn(c)
				fr := newFrameReader(lc)
				peer, err := readHandshake(fr)
				if err != nil {
					t.logger.Warn().Err(err).Msg("shuffle.topology: handshake failed on accepted connection")
					lc.Close()
					results <- result{err: err}
					return
				}
				t.logger.Debug().Str("peer", peer.String()).Msg("shuffle.topology: accepted peer connection")
				t.inbound.Store(peer.String(), lc)
				results <- result{peer: peer, conn: lc}
			}(conn)
		}
	}()

	timer := time.NewTimer(deadline)
	defer timer.Stop()
	for i := 0; i < expect; i++ {
		select {
		case r := <-results:
			if r.err != nil {
				return r.err
			}
			onConn(r.peer, r.conn)
		case <-timer.C:
			t.logger.Error().Int("expected", expect).Int("got", i).Msg("shuffle.topology: timed out waiting for peers to connect")
			return pipeerr.New(pipeerr.KindTimeout, "shuffle.topology.acceptAll", errAcceptTimeout)
		case <-ctx.Done():
			return pipeerr.Wrap("shuffle.topology.acceptAll", ctx.Err())
		}
	}
	t.logger.Debug().Int("peers", expect).Msg("shuffle.topology: all peers accepted")
	return nil
}

// dialAll opens one outbound connection to every peer, retrying with
// backoff up to dialTimeout per peer (the peer's listener may not be up
// yet).
func (t *topology) dialAll(ctx context.Context, dialTimeout time.Duration, low, high int) error {
	for shard, addr := range t.workers {
		if shard == t.selfShard {
			continue
		}
		conn, err := dialWithRetry(ctx, addr.String(), dialTimeout)
		if err != nil {
			t.logger.Error().Str("peer", addr.String()).Err(err).Msg("shuffle.topology: dial failed")
			return err
		}
		t.logger.Debug().Str("peer", addr.String()).Msg("shuffle.topology: dialed peer")
		peer := newOutboundPeer(addr, conn, low, high)
		if err := writeHandshake(peer.fw, t.self); err != nil {
			conn.Close()
			return err
		}
		if err := peer.fw.Flush(); err != nil {
			conn.Close()
			return err
		}
		t.outbound[shard] = peer
	}
	return nil
}

func dialWithRetry(ctx context.Context, addr string, timeout time.Duration) (net.Conn, error) {
	deadline := time.Now().Add(timeout)
	backoff := 10 * time.Millisecond
	for {
		conn, err := net.DialTimeout("tcp", addr, timeout)
		if err == nil {
			return conn, nil
		}
		if time.Now().After(deadline) {
			return nil, pipeerr.New(pipeerr.KindTimeout, "shuffle.dialWithRetry", err)
		}
		select {
		case <-ctx.Done():
			return nil, pipeerr.Wrap("shuffle.dialWithRetry", ctx.Err())
		case <-time.After(backoff):
		}
		if backoff < 500*time.Millisecond {
			backoff *= 2
		}
	}
}

func (t *topology) close() error {
	var errs []error
	if t.listener != nil {
		if err := t.listener.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, p := range t.outbound {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	t.inbound.Range(func(key string, conn *lz4Conn) bool {
		if err := conn.Close(); err != nil {
			errs = append(errs, err)
		}
		return true
	})
	if err := joinErrs(errs); err != nil {
		t.logger.Warn().Err(err).Msg("shuffle.topology: close encountered errors")
		return err
	}
	t.logger.Debug().Msg("shuffle.topology: closed")
	return nil
}
