package shuffle

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/bgpfix/dataflow/pipe"
	"github.com/bgpfix/dataflow/pipeerr"
)

var (
	errSelfNotInWorkers = errors.New("shuffle: local host:port is not present in Config.Workers")
	errUnknownShard     = errors.New("shuffle: no outbound connection for shard")
)

// Shuffler is the distributed shuffle pipe of spec.md §4.10: it wraps
// an upstream Async[T], partitions every item across the N workers in
// cfg.Workers by |partition(item)| mod N, keeps items destined for
// this worker's own shard, and ships the rest to their owning peer over
// a length-prefixed, LZ4-framed TCP connection. It emits the union of
// every worker's locally-owned shard: items it produced itself plus
// items every peer routed to it.
type Shuffler[T any] struct {
	*pipe.AsyncBase[T]
	cfg  Config[T]
	in   pipe.Async[T]
	self WorkerAddr
	n    int
	top  *topology

	mu          sync.Mutex
	upstreamErr error
	upstreamEnd bool
	peersEnded  map[int]bool // by peer shard index (accept side)
	finished    bool
}

// NewShuffler wraps in, an already-constructed but not-yet-started
// upstream pipe, with the shuffle topology described by cfg.
func NewShuffler[T any](in pipe.Async[T], cfg Config[T]) *Shuffler[T] {
	return &Shuffler[T]{
		AsyncBase:  pipe.NewAsyncBase[T](cfg.logger()),
		cfg:        cfg,
		in:         in,
		peersEnded: make(map[int]bool),
	}
}

func (s *Shuffler[T]) Start(ctx context.Context) error {
	if err := s.Base.Start(); err != nil {
		return err
	}

	workers := canonicalOrder(s.cfg.Workers)
	s.n = len(workers)
	s.self = WorkerAddr{Host: s.cfg.LocalHost, Port: s.cfg.LocalPort}
	selfShard := -1
	for i, w := range workers {
		if w == s.self {
			selfShard = i
			break
		}
	}
	if selfShard < 0 {
		err := pipeerr.New(pipeerr.KindValidation, "shuffle.Shuffler.Start", errSelfNotInWorkers)
		s.NotifyError(err)
		return err
	}

	s.Info().Str("self", s.self.String()).Int("shard", selfShard).Int("workers", s.n).Msg("shuffle.Shuffler: starting topology")

	s.top = newTopology(s.self, selfShard, workers, s.Logger)
	if err := s.top.listen(":" + strconv.Itoa(s.cfg.LocalPort)); err != nil {
		s.NotifyError(err)
		return err
	}

	if err := s.top.dialAll(ctx, s.cfg.dialTimeout(), defaultLowWatermark, defaultHighWatermark); err != nil {
		s.NotifyError(err)
		return err
	}

	s.Go(func() {
		err := s.top.acceptAll(ctx, s.cfg.acceptTimeout(), func(peer WorkerAddr, conn *lz4Conn) {
			peerShard := shardOf(workers, peer)
			s.Go(func() { s.runInboundReader(peerShard, conn) })
		})
		if err != nil {
			s.Error().Err(err).Msg("shuffle.Shuffler: acceptAll failed")
			s.failOnce(err)
		}
	})

	for shard, peer := range s.top.outbound {
		shard, peer := shard, peer
		s.Go(func() { s.runOutboundWriter(shard, peer) })
	}

	s.in.SetListener(s)
	if err := s.in.Start(ctx); err != nil {
		s.NotifyError(err)
		return err
	}
	return nil
}

func shardOf(workers []WorkerAddr, addr WorkerAddr) int {
	for i, w := range workers {
		if w == addr {
			return i
		}
	}
	return -1
}

// OnNext implements pipe.Listener[T] for the upstream pipe.
func (s *Shuffler[T]) OnNext(item T) {
	shard := s.shardFor(item)
	if shard == s.selfShard() {
		s.NotifyNext(item)
		return
	}
	peer, ok := s.top.outbound[shard]
	if !ok {
		s.failOnce(pipeerr.New(pipeerr.KindInternal, "shuffle.Shuffler.OnNext", errUnknownShard))
		return
	}
	payload, err := s.cfg.Codec.EncodeBytes(item)
	if err != nil {
		s.failOnce(pipeerr.New(pipeerr.KindValidation, "shuffle.Shuffler.OnNext", err))
		return
	}
	peer.Send(payload)
}

func (s *Shuffler[T]) selfShard() int { return s.top.selfShard }

func (s *Shuffler[T]) shardFor(item T) int {
	key := s.cfg.Partition(item)
	if key < 0 {
		key = -key
	}
	return key % s.n
}

// OnDone implements pipe.Listener[T]: the upstream has no more items,
// so every outbound connection is told to flush and send its
// end-of-stream trailer. Our own NotifyDone fires once every peer has
// also told us it's done (OnDone barrier, spec.md §4.10).
func (s *Shuffler[T]) OnDone() {
	s.Debug().Msg("shuffle.Shuffler: upstream done, flushing outbound peers and waiting on barrier")
	var errs []error
	for _, peer := range s.top.outbound {
		if err := peer.Finish(); err != nil {
			errs = append(errs, err)
		}
	}
	s.mu.Lock()
	s.upstreamEnd = true
	s.upstreamErr = joinErrs(errs)
	s.checkFinishedLocked()
	s.mu.Unlock()
}

// OnError implements pipe.Listener[T]: upstream failed, so every
// outbound peer is aborted and the Shuffler fails immediately without
// waiting for the barrier.
func (s *Shuffler[T]) OnError(err error) {
	s.Error().Err(err).Msg("shuffle.Shuffler: upstream failed, aborting outbound peers")
	for _, peer := range s.top.outbound {
		peer.Abort()
	}
	s.failOnce(err)
}

func (s *Shuffler[T]) runOutboundWriter(_ int, peer *outboundPeer) {
	peer.runWriter()
}

func (s *Shuffler[T]) runInboundReader(peerShard int, conn *lz4Conn) {
	fr := newFrameReader(conn)
	runReader(fr, s.cfg.Codec.DecodeBytes, func(item T) {
		s.NotifyNext(item)
	}, func(err error) {
		s.mu.Lock()
		s.peersEnded[peerShard] = true
		if err != nil {
			s.mu.Unlock()
			s.Error().Int("peerShard", peerShard).Err(err).Msg("shuffle.Shuffler: inbound reader ended with error")
			s.failOnce(err)
			return
		}
		s.Debug().Int("peerShard", peerShard).Msg("shuffle.Shuffler: inbound reader reached clean end-of-stream")
		s.checkFinishedLocked()
		s.mu.Unlock()
	})
}

// checkFinishedLocked fires NotifyDone once the upstream has ended and
// every peer has signaled its own end-of-stream. s.mu must be held.
func (s *Shuffler[T]) checkFinishedLocked() {
	if s.finished || !s.upstreamEnd {
		return
	}
	if len(s.peersEnded) < s.n-1 {
		return
	}
	s.finished = true
	err := s.upstreamErr
	s.Debug().Int("peers", s.n-1).Msg("shuffle.Shuffler: barrier satisfied, finishing")
	go s.Finish(err)
}

func (s *Shuffler[T]) failOnce(err error) {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	s.finished = true
	s.mu.Unlock()
	s.Error().Err(err).Msg("shuffle.Shuffler: failing")
	go s.Finish(err)
}

func (s *Shuffler[T]) Close() error {
	return s.Base.Close(func() error {
		s.Debug().Msg("shuffle.Shuffler: closing")
		var errs []error
		if s.top != nil {
			if err := s.top.close(); err != nil {
				errs = append(errs, err)
			}
		}
		if err := s.in.Close(); err != nil {
			errs = append(errs, err)
		}
		return joinErrs(errs)
	})
}

var _ pipe.Async[int] = (*Shuffler[int])(nil)
var _ pipe.Listener[int] = (*Shuffler[int])(nil)

