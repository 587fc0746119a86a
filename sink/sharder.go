package sink

import (
	"container/list"
	"context"
	"fmt"
	"io"

	"github.com/bgpfix/dataflow/bucket"
	"github.com/bgpfix/dataflow/codec"
	"github.com/bgpfix/dataflow/pipe"
	"github.com/bgpfix/dataflow/pipeerr"
)

// ShardFunc selects the output shard (in [0, n)) for an item. By
// property, by hash, or by a monotonic sequence counter — per spec.md
// §4.11 "route items to one of many output files by item property,
// hash, or sequential key" — are all just different ShardFunc
// implementations; the sharder itself is indifferent to which.
type ShardFunc[T any] func(item T) int

// ByHash builds a ShardFunc that routes by hash(item) mod n.
func ByHash[T any](hash func(T) uint64, n int) ShardFunc[T] {
	return func(item T) int { return int(hash(item) % uint64(n)) }
}

// BySequence builds a ShardFunc that assigns shards round-robin in
// arrival order, ignoring the item's value.
func BySequence[T any](n int) ShardFunc[T] {
	next := 0
	return func(T) int {
		i := next
		next = (next + 1) % n
		return i
	}
}

// Sharder drains a Sync[T] input, routing each item via shardFn to one
// of n output files (paths produced by pathFn). Per spec.md §4.11 it
// "must not hold more compressor instances than a safe bound" — open
// shard handles are kept in an LRU of size maxOpen; evicting a shard
// closes its encoder and stream, and the shard is reopened for append
// the next time an item routes to it.
type Sharder[T any] struct {
	base    *Base
	in      pipe.Sync[T]
	bkt     bucket.Bucket
	n       int
	pathFn  func(shard int) string
	shardFn ShardFunc[T]
	factory codec.EncoderFactory[T]
	opts    codec.WriteOptions
	maxOpen int

	lru        *list.List
	handles    map[int]*list.Element
	everOpened map[int]bool
}

type shardHandle[T any] struct {
	shard   int
	stream  io.WriteCloser
	enc     codec.Encoder[T]
	opened  bool // true once the shard's file has been created at least once
}

func NewSharder[T any](in pipe.Sync[T], bkt bucket.Bucket, n int, pathFn func(shard int) string, shardFn ShardFunc[T], factory codec.EncoderFactory[T], opts codec.WriteOptions, maxOpen int) *Sharder[T] {
	if maxOpen <= 0 || maxOpen > n {
		maxOpen = n
	}
	return &Sharder[T]{
		base: NewBase(nil), in: in, bkt: bkt, n: n, pathFn: pathFn, shardFn: shardFn,
		factory: factory, opts: opts, maxOpen: maxOpen,
		lru: list.New(), handles: make(map[int]*list.Element), everOpened: make(map[int]bool),
	}
}

func (s *Sharder[T]) Start(ctx context.Context) error {
	if err := s.base.Start(); err != nil {
		return err
	}
	if err := s.in.Start(ctx); err != nil {
		s.base.MarkError()
		return err
	}
	go s.run(ctx)
	return nil
}

func (s *Sharder[T]) run(ctx context.Context) {
	for {
		item, ok, err := s.in.Next()
		if err != nil {
			s.base.Finish(err)
			return
		}
		if !ok {
			s.base.Finish(s.closeAll())
			return
		}
		shard := s.shardFn(item)
		if shard < 0 || shard >= s.n {
			s.base.Finish(pipeerr.New(pipeerr.KindValidation, "sink.Sharder", fmt.Errorf("shard %d out of range [0,%d)", shard, s.n)))
			return
		}
		h, err := s.open(ctx, shard)
		if err != nil {
			s.base.Finish(err)
			return
		}
		if err := h.enc.Encode(item); err != nil {
			s.base.Finish(pipeerr.Wrap("sink.Sharder.Encode", err))
			return
		}
	}
}

// open returns the handle for shard, opening (or reopening, in append
// mode) its backing file if it isn't currently resident, and evicting
// the least-recently-used handle first if the LRU is at capacity.
func (s *Sharder[T]) open(ctx context.Context, shard int) (*shardHandle[T], error) {
	if el, ok := s.handles[shard]; ok {
		s.lru.MoveToFront(el)
		return el.Value.(*shardHandle[T]), nil
	}

	if s.lru.Len() >= s.maxOpen {
		back := s.lru.Back()
		evict := back.Value.(*shardHandle[T])
		if err := s.closeHandle(evict); err != nil {
			return nil, pipeerr.Wrap("sink.Sharder.evict", err)
		}
		s.lru.Remove(back)
		delete(s.handles, evict.shard)
	}

	opts := s.opts
	// A shard evicted earlier must reopen in append mode so its prior
	// output isn't truncated away, even if the caller didn't ask for
	// append semantics on the stream as a whole.
	opts.Append = s.opts.Append || s.everOpened[shard]

	stream, err := s.bkt.OpenWrite(ctx, s.pathFn(shard), bucket.WriteOptions{
		BufferSize: opts.BufferSize, Append: opts.Append, Temp: opts.Temp,
	})
	if err != nil {
		return nil, pipeerr.Wrap("sink.Sharder.OpenWrite", err)
	}
	enc, err := s.factory.NewEncoder(stream, opts)
	if err != nil {
		stream.Close()
		return nil, pipeerr.New(pipeerr.KindValidation, "sink.Sharder.NewEncoder", err)
	}

	h := &shardHandle[T]{shard: shard, stream: stream, enc: enc, opened: true}
	s.everOpened[shard] = true
	el := s.lru.PushFront(h)
	s.handles[shard] = el
	return h, nil
}

func (s *Sharder[T]) closeHandle(h *shardHandle[T]) error {
	var errs []error
	if err := h.enc.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := h.stream.Close(); err != nil {
		errs = append(errs, err)
	}
	return joinErrs(errs)
}

func (s *Sharder[T]) closeAll() error {
	var errs []error
	for el := s.lru.Front(); el != nil; el = el.Next() {
		if err := s.closeHandle(el.Value.(*shardHandle[T])); err != nil {
			errs = append(errs, err)
		}
	}
	s.lru.Init()
	s.handles = make(map[int]*list.Element)
	return joinErrs(errs)
}

func (s *Sharder[T]) Wait() error      { return s.base.Wait() }
func (s *Sharder[T]) Progress() float64 { return s.in.Progress() }

func (s *Sharder[T]) Close() error {
	return s.base.Close(func() error {
		var errs []error
		if err := s.closeAll(); err != nil {
			errs = append(errs, err)
		}
		if err := s.in.Close(); err != nil {
			errs = append(errs, err)
		}
		return joinErrs(errs)
	})
}

var _ pipe.Terminal = (*Sharder[int])(nil)
