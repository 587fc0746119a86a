// Package shuffle implements the distributed shuffle of spec.md §4.10:
// an async intermediate pipe that partitions incoming items across a
// fixed set of worker processes (including itself) and, on every
// worker, emits only the items belonging to that worker's shard.
package shuffle

import (
	"fmt"
	"net"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/bgpfix/dataflow/codec"
)

// WorkerAddr identifies one shuffle worker's listening address.
type WorkerAddr struct {
	Host string
	Port int
}

func (w WorkerAddr) String() string { return fmt.Sprintf("%s:%d", w.Host, w.Port) }

func parseWorkerAddr(s string) (WorkerAddr, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return WorkerAddr{}, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return WorkerAddr{}, err
	}
	return WorkerAddr{Host: host, Port: port}, nil
}

// canonicalOrder returns workers sorted by (host, port), per spec.md
// §4.10's "N workers canonically ordered by (host, port)" — the order
// that fixes each worker's shard index.
func canonicalOrder(workers []WorkerAddr) []WorkerAddr {
	out := make([]WorkerAddr, len(workers))
	copy(out, workers)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Host != out[j].Host {
			return out[i].Host < out[j].Host
		}
		return out[i].Port < out[j].Port
	})
	return out
}

// Config configures a Shuffler[T], matching SPEC_FULL.md's
// ShuffleConfig[T]: {Workers, LocalPort, Partition, Codec}.
type Config[T any] struct {
	// Workers lists every worker in the shuffle group, including this
	// one; canonicalized by (host, port) to assign shard indices.
	Workers []WorkerAddr
	// LocalHost/LocalPort identify this worker's entry in Workers.
	LocalHost string
	LocalPort int
	// Partition maps an item to an integer key; the shard itself is
	// |Partition(item)| mod N. NewHashPartition builds a Partition from a
	// hash function.
	Partition func(item T) int
	// Codec en/decodes one item to/from bytes for the wire.
	Codec codec.ByteCodec[T]

	// DialTimeout bounds connecting to each peer; 0 selects a default.
	DialTimeout time.Duration
	// AcceptTimeout bounds waiting for every peer to connect; 0 selects
	// a default ("a configurable deadline" per spec.md §4.10).
	AcceptTimeout time.Duration

	Logger *zerolog.Logger
}

const (
	defaultDialTimeout   = 10 * time.Second
	defaultAcceptTimeout = 30 * time.Second

	// High/low watermarks for the outbound backpressure buffer, per
	// spec.md §4.10's "e.g. 2x65536 / 10x65536 bytes" example.
	defaultLowWatermark  = 2 * 65536
	defaultHighWatermark = 10 * 65536
)

func (c Config[T]) dialTimeout() time.Duration {
	if c.DialTimeout > 0 {
		return c.DialTimeout
	}
	return defaultDialTimeout
}

func (c Config[T]) acceptTimeout() time.Duration {
	if c.AcceptTimeout > 0 {
		return c.AcceptTimeout
	}
	return defaultAcceptTimeout
}

func (c Config[T]) logger() *zerolog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	nop := zerolog.Nop()
	return &nop
}

// NewHashPartition builds a Partition function from a byte-array hash,
// per spec.md §4.10's default "hash(item) mod N" / "hash(shard_by(item))
// mod N" partitioning; n is filled in by Shuffler at Start time, so the
// returned func ignores any n baked in here and the Shuffler always
// applies "mod N" itself — Partition need only return a stable integer
// key, not an already-reduced shard index.
func NewHashPartition[T any](hash func(T) uint64) func(T) int {
	return func(item T) int {
		h := hash(item)
		if h > uint64(1<<62) {
			h &= (1 << 62) - 1 // keep it representable as a non-negative int
		}
		return int(h)
	}
}
