package shuffle_test

import (
	"context"
	"net"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bgpfix/dataflow/async"
	"github.com/bgpfix/dataflow/codec"
	"github.com/bgpfix/dataflow/shuffle"
	"github.com/bgpfix/dataflow/sink"
	"github.com/bgpfix/dataflow/source"
)

// freePort asks the OS for an available TCP port by briefly listening
// on port 0, matching the usual Go test idiom for picking unused ports.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := (&net.ListenConfig{}).Listen(context.Background(), "tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestShufflerRoutesItemsAcrossTwoWorkers(t *testing.T) {
	port0 := freePort(t)
	port1 := freePort(t)
	// Shards follow (host, port) order, so keep port0 the lower port:
	// worker 0 then owns shard 0 (even items).
	if port1 < port0 {
		port0, port1 = port1, port0
	}
	workers := []shuffle.WorkerAddr{
		{Host: "127.0.0.1", Port: port0},
		{Host: "127.0.0.1", Port: port1},
	}

	items0 := []int64{0, 1, 2, 3}
	items1 := []int64{4, 5, 6, 7}

	partition := func(v int64) int { return int(v) }

	cfg0 := shuffle.Config[int64]{
		Workers: workers, LocalHost: "127.0.0.1", LocalPort: port0,
		Partition: partition, Codec: codec.Int64Bytes,
		DialTimeout: 5 * time.Second, AcceptTimeout: 5 * time.Second,
	}
	cfg1 := cfg0
	cfg1.LocalPort = port1

	in0 := async.NewFromSync[int64](1, source.NewCollection(items0))
	in1 := async.NewFromSync[int64](1, source.NewCollection(items1))

	s0 := shuffle.NewShuffler[int64](in0, cfg0)
	s1 := shuffle.NewShuffler[int64](in1, cfg1)

	var out0, out1 []int64
	w0 := sink.NewAsyncCollectionWriter[int64](s0, &out0)
	w1 := sink.NewAsyncCollectionWriter[int64](s1, &out1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	var startErr0, startErr1 error
	wg.Add(2)
	go func() { defer wg.Done(); startErr0 = w0.Start(ctx) }()
	go func() { defer wg.Done(); startErr1 = w1.Start(ctx) }()
	wg.Wait()
	require.NoError(t, startErr0)
	require.NoError(t, startErr1)

	require.NoError(t, w0.Wait())
	require.NoError(t, w1.Wait())

	require.NoError(t, w0.Close())
	require.NoError(t, w1.Close())

	sort.Slice(out0, func(i, j int) bool { return out0[i] < out0[j] })
	sort.Slice(out1, func(i, j int) bool { return out1[i] < out1[j] })

	assert.Equal(t, []int64{0, 2, 4, 6}, out0)
	assert.Equal(t, []int64{1, 3, 5, 7}, out1)
}
