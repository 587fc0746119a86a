package sink_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/bgpfix/dataflow/async"
	"github.com/bgpfix/dataflow/bucket"
	"github.com/bgpfix/dataflow/codec"
	"github.com/bgpfix/dataflow/pipe"
	"github.com/bgpfix/dataflow/sink"
	"github.com/bgpfix/dataflow/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intCodec() codec.Codec[int64] { return codec.NewInt64Codec(codec.BigEndian) }

func TestConsumerRunsCallbacksAndWaits(t *testing.T) {
	in := source.NewCollection([]int64{1, 2, 3})
	var seen []int64
	var endErr error
	ended := false
	c := sink.NewConsumer[int64](in, func(v int64) { seen = append(seen, v) }, func(err error) {
		ended = true
		endErr = err
	})
	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.Wait())
	assert.Equal(t, []int64{1, 2, 3}, seen)
	assert.True(t, ended)
	assert.NoError(t, endErr)
	require.NoError(t, c.Close())
}

func TestCollectionWriterAppendsAll(t *testing.T) {
	in := source.NewCollection([]int64{4, 5, 6})
	var out []int64
	w := sink.NewCollectionWriter[int64](in, &out)
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Wait())
	assert.Equal(t, []int64{4, 5, 6}, out)
	require.NoError(t, w.Close())
}

func TestFileWriterRoundTripsThroughFile(t *testing.T) {
	dir := t.TempDir()
	bkt := bucket.NewLocalDisk(dir)
	in := source.NewCollection([]int64{10, 20, 30})
	w := sink.NewFileWriter[int64](in, bkt, "out.bin", intCodec().Encoders, codec.WriteOptions{})
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Wait())
	require.NoError(t, w.Close())

	f := source.NewFile[int64](filepath.Join(dir, "out.bin"), intCodec().Decoders, codec.ReadOptions{})
	require.NoError(t, f.Start(context.Background()))
	var got []int64
	for {
		item, ok, err := f.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, item)
	}
	require.NoError(t, f.Close())
	assert.Equal(t, []int64{10, 20, 30}, got)
}

func TestFileWriterTempDeletesOnClose(t *testing.T) {
	dir := t.TempDir()
	bkt := bucket.NewLocalDisk(dir)
	in := source.NewCollection([]int64{1})
	w := sink.NewFileWriter[int64](in, bkt, "scratch.bin", intCodec().Encoders, codec.WriteOptions{Temp: true})
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Wait())
	require.NoError(t, w.Close())

	_, err := os.Stat(filepath.Join(dir, "scratch.bin"))
	assert.True(t, os.IsNotExist(err))
}

func TestSharderRoutesByHashAndRoundTrips(t *testing.T) {
	dir := t.TempDir()
	bkt := bucket.NewLocalDisk(dir)
	in := source.NewCollection([]int64{0, 1, 2, 3, 4, 5, 6, 7})
	const n = 3
	shardFn := sink.ByHash[int64](func(v int64) uint64 { return uint64(v) }, n)
	pathFn := func(shard int) string { return fmt.Sprintf("shard-%d.bin", shard) }
	sh := sink.NewSharder[int64](in, bkt, n, pathFn, shardFn, intCodec().Encoders, codec.WriteOptions{}, 2)
	require.NoError(t, sh.Start(context.Background()))
	require.NoError(t, sh.Wait())
	require.NoError(t, sh.Close())

	var all []int64
	for shard := 0; shard < n; shard++ {
		path := filepath.Join(dir, fmt.Sprintf("shard-%d.bin", shard))
		f := source.NewFile[int64](path, intCodec().Decoders, codec.ReadOptions{})
		require.NoError(t, f.Start(context.Background()))
		for {
			item, ok, err := f.Next()
			require.NoError(t, err)
			if !ok {
				break
			}
			assert.Equal(t, shard, int(uint64(item)%uint64(n)))
			all = append(all, item)
		}
		require.NoError(t, f.Close())
	}
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })
	assert.Equal(t, []int64{0, 1, 2, 3, 4, 5, 6, 7}, all)
}

// asyncIntSource pushes a fixed slice of int64s on a background
// goroutine, enough to exercise AsyncCollectionWriter's mutex-guarded
// append path without pulling in a real async I/O source.
type asyncIntSource struct {
	*pipe.AsyncBase[int64]
	items []int64
}

func newAsyncIntSource(items []int64) *asyncIntSource {
	return &asyncIntSource{AsyncBase: pipe.NewAsyncBase[int64](nil), items: items}
}

func (s *asyncIntSource) Start(ctx context.Context) error {
	if err := s.Base.Start(); err != nil {
		return err
	}
	s.Go(func() {
		for _, v := range s.items {
			s.NotifyNext(v)
		}
	})
	go s.Finish(nil)
	return nil
}

func (s *asyncIntSource) Close() error { return s.Base.Close(func() error { return nil }) }

func TestAsyncCollectionWriterAppendsAll(t *testing.T) {
	src := newAsyncIntSource([]int64{7, 8, 9})
	var out []int64
	w := sink.NewAsyncCollectionWriter[int64](src, &out)
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Wait())
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	assert.Equal(t, []int64{7, 8, 9}, out)
	require.NoError(t, w.Close())
}

func TestQueueWriterEnqueuesItemsThenEnd(t *testing.T) {
	in := source.NewCollection([]int64{1, 2, 3})
	q := async.NewBlockingQueue[sink.QueueEvent[int64]](0)
	w := sink.NewQueueWriter[int64](in, q)
	require.NoError(t, w.Start(context.Background()))

	ctx := context.Background()
	var got []int64
	for {
		ev, ok := q.Take(ctx)
		require.True(t, ok)
		if ev.End {
			require.NoError(t, ev.Err)
			break
		}
		got = append(got, ev.Item)
	}
	require.NoError(t, w.Wait())
	assert.Equal(t, []int64{1, 2, 3}, got)
	require.NoError(t, w.Close())
}
