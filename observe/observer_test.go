package observe_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bgpfix/dataflow/observe"
)

type fakeProgress struct{ v atomic.Int64 } // fixed-point, /100

func (f *fakeProgress) Progress() float64 { return float64(f.v.Load()) / 100 }
func (f *fakeProgress) set(p float64)     { f.v.Store(int64(p * 100)) }

func TestJobObserverPublishesProgressOnTick(t *testing.T) {
	o := observe.NewJobObserver(20*time.Millisecond, nil)
	p := &fakeProgress{}
	p.set(0.25)
	o.Track("stage1", p)

	events := make(chan *observe.Event, 8)
	o.OnTick(0, func(ev *observe.Event) bool {
		events <- ev
		return true
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	o.Start(ctx)
	defer o.Stop()

	select {
	case ev := <-events:
		require.Len(t, ev.Pipes, 1)
		assert.Equal(t, "stage1", ev.Pipes[0].Name)
		assert.InDelta(t, 0.25, ev.Pipes[0].Progress, 1e-9)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a tick event")
	}
}

func TestJobObserverHandlerCanDeregisterItself(t *testing.T) {
	o := observe.NewJobObserver(10*time.Millisecond, nil)
	var calls atomic.Int32
	o.OnTick(0, func(ev *observe.Event) bool {
		calls.Add(1)
		return false // run once, then drop
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	o.Start(ctx)
	time.Sleep(120 * time.Millisecond)
	o.Stop()

	assert.Equal(t, int32(1), calls.Load())
}

func TestJobObserverTracksMetricPercentiles(t *testing.T) {
	o := observe.NewJobObserver(time.Hour, nil)
	o.TrackMetric("latency_ms", 0.5, 0.99)
	for i := 1; i <= 100; i++ {
		o.Observe("latency_ms", float64(i))
	}

	ev := o.Snapshot()
	require.Len(t, ev.Metrics, 1)
	m := ev.Metrics[0]
	assert.Equal(t, "latency_ms", m.Name)
	assert.Equal(t, 100, m.Count)
	assert.InDelta(t, 50.5, m.Mean, 1e-9)
	assert.InDelta(t, 100, m.Max, 1e-9)
	assert.True(t, m.P50 < m.P99)
}

func TestJobObserverHandlersRunInPriorityOrder(t *testing.T) {
	o := observe.NewJobObserver(5*time.Millisecond, nil)
	var order []int
	o.OnTick(2, func(ev *observe.Event) bool { order = append(order, 2); return false })
	o.OnTick(1, func(ev *observe.Event) bool { order = append(order, 1); return false })
	o.OnTick(0, func(ev *observe.Event) bool { order = append(order, 0); return false })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	o.Start(ctx)
	time.Sleep(50 * time.Millisecond)
	o.Stop()

	require.GreaterOrEqual(t, len(order), 3)
	assert.Equal(t, []int{0, 1, 2}, order[:3])
}
