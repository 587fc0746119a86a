// Package observe implements spec.md's "job observer / progress &
// metrics hooks" auxiliary: a JobObserver aggregates Progress() across
// every pipe in a running pipeline on a fixed interval and tracks
// item-size/latency percentiles via quantile.Digest, publishing a
// snapshot to registered handlers instead of making callers poll every
// pipe themselves. The handler-registration shape (a keep-or-drop
// HandlerFunc, sorted by priority) is grounded on the teacher's
// pipe.Options.AddHandler/OnEvent pub-sub.
package observe

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bgpfix/dataflow/quantile"
)

// Progresser is anything reporting fractional completion in [0, 1], a
// supertype of pipe.Sync/pipe.Async/pipe.Terminal's shared Progress()
// method — JobObserver only needs that one method, not the full pipe
// contract, so it depends on nothing from package pipe.
type Progresser interface {
	Progress() float64
}

// Sample is one tracked pipe's progress at the moment a Tick event was
// published.
type Sample struct {
	Name     string
	Progress float64
}

// MetricSnapshot summarizes one named metric's quantile.MultiDigest at
// the moment a Tick event was published.
type MetricSnapshot struct {
	Name  string
	Count int
	Mean  float64
	P50   float64
	P90   float64
	P99   float64
	Max   float64
}

// Event is published to every registered handler on each tick.
type Event struct {
	At      time.Time
	Elapsed time.Duration
	Pipes   []Sample
	Metrics []MetricSnapshot
}

// HandlerFunc observes an Event. Returning false deregisters the
// handler, mirroring pipe.HandlerFunc's keep_handler convention.
type HandlerFunc func(ev *Event) (keep bool)

type handler struct {
	priority int
	fn       HandlerFunc
}

// JobObserver polls every tracked Progresser on Interval and publishes
// a Event to every registered handler.
type JobObserver struct {
	Interval time.Duration
	Logger   *zerolog.Logger

	mu       sync.Mutex
	pipes    []Sample
	progs    map[string]Progresser
	metrics  map[string]*quantile.MultiDigest
	handlers []handler

	started time.Time
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewJobObserver returns a JobObserver ticking at the given interval (a
// non-positive interval defaults to one second).
func NewJobObserver(interval time.Duration, logger *zerolog.Logger) *JobObserver {
	if interval <= 0 {
		interval = time.Second
	}
	return &JobObserver{
		Interval: interval,
		Logger:   logger,
		progs:    make(map[string]Progresser),
		metrics:  make(map[string]*quantile.MultiDigest),
	}
}

// logger returns o.Logger, defaulting to a no-op logger if unset.
func (o *JobObserver) logger() *zerolog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	nop := zerolog.Nop()
	return &nop
}

// Track registers p under name so every tick's Event includes its
// current Progress(). Call before Start.
func (o *JobObserver) Track(name string, p Progresser) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.progs[name] = p
}

// TrackMetric registers a percentile digest under name, tracking p50,
// p90, and p99 by default. Call before any Observe(name, ...) calls.
func (o *JobObserver) TrackMetric(name string, percentiles ...float64) {
	if len(percentiles) == 0 {
		percentiles = []float64{0.5, 0.9, 0.99}
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.metrics[name] = quantile.NewMultiDigest(percentiles...)
}

// Observe records value against the named metric's digest, registering
// a default digest for name on first use if TrackMetric wasn't called.
func (o *JobObserver) Observe(name string, value float64) {
	o.mu.Lock()
	d, ok := o.metrics[name]
	if !ok {
		d = quantile.NewMultiDigest(0.5, 0.9, 0.99)
		o.metrics[name] = d
	}
	o.mu.Unlock()
	d.Observe(value)
}

// OnTick registers fn to run on every tick, in ascending priority
// order (lower runs first), matching the teacher's handler-priority
// convention. Returns fn unchanged for chaining.
func (o *JobObserver) OnTick(priority int, fn HandlerFunc) HandlerFunc {
	o.mu.Lock()
	o.handlers = append(o.handlers, handler{priority: priority, fn: fn})
	sort.SliceStable(o.handlers, func(i, j int) bool { return o.handlers[i].priority < o.handlers[j].priority })
	o.mu.Unlock()
	return fn
}

// Start begins ticking on a background goroutine; it returns
// immediately. Stop (or ctx's cancellation) ends the loop.
func (o *JobObserver) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.done = make(chan struct{})
	o.started = time.Now()

	o.logger().Debug().Dur("interval", o.Interval).Msg("observe.JobObserver: started")

	go func() {
		defer close(o.done)
		ticker := time.NewTicker(o.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				o.publish()
			}
		}
	}()
}

// Stop cancels the tick loop and waits for it to exit.
func (o *JobObserver) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	if o.done != nil {
		<-o.done
	}
	o.logger().Debug().Msg("observe.JobObserver: stopped")
}

func (o *JobObserver) publish() {
	ev := o.Snapshot()
	o.mu.Lock()
	handlers := o.handlers[:0:0]
	handlers = append(handlers, o.handlers...)
	o.mu.Unlock()

	o.logger().Debug().Int("pipes", len(ev.Pipes)).Int("metrics", len(ev.Metrics)).Int("handlers", len(handlers)).
		Msg("observe.JobObserver: publishing tick")

	var keep []handler
	for _, h := range handlers {
		if h.fn(ev) {
			keep = append(keep, h)
		}
	}
	o.mu.Lock()
	o.handlers = keep
	o.mu.Unlock()
}

// Snapshot builds the current Event without waiting for the next tick,
// for callers that want an on-demand read (e.g. a final report after
// Stop).
func (o *JobObserver) Snapshot() *Event {
	o.mu.Lock()
	defer o.mu.Unlock()

	pipes := make([]Sample, 0, len(o.progs))
	for name, p := range o.progs {
		pipes = append(pipes, Sample{Name: name, Progress: p.Progress()})
	}
	sort.Slice(pipes, func(i, j int) bool { return pipes[i].Name < pipes[j].Name })

	metrics := make([]MetricSnapshot, 0, len(o.metrics))
	for name, d := range o.metrics {
		metrics = append(metrics, MetricSnapshot{
			Name: name, Count: d.Count(), Mean: d.Mean(),
			P50: d.Quantile(0.5), P90: d.Quantile(0.9), P99: d.Quantile(0.99),
			Max: d.Max(),
		})
	}
	sort.Slice(metrics, func(i, j int) bool { return metrics[i].Name < metrics[j].Name })

	now := time.Now()
	elapsed := now.Sub(o.started)
	return &Event{At: now, Elapsed: elapsed, Pipes: pipes, Metrics: metrics}
}
