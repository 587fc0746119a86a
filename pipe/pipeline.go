package pipe

import "context"

// Pipeline wraps a Terminal sink assembled by the caller as a DAG of pipes.
// Run is the single entry point: it starts the sink (which recursively
// starts every ancestor pipe it owns), waits for completion, and always
// closes the sink afterwards, even on error.
type Pipeline struct {
	Sink Terminal
}

// NewPipeline wraps sink.
func NewPipeline(sink Terminal) *Pipeline {
	return &Pipeline{Sink: sink}
}

// Run starts the sink, blocks for its outcome, and closes it. It returns
// the first error encountered by either Start or Wait; Close's own error
// is logged by the sink rather than returned, per the propagation policy
// in spec.md §7 ("close() swallows exceptions ... to avoid masking the
// original error").
func (p *Pipeline) Run(ctx context.Context) error {
	defer p.Sink.Close()

	if err := p.Sink.Start(ctx); err != nil {
		return err
	}
	return p.Sink.Wait()
}

// MinProgress returns the minimum Progress() across ps, or 0 for an empty
// slice. Used by operators (e.g. sortmerge's union) whose own progress is
// bounded below by the slowest input.
func MinProgress(ps ...interface{ Progress() float64 }) float64 {
	if len(ps) == 0 {
		return 0
	}
	min := 1.0
	for _, p := range ps {
		if v := p.Progress(); v < min {
			min = v
		}
	}
	return min
}
