package pipe

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bgpfix/dataflow/pipeerr"
)

func TestBaseLifecycle(t *testing.T) {
	b := NewBase(nil)
	assert.Equal(t, Unstarted, b.State())

	require.NoError(t, b.Start())
	assert.Equal(t, Working, b.State())
	assert.ErrorIs(t, b.Start(), pipeerr.ErrAlreadyStarted)

	b.MarkDone()
	assert.Equal(t, Done, b.State())
	assert.Equal(t, 1.0, b.Progress())

	// MarkError after Done is a no-op: state stays Done.
	b.MarkError()
	assert.Equal(t, Done, b.State())

	closes := 0
	err := b.Close(func() error { closes++; return nil })
	require.NoError(t, err)
	assert.Equal(t, Closed, b.State())

	// Close is idempotent.
	_ = b.Close(func() error { closes++; return nil })
	assert.Equal(t, 1, closes)
}

func TestBaseProgressMonotonic(t *testing.T) {
	b := NewBase(nil)
	b.SetProgress(0.5)
	b.SetProgress(0.2) // must not regress
	assert.Equal(t, 0.5, b.Progress())
	b.SetProgress(0.75)
	assert.Equal(t, 0.75, b.Progress())
}

func TestBaseProgressConcurrent(t *testing.T) {
	b := NewBase(nil)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		p := float64(i) / 100
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.SetProgress(p)
		}()
	}
	wg.Wait()
	assert.InDelta(t, 0.99, b.Progress(), 0.011)
}
