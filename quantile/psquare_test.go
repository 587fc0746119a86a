package quantile_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bgpfix/dataflow/quantile"
)

func TestDigestApproximatesMedianOfUniform(t *testing.T) {
	d := quantile.NewDigest(0.5)
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 10000; i++ {
		d.Observe(rng.Float64() * 100)
	}
	got := d.Quantile()
	assert.InDelta(t, 50.0, got, 3.0)
	assert.Equal(t, 10000, d.Count())
}

func TestDigestHandlesFewerThanFiveObservations(t *testing.T) {
	d := quantile.NewDigest(0.9)
	d.Observe(1)
	d.Observe(2)
	d.Observe(3)
	got := d.Quantile()
	assert.True(t, got >= 1 && got <= 3)
	assert.Equal(t, 3, d.Count())
}

func TestDigestMonotonicForConstantStream(t *testing.T) {
	d := quantile.NewDigest(0.99)
	for i := 0; i < 100; i++ {
		d.Observe(42)
	}
	assert.Equal(t, 42.0, d.Quantile())
}

func TestMultiDigestTracksSeveralPercentilesAndStats(t *testing.T) {
	m := quantile.NewMultiDigest(0.5, 0.9, 0.99)
	rng := rand.New(rand.NewSource(2))
	var sum float64
	max := -math.MaxFloat64
	for i := 0; i < 5000; i++ {
		v := rng.Float64() * 1000
		sum += v
		if v > max {
			max = v
		}
		m.Observe(v)
	}
	assert.Equal(t, 5000, m.Count())
	assert.InDelta(t, sum, m.Sum(), 1e-6)
	assert.InDelta(t, max, m.Max(), 1e-6)
	assert.InDelta(t, sum/5000, m.Mean(), 1e-6)

	p50 := m.Quantile(0.5)
	p99 := m.Quantile(0.99)
	assert.True(t, p50 < p99)
	assert.InDelta(t, 500.0, p50, 40.0)
	assert.InDelta(t, 990.0, p99, 60.0)
}

func TestMultiDigestUnknownPercentileReturnsZero(t *testing.T) {
	m := quantile.NewMultiDigest(0.5)
	m.Observe(1)
	assert.Equal(t, 0.0, m.Quantile(0.75))
}
