// Package quantile implements the P² streaming quantile estimator spec.md
// names under its Auxiliaries row: a constant-memory digest of one or more
// target percentiles, updated in O(1) per observation with no sample
// storage. Grounded on eventloop/psquare.go in the joeycumines-go-utilpkg
// example pack (Jain & Chlamtac, 1985).
package quantile

import (
	"math"
	"sync"
)

// Digest is a single P² quantile estimator for a fixed target percentile
// p in [0, 1]. The zero value is not usable; construct with NewDigest.
// Digest is safe for concurrent use.
type Digest struct {
	mu sync.Mutex
	p  float64

	q  [5]float64
	n  [5]int
	np [5]float64
	dn [5]float64

	initialized bool
	count       int
	initBuf     [5]float64
}

// NewDigest returns a Digest tracking percentile p, clamped to [0, 1].
func NewDigest(p float64) *Digest {
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	return &Digest{p: p, dn: [5]float64{0, p / 2, p, (1 + p) / 2, 1}}
}

// Observe records x. O(1).
func (d *Digest) Observe(x float64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.count++
	if d.count <= 5 {
		d.initBuf[d.count-1] = x
		if d.count == 5 {
			d.initialize()
		}
		return
	}

	var k int
	switch {
	case x < d.q[0]:
		d.q[0] = x
		k = 0
	case x >= d.q[4]:
		d.q[4] = x
		k = 3
	default:
		for k = 0; k < 4; k++ {
			if d.q[k] <= x && x < d.q[k+1] {
				break
			}
		}
	}

	for i := k + 1; i < 5; i++ {
		d.n[i]++
	}
	for i := 0; i < 5; i++ {
		d.np[i] += d.dn[i]
	}

	for i := 1; i < 4; i++ {
		delta := d.np[i] - float64(d.n[i])
		if (delta >= 1 && d.n[i+1]-d.n[i] > 1) || (delta <= -1 && d.n[i-1]-d.n[i] < -1) {
			sign := 1
			if delta < 0 {
				sign = -1
			}
			qPrime := d.parabolic(i, sign)
			if d.q[i-1] < qPrime && qPrime < d.q[i+1] {
				d.q[i] = qPrime
			} else {
				d.q[i] = d.linear(i, sign)
			}
			d.n[i] += sign
		}
	}
}

func (d *Digest) initialize() {
	for i := 1; i < 5; i++ {
		key := d.initBuf[i]
		j := i - 1
		for j >= 0 && d.initBuf[j] > key {
			d.initBuf[j+1] = d.initBuf[j]
			j--
		}
		d.initBuf[j+1] = key
	}
	for i := 0; i < 5; i++ {
		d.q[i] = d.initBuf[i]
		d.n[i] = i
	}
	d.np = [5]float64{0, 2 * d.p, 4 * d.p, 2 + 2*d.p, 4}
	d.initialized = true
}

func (d *Digest) parabolic(i, sign int) float64 {
	ds := float64(sign)
	ni, niPrev, niNext := float64(d.n[i]), float64(d.n[i-1]), float64(d.n[i+1])
	term1 := ds / (niNext - niPrev)
	term2 := (ni - niPrev + ds) * (d.q[i+1] - d.q[i]) / (niNext - ni)
	term3 := (niNext - ni - ds) * (d.q[i] - d.q[i-1]) / (ni - niPrev)
	return d.q[i] + term1*(term2+term3)
}

func (d *Digest) linear(i, sign int) float64 {
	if sign == 1 {
		return d.q[i] + (d.q[i+1]-d.q[i])/float64(d.n[i+1]-d.n[i])
	}
	return d.q[i] - (d.q[i]-d.q[i-1])/float64(d.n[i]-d.n[i-1])
}

// Quantile returns the current estimate. O(1).
func (d *Digest) Quantile() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.count == 0 {
		return 0
	}
	if d.count < 5 {
		sorted := make([]float64, d.count)
		copy(sorted, d.initBuf[:d.count])
		for i := 1; i < d.count; i++ {
			key := sorted[i]
			j := i - 1
			for j >= 0 && sorted[j] > key {
				sorted[j+1] = sorted[j]
				j--
			}
			sorted[j+1] = key
		}
		idx := int(float64(d.count-1) * d.p)
		if idx >= d.count {
			idx = d.count - 1
		}
		return sorted[idx]
	}
	return d.q[2]
}

// Count returns the number of observations recorded so far.
func (d *Digest) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.count
}

// MultiDigest tracks several target percentiles plus count/sum/max/mean
// over the same observation stream, per spec.md's "item-size / latency
// percentiles" use from observe.JobObserver.
type MultiDigest struct {
	mu         sync.Mutex
	digests    []*Digest
	percentile map[float64]*Digest
	count      int
	sum        float64
	max        float64
}

// NewMultiDigest returns a MultiDigest tracking every percentile in ps.
func NewMultiDigest(ps ...float64) *MultiDigest {
	m := &MultiDigest{
		digests:    make([]*Digest, len(ps)),
		percentile: make(map[float64]*Digest, len(ps)),
		max:        -math.MaxFloat64,
	}
	for i, p := range ps {
		dg := NewDigest(p)
		m.digests[i] = dg
		m.percentile[p] = dg
	}
	return m
}

// Observe records x against every tracked percentile and the running
// count/sum/max.
func (m *MultiDigest) Observe(x float64) {
	m.mu.Lock()
	m.count++
	m.sum += x
	if x > m.max {
		m.max = x
	}
	m.mu.Unlock()

	for _, d := range m.digests {
		d.Observe(x)
	}
}

// Quantile returns the current estimate for percentile p, or 0 if p was
// not one of the percentiles passed to NewMultiDigest.
func (m *MultiDigest) Quantile(p float64) float64 {
	m.mu.Lock()
	d, ok := m.percentile[p]
	m.mu.Unlock()
	if !ok {
		return 0
	}
	return d.Quantile()
}

func (m *MultiDigest) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

func (m *MultiDigest) Sum() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sum
}

func (m *MultiDigest) Mean() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.count == 0 {
		return 0
	}
	return m.sum / float64(m.count)
}

func (m *MultiDigest) Max() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.count == 0 {
		return 0
	}
	return m.max
}
