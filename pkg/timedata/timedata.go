// Package timedata implements TIMEDATA, the network-adjusted clock
// collaborator: a median offset derived from peers' version timestamps.
// Bitcoin Core's own timedata.cpp is the model: keep a bounded sample
// set of (peer_timestamp - local_clock) offsets and trust the median
// once enough distinct peers have contributed one.
package timedata

import (
	"sort"
	"sync"
	"time"
)

// maxSamples bounds the offset sample set; Bitcoin Core uses 200, bounded
// further in practice by one sample per peer.
const maxSamples = 200

// warnThreshold is how far the median offset may drift from zero before
// the Clock refuses to apply it and keeps a zero offset (mirrors Bitcoin
// Core's 70-minute bound).
const warnThreshold = 70 * time.Minute

// Clock answers `now()` adjusted by the median offset observed across
// peers' `version.timestamp` fields, and accepts new samples via `add()`.
type Clock struct {
	mu      sync.RWMutex
	samples []time.Duration
	seen    map[string]bool
	offset  time.Duration
}

// New builds an unadjusted Clock (offset zero until enough samples arrive).
func New() *Clock {
	return &Clock{seen: make(map[string]bool)}
}

// Add records an offset sample from a peer's reported timestamp, keyed by
// peer address so a single peer cannot contribute more than once. This is
// TIMEDATA's `add(sample)`.
func (c *Clock) Add(peerAddr string, peerTimestamp time.Time) {
	offset := peerTimestamp.Sub(time.Now())

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.seen[peerAddr] {
		return
	}
	if len(c.samples) >= maxSamples {
		return
	}
	c.seen[peerAddr] = true
	c.samples = append(c.samples, offset)
	c.recomputeLocked()
}

func (c *Clock) recomputeLocked() {
	// Bitcoin Core requires at least 5 samples before trusting a median at
	// all, and ignores outlying samples from a clear minority.
	if len(c.samples) < 5 {
		c.offset = 0
		return
	}
	sorted := append([]time.Duration(nil), c.samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	median := sorted[len(sorted)/2]
	if len(sorted)%2 == 0 {
		median = (sorted[len(sorted)/2-1] + sorted[len(sorted)/2]) / 2
	}

	if median > warnThreshold || median < -warnThreshold {
		// Wildly out of step with our own clock; don't trust it, the node
		// likely has the wrong time rather than the network.
		c.offset = 0
		return
	}
	c.offset = median
}

// Now returns the local clock adjusted by the current median peer offset.
// This is TIMEDATA's `now()`.
func (c *Clock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Now().Add(c.offset)
}

// Offset returns the currently applied adjustment, mostly useful for logs
// and metrics.
func (c *Clock) Offset() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.offset
}

// SampleCount reports how many distinct peers have contributed a sample.
func (c *Clock) SampleCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.samples)
}
