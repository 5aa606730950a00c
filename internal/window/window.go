// Copyright 2017, Kerby Shedden and the Muscato contributors.

// Package window holds the W counting-Bloom-filter-like counter arrays that
// back the detector's sliding-window abuse counts, and implements the
// increment-and-min-query and tumbling reset operations described for the
// window counter.
package window

import (
	"math"
	"time"

	"github.com/kshedden/bruteguard/internal/clock"
	"github.com/kshedden/bruteguard/internal/hashfam"
)

// Spec pairs a window's reset period with the threshold the detector
// compares its observed count against.
type Spec struct {
	Period    time.Duration
	Threshold uint32
}

// window is one tumbling bucket: a counter array plus the instant it was
// last reset.
type window struct {
	spec      Spec
	counters  []uint32 // k banks of m counters, bank i spans [i*m, (i+1)*m)
	lastReset time.Time
}

// Counters holds all W windows, which share one (k, m) shape and one hash
// family, and supports the two operations the detector loop drives: Observe
// and MaybeReset.
type Counters struct {
	family  hashfam.Family
	windows []window
	scratch []uint64
}

// New allocates W windows, each sized k*m counters, all reset to now.
func New(family hashfam.Family, specs []Spec, now time.Time) *Counters {
	c := &Counters{
		family:  family,
		windows: make([]window, len(specs)),
		scratch: make([]uint64, family.K),
	}
	size := family.K * int(family.M)
	for i, s := range specs {
		c.windows[i] = window{
			spec:      s,
			counters:  make([]uint32, size),
			lastReset: now,
		}
	}
	return c
}

// Len returns W, the number of windows.
func (c *Counters) Len() int {
	return len(c.windows)
}

// Threshold returns window i's configured threshold.
func (c *Counters) Threshold(i int) uint32 {
	return c.windows[i].spec.Threshold
}

// Observe increments every window's k hashed positions for key by one,
// saturating at math.MaxUint32, and returns, for each window, the minimum
// counter value among its k positions after the increment. The returned
// slice has length Len() and is only valid until the next call to Observe.
func (c *Counters) Observe(key []byte) []uint32 {
	idx := c.family.Indices(key, c.scratch)
	c.scratch = idx

	counts := make([]uint32, len(c.windows))
	m := int(c.family.M)
	for wi := range c.windows {
		w := &c.windows[wi]
		min := uint32(math.MaxUint32)
		for bank, off := range idx {
			pos := bank*m + int(off)
			if w.counters[pos] < math.MaxUint32 {
				w.counters[pos]++
			}
			if w.counters[pos] < min {
				min = w.counters[pos]
			}
		}
		counts[wi] = min
	}
	return counts
}

// MaybeReset zeroes any window whose elapsed time since its last reset has
// reached or exceeded its period. A window more than one period stale still
// receives exactly one reset: there is no catch-up accounting.
func (c *Counters) MaybeReset(now time.Time) {
	for i := range c.windows {
		w := &c.windows[i]
		if clock.Elapsed(w.lastReset, now) >= int64(w.spec.Period/time.Second) {
			for j := range w.counters {
				w.counters[j] = 0
			}
			w.lastReset = now
		}
	}
}

// Occupancy reports, for window i, the count of non-zero counters and the
// maximum counter value currently held. Used only by the stats reporter; it
// does not affect detection.
func (c *Counters) Occupancy(i int) (nonzero int, max uint32) {
	for _, v := range c.windows[i].counters {
		if v != 0 {
			nonzero++
		}
		if v > max {
			max = v
		}
	}
	return nonzero, max
}
