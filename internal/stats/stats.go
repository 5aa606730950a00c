// Copyright 2017, Kerby Shedden and the Muscato contributors.

// Package stats periodically logs window occupancy, the way the teacher's
// muscato_readstats binary periodically summarises match statistics. It is
// a diagnostic convenience with no effect on detection.
package stats

import (
	"context"
	"log"
	"time"

	"github.com/kshedden/bruteguard/internal/window"
)

// Reporter logs a one-line occupancy summary for every window on each tick.
type Reporter struct {
	Counters *window.Counters
	Logger   *log.Logger
	Interval time.Duration
}

// Run logs a summary every Interval until ctx is cancelled.
func (r *Reporter) Run(ctx context.Context) {
	if r.Interval <= 0 {
		r.Interval = 30 * time.Second
	}
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.logOnce()
		}
	}
}

func (r *Reporter) logOnce() {
	for i := 0; i < r.Counters.Len(); i++ {
		nonzero, max := r.Counters.Occupancy(i)
		r.Logger.Printf("window %d: occupied=%d max=%d threshold=%d", i, nonzero, max, r.Counters.Threshold(i))
	}
}
