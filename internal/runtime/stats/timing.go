package stats

import (
	"sync/atomic"
	"time"
)

// Timing accumulates duration observations. The zero value is ready to use.
type Timing struct {
	count atomic.Int64
	sum   atomic.Int64
	min   atomic.Int64
	max   atomic.Int64
}

// TimingSnapshot is a point-in-time copy of a Timing, in nanoseconds.
type TimingSnapshot struct {
	Count int64 `json:"count"`
	Sum   int64 `json:"sum_ns"`
	Min   int64 `json:"min_ns"`
	Max   int64 `json:"max_ns"`
}

// Mean returns the average observed duration.
func (s TimingSnapshot) Mean() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return time.Duration(s.Sum / s.Count)
}

// Timed is implemented by nodes that carry a duration accumulator.
type Timed interface {
	Durations() TimingSnapshot
}

// Observe records one duration. Negative durations count as zero.
func (t *Timing) Observe(d time.Duration) {
	ns := int64(d)
	if ns < 0 {
		ns = 0
	}
	t.count.Add(1)
	t.sum.Add(ns)
	for {
		cur := t.max.Load()
		if ns <= cur || t.max.CompareAndSwap(cur, ns) {
			break
		}
	}
	// min holds the smallest duration plus one so that zero means unset.
	for {
		cur := t.min.Load()
		if (cur != 0 && ns+1 >= cur) || t.min.CompareAndSwap(cur, ns+1) {
			break
		}
	}
}

// Durations returns a snapshot of the accumulated observations.
func (t *Timing) Durations() TimingSnapshot {
	return TimingSnapshot{
		Count: t.count.Load(),
		Sum:   t.sum.Load(),
		Min:   max(t.min.Load()-1, 0),
		Max:   t.max.Load(),
	}
}
