package engine

import (
	"sync/atomic"
	"time"
)

// Clock hands out the seq stamped on each TriggerRecord. Seqs start at 1
// and never repeat, so a replayed history carries the same seqs as the
// recording. Clock is safe for concurrent use.
type Clock struct {
	last atomic.Int64
}

// NewClock returns a clock whose first seq is 1.
func NewClock() *Clock {
	return NewClockAt(0)
}

// NewClockAt returns a clock that resumes after seq last, typically the
// final seq of a restored history.
func NewClockAt(last int64) *Clock {
	c := new(Clock)
	c.last.Store(last)
	return c
}

// Next advances the clock and returns the new seq.
func (c *Clock) Next() int64 { return c.last.Add(1) }

// Current returns the most recently issued seq, or the starting point if
// none has been issued.
func (c *Clock) Current() int64 { return c.last.Load() }

// TimeSource supplies the timestamp recorded on each TriggerRecord.
// Scenarios inject a stepping source so histories are reproducible.
type TimeSource interface {
	Now() time.Time
}

type systemTime struct{}

func (systemTime) Now() time.Time { return time.Now() }
