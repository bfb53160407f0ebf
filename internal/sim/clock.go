package sim

import (
	"sync/atomic"
	"time"
)

// Clock counts simulation cycles. Cycle n happens at simulated time
// n * period; wall-clock time never enters the computation, so runs are
// reproducible.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq    atomic.Int64
	period time.Duration
}

// NewClock creates a clock at cycle 0.
func NewClock(period time.Duration) *Clock {
	return &Clock{period: period}
}

// NewClockAt creates a clock positioned at cycle start.
func NewClockAt(period time.Duration, start int64) *Clock {
	c := &Clock{period: period}
	c.seq.Store(start)
	return c
}

// Next advances the clock and returns the new cycle.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current cycle without advancing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// Period returns the simulated duration of one cycle.
func (c *Clock) Period() time.Duration {
	return c.period
}

// Seconds returns the simulated time of cycle n.
func (c *Clock) Seconds(n int64) float64 {
	return float64(n) * c.period.Seconds()
}
