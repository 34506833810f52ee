package engine

import "sync/atomic"

// Clock numbers sync cycles. Every Sync call, successful or not, takes the
// next number so log lines of one cycle can be correlated.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock whose next value is start+1.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next cycle number.
// Calls are linearizable - each call returns a unique, increasing value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last number handed out without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
