package engine

import "sync/atomic"

// Clock is the session's logical clock. Every recorded command, sink update
// and diagnostic takes the next seq from it, so a session log has one total
// order that never depends on wall time.
//
// It is distinct from the graph's loop ID, which counts passes.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock whose next seq is start+1. Used to continue a
// session log.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next increments the clock and returns the new seq.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last seq handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
