package engine

import "sync/atomic"

// Clock is the logical clock that stamps trigger firings.
//
// Every firing receives a strictly increasing seq from its engine's clock.
// Seq orders firings inside one perspective independently of log
// timestamps, which may repeat across lines.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
