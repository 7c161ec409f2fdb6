package testfixtures

import (
	"sync"
	"time"
)

var referenceTime = time.Date(2025, time.March, 14, 10, 0, 0, 0, time.UTC)

// ReferenceTime is the instant every fixture clock starts from unless told
// otherwise. It sits mid-morning so hold windows never straddle midnight.
func ReferenceTime() time.Time {
	return referenceTime
}

// Clock is a manually driven time source shared by services under test.
type Clock struct {
	mu      sync.Mutex
	current time.Time
}

// NewClock returns a clock set to start, or to ReferenceTime when start is zero.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{current: start}
}

// Now returns the clock's current instant.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// NowFunc returns Now for injection into Options.Now. A nil clock yields time.Now.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d and returns the new instant.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
	return c.current
}

// AdvancePast moves the clock just beyond deadline, typically a slot's
// ExpiresAt. It never moves the clock backwards.
func (c *Clock) AdvancePast(deadline time.Time) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if next := deadline.Add(time.Millisecond); next.After(c.current) {
		c.current = next
	}
	return c.current
}
