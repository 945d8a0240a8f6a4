package clock

import (
	"sync"
	"time"
)

// Clock is the engine's only source of "now". All values are UTC.
type Clock interface {
	Now() time.Time
}

// System reads the wall clock.
type System struct{}

func (System) Now() time.Time {
	return time.Now().UTC()
}

// Manual is a controllable clock for tests and replays.
type Manual struct {
	mu      sync.Mutex
	current time.Time
}

func NewManual(start time.Time) *Manual {
	return &Manual{current: start.UTC()}
}

func (c *Manual) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Set moves the clock to t.
func (c *Manual) Set(t time.Time) {
	c.mu.Lock()
	c.current = t.UTC()
	c.mu.Unlock()
}

// Advance moves the clock forward by d and returns the new time.
func (c *Manual) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
	return c.current
}
