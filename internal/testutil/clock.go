package testutil

import (
	"sync"
	"time"
)

// Epoch is the default start of a DeterministicClock.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// DeterministicClock is a thread-safe wall clock for tests that advances a
// fixed step on every Tick.
//
// Each statement a scenario executes sees its own Now, so utcnow() values
// are reproducible and strictly increasing across steps.
type DeterministicClock struct {
	mu    sync.Mutex
	start time.Time
	step  time.Duration
	ticks int64
}

// NewDeterministicClock creates a clock at start that advances one second
// per Tick. A zero start means Epoch.
func NewDeterministicClock(start time.Time) *DeterministicClock {
	if start.IsZero() {
		start = Epoch
	}
	return &DeterministicClock{start: start.UTC(), step: time.Second}
}

// WithStep sets the Tick increment and returns the clock.
func (c *DeterministicClock) WithStep(step time.Duration) *DeterministicClock {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.step = step
	return c
}

// Tick advances the clock and returns the new time.
//
// The first call returns start+step.
func (c *DeterministicClock) Tick() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks++
	return c.now()
}

// Now returns the current time without advancing.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now()
}

func (c *DeterministicClock) now() time.Time {
	return c.start.Add(time.Duration(c.ticks) * c.step)
}

// Reset rewinds the clock to its start.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks = 0
}
