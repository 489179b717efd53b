package risk

import "time"

// Clock supplies the current time. Production code uses SystemClock;
// tests inject a fixed or stepping clock to drive cooldowns, daily
// resets and square-off cutoffs deterministically.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always reports the time it was set to.
type FixedClock struct {
	T time.Time
}

func (c *FixedClock) Now() time.Time { return c.T }

// Advance moves the clock forward.
func (c *FixedClock) Advance(d time.Duration) { c.T = c.T.Add(d) }
