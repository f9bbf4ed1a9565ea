package clock

import "time"

// FakeClock is a fixed, manually advanced clock for tests.
type FakeClock struct {
	now time.Time
}

func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{now: t}
}

func (c *FakeClock) Now() time.Time {
	return c.now
}

func (c *FakeClock) Set(t time.Time) {
	c.now = t
}

func (c *FakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}
