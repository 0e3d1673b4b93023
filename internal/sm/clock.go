package sm

import "time"

// Clock supplies the monotonic time base for timers and controllers. Time is
// expressed as elapsed duration since an arbitrary origin.
type Clock interface {
	Now() time.Duration
}

// MonotonicClock measures time since it was created.
type MonotonicClock struct {
	start time.Time
}

func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{start: time.Now()}
}

func (c *MonotonicClock) Now() time.Duration {
	return time.Since(c.start)
}

// ManualClock only moves when told to. Used by tests and the simulator.
type ManualClock struct {
	now time.Duration
}

func NewManualClock() *ManualClock {
	return &ManualClock{}
}

func (c *ManualClock) Now() time.Duration {
	return c.now
}

func (c *ManualClock) Advance(d time.Duration) {
	c.now += d
}

func (c *ManualClock) Set(now time.Duration) {
	c.now = now
}
