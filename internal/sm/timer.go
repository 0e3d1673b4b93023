package sm

import "time"

// Timer is a one-shot deadline that signals an Event. At most one deadline
// is pending; Set replaces any earlier one.
type Timer struct {
	name     string
	clock    Clock
	deadline time.Duration
	armed    bool
	event    *Event
}

func NewTimer(name string, clock Clock) *Timer {
	return &Timer{name: name, clock: clock}
}

func (t *Timer) Name() string {
	return t.name
}

// Set arms the timer to fire d from now. The event is cleared so a stale
// signal from a previous use cannot complete the new wait.
func (t *Timer) Set(d time.Duration, ev *Event) {
	if ev != nil {
		ev.Clear()
	}
	t.deadline = t.clock.Now() + d
	t.event = ev
	t.armed = true
}

// Cancel drops the pending deadline without signaling.
func (t *Timer) Cancel() {
	t.armed = false
	t.event = nil
}

func (t *Timer) IsActive() bool {
	return t.armed
}

// Remaining returns the time left before expiry, or zero when idle.
func (t *Timer) Remaining() time.Duration {
	if !t.armed {
		return 0
	}
	if r := t.deadline - t.clock.Now(); r > 0 {
		return r
	}
	return 0
}

// Tick fires the timer on the first call at or after the deadline.
func (t *Timer) Tick(now time.Duration) {
	if !t.armed || now < t.deadline {
		return
	}
	t.armed = false
	ev := t.event
	t.event = nil
	if ev != nil {
		ev.Signal()
	}
}
