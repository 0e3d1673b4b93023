package sm

// Event is a one-bit completion flag. Producers (timers, drives) signal it,
// a StateMachine consumes it.
type Event struct {
	name     string
	signaled bool
}

func NewEvent(name string) *Event {
	return &Event{name: name}
}

func (e *Event) Name() string {
	return e.name
}

// Signal marks the event as fired. Signaling an already signaled event has
// no further effect.
func (e *Event) Signal() {
	e.signaled = true
}

func (e *Event) Clear() {
	e.signaled = false
}

func (e *Event) IsSignaled() bool {
	return e.signaled
}

func (e *Event) String() string {
	if e.signaled {
		return e.name + "(signaled)"
	}
	return e.name
}
