package sm

import "fmt"

// StateMachine is a cooperative state holder stepped once per tick by its
// owning command. It may be parked on a single Event; while parked it is not
// ready and its state cannot advance. Consuming the event moves it to the
// state given in WaitForSingleEvent.
type StateMachine[S comparable] struct {
	name    string
	current S
	enabled bool
	ready   bool
	event   *Event
	next    S
}

func New[S comparable](name string) *StateMachine[S] {
	return &StateMachine[S]{name: name}
}

func (m *StateMachine[S]) Name() string {
	return m.name
}

// Start enables the machine in the given state. Calling Start on a running
// machine is ignored.
func (m *StateMachine[S]) Start(initial S) {
	if m.enabled {
		return
	}
	m.current = initial
	m.enabled = true
	m.ready = true
	m.event = nil
}

// Stop disables the machine. Stop is idempotent.
func (m *StateMachine[S]) Stop() {
	var zero S
	m.enabled = false
	m.ready = false
	m.event = nil
	m.current = zero
	m.next = zero
}

func (m *StateMachine[S]) IsEnabled() bool {
	return m.enabled
}

// IsReady reports whether the state body may run this tick. If a bound
// event has fired it is consumed here: the binding is dropped, the event is
// cleared and the machine moves to its next state.
func (m *StateMachine[S]) IsReady() bool {
	if !m.enabled {
		return false
	}
	if m.event != nil {
		if !m.event.IsSignaled() {
			return false
		}
		m.event.Clear()
		m.event = nil
		m.current = m.next
		m.ready = true
	}
	return m.ready
}

// WaitForSingleEvent parks the machine until ev is signaled, then moves it
// to next.
func (m *StateMachine[S]) WaitForSingleEvent(ev *Event, next S) {
	if !m.enabled || ev == nil {
		return
	}
	m.event = ev
	m.next = next
	m.ready = false
}

// SetState moves directly to s, abandoning any pending wait.
func (m *StateMachine[S]) SetState(s S) {
	if !m.enabled {
		return
	}
	m.current = s
	m.event = nil
	m.ready = true
}

// State returns the current state; ok is false once stopped.
func (m *StateMachine[S]) State() (s S, ok bool) {
	if !m.enabled {
		return s, false
	}
	return m.current, true
}

// Waiting returns the event the machine is parked on, if any.
func (m *StateMachine[S]) Waiting() *Event {
	return m.event
}

// Dispatch runs body with the current state when the machine is ready and
// reports whether it ran. It is the only path through which a state body
// executes, so a body never observes a machine that is still parked.
func (m *StateMachine[S]) Dispatch(body func(state S)) bool {
	if !m.IsReady() {
		return false
	}
	body(m.current)
	return true
}

func (m *StateMachine[S]) String() string {
	if !m.enabled {
		return "STOPPED"
	}
	if m.event != nil {
		return fmt.Sprintf("%v (waiting %s)", m.current, m.event.Name())
	}
	return fmt.Sprintf("%v", m.current)
}
