package fsm

import "github.com/librescoot/librefsm"

// Run lifecycle states
const (
	StateIdle     librefsm.StateID = "idle"
	StateRunning  librefsm.StateID = "running"
	StateStopping librefsm.StateID = "stopping"
	StateDone     librefsm.StateID = "done"
)

// Run lifecycle events
const (
	// External commands (from Redis or the command line)
	EvStart librefsm.EventID = "start"
	EvAbort librefsm.EventID = "abort"

	// Raised by the control loop
	EvCommandDone librefsm.EventID = "command-done"

	// Timer events
	EvStopTimeout librefsm.EventID = "stop-timeout"
)
