package fsm

import (
	"time"

	"github.com/librescoot/librefsm"
)

// StopTimeout is how long the base is left to coast with outputs zeroed
// before an aborted run is reported done.
const StopTimeout = 500 * time.Millisecond

// NewDefinition creates the run lifecycle FSM definition.
func NewDefinition(actions Actions) *librefsm.Definition {
	return librefsm.NewDefinition().
		State(StateIdle).
		State(StateRunning,
			librefsm.WithOnEnter(actions.EnterRunning),
			librefsm.WithOnExit(actions.ExitRunning),
		).
		State(StateStopping,
			librefsm.WithTimeout(StopTimeout, EvStopTimeout),
			librefsm.WithOnEnter(actions.EnterStopping),
		).
		State(StateDone,
			librefsm.WithOnEnter(actions.EnterDone),
		).

		// === Transitions ===

		Transition(StateIdle, EvStart, StateRunning,
			librefsm.WithGuard(actions.CanStart),
		).
		Transition(StateDone, EvStart, StateRunning,
			librefsm.WithGuard(actions.CanStart),
		).
		Transition(StateRunning, EvCommandDone, StateDone).
		Transition(StateRunning, EvAbort, StateStopping,
			librefsm.WithAction(actions.OnAbort),
		).
		Transition(StateStopping, EvStopTimeout, StateDone).

		Initial(StateIdle)
}
