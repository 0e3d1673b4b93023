package fsm

import "github.com/librescoot/librefsm"

// Actions defines the run lifecycle callbacks. TestSystem implements this
// interface.
type Actions interface {
	// State entry actions
	EnterRunning(c *librefsm.Context) error
	EnterStopping(c *librefsm.Context) error
	EnterDone(c *librefsm.Context) error

	// State exit actions
	ExitRunning(c *librefsm.Context) error

	// Guards
	CanStart(c *librefsm.Context) bool // True when a test is selected and its command can be built

	// Transition actions
	OnAbort(c *librefsm.Context) error
}
