package core

import (
	"maneuver-service/internal/messaging"
	"maneuver-service/internal/types"
)

// MessagingClient defines the Redis operations needed by TestSystem
type MessagingClient interface {
	SetCallbacks(callbacks messaging.Callbacks)
	Connect() error
	StartListening() error
	Close() error

	// Dashboard
	DisplayPrintf(line int, format string, args ...interface{})
	ClearDashboard()
	FlushDashboard() error

	// Voice feedback
	Speak(sentence string) error

	// Run reporting
	PublishRunState(test types.Test, state types.RunState, runID string) error
	PublishRunResult(runID string, test types.Test, state types.RunState, info string) error
}

// HardwareIO defines the GPIO operations needed by TestSystem. It is nil
// when running against the simulator.
type HardwareIO interface {
	Initialize() error
	Cleanup()
	WriteDigitalOutput(channel string, value bool) error
	SetInitialValue(name string, value bool)
}
