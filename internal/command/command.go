package command

import (
	"time"

	"maneuver-service/internal/pid"
	"maneuver-service/internal/robot"
	"maneuver-service/internal/sm"
)

// Dashboard lines owned by commands. The host renders the test name and
// command state on StateLine.
const (
	StateLine   = 8
	InfoLine    = 9
	PidInfoLine = 10
)

// Command is one maneuver or diagnostic stepped by the control loop.
type Command interface {
	Name() string
	// Periodic runs one tick and reports whether the command had already
	// finished when the tick began. elapsed is the time since the run
	// started.
	Periodic(elapsed time.Duration) bool
	// State describes the current state for display.
	State() string
	// Disabled returns why the command cannot run, or "" when it can.
	Disabled() string
	// Cancel halts the command and zeroes the outputs it owns.
	Cancel()
}

// step is the dispatch path shared by every command. The completion flag is
// taken before the body runs so a command reports done on the tick after it
// stops itself.
func step[S comparable](m *sm.StateMachine[S], body func(S)) bool {
	done := !m.IsEnabled()
	m.Dispatch(body)
	return done
}

// traceDrives emits telemetry for every drive still regulating.
func traceDrives(r *robot.Robot, elapsed time.Duration, drives ...*pid.Drive) {
	line := PidInfoLine
	traced := false
	for _, d := range drives {
		if d == nil || (!d.IsActive() && !d.IsHolding()) {
			continue
		}
		if !traced {
			r.TraceBattery(elapsed)
			traced = true
		}
		for _, c := range d.Controllers(pid.AxisAll) {
			r.TracePid(elapsed, c)
			r.DisplayPidInfo(line, c)
			line += 2
		}
	}
}

// driveTarget fills in the configured drive timeout.
func driveTarget(r *robot.Robot, t pid.Target) pid.Target {
	t.Timeout = r.Config().DriveTimeout
	return t
}
