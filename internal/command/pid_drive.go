package command

import (
	"fmt"
	"time"

	"maneuver-service/internal/pid"
	"maneuver-service/internal/robot"
	"maneuver-service/internal/sm"
)

type pidState string

const (
	pidDelay pidState = "DELAY"
	pidDrive pidState = "DRIVE"
	pidDone  pidState = "DONE"
)

// PidDrive moves by encoder odometry or turns by gyro after an optional
// delay. The caller picks the axes waited on; the remaining axes hold
// their current position.
type PidDrive struct {
	r        *robot.Robot
	delay    time.Duration
	target   pid.Target
	timer    *sm.Timer
	event    *sm.Event
	sm       *sm.StateMachine[pidState]
	disabled string
}

// NewPidDrive creates a drive by x and y inches and heading degrees,
// waiting for the given axes to settle.
func NewPidDrive(r *robot.Robot, delay time.Duration, x, y, heading float64, axes pid.AxisSet) *PidDrive {
	c := &PidDrive{
		r:     r,
		delay: delay,
		target: pid.Target{
			Axes:    axes,
			X:       x,
			Y:       y,
			Heading: heading,
		},
		timer: sm.NewTimer("pidDriveDelay", r.Scheduler.Clock()),
		event: sm.NewEvent("pidDrive"),
		sm:    sm.New[pidState]("PidDrive"),
	}
	if c.disabled = unavailableAxes(axes, r.PidDrive.Available()); c.disabled != "" {
		return c
	}
	c.sm.Start(pidDelay)
	return c
}

// unavailableAxes explains why axes cannot be driven, or returns "".
func unavailableAxes(axes, available pid.AxisSet) string {
	if axes == pid.AxisNone {
		return "No drive axis selected."
	}
	missing := axes &^ available
	switch {
	case missing == pid.AxisNone:
		return ""
	case missing == pid.AxisHeading:
		return "Gyro is disabled."
	case missing.Has(pid.AxisHeading):
		return fmt.Sprintf("Encoder %s and gyro are disabled.", missing&^pid.AxisHeading)
	default:
		return fmt.Sprintf("Encoder %s is disabled.", missing)
	}
}

func (c *PidDrive) Name() string {
	return "PidDrive"
}

func (c *PidDrive) State() string {
	return c.sm.String()
}

func (c *PidDrive) Disabled() string {
	return c.disabled
}

func (c *PidDrive) Periodic(elapsed time.Duration) bool {
	if c.disabled != "" {
		c.r.Display(InfoLine, "%s", c.disabled)
		return true
	}
	c.timer.Tick(c.r.Scheduler.Clock().Now())
	done := step(c.sm, c.dispatch)
	if c.timer.IsActive() {
		c.r.Display(InfoLine, "Delay: %.1f sec", c.timer.Remaining().Seconds())
	}
	traceDrives(c.r, elapsed, c.r.PidDrive)
	return done
}

func (c *PidDrive) dispatch(state pidState) {
	switch state {
	case pidDelay:
		if c.delay > 0 {
			c.timer.Set(c.delay, c.event)
			c.sm.WaitForSingleEvent(c.event, pidDrive)
		} else {
			c.sm.SetState(pidDrive)
		}

	case pidDrive:
		c.r.PidDrive.SetTargets(driveTarget(c.r, c.target), false, c.event)
		c.r.Logger().Infof("PID drive x=%.1f y=%.1f heading=%.1f on %s",
			c.target.X, c.target.Y, c.target.Heading, c.target.Axes)
		c.sm.WaitForSingleEvent(c.event, pidDone)

	case pidDone:
		c.r.ReportDrive(c.r.PidDrive)
		c.sm.Stop()
	}
}

func (c *PidDrive) Cancel() {
	c.sm.Stop()
	c.timer.Cancel()
	c.r.PidDrive.Cancel()
}
