package command

import (
	"time"

	"maneuver-service/internal/pid"
	"maneuver-service/internal/robot"
	"maneuver-service/internal/sm"
)

type sensorState string

const (
	sensorDrive sensorState = "DRIVE"
	sensorDone  sensorState = "DONE"
)

// sensorDriveCmd arms a drive whose X or Y axis is an external sensor and
// waits on that axis plus heading. RangeDrive and VisionDrive are both
// built on it.
type sensorDriveCmd struct {
	r        *robot.Robot
	name     string
	drive    *pid.Drive
	target   pid.Target
	event    *sm.Event
	sm       *sm.StateMachine[sensorState]
	disabled string
}

func newSensorDrive(r *robot.Robot, name string, drive *pid.Drive, target pid.Target, disabled string) *sensorDriveCmd {
	c := &sensorDriveCmd{
		r:      r,
		name:   name,
		drive:  drive,
		target: target,
		event:  sm.NewEvent(name),
		sm:     sm.New[sensorState](name),
	}
	if drive == nil {
		c.disabled = disabled
		return c
	}
	c.sm.Start(sensorDrive)
	return c
}

func (c *sensorDriveCmd) Name() string {
	return c.name
}

func (c *sensorDriveCmd) State() string {
	return c.sm.String()
}

func (c *sensorDriveCmd) Disabled() string {
	return c.disabled
}

// Axes returns the axes waited on for completion.
func (c *sensorDriveCmd) Axes() pid.AxisSet {
	return c.target.Axes
}

func (c *sensorDriveCmd) Periodic(elapsed time.Duration) bool {
	if c.disabled != "" {
		c.r.Display(InfoLine, "%s", c.disabled)
		return true
	}
	done := step(c.sm, c.dispatch)
	traceDrives(c.r, elapsed, c.drive)
	return done
}

func (c *sensorDriveCmd) dispatch(state sensorState) {
	switch state {
	case sensorDrive:
		c.drive.SetTargets(driveTarget(c.r, c.target), false, c.event)
		c.r.Logger().Infof("%s x=%.1f y=%.1f on %s", c.name, c.target.X, c.target.Y, c.target.Axes)
		c.sm.WaitForSingleEvent(c.event, sensorDone)

	case sensorDone:
		c.r.ReportDrive(c.drive)
		c.sm.Stop()
	}
}

func (c *sensorDriveCmd) Cancel() {
	c.sm.Stop()
	if c.drive != nil {
		c.drive.Cancel()
	}
}

// RangeDrive drives forward until the range sensor reads distance inches
// while holding heading.
type RangeDrive struct {
	*sensorDriveCmd
}

func NewRangeDrive(r *robot.Robot, distance float64) *RangeDrive {
	return &RangeDrive{newSensorDrive(r, "RangeDrive", r.RangePidDrive,
		pid.Target{Axes: pid.AxisY | pid.AxisHeading, Y: distance},
		"Range sensor is disabled.")}
}
