package command

import (
	"time"

	"maneuver-service/internal/pid"
	"maneuver-service/internal/robot"
	"maneuver-service/internal/sm"
	"maneuver-service/internal/types"
)

type sonarState string

const (
	sonarDrive sonarState = "DRIVE"
	sonarDone  sonarState = "DONE"
)

// SonarDrive closes the distance to a wall measured by one sonar while
// holding heading. A side sonar drives the X axis, the front sonar drives Y.
type SonarDrive struct {
	r        *robot.Robot
	distance float64
	index    types.SonarIndex
	event    *sm.Event
	sm       *sm.StateMachine[sonarState]
	drive    *pid.Drive
	axes     pid.AxisSet
	disabled string
}

// NewSonarDrive creates a sonar drive to distance inches from the wall
// seen by the selected sonar.
func NewSonarDrive(r *robot.Robot, distance float64, index types.SonarIndex) *SonarDrive {
	c := &SonarDrive{
		r:        r,
		distance: distance,
		index:    index,
		event:    sm.NewEvent("sonarDrive"),
		sm:       sm.New[sonarState]("SonarDrive"),
	}
	if !r.HasSonar(index) {
		c.disabled = "Sonar sensors are disabled."
		return c
	}
	c.sm.Start(sonarDrive)
	return c
}

func (c *SonarDrive) Name() string {
	return "SonarDrive"
}

func (c *SonarDrive) State() string {
	return c.sm.String()
}

func (c *SonarDrive) Disabled() string {
	return c.disabled
}

// Drive returns the drive armed by the command, nil before arming.
func (c *SonarDrive) Drive() *pid.Drive {
	return c.drive
}

// Axes returns the axes armed for the completion wait.
func (c *SonarDrive) Axes() pid.AxisSet {
	return c.axes
}

func (c *SonarDrive) Periodic(elapsed time.Duration) bool {
	if c.disabled != "" {
		c.r.Display(InfoLine, "%s", c.disabled)
		return true
	}
	done := step(c.sm, c.dispatch)
	traceDrives(c.r, elapsed, c.drive)
	return done
}

func (c *SonarDrive) dispatch(state sonarState) {
	switch state {
	case sonarDrive:
		c.arm()
		c.sm.WaitForSingleEvent(c.event, sonarDone)

	case sonarDone:
		c.r.ReportDrive(c.drive)
		c.r.StopRanging()
		c.sm.Stop()
	}
}

func (c *SonarDrive) arm() {
	t := pid.Target{}
	switch c.index {
	case types.SonarLeft:
		c.r.UseRightSonarForX = false
		c.r.SonarXPid.SetInverted(false)
		c.drive = c.r.SonarXPidDrive
		t.Axes = pid.AxisX | pid.AxisHeading
		t.X = c.distance
	case types.SonarRight:
		c.r.UseRightSonarForX = true
		c.r.SonarXPid.SetInverted(true)
		c.drive = c.r.SonarXPidDrive
		t.Axes = pid.AxisX | pid.AxisHeading
		t.X = c.distance
	default:
		c.drive = c.r.SonarYPidDrive
		t.Axes = pid.AxisY | pid.AxisHeading
		t.Y = c.distance
	}
	c.axes = t.Axes
	c.r.StartRanging()
	c.drive.SetTargets(driveTarget(c.r, t), false, c.event)
	c.r.Logger().Infof("Sonar drive to %.1fin on %s sonar", c.distance, c.index)
}

func (c *SonarDrive) Cancel() {
	c.sm.Stop()
	if c.drive != nil {
		c.drive.Cancel()
	}
	c.r.StopRanging()
}
