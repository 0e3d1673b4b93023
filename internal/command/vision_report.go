package command

import (
	"fmt"
	"time"

	"maneuver-service/internal/robot"
	"maneuver-service/internal/sm"
)

type visionState string

const visionMonitor visionState = "MONITOR"

// VisionTargetName names the vision target in announcements.
const VisionTargetName = "Target"

// VisionReport announces on the dashboard and by voice whenever the vision
// target comes into or goes out of view. It never finishes on its own.
type VisionReport struct {
	r        *robot.Robot
	sm       *sm.StateMachine[visionState]
	inView   bool
	disabled string
}

func NewVisionReport(r *robot.Robot) *VisionReport {
	c := &VisionReport{
		r:  r,
		sm: sm.New[visionState]("VisionReport"),
	}
	if r.VisionPid == nil {
		c.disabled = "Vision is disabled."
		return c
	}
	c.sm.Start(visionMonitor)
	return c
}

func (c *VisionReport) Name() string {
	return "VisionReport"
}

func (c *VisionReport) State() string {
	return c.sm.String()
}

func (c *VisionReport) Disabled() string {
	return c.disabled
}

// InView reports whether the target was in view on the last tick.
func (c *VisionReport) InView() bool {
	return c.inView
}

func (c *VisionReport) Periodic(elapsed time.Duration) bool {
	if c.disabled != "" {
		c.r.Display(InfoLine, "%s", c.disabled)
		return true
	}
	return step(c.sm, func(visionState) {
		s := c.r.Latest()
		if s.BearingValid != c.inView {
			c.inView = s.BearingValid
			sentence := fmt.Sprintf("%s is out of view.", VisionTargetName)
			if c.inView {
				sentence = fmt.Sprintf("%s is in view.", VisionTargetName)
			}
			c.r.Logger().Infof("[%8.3f] %s", elapsed.Seconds(), sentence)
			c.r.Display(InfoLine, "%s", sentence)
			c.r.Speak(sentence)
		}
		if c.inView {
			c.r.Display(InfoLine+1, "Bearing: %.1f", s.Bearing)
		} else {
			c.r.Display(InfoLine+1, "Bearing: none")
		}
	})
}

func (c *VisionReport) Cancel() {
	c.sm.Stop()
}
