package command

import (
	"time"

	"maneuver-service/internal/robot"
	"maneuver-service/internal/sm"
)

type sensorsState string

const sensorsMonitor sensorsState = "MONITOR"

// SensorsTraceInterval is how often the sensors report writes a trace
// record. The dashboard is refreshed every tick.
const SensorsTraceInterval = time.Second

// SensorsReport shows every sensor reading until cancelled. It never
// finishes on its own.
type SensorsReport struct {
	r     *robot.Robot
	timer *sm.Timer
	event *sm.Event
	sm    *sm.StateMachine[sensorsState]
}

func NewSensorsReport(r *robot.Robot) *SensorsReport {
	c := &SensorsReport{
		r:     r,
		timer: sm.NewTimer("sensorsReport", r.Scheduler.Clock()),
		event: sm.NewEvent("sensorsReport"),
		sm:    sm.New[sensorsState]("SensorsReport"),
	}
	c.r.StartRanging()
	c.sm.Start(sensorsMonitor)
	return c
}

func (c *SensorsReport) Name() string {
	return "SensorsReport"
}

func (c *SensorsReport) State() string {
	return c.sm.String()
}

func (c *SensorsReport) Disabled() string {
	return ""
}

func (c *SensorsReport) Periodic(elapsed time.Duration) bool {
	c.timer.Tick(c.r.Scheduler.Clock().Now())
	done := step(c.sm, func(sensorsState) {
		s := c.r.Latest()
		c.r.Logger().Infof("[%8.3f] Sensors: x=%.1f y=%.1f heading=%.1f sonar=%.1f/%.1f/%.1f range=%.1f",
			elapsed.Seconds(), s.X, s.Y, s.Heading, s.LeftSonar, s.RightSonar, s.FrontSonar, s.Range)
		c.r.TraceBattery(elapsed)
		c.timer.Set(SensorsTraceInterval, c.event)
		c.sm.WaitForSingleEvent(c.event, sensorsMonitor)
	})
	if done {
		return true
	}

	s := c.r.Latest()
	c.r.Display(InfoLine, "Enc: lf=%.0f,rf=%.0f,lr=%.0f,rr=%.0f",
		s.Positions[0], s.Positions[1], s.Positions[2], s.Positions[3])
	c.r.Display(InfoLine+1, "Odo: x=%.1f,y=%.1f", s.X, s.Y)
	if c.r.HasGyro() {
		c.r.Display(InfoLine+2, "Gyro: heading=%.1f", s.Heading)
	} else {
		c.r.Display(InfoLine+2, "Gyro is disabled.")
	}
	if c.r.SonarXPid != nil || c.r.SonarYPid != nil {
		c.r.Display(InfoLine+3, "Sonar: l=%.1f,r=%.1f,f=%.1f", s.LeftSonar, s.RightSonar, s.FrontSonar)
	} else {
		c.r.Display(InfoLine+3, "Sonar sensors are disabled.")
	}
	if c.r.RangePid != nil {
		c.r.Display(InfoLine+4, "Range: %.1f", s.Range)
	} else {
		c.r.Display(InfoLine+4, "Range sensor is disabled.")
	}
	if c.r.VisionPid != nil && s.BearingValid {
		c.r.Display(InfoLine+5, "Vision: bearing=%.1f", s.Bearing)
	} else if c.r.VisionPid != nil {
		c.r.Display(InfoLine+5, "Vision: no target")
	} else {
		c.r.Display(InfoLine+5, "Vision is disabled.")
	}
	c.r.Display(InfoLine+6, "Battery: %.2fV (%.2fV)", s.Voltage, s.LowestVoltage)
	return false
}

func (c *SensorsReport) Cancel() {
	c.sm.Stop()
	c.timer.Cancel()
	c.r.StopRanging()
}
