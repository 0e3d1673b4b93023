package command

import (
	"fmt"
	"time"

	"maneuver-service/internal/metrics"
	"maneuver-service/internal/robot"
	"maneuver-service/internal/sm"
	"maneuver-service/internal/types"
)

type motorsState string

const (
	motorsStart motorsState = "START"
	motorsStop  motorsState = "STOP"
	motorsDone  motorsState = "DONE"
)

// MotorsDiagnostic runs each wheel alone at a fixed power for a fixed
// duration, then flags wheels that travelled far less than the others.
type MotorsDiagnostic struct {
	r        *robot.Robot
	power    float64
	duration time.Duration
	timer    *sm.Timer
	event    *sm.Event
	sm       *sm.StateMachine[motorsState]

	wheel  int
	start  [types.NumWheels]float64
	deltas [types.NumWheels]float64
	stuck  []types.Wheel
}

func NewMotorsDiagnostic(r *robot.Robot, power float64, duration time.Duration) *MotorsDiagnostic {
	c := &MotorsDiagnostic{
		r:        r,
		power:    power,
		duration: duration,
		timer:    sm.NewTimer("motorsDiagnostic", r.Scheduler.Clock()),
		event:    sm.NewEvent("motorsDiagnostic"),
		sm:       sm.New[motorsState]("MotorsDiagnostic"),
	}
	c.sm.Start(motorsStart)
	return c
}

func (c *MotorsDiagnostic) Name() string {
	return "MotorsDiagnostic"
}

func (c *MotorsDiagnostic) State() string {
	return c.sm.String()
}

func (c *MotorsDiagnostic) Disabled() string {
	return ""
}

// Deltas returns the encoder travel of each wheel once the check has run.
func (c *MotorsDiagnostic) Deltas() [types.NumWheels]float64 {
	return c.deltas
}

// Stuck returns the wheels flagged by the check.
func (c *MotorsDiagnostic) Stuck() []types.Wheel {
	return c.stuck
}

func (c *MotorsDiagnostic) Periodic(elapsed time.Duration) bool {
	c.timer.Tick(c.r.Scheduler.Clock().Now())
	done := step(c.sm, c.dispatch)

	pos := c.r.Latest().Positions
	c.r.Display(InfoLine, "Wheel: %d/%d", c.wheel, types.NumWheels)
	c.r.Display(InfoLine+1, "LF=%.0f, RF=%.0f",
		pos[types.WheelLeftFront]-c.start[types.WheelLeftFront],
		pos[types.WheelRightFront]-c.start[types.WheelRightFront])
	c.r.Display(InfoLine+2, "LR=%.0f, RR=%.0f",
		pos[types.WheelLeftRear]-c.start[types.WheelLeftRear],
		pos[types.WheelRightRear]-c.start[types.WheelRightRear])
	if c.timer.IsActive() {
		c.r.TraceBattery(elapsed)
	}
	return done
}

func (c *MotorsDiagnostic) dispatch(state motorsState) {
	switch state {
	case motorsStart:
		if c.wheel == 0 {
			c.start = c.r.Latest().Positions
		}
		var powers [types.NumWheels]float64
		powers[c.wheel] = c.power
		c.r.Base.SetWheelPowers(powers)
		c.r.Logger().Infof("Running %s wheel at %.2f for %s", types.Wheel(c.wheel), c.power, c.duration)
		c.wheel++
		c.timer.Set(c.duration, c.event)
		if c.wheel < types.NumWheels {
			c.sm.WaitForSingleEvent(c.event, motorsStart)
		} else {
			c.sm.WaitForSingleEvent(c.event, motorsStop)
		}

	case motorsStop:
		c.r.Base.Stop()
		c.sm.SetState(motorsDone)

	case motorsDone:
		pos := c.r.Latest().Positions
		for i := range c.deltas {
			c.deltas[i] = pos[i] - c.start[i]
		}
		c.stuck = StuckWheels(c.deltas)
		c.r.Logger().Infof("Wheel travel LF=%.0f RF=%.0f LR=%.0f RR=%.0f",
			c.deltas[types.WheelLeftFront], c.deltas[types.WheelRightFront],
			c.deltas[types.WheelLeftRear], c.deltas[types.WheelRightRear])
		for _, w := range c.stuck {
			msg := fmt.Sprintf("%s wheel is stuck.", w)
			c.r.Logger().Warnf("%s", msg)
			metrics.StuckWheelAlerts.WithLabelValues(w.String()).Inc()
			c.r.Speak(msg)
		}
		c.sm.Stop()
	}
}

func (c *MotorsDiagnostic) Cancel() {
	c.sm.Stop()
	c.timer.Cancel()
	c.r.Base.Stop()
}
