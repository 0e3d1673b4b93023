package command

import (
	"time"

	"maneuver-service/internal/robot"
	"maneuver-service/internal/sm"
)

type timedState string

const (
	timedDelay timedState = "DELAY"
	timedDrive timedState = "DRIVE"
	timedDone  timedState = "DONE"
)

// TimedDrive runs the base open loop at fixed powers for a duration.
type TimedDrive struct {
	r         *robot.Robot
	delay     time.Duration
	duration  time.Duration
	xPower    float64
	yPower    float64
	turnPower float64
	timer     *sm.Timer
	event     *sm.Event
	sm        *sm.StateMachine[timedState]
}

func NewTimedDrive(r *robot.Robot, delay, duration time.Duration, xPower, yPower, turnPower float64) *TimedDrive {
	c := &TimedDrive{
		r:         r,
		delay:     delay,
		duration:  duration,
		xPower:    xPower,
		yPower:    yPower,
		turnPower: turnPower,
		timer:     sm.NewTimer("timedDrive", r.Scheduler.Clock()),
		event:     sm.NewEvent("timedDrive"),
		sm:        sm.New[timedState]("TimedDrive"),
	}
	c.sm.Start(timedDelay)
	return c
}

func (c *TimedDrive) Name() string {
	return "TimedDrive"
}

func (c *TimedDrive) State() string {
	return c.sm.String()
}

func (c *TimedDrive) Disabled() string {
	return ""
}

func (c *TimedDrive) Periodic(elapsed time.Duration) bool {
	c.timer.Tick(c.r.Scheduler.Clock().Now())
	done := step(c.sm, c.dispatch)
	if c.timer.IsActive() {
		c.r.Display(InfoLine, "Remaining: %.1f sec", c.timer.Remaining().Seconds())
		c.r.TraceBattery(elapsed)
	}
	return done
}

func (c *TimedDrive) dispatch(state timedState) {
	switch state {
	case timedDelay:
		if c.delay > 0 {
			c.timer.Set(c.delay, c.event)
			c.sm.WaitForSingleEvent(c.event, timedDrive)
		} else {
			c.sm.SetState(timedDrive)
		}

	case timedDrive:
		c.r.Base.MecanumDrive(c.xPower, c.yPower, c.turnPower)
		c.r.Logger().Infof("Timed drive x=%.2f y=%.2f turn=%.2f for %s",
			c.xPower, c.yPower, c.turnPower, c.duration)
		c.timer.Set(c.duration, c.event)
		c.sm.WaitForSingleEvent(c.event, timedDone)

	case timedDone:
		c.r.Base.Stop()
		c.sm.Stop()
	}
}

func (c *TimedDrive) Cancel() {
	c.sm.Stop()
	c.timer.Cancel()
	c.r.Base.Stop()
}
