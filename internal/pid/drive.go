package pid

import (
	"strings"
	"time"

	"maneuver-service/internal/logger"
	"maneuver-service/internal/sm"
)

// AxisSet selects controllers of a Drive.
type AxisSet uint8

const (
	AxisX AxisSet = 1 << iota
	AxisY
	AxisHeading

	AxisNone AxisSet = 0
	AxisAll          = AxisX | AxisY | AxisHeading
)

func (a AxisSet) Has(axis AxisSet) bool {
	return a&axis == axis
}

func (a AxisSet) String() string {
	if a == AxisNone {
		return "none"
	}
	var parts []string
	if a.Has(AxisX) {
		parts = append(parts, "x")
	}
	if a.Has(AxisY) {
		parts = append(parts, "y")
	}
	if a.Has(AxisHeading) {
		parts = append(parts, "heading")
	}
	return strings.Join(parts, "+")
}

// DriveBase is the holonomic base a Drive commands.
type DriveBase interface {
	MecanumDrive(x, y, rotation float64)
	Stop()
}

// Target describes one drive operation. Every axis the drive has a
// controller for is regulated toward its target; only axes in Axes are
// waited on for completion.
type Target struct {
	Axes    AxisSet
	X       float64
	Y       float64
	Heading float64
	// Timeout aborts the operation when the armed axes have not settled in
	// time. Zero disables it.
	Timeout time.Duration
}

// Drive couples up to three controllers into one drive operation and
// signals an event when every armed axis is on target.
type Drive struct {
	name    string
	clock   sm.Clock
	logger  *logger.Logger
	xPid    *Controller
	yPid    *Controller
	turnPid *Controller
	base    DriveBase

	armed    AxisSet
	active   bool
	hold     bool
	holding  bool
	timedOut bool
	deadline time.Duration
	event    *sm.Event
}

// NewDrive creates a drive. Any controller may be nil when the drive does
// not control that axis.
func NewDrive(name string, clock sm.Clock, l *logger.Logger, xPid, yPid, turnPid *Controller, base DriveBase) *Drive {
	return &Drive{
		name:    name,
		clock:   clock,
		logger:  l.WithTag(name),
		xPid:    xPid,
		yPid:    yPid,
		turnPid: turnPid,
		base:    base,
	}
}

func (d *Drive) Name() string {
	return d.name
}

// Available returns the axes this drive has controllers for.
func (d *Drive) Available() AxisSet {
	var a AxisSet
	if d.xPid != nil {
		a |= AxisX
	}
	if d.yPid != nil {
		a |= AxisY
	}
	if d.turnPid != nil {
		a |= AxisHeading
	}
	return a
}

// SetTarget arms every axis the drive has a controller for. A zero target
// is a real target, not a request to skip the axis.
func (d *Drive) SetTarget(x, y, heading float64, hold bool, ev *sm.Event) {
	d.SetTargets(Target{Axes: AxisAll, X: x, Y: y, Heading: heading}, hold, ev)
}

// SetTargets retargets every controller and arms the requested axes for
// the completion wait. Axes without a controller are ignored. Arming an
// active drive resets and retargets it.
func (d *Drive) SetTargets(t Target, hold bool, ev *sm.Event) {
	d.armed = t.Axes & d.Available()
	if d.xPid != nil {
		d.xPid.SetTarget(t.X)
	}
	if d.yPid != nil {
		d.yPid.SetTarget(t.Y)
	}
	if d.turnPid != nil {
		d.turnPid.SetTarget(t.Heading)
	}

	if ev != nil {
		ev.Clear()
	}
	d.event = ev
	d.hold = hold
	d.holding = false
	d.timedOut = false
	d.deadline = 0
	if t.Timeout > 0 {
		d.deadline = d.clock.Now() + t.Timeout
	}
	d.active = true
	d.logger.Debugf("armed %s (x=%.2f y=%.2f heading=%.2f hold=%t)", d.armed, t.X, t.Y, t.Heading, hold)
}

// Armed returns the axes of the current or last operation.
func (d *Drive) Armed() AxisSet {
	return d.armed
}

func (d *Drive) IsActive() bool {
	return d.active
}

// IsHolding reports whether the drive reached its target and keeps
// regulating because hold was requested.
func (d *Drive) IsHolding() bool {
	return d.holding
}

func (d *Drive) TimedOut() bool {
	return d.timedOut
}

// Controllers returns the controllers of the given axes in X, Y, heading
// order, skipping axes the drive does not have.
func (d *Drive) Controllers(axes AxisSet) []*Controller {
	var out []*Controller
	if axes.Has(AxisX) && d.xPid != nil {
		out = append(out, d.xPid)
	}
	if axes.Has(AxisY) && d.yPid != nil {
		out = append(out, d.yPid)
	}
	if axes.Has(AxisHeading) && d.turnPid != nil {
		out = append(out, d.turnPid)
	}
	return out
}

// Cancel abandons the operation without signaling and stops the base.
func (d *Drive) Cancel() {
	if d.active || d.holding {
		d.logger.Debugf("cancelled")
	}
	d.active = false
	d.holding = false
	d.event = nil
	d.base.Stop()
}

// Tick regulates every axis and signals completion once.
func (d *Drive) Tick(now time.Duration) {
	if !d.active && !d.holding {
		return
	}

	var xOut, yOut, turnOut float64
	if d.xPid != nil {
		xOut = d.xPid.Update(now)
	}
	if d.yPid != nil {
		yOut = d.yPid.Update(now)
	}
	if d.turnPid != nil {
		turnOut = d.turnPid.Update(now)
	}

	if !d.active {
		d.base.MecanumDrive(xOut, yOut, turnOut)
		return
	}

	if d.allOnTarget() {
		d.finish()
		if d.hold {
			d.holding = true
			d.base.MecanumDrive(xOut, yOut, turnOut)
		} else {
			d.base.Stop()
		}
		return
	}

	if d.deadline > 0 && now >= d.deadline {
		d.logger.Warnf("timed out before %s settled", d.armed)
		d.timedOut = true
		d.finish()
		d.base.Stop()
		return
	}

	d.base.MecanumDrive(xOut, yOut, turnOut)
}

func (d *Drive) allOnTarget() bool {
	for _, c := range d.Controllers(d.armed) {
		if !c.OnTarget() {
			return false
		}
	}
	return true
}

func (d *Drive) finish() {
	d.active = false
	ev := d.event
	d.event = nil
	if ev != nil {
		ev.Signal()
	}
}
