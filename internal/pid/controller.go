package pid

import (
	"fmt"
	"math"
	"time"
)

// Input samples the live process variable of one axis.
type Input func() float64

// Validity reports whether the last sample of an Input is usable.
type Validity func() bool

// Config holds the tuning of one controller.
type Config struct {
	Kp float64 `yaml:"kp"`
	Ki float64 `yaml:"ki"`
	Kd float64 `yaml:"kd"`

	// Tolerance is the error band inside which the axis counts as on target.
	Tolerance float64 `yaml:"tolerance"`
	// SettlingTime is how long the error must stay inside Tolerance before
	// OnTarget reports true. Zero means on target as soon as it is inside.
	SettlingTime time.Duration `yaml:"settling_time"`

	OutputLimit   float64 `yaml:"output_limit"`
	IntegralLimit float64 `yaml:"integral_limit"`

	Inverted bool `yaml:"inverted"`
	// AbsoluteSetPoint makes SetTarget take the target in process variable
	// units. Otherwise the target is relative to the reading at SetTarget.
	AbsoluteSetPoint bool `yaml:"absolute_set_point"`
}

// Diagnostics contains controller internals for logging and metrics.
type Diagnostics struct {
	Updates       uint64
	OnTargetTicks uint64
	Saturations   uint64
	MaxAbsError   float64

	Error    float64
	Integral float64
	P        float64
	I        float64
	D        float64
}

// Controller is a single axis PID loop with a clamped output and an
// on-target predicate.
type Controller struct {
	name  string
	cfg   Config
	input Input
	valid Validity

	inverted bool
	target   float64
	pv       float64
	output   float64

	integral    float64
	prevError   float64
	prevTime    time.Duration
	initialized bool

	onTarget    bool
	inTolerance bool
	enteredAt   time.Duration

	diag Diagnostics
}

func NewController(name string, cfg Config, input Input) *Controller {
	return &Controller{
		name:     name,
		cfg:      cfg,
		input:    input,
		inverted: cfg.Inverted,
	}
}

func (c *Controller) Name() string {
	return c.name
}

func (c *Controller) Config() Config {
	return c.cfg
}

// Reset clears the integrator, derivative history and on-target latch.
// The target is kept.
func (c *Controller) Reset() {
	c.integral = 0
	c.prevError = 0
	c.prevTime = 0
	c.initialized = false
	c.output = 0
	c.onTarget = false
	c.inTolerance = false
	c.diag = Diagnostics{}
}

// SetTarget resets the loop and sets a new setpoint.
func (c *Controller) SetTarget(target float64) {
	c.Reset()
	if c.cfg.AbsoluteSetPoint {
		c.target = target
		return
	}
	c.target = c.input() + target
}

func (c *Controller) Target() float64 {
	return c.target
}

// SetValidity gates the loop on a sample validity check. While the check
// fails the output is zero and the axis is never on target.
func (c *Controller) SetValidity(valid Validity) {
	c.valid = valid
}

// SetInverted flips the sign convention between process variable and output.
func (c *Controller) SetInverted(inverted bool) {
	c.inverted = inverted
}

func (c *Controller) IsInverted() bool {
	return c.inverted
}

// Update samples the process variable and computes a new output.
func (c *Controller) Update(now time.Duration) float64 {
	c.pv = c.input()
	if c.valid != nil && !c.valid() {
		c.holdInvalid()
		return 0
	}
	err := c.target - c.pv
	if c.inverted {
		err = -err
	}

	var dt float64
	if c.initialized {
		dt = (now - c.prevTime).Seconds()
	} else {
		c.prevError = err
		c.initialized = true
	}

	p := c.cfg.Kp * err

	if dt > 0 {
		c.integral += err * dt
		if lim := c.cfg.IntegralLimit; lim > 0 {
			c.integral = clamp(c.integral, -lim, lim)
		}
	}
	i := c.cfg.Ki * c.integral

	var d float64
	if dt > 0 {
		d = c.cfg.Kd * (err - c.prevError) / dt
	}

	out := p + i + d
	if lim := c.cfg.OutputLimit; lim > 0 && math.Abs(out) > lim {
		out = clamp(out, -lim, lim)
		c.diag.Saturations++
		// Back-calculate the integrator so it does not keep winding.
		if c.cfg.Ki != 0 {
			c.integral = (out - p - d) / c.cfg.Ki
			i = c.cfg.Ki * c.integral
		}
	}

	c.output = out
	c.prevError = err
	c.prevTime = now
	c.updateOnTarget(err, now)

	c.diag.Updates++
	if c.onTarget {
		c.diag.OnTargetTicks++
	}
	if a := math.Abs(err); a > c.diag.MaxAbsError {
		c.diag.MaxAbsError = a
	}
	c.diag.Error = err
	c.diag.Integral = c.integral
	c.diag.P = p
	c.diag.I = i
	c.diag.D = d

	return out
}

// holdInvalid drops the output and the on-target latch and restarts the
// derivative history for when the sample becomes valid again.
func (c *Controller) holdInvalid() {
	c.output = 0
	c.initialized = false
	c.inTolerance = false
	c.onTarget = false
	c.diag.Updates++
}

func (c *Controller) updateOnTarget(err float64, now time.Duration) {
	if math.Abs(err) >= c.cfg.Tolerance {
		c.inTolerance = false
		c.onTarget = false
		return
	}
	if !c.inTolerance {
		c.inTolerance = true
		c.enteredAt = now
	}
	c.onTarget = now-c.enteredAt >= c.cfg.SettlingTime
}

func (c *Controller) OnTarget() bool {
	return c.onTarget
}

func (c *Controller) Output() float64 {
	return c.output
}

// Error returns the most recent error, after inversion.
func (c *Controller) Error() float64 {
	return c.prevError
}

// ProcessVariable returns the most recent sample.
func (c *Controller) ProcessVariable() float64 {
	return c.pv
}

func (c *Controller) Diagnostics() Diagnostics {
	return c.diag
}

// String renders one trace record for the log sink.
func (c *Controller) String() string {
	return fmt.Sprintf("%s: tgt=%.2f in=%.2f err=%.2f out=%.3f onTarget=%t",
		c.name, c.target, c.pv, c.prevError, c.output, c.onTarget)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
