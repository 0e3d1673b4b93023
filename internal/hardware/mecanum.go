package hardware

import (
	"math"

	"maneuver-service/internal/logger"
	"maneuver-service/internal/types"
)

// OdometryConfig converts averaged encoder counts to inches.
type OdometryConfig struct {
	XInchesPerCount float64 `yaml:"x_inches_per_count"`
	YInchesPerCount float64 `yaml:"y_inches_per_count"`
}

// MecanumBase drives four mecanum wheels and derives X/Y odometry from
// their encoders.
type MecanumBase struct {
	logger   *logger.Logger
	wheels   [types.NumWheels]Motor
	odometry OdometryConfig

	xOrigin float64
	yOrigin float64
}

func NewMecanumBase(l *logger.Logger, wheels [types.NumWheels]Motor, odometry OdometryConfig) *MecanumBase {
	return &MecanumBase{
		logger:   l.WithTag("DriveBase"),
		wheels:   wheels,
		odometry: odometry,
	}
}

func (b *MecanumBase) Wheel(w types.Wheel) Motor {
	return b.wheels[w]
}

// MecanumDrive mixes strafe (x), forward (y) and clockwise rotation into
// wheel powers. Powers are scaled down together when any exceeds 1.
func (b *MecanumBase) MecanumDrive(x, y, rotation float64) {
	powers := [types.NumWheels]float64{
		types.WheelLeftFront:  y + x + rotation,
		types.WheelRightFront: y - x - rotation,
		types.WheelLeftRear:   y - x + rotation,
		types.WheelRightRear:  y + x - rotation,
	}
	maxMag := 1.0
	for _, p := range powers {
		maxMag = math.Max(maxMag, math.Abs(p))
	}
	for i := range powers {
		powers[i] /= maxMag
	}
	b.SetWheelPowers(powers)
}

func (b *MecanumBase) SetWheelPowers(powers [types.NumWheels]float64) {
	for i, m := range b.wheels {
		if err := m.SetPower(clampPower(powers[i])); err != nil {
			b.logger.Warnf("Failed to set %s power: %v", types.Wheel(i), err)
		}
	}
}

func (b *MecanumBase) Stop() {
	b.SetWheelPowers([types.NumWheels]float64{})
}

// Positions returns the raw encoder counts of all wheels.
func (b *MecanumBase) Positions() [types.NumWheels]float64 {
	var pos [types.NumWheels]float64
	for i, m := range b.wheels {
		pos[i] = m.Position()
	}
	return pos
}

func (b *MecanumBase) rawX(p [types.NumWheels]float64) float64 {
	return (p[types.WheelLeftFront] - p[types.WheelRightFront] - p[types.WheelLeftRear] + p[types.WheelRightRear]) / 4
}

func (b *MecanumBase) rawY(p [types.NumWheels]float64) float64 {
	return (p[types.WheelLeftFront] + p[types.WheelRightFront] + p[types.WheelLeftRear] + p[types.WheelRightRear]) / 4
}

// XPosition returns the strafe distance in inches since the last reset.
func (b *MecanumBase) XPosition() float64 {
	return b.rawX(b.Positions())*b.odometry.XInchesPerCount - b.xOrigin
}

// YPosition returns the forward distance in inches since the last reset.
func (b *MecanumBase) YPosition() float64 {
	return b.rawY(b.Positions())*b.odometry.YInchesPerCount - b.yOrigin
}

func (b *MecanumBase) ResetOdometry() {
	p := b.Positions()
	b.xOrigin = b.rawX(p) * b.odometry.XInchesPerCount
	b.yOrigin = b.rawY(p) * b.odometry.YInchesPerCount
}
