package hardware

// Motor is one drive wheel: a power output and an encoder.
type Motor interface {
	SetPower(power float64) error
	// Position returns the accumulated encoder count.
	Position() float64
}

// Gyro reports the robot heading in degrees, clockwise positive.
type Gyro interface {
	Heading() (float64, error)
}

// DistanceSensor reports a distance in inches.
type DistanceSensor interface {
	Distance() (float64, error)
}

// BearingSource reports the bearing to a vision target in degrees. ok is
// false while no target is in view.
type BearingSource interface {
	Bearing() (bearing float64, ok bool)
}

// Battery reports the supply voltage.
type Battery interface {
	Voltage() (float64, error)
}

// Ranging switches a sonar array between continuous ranging and idle.
type Ranging interface {
	StartRanging() error
	StopRanging() error
}
