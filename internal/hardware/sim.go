package hardware

import (
	"math"
	"sync"
	"time"

	"maneuver-service/internal/types"
)

// SimConfig parameterizes the simulated robot.
type SimConfig struct {
	CountsPerSecond  float64 `yaml:"counts_per_second"`
	InchesPerCount   float64 `yaml:"inches_per_count"`
	DegreesPerCount  float64 `yaml:"degrees_per_count"`
	FieldWidth       float64 `yaml:"field_width"`
	FieldLength      float64 `yaml:"field_length"`
	StartX           float64 `yaml:"start_x"`
	StartY           float64 `yaml:"start_y"`
	TargetX          float64 `yaml:"target_x"`
	TargetY          float64 `yaml:"target_y"`
	BatteryVoltage   float64 `yaml:"battery_voltage"`
	BatterySagPerAmp float64 `yaml:"battery_sag"`
	// StuckWheel makes one wheel ignore its power; -1 for none.
	StuckWheel int `yaml:"stuck_wheel"`
}

func DefaultSimConfig() SimConfig {
	return SimConfig{
		CountsPerSecond:  1000,
		InchesPerCount:   0.02,
		DegreesPerCount:  0.05,
		FieldWidth:       144,
		FieldLength:      144,
		StartX:           36,
		StartY:           36,
		TargetX:          72,
		TargetY:          144,
		BatteryVoltage:   12.8,
		BatterySagPerAmp: 0.4,
		StuckWheel:       -1,
	}
}

// SimRobot is a kinematic mecanum robot in a walled rectangular field. It
// implements every sensor interface so the service can run without
// hardware.
type SimRobot struct {
	cfg SimConfig

	mu      sync.Mutex
	powers  [types.NumWheels]float64
	counts  [types.NumWheels]float64
	x, y    float64
	heading float64
	ranging bool
}

func NewSimRobot(cfg SimConfig) *SimRobot {
	return &SimRobot{
		cfg: cfg,
		x:   cfg.StartX,
		y:   cfg.StartY,
	}
}

// Step advances the simulation by dt.
func (s *SimRobot) Step(dt time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var d [types.NumWheels]float64
	for i, p := range s.powers {
		if i == s.cfg.StuckWheel {
			continue
		}
		d[i] = p * s.cfg.CountsPerSecond * dt.Seconds()
		s.counts[i] += d[i]
	}

	lf, rf := d[types.WheelLeftFront], d[types.WheelRightFront]
	lr, rr := d[types.WheelLeftRear], d[types.WheelRightRear]
	strafe := (lf - rf - lr + rr) / 4 * s.cfg.InchesPerCount
	forward := (lf + rf + lr + rr) / 4 * s.cfg.InchesPerCount
	s.heading += (lf - rf + lr - rr) / 4 * s.cfg.DegreesPerCount

	rad := s.heading * math.Pi / 180
	s.x += strafe*math.Cos(rad) + forward*math.Sin(rad)
	s.y += forward*math.Cos(rad) - strafe*math.Sin(rad)
	s.x = math.Max(0, math.Min(s.cfg.FieldWidth, s.x))
	s.y = math.Max(0, math.Min(s.cfg.FieldLength, s.y))
}

func (s *SimRobot) Motor(w types.Wheel) Motor {
	return &simMotor{sim: s, wheel: w}
}

func (s *SimRobot) Motors() [types.NumWheels]Motor {
	var m [types.NumWheels]Motor
	for i := range m {
		m[i] = s.Motor(types.Wheel(i))
	}
	return m
}

func (s *SimRobot) Heading() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heading, nil
}

// Pose returns the true field position and heading.
func (s *SimRobot) Pose() (x, y, heading float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.x, s.y, s.heading
}

func (s *SimRobot) LeftSonar() DistanceSensor {
	return simDistance(func(s *SimRobot) float64 { return s.x }, s)
}

func (s *SimRobot) RightSonar() DistanceSensor {
	return simDistance(func(s *SimRobot) float64 { return s.cfg.FieldWidth - s.x }, s)
}

func (s *SimRobot) FrontSonar() DistanceSensor {
	return simDistance(func(s *SimRobot) float64 { return s.cfg.FieldLength - s.y }, s)
}

// Bearing returns the angle from the robot heading to the vision target.
func (s *SimRobot) Bearing() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dx := s.cfg.TargetX - s.x
	dy := s.cfg.TargetY - s.y
	if dy <= 0 {
		return 0, false
	}
	return math.Atan2(dx, dy)*180/math.Pi - s.heading, true
}

func (s *SimRobot) Voltage() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var load float64
	for _, p := range s.powers {
		load += math.Abs(p)
	}
	return s.cfg.BatteryVoltage - load*s.cfg.BatterySagPerAmp, nil
}

func (s *SimRobot) StartRanging() error {
	s.mu.Lock()
	s.ranging = true
	s.mu.Unlock()
	return nil
}

func (s *SimRobot) StopRanging() error {
	s.mu.Lock()
	s.ranging = false
	s.mu.Unlock()
	return nil
}

func (s *SimRobot) IsRanging() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ranging
}

type simMotor struct {
	sim   *SimRobot
	wheel types.Wheel
}

func (m *simMotor) SetPower(power float64) error {
	m.sim.mu.Lock()
	m.sim.powers[m.wheel] = clampPower(power)
	m.sim.mu.Unlock()
	return nil
}

func (m *simMotor) Position() float64 {
	m.sim.mu.Lock()
	defer m.sim.mu.Unlock()
	return m.sim.counts[m.wheel]
}

type simDistanceSensor struct {
	sim  *SimRobot
	read func(*SimRobot) float64
}

func simDistance(read func(*SimRobot) float64, s *SimRobot) DistanceSensor {
	return &simDistanceSensor{sim: s, read: read}
}

func (d *simDistanceSensor) Distance() (float64, error) {
	d.sim.mu.Lock()
	defer d.sim.mu.Unlock()
	return d.read(d.sim), nil
}
