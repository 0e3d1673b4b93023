package robot

import (
	"time"

	"maneuver-service/internal/hardware"
	"maneuver-service/internal/logger"
	"maneuver-service/internal/pid"
	"maneuver-service/internal/sm"
	"maneuver-service/internal/types"
)

// Dashboard renders numbered text lines for the operator.
type Dashboard interface {
	DisplayPrintf(line int, format string, args ...interface{})
}

// Speaker queues a sentence for voice feedback.
type Speaker interface {
	Speak(sentence string) error
}

// PIDConfigs holds the tuning of every controller the robot owns.
type PIDConfigs struct {
	EncoderX pid.Config `yaml:"encoder_x"`
	EncoderY pid.Config `yaml:"encoder_y"`
	Gyro     pid.Config `yaml:"gyro"`
	SonarX   pid.Config `yaml:"sonar_x"`
	SonarY   pid.Config `yaml:"sonar_y"`
	Range    pid.Config `yaml:"range"`
	Vision   pid.Config `yaml:"vision"`
}

type Config struct {
	PID      PIDConfigs              `yaml:"pid"`
	Odometry hardware.OdometryConfig `yaml:"odometry"`
	// DriveTimeout bounds every closed loop maneuver. Zero disables it.
	DriveTimeout time.Duration `yaml:"drive_timeout"`
}

// Devices is the hardware the robot is built from. Wheels are required;
// every other field may be nil when the device is not fitted.
type Devices struct {
	Wheels     [types.NumWheels]hardware.Motor
	Gyro       hardware.Gyro
	LeftSonar  hardware.DistanceSensor
	RightSonar hardware.DistanceSensor
	FrontSonar hardware.DistanceSensor
	Range      hardware.DistanceSensor
	Vision     hardware.BearingSource
	Battery    hardware.Battery
	Ranging    hardware.Ranging
}

// Sample is one snapshot of every sensor, taken once per tick.
type Sample struct {
	Positions     [types.NumWheels]float64
	X             float64
	Y             float64
	Heading       float64
	LeftSonar     float64
	RightSonar    float64
	FrontSonar    float64
	Range         float64
	Bearing       float64
	BearingValid  bool
	Voltage       float64
	LowestVoltage float64
}

// Robot aggregates the drive base, sensors, controllers and drives that
// commands borrow. It is owned by the control loop and not safe for
// concurrent use.
type Robot struct {
	logger    *logger.Logger
	tracer    *logger.Logger
	cfg       Config
	devices   Devices
	Scheduler *sm.Scheduler
	Base      *hardware.MecanumBase
	Dashboard Dashboard
	Speaker   Speaker

	sample Sample

	// UseRightSonarForX selects which side sonar feeds SonarXPid.
	UseRightSonarForX bool

	EncoderXPid *pid.Controller
	EncoderYPid *pid.Controller
	GyroPid     *pid.Controller
	SonarXPid   *pid.Controller
	SonarYPid   *pid.Controller
	RangePid    *pid.Controller
	VisionPid   *pid.Controller

	PidDrive       *pid.Drive
	SonarXPidDrive *pid.Drive
	SonarYPidDrive *pid.Drive
	RangePidDrive  *pid.Drive
	VisionPidDrive *pid.Drive
}

// New builds a robot. Controllers and drives that depend on a missing
// sensor are left nil.
func New(l *logger.Logger, clock sm.Clock, cfg Config, devices Devices, dashboard Dashboard, speaker Speaker) *Robot {
	r := &Robot{
		logger:    l.WithTag("Robot"),
		tracer:    l.WithTag("Trace"),
		cfg:       cfg,
		devices:   devices,
		Scheduler: sm.NewScheduler(clock),
		Dashboard: dashboard,
		Speaker:   speaker,
	}
	r.Base = hardware.NewMecanumBase(l, devices.Wheels, cfg.Odometry)

	r.EncoderXPid = pid.NewController("EncoderX", cfg.PID.EncoderX, func() float64 { return r.sample.X })
	r.EncoderYPid = pid.NewController("EncoderY", cfg.PID.EncoderY, func() float64 { return r.sample.Y })
	if devices.Gyro != nil {
		r.GyroPid = pid.NewController("Gyro", cfg.PID.Gyro, func() float64 { return r.sample.Heading })
	}
	if devices.LeftSonar != nil || devices.RightSonar != nil {
		r.SonarXPid = pid.NewController("SonarX", cfg.PID.SonarX, r.sonarX)
	}
	if devices.FrontSonar != nil {
		r.SonarYPid = pid.NewController("SonarY", cfg.PID.SonarY, func() float64 { return r.sample.FrontSonar })
	}
	if devices.Range != nil {
		r.RangePid = pid.NewController("Range", cfg.PID.Range, func() float64 { return r.sample.Range })
	}
	if devices.Vision != nil {
		r.VisionPid = pid.NewController("Vision", cfg.PID.Vision, func() float64 { return r.sample.Bearing })
		r.VisionPid.SetValidity(func() bool { return r.sample.BearingValid })
	}

	r.PidDrive = r.newDrive("PidDrive", r.EncoderXPid, r.EncoderYPid)
	if r.SonarXPid != nil {
		r.SonarXPidDrive = r.newDrive("SonarXPidDrive", r.SonarXPid, nil)
	}
	if r.SonarYPid != nil {
		r.SonarYPidDrive = r.newDrive("SonarYPidDrive", nil, r.SonarYPid)
	}
	if r.RangePid != nil {
		r.RangePidDrive = r.newDrive("RangePidDrive", nil, r.RangePid)
	}
	if r.VisionPid != nil {
		r.VisionPidDrive = r.newDrive("VisionPidDrive", r.VisionPid, nil)
	}

	return r
}

func (r *Robot) newDrive(name string, xPid, yPid *pid.Controller) *pid.Drive {
	d := pid.NewDrive(name, r.Scheduler.Clock(), r.logger, xPid, yPid, r.GyroPid, r.Base)
	r.Scheduler.Register(d)
	return d
}

func (r *Robot) sonarX() float64 {
	if r.UseRightSonarForX {
		return r.sample.RightSonar
	}
	return r.sample.LeftSonar
}

func (r *Robot) Config() Config {
	return r.cfg
}

func (r *Robot) Logger() *logger.Logger {
	return r.logger
}

// HasSonar reports whether the sonar selected by index is fitted.
func (r *Robot) HasSonar(index types.SonarIndex) bool {
	switch index {
	case types.SonarLeft:
		return r.devices.LeftSonar != nil && r.SonarXPidDrive != nil
	case types.SonarRight:
		return r.devices.RightSonar != nil && r.SonarXPidDrive != nil
	default:
		return r.devices.FrontSonar != nil && r.SonarYPidDrive != nil
	}
}

func (r *Robot) HasGyro() bool {
	return r.devices.Gyro != nil
}

// Sample reads every sensor once. A failed read keeps the previous value;
// staleness of one tick is expected.
func (r *Robot) Sample() Sample {
	s := &r.sample
	s.Positions = r.Base.Positions()
	s.X = r.Base.XPosition()
	s.Y = r.Base.YPosition()

	if r.devices.Gyro != nil {
		if h, err := r.devices.Gyro.Heading(); err == nil {
			s.Heading = h
		} else {
			r.logger.Debugf("Gyro read failed: %v", err)
		}
	}
	readDistance(r.logger, "left sonar", r.devices.LeftSonar, &s.LeftSonar)
	readDistance(r.logger, "right sonar", r.devices.RightSonar, &s.RightSonar)
	readDistance(r.logger, "front sonar", r.devices.FrontSonar, &s.FrontSonar)
	readDistance(r.logger, "range", r.devices.Range, &s.Range)

	if r.devices.Vision != nil {
		if b, ok := r.devices.Vision.Bearing(); ok {
			s.Bearing = b
			s.BearingValid = true
		} else {
			s.BearingValid = false
		}
	}

	if r.devices.Battery != nil {
		if v, err := r.devices.Battery.Voltage(); err == nil {
			s.Voltage = v
			if s.LowestVoltage == 0 || v < s.LowestVoltage {
				s.LowestVoltage = v
			}
		} else {
			r.logger.Debugf("Battery read failed: %v", err)
		}
	}

	return *s
}

func readDistance(l *logger.Logger, name string, sensor hardware.DistanceSensor, out *float64) {
	if sensor == nil {
		return
	}
	d, err := sensor.Distance()
	if err != nil {
		l.Debugf("%s read failed: %v", name, err)
		return
	}
	*out = d
}

// Latest returns the snapshot taken by the last Sample call.
func (r *Robot) Latest() Sample {
	return r.sample
}

// Drives returns every drive the robot has, skipping absent ones.
func (r *Robot) Drives() []*pid.Drive {
	var out []*pid.Drive
	for _, d := range []*pid.Drive{r.PidDrive, r.SonarXPidDrive, r.SonarYPidDrive, r.RangePidDrive, r.VisionPidDrive} {
		if d != nil {
			out = append(out, d)
		}
	}
	return out
}

// AnyDriveActive reports whether a closed loop maneuver is in flight.
func (r *Robot) AnyDriveActive() bool {
	for _, d := range r.Drives() {
		if d.IsActive() {
			return true
		}
	}
	return false
}

// StartRanging and StopRanging switch the sonar array if one is fitted.
func (r *Robot) StartRanging() {
	if r.devices.Ranging == nil {
		return
	}
	if err := r.devices.Ranging.StartRanging(); err != nil {
		r.logger.Warnf("Failed to start sonar ranging: %v", err)
	}
}

func (r *Robot) StopRanging() {
	if r.devices.Ranging == nil {
		return
	}
	if err := r.devices.Ranging.StopRanging(); err != nil {
		r.logger.Warnf("Failed to stop sonar ranging: %v", err)
	}
}

// Stop cancels every drive and zeroes all wheel outputs.
func (r *Robot) Stop() {
	for _, d := range r.Drives() {
		d.Cancel()
	}
	r.Base.Stop()
}
