package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"maneuver-service/internal/hardware"
	"maneuver-service/internal/pid"
	"maneuver-service/internal/robot"
	"maneuver-service/internal/types"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// SensorsConfig says which optional devices are fitted.
type SensorsConfig struct {
	Gyro       bool `yaml:"gyro"`
	LeftSonar  bool `yaml:"left_sonar"`
	RightSonar bool `yaml:"right_sonar"`
	FrontSonar bool `yaml:"front_sonar"`
	Range      bool `yaml:"range"`
	Vision     bool `yaml:"vision"`
	Battery    bool `yaml:"battery"`
}

type MotorsConfig struct {
	Power    float64       `yaml:"power"`
	Duration time.Duration `yaml:"duration"`
}

type TimedDriveConfig struct {
	XPower float64 `yaml:"x_power"`
	YPower float64 `yaml:"y_power"`
}

// Params are the maneuver parameters an operator picks per run.
type Params struct {
	Delay         time.Duration    `yaml:"delay"`
	DriveTime     time.Duration    `yaml:"drive_time"`
	DriveDistance float64          `yaml:"drive_distance"`
	TurnDegrees   float64          `yaml:"turn_degrees"`
	RangeDistance float64          `yaml:"range_distance"`
	SonarDistance float64          `yaml:"sonar_distance"`
	SonarIndex    types.SonarIndex `yaml:"sonar_index"`
}

type Config struct {
	TickPeriod   time.Duration      `yaml:"tick_period"`
	Redis        RedisConfig        `yaml:"redis"`
	MetricsAddr  string             `yaml:"metrics_addr"`
	CANInterface string             `yaml:"can_interface"`
	IO           hardware.IOConfig  `yaml:"io"`
	Sim          hardware.SimConfig `yaml:"sim"`
	Robot        robot.Config       `yaml:"robot"`
	Sensors      SensorsConfig      `yaml:"sensors"`
	Motors       MotorsConfig       `yaml:"motors"`
	TimedDrive   TimedDriveConfig   `yaml:"timed_drive"`
	Params       Params             `yaml:"params"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	// Sensor axes report absolute distances or bearings; encoders and the
	// gyro are driven relative to where the maneuver starts.
	relative := func(kp, tol float64) pid.Config {
		return pid.Config{Kp: kp, Tolerance: tol, OutputLimit: 0.5, IntegralLimit: 0.25}
	}
	absolute := func(kp, tol float64, inverted bool) pid.Config {
		c := relative(kp, tol)
		c.AbsoluteSetPoint = true
		c.Inverted = inverted
		return c
	}

	return Config{
		TickPeriod:   20 * time.Millisecond,
		Redis:        RedisConfig{Host: "127.0.0.1", Port: 6379},
		MetricsAddr:  ":9101",
		CANInterface: "can0",
		IO:           hardware.DefaultIOConfig(),
		Sim:          hardware.DefaultSimConfig(),
		Robot: robot.Config{
			PID: robot.PIDConfigs{
				EncoderX: relative(0.03, 1.0),
				EncoderY: relative(0.03, 1.0),
				Gyro:     relative(0.01, 2.0),
				SonarX:   absolute(0.05, 1.0, false),
				SonarY:   absolute(0.05, 1.0, true),
				Range:    absolute(0.05, 0.5, true),
				Vision:   absolute(0.02, 1.0, true),
			},
			Odometry: hardware.OdometryConfig{
				XInchesPerCount: 0.0215,
				YInchesPerCount: 0.0175,
			},
			DriveTimeout: 10 * time.Second,
		},
		Sensors: SensorsConfig{
			Gyro:       true,
			LeftSonar:  true,
			RightSonar: true,
			FrontSonar: true,
			Battery:    true,
		},
		Motors:     MotorsConfig{Power: 0.5, Duration: 5 * time.Second},
		TimedDrive: TimedDriveConfig{XPower: 1.0, YPower: 0.2},
		Params: Params{
			DriveTime:     4 * time.Second,
			DriveDistance: 48,
			TurnDegrees:   45,
			RangeDistance: 6,
			SonarDistance: 12,
			SonarIndex:    types.SonarLeft,
		},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.TickPeriod <= 0 {
		return fmt.Errorf("%w: tick_period must be positive", ErrInvalid)
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		return fmt.Errorf("%w: redis port %d out of range", ErrInvalid, c.Redis.Port)
	}
	pids := map[string]pid.Config{
		"encoder_x": c.Robot.PID.EncoderX,
		"encoder_y": c.Robot.PID.EncoderY,
		"gyro":      c.Robot.PID.Gyro,
		"sonar_x":   c.Robot.PID.SonarX,
		"sonar_y":   c.Robot.PID.SonarY,
		"range":     c.Robot.PID.Range,
		"vision":    c.Robot.PID.Vision,
	}
	for name, p := range pids {
		if p.OutputLimit <= 0 || p.OutputLimit > 1 {
			return fmt.Errorf("%w: pid %s output_limit must be in (0, 1]", ErrInvalid, name)
		}
		if p.Tolerance < 0 || p.SettlingTime < 0 {
			return fmt.Errorf("%w: pid %s tolerance and settling_time must not be negative", ErrInvalid, name)
		}
	}
	if c.Motors.Power <= 0 || c.Motors.Power > 1 {
		return fmt.Errorf("%w: motors power must be in (0, 1]", ErrInvalid)
	}
	if c.Motors.Duration <= 0 {
		return fmt.Errorf("%w: motors duration must be positive", ErrInvalid)
	}
	if c.Robot.DriveTimeout < 0 {
		return fmt.Errorf("%w: drive_timeout must not be negative", ErrInvalid)
	}
	return nil
}
