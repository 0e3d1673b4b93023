package hardware

import (
	"errors"
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
	"golang.org/x/sys/unix"

	"maneuver-service/internal/logger"
)

// ErrUnknownChannel is returned for a channel name that is not wired.
var ErrUnknownChannel = errors.New("unknown channel")

// IOConfig describes the GPIO, ADC and I2C wiring.
type IOConfig struct {
	Outputs      map[string]LineMapping `yaml:"outputs"`
	ADCDevice    string                 `yaml:"adc_device"`
	AnalogInputs map[string]int         `yaml:"analog_inputs"`
	I2CBus       int                    `yaml:"i2c_bus"`
	// RangeAddress is the 7 bit address of the range sensor. Zero means no
	// range sensor is fitted.
	RangeAddress int `yaml:"range_address"`
}

func DefaultIOConfig() IOConfig {
	outputs := make(map[string]LineMapping, len(DoMappings))
	for k, v := range DoMappings {
		outputs[k] = v
	}
	analog := make(map[string]int, len(AdcMappings))
	for k, v := range AdcMappings {
		analog[k] = v
	}
	return IOConfig{
		Outputs:      outputs,
		ADCDevice:    DefaultADCDevice,
		AnalogInputs: analog,
		I2CBus:       DefaultI2CBus,
		RangeAddress: DefaultRangeAddress,
	}
}

// LinuxHardwareIO owns the GPIO outputs, the ADC channels and the I2C
// range sensor.
type LinuxHardwareIO struct {
	logger        *logger.Logger
	cfg           IOConfig
	chips         map[int]*gpiocdev.Chip
	lines         map[string]*gpiocdev.Line
	initialValues map[string]bool
	i2cFd         int
	mu            sync.RWMutex
}

func NewLinuxHardwareIO(l *logger.Logger, cfg IOConfig) *LinuxHardwareIO {
	return &LinuxHardwareIO{
		logger:        l.WithTag("HardwareIO"),
		cfg:           cfg,
		chips:         make(map[int]*gpiocdev.Chip),
		lines:         make(map[string]*gpiocdev.Line),
		initialValues: make(map[string]bool),
		i2cFd:         -1,
	}
}

func (io *LinuxHardwareIO) SetInitialValue(name string, value bool) {
	io.mu.Lock()
	defer io.mu.Unlock()
	io.initialValues[name] = value
}

func (io *LinuxHardwareIO) Initialize() error {
	io.logger.Infof("Initializing hardware IO")

	for name, mapping := range io.cfg.Outputs {
		chip, ok := io.chips[mapping.Chip]
		if !ok {
			var err error
			chip, err = gpiocdev.NewChip(fmt.Sprintf("gpiochip%d", mapping.Chip))
			if err != nil {
				return fmt.Errorf("failed to open GPIO chip %d: %w", mapping.Chip, err)
			}
			io.chips[mapping.Chip] = chip
		}

		io.mu.RLock()
		val := 0
		if value, exists := io.initialValues[name]; exists && value {
			val = 1
		}
		io.mu.RUnlock()

		line, err := chip.RequestLine(mapping.Line,
			gpiocdev.AsOutput(val),
			gpiocdev.WithConsumer("maneuver-service"))
		if err != nil {
			return fmt.Errorf("failed to request GPIO line %d: %w", mapping.Line, err)
		}

		io.lines[name] = line
		io.logger.Debugf("Configured DO %s: chip=%d, line=%d", name, mapping.Chip, mapping.Line)
	}

	if io.cfg.RangeAddress != 0 {
		io.mu.Lock()
		err := io.openRangeSensor()
		io.mu.Unlock()
		if err != nil {
			// Reads retry the open and fail until the sensor answers.
			io.logger.Warnf("Range sensor unavailable: %v", err)
		}
	}

	return nil
}

// openRangeSensor opens the I2C bus and selects the sensor. io.mu must be
// held.
func (io *LinuxHardwareIO) openRangeSensor() error {
	path := fmt.Sprintf("/dev/i2c-%d", io.cfg.I2CBus)
	fd, err := unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	if err := unix.IoctlSetInt(fd, i2cSlave, io.cfg.RangeAddress); err != nil {
		unix.Close(fd)
		return fmt.Errorf("select I2C address 0x%02x: %w", io.cfg.RangeAddress, err)
	}
	io.i2cFd = fd
	io.logger.Infof("Opened range sensor at %s addr 0x%02x", path, io.cfg.RangeAddress)
	return nil
}

func (io *LinuxHardwareIO) WriteDigitalOutput(channel string, value bool) error {
	io.mu.RLock()
	line, ok := io.lines[channel]
	io.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: digital output %s", ErrUnknownChannel, channel)
	}

	val := 0
	if value {
		val = 1
	}

	if err := line.SetValue(val); err != nil {
		return fmt.Errorf("failed to set DO %s=%v: %w", channel, value, err)
	}

	io.logger.Debugf("Set DO %s=%v", channel, value)
	return nil
}

// ReadAnalog returns the raw ADC count of a named analog input.
func (io *LinuxHardwareIO) ReadAnalog(channel string) (int, error) {
	ch, ok := io.cfg.AnalogInputs[channel]
	if !ok {
		return -1, fmt.Errorf("%w: analog input %s", ErrUnknownChannel, channel)
	}
	return ReadAdcValue(io.cfg.ADCDevice, ch)
}

// HasAnalog reports whether a named analog input is wired.
func (io *LinuxHardwareIO) HasAnalog(channel string) bool {
	_, ok := io.cfg.AnalogInputs[channel]
	return ok
}

// HasRangeSensor reports whether an I2C range sensor is configured. The
// device is opened by Initialize or by the first read.
func (io *LinuxHardwareIO) HasRangeSensor() bool {
	return io.cfg.RangeAddress != 0
}

// ReadRange reads the ultrasonic distance register of the range sensor and
// converts it to inches.
func (io *LinuxHardwareIO) ReadRange() (float64, error) {
	io.mu.Lock()
	defer io.mu.Unlock()
	if io.cfg.RangeAddress == 0 {
		return 0, fmt.Errorf("%w: range sensor", ErrUnknownChannel)
	}
	if io.i2cFd < 0 {
		if err := io.openRangeSensor(); err != nil {
			return 0, fmt.Errorf("range sensor not open: %w", err)
		}
	}
	if _, err := unix.Write(io.i2cFd, []byte{rangeRegister}); err != nil {
		return 0, fmt.Errorf("range register select: %w", err)
	}
	buf := make([]byte, 1)
	if _, err := unix.Read(io.i2cFd, buf); err != nil {
		return 0, fmt.Errorf("range read: %w", err)
	}
	return float64(buf[0]) / centimetersPerInch, nil
}

// StartRanging and StopRanging drive the sonar ranging enable line.
func (io *LinuxHardwareIO) StartRanging() error {
	return io.WriteDigitalOutput(OutputSonarRanging, true)
}

func (io *LinuxHardwareIO) StopRanging() error {
	return io.WriteDigitalOutput(OutputSonarRanging, false)
}

// AnalogDistance exposes an analog sonar channel as a DistanceSensor.
func (io *LinuxHardwareIO) AnalogDistance(channel string, inchesPerCount float64) DistanceSensor {
	return &analogDistance{io: io, channel: channel, scale: inchesPerCount}
}

// RangeSensor exposes the I2C range sensor as a DistanceSensor.
func (io *LinuxHardwareIO) RangeSensor() DistanceSensor {
	return rangeSensor{io: io}
}

// BatteryMonitor exposes an analog channel as a Battery.
func (io *LinuxHardwareIO) BatteryMonitor(channel string, voltsPerCount float64) Battery {
	return &analogBattery{io: io, channel: channel, scale: voltsPerCount}
}

func (io *LinuxHardwareIO) Cleanup() {
	io.mu.Lock()
	defer io.mu.Unlock()

	io.logger.Infof("Cleaning up hardware resources")

	for name, line := range io.lines {
		line.Close()
		io.logger.Debugf("Closed GPIO line for %s", name)
	}

	for id, chip := range io.chips {
		chip.Close()
		io.logger.Debugf("Closed GPIO chip %d", id)
	}

	if io.i2cFd >= 0 {
		unix.Close(io.i2cFd)
		io.i2cFd = -1
	}

	io.logger.Infof("Hardware cleanup complete")
}

type analogDistance struct {
	io      *LinuxHardwareIO
	channel string
	scale   float64
}

func (s *analogDistance) Distance() (float64, error) {
	raw, err := s.io.ReadAnalog(s.channel)
	if err != nil {
		return 0, err
	}
	return float64(raw) * s.scale, nil
}

type rangeSensor struct {
	io *LinuxHardwareIO
}

func (s rangeSensor) Distance() (float64, error) {
	return s.io.ReadRange()
}

type analogBattery struct {
	io      *LinuxHardwareIO
	channel string
	scale   float64
}

func (b *analogBattery) Voltage() (float64, error) {
	raw, err := b.io.ReadAnalog(b.channel)
	if err != nil {
		return 0, err
	}
	return float64(raw) * b.scale, nil
}
