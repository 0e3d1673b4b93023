package hardware

const (
	OutputDriveEnable  = "drive_enable"
	OutputSonarRanging = "sonar_ranging"

	AnalogSonarLeft  = "sonar_left"
	AnalogSonarRight = "sonar_right"
	AnalogSonarFront = "sonar_front"
	AnalogBattery    = "battery"

	DefaultADCDevice = "iio:device0"

	// Analog sonars output Vcc/512 per inch into a 12 bit converter.
	SonarInchesPerCount = 512.0 / 4096.0
	// Battery input goes through a 1:11 divider on a 3.3V reference.
	BatteryVoltsPerCount = 3.3 * 11.0 / 4096.0

	DefaultI2CBus       = 1
	DefaultRangeAddress = 0x14
	rangeRegister       = 0x04
	centimetersPerInch  = 2.54

	i2cSlave = 0x0703
)

// CAN identifiers of the motor bus.
const (
	MotorCommandBaseID    uint32 = 0x200
	EncoderFeedbackBaseID uint32 = 0x180
	IMUHeadingID          uint32 = 0x300

	powerScale = 32767.0
)

// LineMapping locates one GPIO line.
type LineMapping struct {
	Chip int `yaml:"chip"`
	Line int `yaml:"line"`
}

var DoMappings = map[string]LineMapping{
	OutputDriveEnable:  {0, 12},
	OutputSonarRanging: {0, 13},
}

var AdcMappings = map[string]int{
	AnalogSonarLeft:  0,
	AnalogSonarRight: 1,
	AnalogSonarFront: 2,
	AnalogBattery:    3,
}
