package types

import (
	"fmt"
	"strings"
)

// RunState is the published lifecycle state of a maneuver run.
type RunState string

const (
	RunStateInit     RunState = "init"
	RunStateRunning  RunState = "running"
	RunStateStopping RunState = "stopping"
	RunStateDone     RunState = "done"
	RunStateAborted  RunState = "aborted"
)

// Test selects the behavior run by the host.
type Test string

const (
	TestSensors        Test = "sensors"
	TestMotors         Test = "motors"
	TestXTimedDrive    Test = "x-timed-drive"
	TestYTimedDrive    Test = "y-timed-drive"
	TestXDistanceDrive Test = "x-distance-drive"
	TestYDistanceDrive Test = "y-distance-drive"
	TestGyroTurn       Test = "gyro-turn"
	TestVision         Test = "vision"
	TestVisionDrive    Test = "vision-drive"
	TestRangeDrive     Test = "range-drive"
	TestSonarDrive     Test = "sonar-drive"
)

var AllTests = []Test{
	TestSensors,
	TestMotors,
	TestXTimedDrive,
	TestYTimedDrive,
	TestXDistanceDrive,
	TestYDistanceDrive,
	TestGyroTurn,
	TestVision,
	TestVisionDrive,
	TestRangeDrive,
	TestSonarDrive,
}

func ParseTest(s string) (Test, error) {
	t := Test(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllTests {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown test %q", s)
}

// SonarIndex selects the sonar used by a sonar drive.
type SonarIndex int

const (
	SonarLeft SonarIndex = iota
	SonarRight
	SonarFront
)

func (s SonarIndex) String() string {
	switch s {
	case SonarLeft:
		return "left"
	case SonarRight:
		return "right"
	case SonarFront:
		return "front"
	default:
		return fmt.Sprintf("sonar(%d)", int(s))
	}
}

func ParseSonarIndex(s string) (SonarIndex, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left", "0":
		return SonarLeft, nil
	case "right", "1":
		return SonarRight, nil
	case "front", "2":
		return SonarFront, nil
	}
	return 0, fmt.Errorf("unknown sonar %q", s)
}

// Wheel identifies one of the four drive wheels.
type Wheel int

const (
	WheelLeftFront Wheel = iota
	WheelRightFront
	WheelLeftRear
	WheelRightRear

	NumWheels = 4
)

func (w Wheel) String() string {
	switch w {
	case WheelLeftFront:
		return "left front"
	case WheelRightFront:
		return "right front"
	case WheelLeftRear:
		return "left rear"
	case WheelRightRear:
		return "right rear"
	default:
		return fmt.Sprintf("wheel(%d)", int(w))
	}
}
