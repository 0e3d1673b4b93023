package core

import (
	"fmt"

	"maneuver-service/internal/command"
	"maneuver-service/internal/config"
	"maneuver-service/internal/pid"
	"maneuver-service/internal/robot"
	"maneuver-service/internal/types"
)

// newCommand builds the command for a test from the configured maneuver
// parameters.
func newCommand(r *robot.Robot, cfg config.Config, test types.Test) (command.Command, error) {
	p := cfg.Params
	switch test {
	case types.TestSensors:
		return command.NewSensorsReport(r), nil
	case types.TestMotors:
		return command.NewMotorsDiagnostic(r, cfg.Motors.Power, cfg.Motors.Duration), nil
	case types.TestXTimedDrive:
		return command.NewTimedDrive(r, p.Delay, p.DriveTime, cfg.TimedDrive.XPower, 0, 0), nil
	case types.TestYTimedDrive:
		return command.NewTimedDrive(r, p.Delay, p.DriveTime, 0, cfg.TimedDrive.YPower, 0), nil
	case types.TestXDistanceDrive:
		return command.NewPidDrive(r, p.Delay, p.DriveDistance, 0, 0, pid.AxisX), nil
	case types.TestYDistanceDrive:
		return command.NewPidDrive(r, p.Delay, 0, p.DriveDistance, 0, pid.AxisY), nil
	case types.TestGyroTurn:
		return command.NewPidDrive(r, p.Delay, 0, 0, p.TurnDegrees, pid.AxisHeading), nil
	case types.TestVision:
		return command.NewVisionReport(r), nil
	case types.TestVisionDrive:
		return command.NewVisionDrive(r), nil
	case types.TestRangeDrive:
		return command.NewRangeDrive(r, p.RangeDistance), nil
	case types.TestSonarDrive:
		return command.NewSonarDrive(r, p.SonarDistance, p.SonarIndex), nil
	default:
		return nil, fmt.Errorf("unknown test %q", test)
	}
}
