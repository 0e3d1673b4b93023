package command

import (
	"maneuver-service/internal/pid"
	"maneuver-service/internal/robot"
)

// VisionDrive strafes until the vision target is centered while holding
// heading.
type VisionDrive struct {
	*sensorDriveCmd
}

func NewVisionDrive(r *robot.Robot) *VisionDrive {
	return &VisionDrive{newSensorDrive(r, "VisionDrive", r.VisionPidDrive,
		pid.Target{Axes: pid.AxisX | pid.AxisHeading},
		"Vision is disabled.")}
}
