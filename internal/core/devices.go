package core

import (
	"maneuver-service/internal/config"
	"maneuver-service/internal/hardware"
	"maneuver-service/internal/robot"
)

// SimDevices wires the simulator as every device the config enables.
func SimDevices(cfg config.Config, sim *hardware.SimRobot) robot.Devices {
	d := robot.Devices{
		Wheels:  sim.Motors(),
		Ranging: sim,
	}
	if cfg.Sensors.Gyro {
		d.Gyro = sim
	}
	if cfg.Sensors.LeftSonar {
		d.LeftSonar = sim.LeftSonar()
	}
	if cfg.Sensors.RightSonar {
		d.RightSonar = sim.RightSonar()
	}
	if cfg.Sensors.FrontSonar {
		d.FrontSonar = sim.FrontSonar()
	}
	if cfg.Sensors.Range {
		d.Range = sim.FrontSonar()
	}
	if cfg.Sensors.Vision {
		d.Vision = sim
	}
	if cfg.Sensors.Battery {
		d.Battery = sim
	}
	return d
}

// HardwareDevices wires the CAN motor bus and the board IO. A sensor is
// fitted only when the config enables it and its input is mapped.
func HardwareDevices(cfg config.Config, io *hardware.LinuxHardwareIO, bus *hardware.CANBus, vision hardware.BearingSource) robot.Devices {
	d := robot.Devices{
		Wheels:  bus.Motors(),
		Ranging: io,
	}
	if cfg.Sensors.Gyro {
		d.Gyro = bus
	}
	if cfg.Sensors.LeftSonar && io.HasAnalog(hardware.AnalogSonarLeft) {
		d.LeftSonar = io.AnalogDistance(hardware.AnalogSonarLeft, hardware.SonarInchesPerCount)
	}
	if cfg.Sensors.RightSonar && io.HasAnalog(hardware.AnalogSonarRight) {
		d.RightSonar = io.AnalogDistance(hardware.AnalogSonarRight, hardware.SonarInchesPerCount)
	}
	if cfg.Sensors.FrontSonar && io.HasAnalog(hardware.AnalogSonarFront) {
		d.FrontSonar = io.AnalogDistance(hardware.AnalogSonarFront, hardware.SonarInchesPerCount)
	}
	if cfg.Sensors.Range && io.HasRangeSensor() {
		d.Range = io.RangeSensor()
	}
	if cfg.Sensors.Vision && vision != nil {
		d.Vision = vision
	}
	if cfg.Sensors.Battery && io.HasAnalog(hardware.AnalogBattery) {
		d.Battery = io.BatteryMonitor(hardware.AnalogBattery, hardware.BatteryVoltsPerCount)
	}
	return d
}
