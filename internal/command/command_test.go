package command

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maneuver-service/internal/hardware"
	"maneuver-service/internal/logger"
	"maneuver-service/internal/metrics"
	"maneuver-service/internal/pid"
	"maneuver-service/internal/robot"
	"maneuver-service/internal/sm"
	"maneuver-service/internal/types"
)

const tick = 20 * time.Millisecond

// Mock hardware
type mockMotor struct {
	power    float64
	position float64
	stuck    bool
}

func (m *mockMotor) SetPower(p float64) error { m.power = p; return nil }
func (m *mockMotor) Position() float64        { return m.position }

type mockDistance struct{ value float64 }

func (m *mockDistance) Distance() (float64, error) { return m.value, nil }

type mockGyro struct{ heading float64 }

func (m *mockGyro) Heading() (float64, error) { return m.heading, nil }

type mockBearing struct {
	bearing float64
	ok      bool
}

func (m *mockBearing) Bearing() (float64, bool) { return m.bearing, m.ok }

type mockRanging struct{ starts, stops int }

func (m *mockRanging) StartRanging() error { m.starts++; return nil }
func (m *mockRanging) StopRanging() error  { m.stops++; return nil }

type mockDashboard struct{ lines map[int]string }

func (d *mockDashboard) DisplayPrintf(line int, format string, args ...interface{}) {
	d.lines[line] = fmt.Sprintf(format, args...)
}

type mockSpeaker struct{ sentences []string }

func (s *mockSpeaker) Speak(sentence string) error {
	s.sentences = append(s.sentences, sentence)
	return nil
}

type fixture struct {
	clock   *sm.ManualClock
	robot   *robot.Robot
	motors  [types.NumWheels]*mockMotor
	dash    *mockDashboard
	speaker *mockSpeaker
	// countsPerTick is the encoder travel of a wheel at full power.
	countsPerTick float64
}

func testConfig() robot.Config {
	abs := pid.Config{Kp: 0.1, Tolerance: 1, OutputLimit: 1, AbsoluteSetPoint: true}
	return robot.Config{
		PID: robot.PIDConfigs{
			EncoderX: abs, EncoderY: abs, Gyro: abs,
			SonarX: abs, SonarY: abs, Range: abs, Vision: abs,
		},
		Odometry: hardware.OdometryConfig{XInchesPerCount: 1, YInchesPerCount: 1},
	}
}

func newFixture(t *testing.T, cfg robot.Config, devices robot.Devices) *fixture {
	t.Helper()
	f := &fixture{
		clock:   sm.NewManualClock(),
		dash:    &mockDashboard{lines: make(map[int]string)},
		speaker: &mockSpeaker{},
	}
	for i := range f.motors {
		f.motors[i] = &mockMotor{}
		devices.Wheels[i] = f.motors[i]
	}
	l := logger.NewLogger(nil, logger.LogLevelError)
	f.robot = robot.New(l, f.clock, cfg, devices, f.dash, f.speaker)
	return f
}

// step runs one host tick and returns what the command reported.
func (f *fixture) step(c Command) bool {
	f.clock.Advance(tick)
	for _, m := range f.motors {
		if !m.stuck {
			m.position += m.power * f.countsPerTick
		}
	}
	f.robot.Sample()
	now := f.robot.Scheduler.Tick()
	return c.Periodic(now)
}

// runUntilDone steps the command until it reports done and asserts no
// drive is active whenever it does.
func (f *fixture) runUntilDone(t *testing.T, c Command, maxTicks int) int {
	t.Helper()
	for i := 1; i <= maxTicks; i++ {
		if f.step(c) {
			require.False(t, f.robot.AnyDriveActive(), "done reported while a drive is active")
			return i
		}
	}
	t.Fatalf("%s did not finish within %d ticks (state %s)", c.Name(), maxTicks, c.State())
	return 0
}

func allSensors() (robot.Devices, *mockDistance, *mockDistance, *mockDistance) {
	left := &mockDistance{value: 20}
	right := &mockDistance{value: 20}
	front := &mockDistance{value: 20}
	return robot.Devices{
		Gyro:       &mockGyro{},
		LeftSonar:  left,
		RightSonar: right,
		FrontSonar: front,
		Ranging:    &mockRanging{},
	}, left, right, front
}

// ===== Stuck Wheel Tests =====

func TestStuckWheelsFlagsOnlyTheOutlier(t *testing.T) {
	stuck := StuckWheels([types.NumWheels]float64{100, 100, 100, 10})
	assert.Equal(t, []types.Wheel{types.WheelRightRear}, stuck)
}

func TestStuckWheelsNoOutlier(t *testing.T) {
	assert.Empty(t, StuckWheels([types.NumWheels]float64{100, 95, 90, 60}))
}

func TestStuckWheelsNonPositiveAverage(t *testing.T) {
	assert.Empty(t, StuckWheels([types.NumWheels]float64{0, 0, 0, 0}))
	assert.Empty(t, StuckWheels([types.NumWheels]float64{-100, -100, -100, -10}))
}

func TestStuckWheelsMultiple(t *testing.T) {
	stuck := StuckWheels([types.NumWheels]float64{100, 0, 100, 0})
	// avg 50, both idle wheels are a full average short.
	assert.Equal(t, []types.Wheel{types.WheelRightFront, types.WheelRightRear}, stuck)
}

// ===== SonarDrive Tests =====

func TestSonarDriveLeftUsesLeftSonarUninverted(t *testing.T) {
	devices, _, _, _ := allSensors()
	f := newFixture(t, testConfig(), devices)
	f.robot.UseRightSonarForX = true
	f.robot.SonarXPid.SetInverted(true)

	c := NewSonarDrive(f.robot, 12, types.SonarLeft)
	require.Empty(t, c.Disabled())
	assert.False(t, f.step(c))

	assert.False(t, f.robot.UseRightSonarForX)
	assert.False(t, f.robot.SonarXPid.IsInverted())
	assert.Equal(t, pid.AxisX|pid.AxisHeading, c.Axes())
	assert.Same(t, f.robot.SonarXPidDrive, c.Drive())
	assert.True(t, f.robot.SonarXPidDrive.IsActive())
}

func TestSonarDriveRightInvertsX(t *testing.T) {
	devices, _, _, _ := allSensors()
	f := newFixture(t, testConfig(), devices)

	c := NewSonarDrive(f.robot, 12, types.SonarRight)
	f.step(c)

	assert.True(t, f.robot.UseRightSonarForX)
	assert.True(t, f.robot.SonarXPid.IsInverted())
	assert.Equal(t, pid.AxisX|pid.AxisHeading, c.Axes())
}

func TestSonarDriveFrontArmsYNotX(t *testing.T) {
	devices, _, _, _ := allSensors()
	f := newFixture(t, testConfig(), devices)

	c := NewSonarDrive(f.robot, 12, types.SonarFront)
	f.step(c)

	assert.Equal(t, pid.AxisY|pid.AxisHeading, c.Axes())
	assert.False(t, c.Axes().Has(pid.AxisX))
	assert.Same(t, f.robot.SonarYPidDrive, c.Drive())
	assert.False(t, f.robot.SonarXPidDrive.IsActive())
}

func TestSonarDriveCompletes(t *testing.T) {
	devices, _, _, front := allSensors()
	ranging := devices.Ranging.(*mockRanging)
	f := newFixture(t, testConfig(), devices)

	c := NewSonarDrive(f.robot, 12, types.SonarFront)
	assert.False(t, f.step(c))
	assert.Equal(t, "DRIVE (waiting sonarDrive)", c.State())

	// Wall reached.
	front.value = 12
	ticks := f.runUntilDone(t, c, 10)

	assert.Equal(t, 2, ticks, "DONE runs one tick, done is reported the next")
	assert.Equal(t, "STOPPED", c.State())
	assert.Equal(t, 1, ranging.starts)
	assert.Equal(t, 1, ranging.stops)
	for _, m := range f.motors {
		assert.Zero(t, m.power)
	}
}

func TestSonarDriveTelemetryWhileActive(t *testing.T) {
	devices, _, _, _ := allSensors()
	f := newFixture(t, testConfig(), devices)

	c := NewSonarDrive(f.robot, 12, types.SonarFront)
	f.step(c)
	f.step(c)

	assert.Equal(t, "SonarY: tgt=12.0,in=20.0", f.dash.lines[PidInfoLine])
	assert.Contains(t, f.dash.lines[PidInfoLine+2], "Gyro: tgt=0.0")
}

func TestSonarDriveDisabled(t *testing.T) {
	f := newFixture(t, testConfig(), robot.Devices{})

	c := NewSonarDrive(f.robot, 12, types.SonarLeft)

	assert.Equal(t, "Sonar sensors are disabled.", c.Disabled())
	assert.True(t, f.step(c))
	assert.Equal(t, "Sonar sensors are disabled.", f.dash.lines[InfoLine])
}

func TestSonarDriveTimeout(t *testing.T) {
	devices, _, _, _ := allSensors()
	cfg := testConfig()
	cfg.DriveTimeout = 100 * time.Millisecond
	f := newFixture(t, cfg, devices)
	before := testutil.ToFloat64(metrics.DriveTimeouts.WithLabelValues("SonarYPidDrive"))

	c := NewSonarDrive(f.robot, 12, types.SonarFront)
	f.runUntilDone(t, c, 20)

	assert.True(t, f.robot.SonarYPidDrive.TimedOut())
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.DriveTimeouts.WithLabelValues("SonarYPidDrive")))
}

func TestSonarDriveCancel(t *testing.T) {
	devices, _, _, _ := allSensors()
	f := newFixture(t, testConfig(), devices)

	c := NewSonarDrive(f.robot, 12, types.SonarFront)
	f.step(c)
	f.step(c)
	require.True(t, f.robot.SonarYPidDrive.IsActive())

	c.Cancel()
	c.Cancel()

	assert.False(t, f.robot.AnyDriveActive())
	assert.True(t, f.step(c))
	for _, m := range f.motors {
		assert.Zero(t, m.power)
	}
}

// ===== PidDrive Tests =====

func TestPidDriveWaitsForDelay(t *testing.T) {
	f := newFixture(t, testConfig(), robot.Devices{})

	c := NewPidDrive(f.robot, 100*time.Millisecond, 0, 10, 0, pid.AxisY)
	f.step(c)
	assert.Equal(t, "DELAY (waiting pidDrive)", c.State())

	for i := 0; i < 4; i++ {
		f.step(c)
		assert.False(t, f.robot.PidDrive.IsActive(), "armed before delay expired")
	}
	f.step(c)
	assert.True(t, f.robot.PidDrive.IsActive())
	assert.Equal(t, pid.AxisY, f.robot.PidDrive.Armed())
}

func TestPidDriveReachesDistance(t *testing.T) {
	f := newFixture(t, testConfig(), robot.Devices{})
	f.countsPerTick = 10

	c := NewPidDrive(f.robot, 0, 0, 10, 0, pid.AxisY)
	f.runUntilDone(t, c, 100)

	assert.InDelta(t, 10, f.robot.Latest().Y, 1)
	assert.False(t, f.robot.PidDrive.TimedOut())
	for _, m := range f.motors {
		assert.Zero(t, m.power)
	}
}

func TestPidDriveTurnWithoutGyroIsDisabled(t *testing.T) {
	f := newFixture(t, testConfig(), robot.Devices{})

	c := NewPidDrive(f.robot, 0, 0, 0, 90, pid.AxisHeading)

	assert.Equal(t, "Gyro is disabled.", c.Disabled())
	assert.True(t, f.step(c))
	assert.False(t, f.robot.PidDrive.IsActive())
}

func TestPidDriveDisabledReasonNamesMissingAxes(t *testing.T) {
	all := pid.AxisX | pid.AxisY
	assert.Equal(t, "", unavailableAxes(pid.AxisX, all))
	assert.Equal(t, "Gyro is disabled.", unavailableAxes(pid.AxisHeading, all))
	assert.Equal(t, "Gyro is disabled.", unavailableAxes(pid.AxisY|pid.AxisHeading, all))
	assert.Equal(t, "Encoder x is disabled.", unavailableAxes(pid.AxisX, pid.AxisY|pid.AxisHeading))
	assert.Equal(t, "Encoder y and gyro are disabled.", unavailableAxes(pid.AxisY|pid.AxisHeading, pid.AxisX))
	assert.Equal(t, "No drive axis selected.", unavailableAxes(pid.AxisNone, pid.AxisAll))
}

func TestPidDriveWithoutAxesIsDisabled(t *testing.T) {
	f := newFixture(t, testConfig(), robot.Devices{Gyro: &mockGyro{}})

	c := NewPidDrive(f.robot, 0, 0, 0, 0, pid.AxisNone)

	assert.Equal(t, "No drive axis selected.", c.Disabled())
	assert.True(t, f.step(c))
	assert.Equal(t, "No drive axis selected.", f.dash.lines[InfoLine])
}

// ===== TimedDrive Tests =====

func TestTimedDriveRunsOpenLoopThenStops(t *testing.T) {
	f := newFixture(t, testConfig(), robot.Devices{})

	c := NewTimedDrive(f.robot, 0, 100*time.Millisecond, 1.0, 0, 0)
	f.step(c)
	f.step(c)

	assert.Equal(t, 1.0, f.motors[types.WheelLeftFront].power)
	assert.Equal(t, -1.0, f.motors[types.WheelRightFront].power)
	assert.Equal(t, -1.0, f.motors[types.WheelLeftRear].power)
	assert.Equal(t, 1.0, f.motors[types.WheelRightRear].power)
	assert.False(t, f.robot.AnyDriveActive(), "timed drive arms no PID axis")

	armedAt := f.clock.Now()
	f.runUntilDone(t, c, 20)

	assert.GreaterOrEqual(t, f.clock.Now()-armedAt, 100*time.Millisecond)
	for _, m := range f.motors {
		assert.Zero(t, m.power)
	}
}

func TestTimedDriveCancelStopsOutputs(t *testing.T) {
	f := newFixture(t, testConfig(), robot.Devices{})

	c := NewTimedDrive(f.robot, 0, time.Second, 0, 0.2, 0)
	f.step(c)
	f.step(c)
	require.Equal(t, 0.2, f.motors[types.WheelLeftFront].power)

	c.Cancel()

	assert.True(t, f.step(c))
	assert.Zero(t, f.motors[types.WheelLeftFront].power)
}

// ===== Range / Vision Tests =====

func TestRangeDriveArmsRangeAndHeading(t *testing.T) {
	rng := &mockDistance{value: 6}
	f := newFixture(t, testConfig(), robot.Devices{Gyro: &mockGyro{}, Range: rng})

	c := NewRangeDrive(f.robot, 6)
	require.Empty(t, c.Disabled())
	f.step(c)

	assert.Equal(t, pid.AxisY|pid.AxisHeading, f.robot.RangePidDrive.Armed())
	f.runUntilDone(t, c, 10)
}

func TestRangeDriveDisabled(t *testing.T) {
	f := newFixture(t, testConfig(), robot.Devices{})

	c := NewRangeDrive(f.robot, 6)

	assert.True(t, f.step(c))
	assert.Equal(t, "Range sensor is disabled.", f.dash.lines[InfoLine])
}

func TestVisionDriveWaitsOnBearingAndHeading(t *testing.T) {
	cam := &mockBearing{bearing: 8, ok: true}
	f := newFixture(t, testConfig(), robot.Devices{Gyro: &mockGyro{}, Vision: cam})

	c := NewVisionDrive(f.robot)
	f.step(c)
	f.step(c)

	assert.Equal(t, pid.AxisX|pid.AxisHeading, c.Axes())
	assert.True(t, f.robot.VisionPidDrive.IsActive())

	cam.bearing = 0
	f.runUntilDone(t, c, 10)
}

func TestVisionDriveWaitsForTargetInView(t *testing.T) {
	cam := &mockBearing{ok: false}
	f := newFixture(t, testConfig(), robot.Devices{Gyro: &mockGyro{}, Vision: cam})

	c := NewVisionDrive(f.robot)
	for i := 0; i < 20; i++ {
		require.False(t, f.step(c), "finished at tick %d with no target in view", i+1)
	}
	assert.True(t, f.robot.VisionPidDrive.IsActive())
	assert.False(t, f.robot.VisionPid.OnTarget())
	assert.Zero(t, f.robot.VisionPid.Output())

	cam.ok = true
	f.runUntilDone(t, c, 10)
	assert.False(t, f.robot.VisionPidDrive.TimedOut())
}

func TestVisionReportAnnouncesTargetChanges(t *testing.T) {
	cam := &mockBearing{ok: false}
	f := newFixture(t, testConfig(), robot.Devices{Vision: cam})

	c := NewVisionReport(f.robot)
	f.step(c)
	f.step(c)
	assert.Empty(t, f.speaker.sentences, "nothing to announce before a target was seen")
	assert.Equal(t, "Bearing: none", f.dash.lines[InfoLine+1])

	cam.ok = true
	cam.bearing = 4
	f.step(c)
	f.step(c)
	assert.True(t, c.InView())
	assert.Equal(t, []string{"Target is in view."}, f.speaker.sentences)
	assert.Equal(t, "Target is in view.", f.dash.lines[InfoLine])
	assert.Equal(t, "Bearing: 4.0", f.dash.lines[InfoLine+1])

	cam.ok = false
	for i := 0; i < 5; i++ {
		require.False(t, f.step(c), "vision report never finishes on its own")
	}
	assert.Equal(t, []string{"Target is in view.", "Target is out of view."}, f.speaker.sentences)
	assert.Equal(t, "Target is out of view.", f.dash.lines[InfoLine])

	c.Cancel()
	assert.True(t, f.step(c))
}

func TestVisionReportDisabled(t *testing.T) {
	f := newFixture(t, testConfig(), robot.Devices{})

	c := NewVisionReport(f.robot)

	assert.Equal(t, "Vision is disabled.", c.Disabled())
	assert.True(t, f.step(c))
	assert.Empty(t, f.speaker.sentences)
}

func TestVisionDriveDisabled(t *testing.T) {
	f := newFixture(t, testConfig(), robot.Devices{})

	c := NewVisionDrive(f.robot)

	assert.Equal(t, "Vision is disabled.", c.Disabled())
	assert.True(t, f.step(c))
}

// ===== MotorsDiagnostic Tests =====

func TestMotorsDiagnosticRunsOneWheelAtATime(t *testing.T) {
	f := newFixture(t, testConfig(), robot.Devices{})

	c := NewMotorsDiagnostic(f.robot, 0.5, 100*time.Millisecond)
	seen := map[types.Wheel]bool{}
	for i := 0; i < 100; i++ {
		if f.step(c) {
			break
		}
		powered := 0
		for w, m := range f.motors {
			if m.power != 0 {
				powered++
				assert.Equal(t, 0.5, m.power)
				seen[types.Wheel(w)] = true
			}
		}
		assert.LessOrEqual(t, powered, 1)
	}

	assert.Len(t, seen, types.NumWheels)
	assert.Equal(t, "STOPPED", c.State())
	for _, m := range f.motors {
		assert.Zero(t, m.power)
	}
}

func TestMotorsDiagnosticFlagsStuckWheel(t *testing.T) {
	f := newFixture(t, testConfig(), robot.Devices{})
	f.countsPerTick = 100
	f.motors[types.WheelRightRear].stuck = true
	before := testutil.ToFloat64(metrics.StuckWheelAlerts.WithLabelValues("right rear"))

	c := NewMotorsDiagnostic(f.robot, 0.5, 100*time.Millisecond)
	f.runUntilDone(t, c, 100)

	assert.Equal(t, []types.Wheel{types.WheelRightRear}, c.Stuck())
	assert.Zero(t, c.Deltas()[types.WheelRightRear])
	assert.Positive(t, c.Deltas()[types.WheelLeftFront])
	assert.Equal(t, []string{"right rear wheel is stuck."}, f.speaker.sentences)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.StuckWheelAlerts.WithLabelValues("right rear")))
}

func TestMotorsDiagnosticHealthyWheels(t *testing.T) {
	f := newFixture(t, testConfig(), robot.Devices{})
	f.countsPerTick = 100

	c := NewMotorsDiagnostic(f.robot, 0.5, 100*time.Millisecond)
	f.runUntilDone(t, c, 100)

	assert.Empty(t, c.Stuck())
	assert.Empty(t, f.speaker.sentences)
}

// ===== SensorsReport Tests =====

func TestSensorsReportRunsUntilCancelled(t *testing.T) {
	devices, _, _, _ := allSensors()
	ranging := devices.Ranging.(*mockRanging)
	f := newFixture(t, testConfig(), devices)

	c := NewSensorsReport(f.robot)
	for i := 0; i < 100; i++ {
		require.False(t, f.step(c), "sensors report never finishes on its own")
	}
	assert.Equal(t, "Sonar: l=20.0,r=20.0,f=20.0", f.dash.lines[InfoLine+3])
	assert.Equal(t, "Range sensor is disabled.", f.dash.lines[InfoLine+4])
	assert.Equal(t, "Vision is disabled.", f.dash.lines[InfoLine+5])
	assert.Equal(t, 1, ranging.starts)

	c.Cancel()

	assert.True(t, f.step(c))
	assert.Equal(t, 1, ranging.stops)
}
