package pid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maneuver-service/internal/logger"
	"maneuver-service/internal/sm"
)

type mockBase struct {
	x, y, rot float64
	drives    int
	stops     int
}

func (b *mockBase) MecanumDrive(x, y, rot float64) {
	b.x, b.y, b.rot = x, y, rot
	b.drives++
}

func (b *mockBase) Stop() {
	b.x, b.y, b.rot = 0, 0, 0
	b.stops++
}

type driveFixture struct {
	clock   *sm.ManualClock
	base    *mockBase
	x, y, h *plant
	drive   *Drive
}

func newDriveFixture() *driveFixture {
	f := &driveFixture{
		clock: sm.NewManualClock(),
		base:  &mockBase{},
		x:     &plant{},
		y:     &plant{},
		h:     &plant{},
	}
	l := logger.NewLogger(nil, logger.LogLevelError)
	f.drive = NewDrive("drive", f.clock, l,
		NewController("x", absConfig(), f.x.read),
		NewController("y", absConfig(), f.y.read),
		NewController("h", absConfig(), f.h.read),
		f.base)
	return f
}

func (f *driveFixture) tick() {
	f.clock.Advance(20 * time.Millisecond)
	f.drive.Tick(f.clock.Now())
}

// ===== Arming Tests =====

func TestDriveSetTargetArmsAllAvailableAxes(t *testing.T) {
	f := newDriveFixture()
	ev := sm.NewEvent("done")

	f.drive.SetTarget(10, 0, 0, false, ev)

	assert.True(t, f.drive.IsActive())
	assert.Equal(t, AxisAll, f.drive.Armed())
	assert.Len(t, f.drive.Controllers(AxisAll), 3)
}

func TestDriveIgnoresAxesWithoutController(t *testing.T) {
	clock := sm.NewManualClock()
	x := &plant{}
	d := NewDrive("sonarX", clock, logger.NewLogger(nil, logger.LogLevelError),
		NewController("x", absConfig(), x.read), nil, nil, &mockBase{})

	d.SetTarget(12, 5, 5, false, sm.NewEvent("done"))

	assert.Equal(t, AxisX, d.Armed())
	assert.Equal(t, "x", d.Armed().String())
}

// ===== Completion Tests =====

func TestDriveSignalsWhenAllArmedAxesOnTarget(t *testing.T) {
	f := newDriveFixture()
	ev := sm.NewEvent("done")
	f.drive.SetTarget(10, 0, 0, false, ev)

	f.tick()
	assert.False(t, ev.IsSignaled())
	assert.InDelta(t, 0.5, f.base.x, 1e-9)

	f.x.value = 10
	f.tick()

	assert.True(t, ev.IsSignaled())
	assert.False(t, f.drive.IsActive())
	assert.Equal(t, 1, f.base.stops)
}

func TestDriveXOnlyIgnoresOtherAxisErrors(t *testing.T) {
	f := newDriveFixture()
	ev := sm.NewEvent("done")
	f.y.value = 500
	f.h.value = 90

	f.drive.SetTargets(Target{Axes: AxisX, X: 0}, false, ev)
	f.tick()

	assert.True(t, ev.IsSignaled())
	assert.False(t, f.drive.IsActive())
}

func TestDriveRegulatesAxesExcludedFromWait(t *testing.T) {
	f := newDriveFixture()
	ev := sm.NewEvent("done")
	f.y.value = 3

	f.drive.SetTargets(Target{Axes: AxisX, X: 10}, false, ev)
	f.tick()

	assert.InDelta(t, 0.5, f.base.x, 1e-9)
	assert.InDelta(t, -0.3, f.base.y, 1e-9, "excluded axis still holds its target")
	assert.Len(t, f.drive.Controllers(f.drive.Armed()), 1)
}

func TestDriveSignalsExactlyOnce(t *testing.T) {
	f := newDriveFixture()
	ev := sm.NewEvent("done")
	f.drive.SetTarget(0, 0, 0, false, ev)

	f.tick()
	require.True(t, ev.IsSignaled())
	ev.Clear()

	for i := 0; i < 5; i++ {
		f.tick()
	}
	assert.False(t, ev.IsSignaled())
	assert.Equal(t, 1, f.base.stops)
}

func TestDriveNeverSignalsWhileAxisOff(t *testing.T) {
	f := newDriveFixture()
	ev := sm.NewEvent("done")
	f.drive.SetTarget(10, 10, 0, false, ev)

	f.x.value = 10
	for i := 0; i < 10; i++ {
		f.tick()
		assert.False(t, ev.IsSignaled())
		assert.True(t, f.drive.IsActive())
	}
}

// ===== Retarget / Cancel Tests =====

func TestDriveDoubleArmRetargets(t *testing.T) {
	f := newDriveFixture()
	first := sm.NewEvent("first")
	second := sm.NewEvent("second")
	f.drive.SetTarget(10, 0, 0, false, first)
	f.tick()

	f.drive.SetTarget(-10, 0, 0, false, second)
	f.tick()
	assert.InDelta(t, -0.5, f.base.x, 1e-9, "new target must drive the base")

	f.x.value = -10
	f.tick()
	assert.False(t, first.IsSignaled())
	assert.True(t, second.IsSignaled())
}

func TestDriveCancel(t *testing.T) {
	f := newDriveFixture()
	ev := sm.NewEvent("done")
	f.drive.SetTarget(10, 0, 0, false, ev)
	f.tick()

	f.drive.Cancel()
	f.x.value = 10
	f.tick()

	assert.False(t, f.drive.IsActive())
	assert.False(t, ev.IsSignaled())
	assert.Equal(t, 1, f.base.stops)
}

// ===== Hold / Timeout Tests =====

func TestDriveHoldKeepsRegulating(t *testing.T) {
	f := newDriveFixture()
	ev := sm.NewEvent("done")
	f.drive.SetTarget(10, 0, 0, true, ev)
	f.x.value = 10

	f.tick()
	require.True(t, ev.IsSignaled())
	assert.True(t, f.drive.IsHolding())
	assert.Zero(t, f.base.stops)

	f.x.value = 5
	f.tick()
	assert.InDelta(t, 0.5, f.base.x, 1e-9)
}

func TestDriveTimeout(t *testing.T) {
	f := newDriveFixture()
	ev := sm.NewEvent("done")
	f.drive.SetTargets(Target{Axes: AxisX, X: 100, Timeout: 100 * time.Millisecond}, false, ev)

	for i := 0; i < 4; i++ {
		f.tick()
		assert.False(t, ev.IsSignaled())
	}
	f.tick()

	assert.True(t, ev.IsSignaled())
	assert.True(t, f.drive.TimedOut())
	assert.False(t, f.drive.IsActive())
	assert.Equal(t, 1, f.base.stops)
}
