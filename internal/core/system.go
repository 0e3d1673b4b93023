package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/librescoot/librefsm"

	"maneuver-service/internal/command"
	"maneuver-service/internal/config"
	"maneuver-service/internal/fsm"
	"maneuver-service/internal/hardware"
	"maneuver-service/internal/logger"
	"maneuver-service/internal/messaging"
	"maneuver-service/internal/metrics"
	"maneuver-service/internal/robot"
	"maneuver-service/internal/types"
)

// TestSystem is the host control loop. It owns the robot, swaps in one
// command per run and steps it once per tick.
type TestSystem struct {
	cfg     config.Config
	logger  *logger.Logger
	io      HardwareIO
	redis   MessagingClient
	robot   *robot.Robot
	sim     *hardware.SimRobot
	machine *librefsm.Machine

	mu       sync.Mutex
	selected types.Test
	test     types.Test
	command  command.Command
	runID    uuid.UUID
	runStart time.Duration
	doneSent bool
	aborted  bool
}

// NewTestSystem creates the system. io may be nil when no GPIO is fitted.
func NewTestSystem(cfg config.Config, r *robot.Robot, io HardwareIO, redis MessagingClient, l *logger.Logger) *TestSystem {
	return &TestSystem{
		cfg:      cfg,
		logger:   l,
		io:       io,
		redis:    redis,
		robot:    r,
		selected: types.TestSensors,
	}
}

// WithSimulation makes every tick advance sim by one tick period before
// sensors are sampled.
func (s *TestSystem) WithSimulation(sim *hardware.SimRobot) *TestSystem {
	s.sim = sim
	return s
}

// Select picks the test run by a start request that names none.
func (s *TestSystem) Select(test types.Test) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = test
}

func (s *TestSystem) Start(ctx context.Context) error {
	s.logger.Infof("Starting maneuver system")

	s.redis.SetCallbacks(messaging.Callbacks{
		StartCallback: s.handleStartRequest,
		AbortCallback: s.handleAbortRequest,
	})
	if err := s.redis.Connect(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if s.io != nil {
		s.io.SetInitialValue(hardware.OutputDriveEnable, false)
		if err := s.io.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize hardware: %w", err)
		}
	}

	if err := s.initFSM(ctx); err != nil {
		return fmt.Errorf("failed to start state machine: %w", err)
	}

	if err := s.redis.StartListening(); err != nil {
		return fmt.Errorf("failed to start Redis listeners: %w", err)
	}

	s.logger.Infof("Maneuver system started, tick period %s", s.cfg.TickPeriod)
	return nil
}

// Run ticks the control loop until ctx is cancelled.
func (s *TestSystem) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.TickPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Infof("Control loop stopped")
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick runs one control cycle: sample, producers, the active command, then
// telemetry.
func (s *TestSystem) tick() {
	started := time.Now()

	s.mu.Lock()
	if s.sim != nil {
		s.sim.Step(s.cfg.TickPeriod)
	}
	s.robot.Sample()
	now := s.robot.Scheduler.Tick()

	finished := false
	if s.command != nil {
		done := s.command.Periodic(now - s.runStart)
		s.robot.Display(command.StateLine, "%s: %s", s.test, s.command.State())
		if done && !s.doneSent {
			s.doneSent = true
			finished = true
		}
	}
	s.mu.Unlock()

	if finished {
		s.logger.Infof("%s finished", s.test)
		s.sendEvent(fsm.EvCommandDone)
	}

	if err := s.redis.FlushDashboard(); err != nil {
		s.logger.Debugf("Dashboard flush failed: %v", err)
	}
	metrics.TickDuration.Observe(time.Since(started).Seconds())
}

// RequestStart starts a run of test, or of the selected test when test is
// empty. It is ignored while a run is in progress.
func (s *TestSystem) RequestStart(test types.Test) {
	s.mu.Lock()
	if test != "" {
		s.selected = test
	}
	selected := s.selected
	s.mu.Unlock()

	s.logger.Infof("Start requested: %s", selected)
	s.sendEvent(fsm.EvStart)
}

// RequestAbort cancels the running command.
func (s *TestSystem) RequestAbort() {
	s.logger.Infof("Abort requested")
	s.sendEvent(fsm.EvAbort)
}

func (s *TestSystem) Shutdown() {
	if s.machine != nil {
		s.logger.Infof("Shutting down maneuver system in state %s", s.getCurrentState())
	} else {
		s.logger.Infof("Shutting down maneuver system")
	}

	s.mu.Lock()
	if s.command != nil {
		s.command.Cancel()
	}
	s.robot.Stop()
	s.mu.Unlock()

	if s.io != nil {
		if err := s.io.WriteDigitalOutput(hardware.OutputDriveEnable, false); err != nil {
			s.logger.Warnf("Failed to disable drive: %v", err)
		}
		s.io.Cleanup()
	}
	if err := s.redis.Close(); err != nil {
		s.logger.Warnf("Failed to close Redis client: %v", err)
	}
}
