package core

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/librescoot/librefsm"

	"maneuver-service/internal/command"
	"maneuver-service/internal/fsm"
	"maneuver-service/internal/hardware"
	"maneuver-service/internal/metrics"
	"maneuver-service/internal/types"
)

// Ensure TestSystem implements fsm.Actions
var _ fsm.Actions = (*TestSystem)(nil)

// runState converts a lifecycle state to the published run state.
func (s *TestSystem) runState(id librefsm.StateID) types.RunState {
	switch id {
	case fsm.StateIdle:
		return types.RunStateInit
	case fsm.StateRunning:
		return types.RunStateRunning
	case fsm.StateStopping:
		return types.RunStateStopping
	case fsm.StateDone:
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.aborted {
			return types.RunStateAborted
		}
		return types.RunStateDone
	default:
		return types.RunState(string(id))
	}
}

// initFSM builds and starts the run lifecycle machine
func (s *TestSystem) initFSM(ctx context.Context) error {
	def := fsm.NewDefinition(s)
	machine, err := def.Build()
	if err != nil {
		return err
	}
	s.machine = machine

	// Publish the run state on every transition
	s.machine.OnStateChange(func(from, to librefsm.StateID) {
		state := s.runState(to)
		s.logger.Infof("State transition: %s -> %s", from, to)

		s.mu.Lock()
		test, runID := s.test, s.runID
		s.mu.Unlock()

		if err := s.redis.PublishRunState(test, state, runID.String()); err != nil {
			s.logger.Errorf("Failed to publish run state: %v", err)
		}
	})

	if err := s.machine.Start(ctx); err != nil {
		return err
	}

	s.logger.Infof("librefsm state machine started")
	return nil
}

// getCurrentState returns the published run state of the current FSM state
func (s *TestSystem) getCurrentState() types.RunState {
	return s.runState(s.machine.CurrentState())
}

// sendEvent queues an event; transitions run on the machine's goroutine.
func (s *TestSystem) sendEvent(event librefsm.EventID) {
	s.machine.Send(librefsm.Event{ID: event})
}

// === Guards ===

func (s *TestSystem) CanStart(c *librefsm.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := types.ParseTest(string(s.selected)); err != nil {
		s.logger.Warnf("Cannot start: %v", err)
		return false
	}
	return true
}

// === State Entry Actions ===

func (s *TestSystem) EnterRunning(c *librefsm.Context) error {
	s.logger.Debugf("FSM: EnterRunning")

	s.mu.Lock()
	defer s.mu.Unlock()

	s.redis.ClearDashboard()
	s.robot.Base.ResetOdometry()
	s.robot.Sample()

	cmd, err := newCommand(s.robot, s.cfg, s.selected)
	if err != nil {
		s.logger.Errorf("%v", err)
		return err
	}

	s.test = s.selected
	s.command = cmd
	s.runID = uuid.New()
	s.runStart = s.robot.Scheduler.Clock().Now()
	s.doneSent = false
	s.aborted = false

	if reason := cmd.Disabled(); reason != "" {
		s.logger.Warnf("%s cannot run: %s", s.test, reason)
	} else {
		s.setDriveEnable(true)
	}
	s.logger.Infof("Run %s started: %s (%s)", s.runID, s.test, cmd.Name())
	return nil
}

func (s *TestSystem) EnterStopping(c *librefsm.Context) error {
	s.logger.Debugf("FSM: EnterStopping")
	return nil
}

func (s *TestSystem) EnterDone(c *librefsm.Context) error {
	s.logger.Debugf("FSM: EnterDone")

	s.mu.Lock()
	defer s.mu.Unlock()

	s.setDriveEnable(false)
	s.robot.StopRanging()

	result := types.RunStateDone
	if s.aborted {
		result = types.RunStateAborted
	}
	metrics.CommandRuns.WithLabelValues(string(s.test), string(result)).Inc()

	info := runInfo(s.command)
	if err := s.redis.PublishRunResult(s.runID.String(), s.test, result, info); err != nil {
		s.logger.Warnf("Failed to publish run result: %v", err)
	}
	s.logger.Infof("Run %s %s: %s %s", s.runID, result, s.test, info)

	s.command = nil
	return nil
}

// === State Exit Actions ===

// ExitRunning zeroes every output, whichever way the run ended.
func (s *TestSystem) ExitRunning(c *librefsm.Context) error {
	s.logger.Debugf("FSM: ExitRunning")

	s.mu.Lock()
	defer s.mu.Unlock()
	s.robot.Stop()
	return nil
}

// === Transition Actions ===

func (s *TestSystem) OnAbort(c *librefsm.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Infof("Aborting %s", s.test)
	s.aborted = true
	if s.command != nil {
		s.command.Cancel()
	}
	return nil
}

func (s *TestSystem) setDriveEnable(on bool) {
	if s.io == nil {
		return
	}
	if err := s.io.WriteDigitalOutput(hardware.OutputDriveEnable, on); err != nil {
		s.logger.Warnf("Failed to set drive enable to %v: %v", on, err)
	}
}

// runInfo summarizes how a command ended for the run result.
func runInfo(cmd command.Command) string {
	if cmd == nil {
		return ""
	}
	if reason := cmd.Disabled(); reason != "" {
		return reason
	}
	if md, ok := cmd.(*command.MotorsDiagnostic); ok {
		stuck := md.Stuck()
		if len(stuck) == 0 {
			return "all wheels ok"
		}
		names := make([]string, len(stuck))
		for i, w := range stuck {
			names[i] = w.String()
		}
		return "stuck: " + strings.Join(names, ", ")
	}
	return ""
}
