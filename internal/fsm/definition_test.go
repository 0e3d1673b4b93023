package fsm

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/librescoot/librefsm"
)

// Mock Actions recording which hooks ran
type mockActions struct {
	mu       sync.Mutex
	canStart bool
	calls    []string
}

func (m *mockActions) record(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
	return nil
}

func (m *mockActions) EnterRunning(c *librefsm.Context) error  { return m.record("EnterRunning") }
func (m *mockActions) EnterStopping(c *librefsm.Context) error { return m.record("EnterStopping") }
func (m *mockActions) EnterDone(c *librefsm.Context) error     { return m.record("EnterDone") }
func (m *mockActions) ExitRunning(c *librefsm.Context) error   { return m.record("ExitRunning") }
func (m *mockActions) OnAbort(c *librefsm.Context) error       { return m.record("OnAbort") }

func (m *mockActions) CanStart(c *librefsm.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.canStart
}

func (m *mockActions) recorded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func startMachine(t *testing.T, actions *mockActions) *librefsm.Machine {
	t.Helper()
	machine, err := NewDefinition(actions).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := machine.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return machine
}

func waitFor(t *testing.T, m *librefsm.Machine, want librefsm.StateID, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if m.CurrentState() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Expected state %s, got %s", want, m.CurrentState())
}

// ===== Lifecycle Tests =====

func TestInitialStateIsIdle(t *testing.T) {
	m := startMachine(t, &mockActions{canStart: true})
	if got := m.CurrentState(); got != StateIdle {
		t.Errorf("Expected idle, got %s", got)
	}
}

func TestStartGuardBlocksUnknownTest(t *testing.T) {
	m := startMachine(t, &mockActions{canStart: false})

	m.Send(librefsm.Event{ID: EvStart})
	time.Sleep(50 * time.Millisecond)

	if got := m.CurrentState(); got != StateIdle {
		t.Errorf("Expected guard to keep idle, got %s", got)
	}
}

func TestCommandDoneRun(t *testing.T) {
	actions := &mockActions{canStart: true}
	m := startMachine(t, actions)

	m.Send(librefsm.Event{ID: EvStart})
	waitFor(t, m, StateRunning, time.Second)
	m.Send(librefsm.Event{ID: EvCommandDone})
	waitFor(t, m, StateDone, time.Second)

	// A finished run can be started again.
	m.Send(librefsm.Event{ID: EvStart})
	waitFor(t, m, StateRunning, time.Second)

	calls := actions.recorded()
	want := []string{"EnterRunning", "ExitRunning", "EnterDone", "EnterRunning"}
	if len(calls) != len(want) {
		t.Fatalf("Expected calls %v, got %v", want, calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("Call %d: expected %s, got %s", i, want[i], calls[i])
		}
	}
}

func TestAbortWaitsForStopTimeout(t *testing.T) {
	actions := &mockActions{canStart: true}
	m := startMachine(t, actions)

	m.Send(librefsm.Event{ID: EvStart})
	waitFor(t, m, StateRunning, time.Second)

	aborted := time.Now()
	m.Send(librefsm.Event{ID: EvAbort})
	waitFor(t, m, StateStopping, time.Second)
	waitFor(t, m, StateDone, 3*time.Second)

	if elapsed := time.Since(aborted); elapsed < StopTimeout-50*time.Millisecond {
		t.Errorf("Expected done after about %s, took %s", StopTimeout, elapsed)
	}
	calls := actions.recorded()
	found := false
	for _, c := range calls {
		if c == "OnAbort" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected OnAbort to run, got %v", calls)
	}
}
