package sm

import "time"

// Task is anything that produces events from the periodic tick.
type Task interface {
	Tick(now time.Duration)
}

// TaskFunc adapts a plain function to Task.
type TaskFunc func(now time.Duration)

func (f TaskFunc) Tick(now time.Duration) { f(now) }

// Scheduler ticks registered tasks in registration order. It is not safe
// for concurrent use; everything runs on the control loop.
type Scheduler struct {
	clock Clock
	tasks []Task
}

func NewScheduler(clock Clock) *Scheduler {
	return &Scheduler{clock: clock}
}

func (s *Scheduler) Clock() Clock {
	return s.clock
}

func (s *Scheduler) Register(tasks ...Task) {
	s.tasks = append(s.tasks, tasks...)
}

// NewTimer creates a timer on the scheduler clock and registers it.
func (s *Scheduler) NewTimer(name string) *Timer {
	t := NewTimer(name, s.clock)
	s.Register(t)
	return t
}

// Tick runs every task once against the current clock reading and returns
// that reading.
func (s *Scheduler) Tick() time.Duration {
	now := s.clock.Now()
	for _, task := range s.tasks {
		task.Tick(now)
	}
	return now
}
