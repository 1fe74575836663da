// https://github.com/devicebridge/firmware
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package scheduler implements the cooperative, single-threaded main-loop
// driver (component H, spec.md §4.8): each subsystem declares a tick
// interval and is invoked once that interval has elapsed since its last
// tick. There is no preemption and no priorities; the only preemptive
// context in the system is the parallel port ISR (package parallel).
package scheduler

import "time"

// Task is one cooperatively-scheduled subsystem.
type Task struct {
	Name     string
	Interval time.Duration
	Tick     func(now time.Time)

	last time.Time
}

// Scheduler walks its task list once per loop iteration, running any task
// whose interval has elapsed (spec.md §4.8).
type Scheduler struct {
	tasks []*Task

	now   func() time.Time
	sleep func(time.Duration)

	// IdleWait is the short inter-iteration wait that is the main loop's
	// only suspension point (spec.md §5).
	IdleWait time.Duration
}

// New builds a scheduler. Default intervals match spec.md §4.8's table;
// callers add tasks with Add.
func New() *Scheduler {
	return &Scheduler{
		now:      time.Now,
		sleep:    time.Sleep,
		IdleWait: 10 * time.Microsecond,
	}
}

// Add registers a task. Interval 0 means "run every iteration". A newly
// added task is due on the next pass.
func (s *Scheduler) Add(name string, interval time.Duration, tick func(now time.Time)) {
	s.tasks = append(s.tasks, &Task{Name: name, Interval: interval, Tick: tick})
}

// RunOnce executes a single scheduling pass: every task whose interval has
// elapsed is ticked, then the idle wait elapses.
func (s *Scheduler) RunOnce() {
	now := s.now()

	for _, t := range s.tasks {
		if now.Sub(t.last) >= t.Interval {
			t.Tick(now)
			t.last = now
		}
	}

	s.sleep(s.IdleWait)
}

// Run loops RunOnce until stop is closed. It never returns otherwise —
// matching spec.md §5's "no subsystem blocks, no thread but the main loop
// exists" model.
func (s *Scheduler) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
			s.RunOnce()
		}
	}
}

// Default intervals (spec.md §4.8).
const (
	ParallelPortInterval = time.Millisecond
	FilesystemInterval   = 10 * time.Millisecond
	DisplayInterval      = 100 * time.Millisecond
	TimeInterval         = 1000 * time.Millisecond
	SystemMonitorInterval = 5000 * time.Millisecond
	HeartbeatInterval    = 500 * time.Millisecond
	SerialCommandInterval = 50 * time.Millisecond
)
