// https://github.com/devicebridge/firmware
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package scheduler

import (
	"testing"
	"time"
)

func TestRunOnceTicksDueTasksOnly(t *testing.T) {
	s := New()

	clock := time.Unix(0, 0)
	s.now = func() time.Time { return clock }
	s.sleep = func(time.Duration) {}

	var fastCalls, slowCalls int
	s.Add("fast", time.Millisecond, func(time.Time) { fastCalls++ })
	s.Add("slow", 10*time.Millisecond, func(time.Time) { slowCalls++ })

	s.RunOnce()
	if fastCalls != 1 || slowCalls != 1 {
		t.Fatalf("expected both tasks to run on their first pass, got fast=%d slow=%d", fastCalls, slowCalls)
	}

	clock = clock.Add(2 * time.Millisecond)
	s.RunOnce()
	if fastCalls != 2 {
		t.Errorf("expected fast task to run again after 2ms, got %d", fastCalls)
	}
	if slowCalls != 1 {
		t.Errorf("expected slow task to wait out its 10ms interval, got %d calls", slowCalls)
	}

	clock = clock.Add(10 * time.Millisecond)
	s.RunOnce()
	if slowCalls != 2 {
		t.Errorf("expected slow task to run once its interval elapsed, got %d", slowCalls)
	}
}

func TestRunStopsOnClosedChannel(t *testing.T) {
	s := New()
	s.sleep = func(time.Duration) {}

	var calls int
	s.Add("task", 0, func(time.Time) { calls++ })

	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		s.Run(stop)
		close(done)
	}()

	for calls == 0 {
		time.Sleep(time.Microsecond)
	}
	close(stop)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after stop was closed")
	}
}
