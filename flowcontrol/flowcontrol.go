// https://github.com/devicebridge/firmware
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package flowcontrol implements the four-state hardware flow-control
// engine (spec.md §4.3): it samples the parallel port ring buffer's fill
// level and drives the status lines to throttle or halt the host before
// the buffer overruns.
package flowcontrol

import (
	"time"

	"periph.io/x/conn/v3/gpio"
)

// State is one of the four flow-control states (spec.md §3).
type State int

const (
	Normal State = iota
	Warning
	Critical
	Emergency
)

func (s State) String() string {
	switch s {
	case Normal:
		return "Normal"
	case Warning:
		return "Warning"
	case Critical:
		return "Critical"
	case Emergency:
		return "Emergency"
	default:
		return "Unknown"
	}
}

// dwell is the minimum time a state must be held before a non-emergency
// transition out of it is permitted (spec.md §3, §4.3 step 3).
var dwell = map[State]time.Duration{
	Normal:   10 * time.Millisecond,
	Warning:  20 * time.Millisecond,
	Critical: 50 * time.Millisecond,
	// Emergency's own dwell only gates the watchdog-free downward path;
	// Emergency itself is always enterable without a dwell check.
	Emergency: 100 * time.Millisecond,
}

// WarnPercent, CriticalPercent, and RecoveryPercent are the package
// defaults used when New is given a zero-valued Thresholds (spec.md §4.3).
// The Emergency threshold is CriticalPercent of capacity, rounded up to
// whole bytes, plus emergencyMarginBytes; emergencyThresholdBytes derives
// it from the buffer's capacity on every tick.
const (
	WarnPercent     = 40
	CriticalPercent = 70
	RecoveryPercent = 40
)

// Thresholds are the percentage-of-capacity fill levels that drive state
// transitions (spec.md §4.3, §6). A zero value for any field falls back to
// that field's package default, so callers that only care about overriding
// one knob don't have to restate the others.
type Thresholds struct {
	WarnPercent, CriticalPercent, RecoveryPercent int
}

func (t Thresholds) withDefaults() Thresholds {
	if t.WarnPercent == 0 {
		t.WarnPercent = WarnPercent
	}
	if t.CriticalPercent == 0 {
		t.CriticalPercent = CriticalPercent
	}
	if t.RecoveryPercent == 0 {
		t.RecoveryPercent = RecoveryPercent
	}
	return t
}

// emergencyMarginBytes is the fixed byte margin added on top of
// CriticalPercent to derive the Emergency threshold (spec.md §4.3).
const emergencyMarginBytes = 10

// SignalSetupTime is the settle delay after writing the pin pattern for a
// new state, so the host latches it before the next STROBE.
const SignalSetupTime = 2 * time.Microsecond

// EmergencyWatchdog forces Normal if the engine has been stuck in
// Emergency for this long (spec.md §4.3 step 5).
const EmergencyWatchdog = 20 * time.Second

// FillSource reports the current ring-buffer occupancy and its capacity.
type FillSource interface {
	Fill() int
	Capacity() int
}

// Lines are the four status pins the engine drives.
type Lines struct {
	Busy      gpio.PinOut
	ErrorLine gpio.PinOut // active-low
	PaperOut  gpio.PinOut
	Select    gpio.PinOut
}

// pattern describes the pin levels for a given state (spec.md §4.3 table).
type pattern struct {
	busy, errLine, paperOut, sel gpio.Level
}

var patterns = map[State]pattern{
	Normal:    {gpio.Low, gpio.High, gpio.Low, gpio.High},
	Warning:   {gpio.High, gpio.High, gpio.Low, gpio.High},
	Critical:  {gpio.High, gpio.High, gpio.High, gpio.High},
	Emergency: {gpio.High, gpio.Low, gpio.High, gpio.Low},
}

// Counters tracks transition and emergency-entry counts for the
// diagnostics/display collaborators (SPEC_FULL.md §3.1).
type Counters struct {
	Transitions int
	Emergencies int
}

// Engine is the flow control state machine (component C).
type Engine struct {
	fill  FillSource
	lines Lines

	thresholds Thresholds

	emergencyThreshold int // not assigned; Tick uses emergencyThresholdBytes

	state      State
	enteredAt  time.Time
	emergentAt time.Time

	Counters Counters

	now   func() time.Time
	sleep func(time.Duration)
}

// New builds a flow control engine, starting in Normal with the pin
// pattern for Normal already applied. A zero-valued thresholds uses the
// package defaults (config.Bridge's WarnPercent/CriticalPercent/
// RecoveryPercent, spec.md §6).
func New(fill FillSource, lines Lines, thresholds Thresholds) *Engine {
	e := &Engine{
		fill:       fill,
		lines:      lines,
		thresholds: thresholds.withDefaults(),
		state:      Normal,
		now:        time.Now,
		sleep:      time.Sleep,
	}
	e.enteredAt = e.now()
	e.apply(Normal)
	return e
}

// Normal reports whether the engine's current state is Normal; this
// satisfies parallel.FlowState so the port ISR can decide whether it owns
// lowering BUSY.
func (e *Engine) Normal() bool {
	return e.State() == Normal
}

// State returns the current flow state.
func (e *Engine) State() State {
	return e.state
}

// emergencyThresholdBytes returns the byte-fill level at or above which the
// target state is Emergency: CriticalPercent of capacity plus a fixed
// 10-byte margin (spec.md §4.3).
func (e *Engine) emergencyThresholdBytes() int {
	cap := e.fill.Capacity()
	return (cap*e.thresholds.CriticalPercent+99)/100 + emergencyMarginBytes
}

func pct(fill, capacity int) int {
	if capacity == 0 {
		return 0
	}
	return fill * 100 / capacity
}

// Tick runs one flow-control cycle; called from the main loop at >= 1kHz
// (spec.md §4.3).
func (e *Engine) Tick() {
	now := e.now()
	fill := e.fill.Fill()
	capacity := e.fill.Capacity()
	fillPct := pct(fill, capacity)

	target := e.target(fill, fillPct)

	if target == Emergency && e.state != Emergency {
		e.transition(Emergency, now)
	} else if target != e.state {
		if now.Sub(e.enteredAt) >= dwell[e.state] || (e.state == Emergency && target == Normal) {
			e.transition(target, now)
		}
	}

	// Emergency watchdog: force Normal regardless of fill if stuck too long.
	if e.state == Emergency && now.Sub(e.emergentAt) > EmergencyWatchdog {
		e.transition(Normal, now)
	}
}

// target derives the state the fill level alone would select, preserving
// the current state inside the hysteresis band between RecoveryPercent and
// WarnPercent (spec.md §4.3 step 1).
func (e *Engine) target(fill, fillPct int) State {
	switch {
	case fill >= e.emergencyThresholdBytes():
		return Emergency
	case fillPct >= e.thresholds.CriticalPercent:
		return Critical
	case fillPct >= e.thresholds.WarnPercent:
		return Warning
	case fillPct <= e.thresholds.RecoveryPercent:
		return Normal
	default:
		return e.state
	}
}

func (e *Engine) transition(to State, now time.Time) {
	if to == Emergency && e.state != Emergency {
		e.Counters.Emergencies++
		e.emergentAt = now
	}

	e.apply(to)

	e.state = to
	e.enteredAt = now
	e.Counters.Transitions++
}

func (e *Engine) apply(state State) {
	p := patterns[state]

	if e.lines.Busy != nil {
		e.lines.Busy.Out(p.busy)
	}
	if e.lines.ErrorLine != nil {
		e.lines.ErrorLine.Out(p.errLine)
	}
	if e.lines.PaperOut != nil {
		e.lines.PaperOut.Out(p.paperOut)
	}
	if e.lines.Select != nil {
		e.lines.Select.Out(p.sel)
	}

	e.sleep(SignalSetupTime)
}

// Interval returns the tick period the cooperative scheduler should use to
// satisfy the ">= 1kHz" requirement of spec.md §4.3.
func Interval() time.Duration {
	return time.Millisecond
}
