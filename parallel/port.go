// https://github.com/devicebridge/firmware
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package parallel

import (
	"errors"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// ErrGlitch is a diagnostic-only sentinel: the ISR re-read STROBE as high on
// entry and bailed out without capturing a byte. Strobe (and so Poll)
// returns it so tests can assert on the glitch path.
var ErrGlitch = errors.New("parallel: strobe glitch, no byte captured")

// DataBus reads the eight parallel data lines, bit 0 = D0.
type DataBus interface {
	Read() (byte, error)
}

// Lines groups the status and control pins the port driver and the flow
// control engine share. All are periph.io gpio.PinIn/PinOut so the same interfaces
// works against real silicon, a board's register-mapped GPIO block, or
// gpiotest fakes in unit tests.
type Lines struct {
	Strobe     gpio.PinIn  // active-low input, host asserts to signal a byte
	AutoFeed   gpio.PinIn
	Initialize gpio.PinIn
	SelectIn   gpio.PinIn

	Ack       gpio.PinOut // active-low output
	Busy      gpio.PinOut // active-high output
	PaperOut  gpio.PinOut // active-high output
	Select    gpio.PinOut // active-high output
	ErrorLine gpio.PinOut // active-low output
}

// DefaultAckPulse is the minimum host-recognition delay before ACK is raised back
// high. The reference firmware used 20µs for compatibility with older
// instruments; spec.md §9 notes 15µs also appears in some documentation, so
// it is a parameter rather than a constant.
const DefaultAckPulse = 20 * time.Microsecond

// FlowState is read by the ISR to decide whether it may lower BUSY on its
// own (see Port.Strobe step 6). It is the single word the flow control engine
// (package flowcontrol) publishes back to the port driver every tick; the
// port package only needs to know "are we Normal or not", so the interface
// is a single method rather than a dependency on the flowcontrol package
// itself.
type FlowState interface {
	// Normal reports whether the flow controller's current state is Normal.
	Normal() bool
}

// Port is the parallel port capture driver (component A). It owns no
// buffering itself beyond the producer handle into the shared ring buffer;
// everything else is state a single running ISR needs.
type Port struct {
	lines    Lines
	data     DataBus
	ring     *RingBuffer
	flow     FlowState
	ackPulse time.Duration

	sleep func(time.Duration)

	strobeWasHigh bool
}

// NewPort wires a parallel port driver to its GPIO lines, the data bus
// reader, the shared ring buffer producer side, and the flow control
// engine's published state. Initial line states follow spec.md §4.1: ACK
// high, BUSY low, ERROR high (inactive), SELECT high, PAPER_OUT low.
func NewPort(lines Lines, data DataBus, ring *RingBuffer, flow FlowState) (*Port, error) {
	p := &Port{
		lines:         lines,
		data:          data,
		ring:          ring,
		flow:          flow,
		ackPulse:      DefaultAckPulse,
		sleep:         time.Sleep,
		strobeWasHigh: true,
	}

	if err := p.init(); err != nil {
		return nil, err
	}

	return p, nil
}

// SetAckPulse overrides the default ACK pulse width; different instruments
// on the bus may require tuning (spec.md §9).
func (p *Port) SetAckPulse(d time.Duration) {
	p.ackPulse = d
}

func (p *Port) init() error {
	for _, out := range []struct {
		pin   gpio.PinOut
		level gpio.Level
	}{
		{p.lines.Ack, gpio.High},
		{p.lines.Busy, gpio.Low},
		{p.lines.ErrorLine, gpio.High},
		{p.lines.Select, gpio.High},
		{p.lines.PaperOut, gpio.Low},
	} {
		if out.pin == nil {
			continue
		}
		if err := out.pin.Out(out.level); err != nil {
			return err
		}
	}

	return nil
}

// Strobe is the ISR contract of spec.md §4.1, executed with interrupts
// disabled on the STROBE vector. It must never allocate, block, or call
// into the filesystem/serial layers — the ring buffer's Push is the only
// call this function or its callees make into the rest of the system, and
// it is wait-free.
//
// It returns ErrGlitch when the early re-read of STROBE finds it already
// high (a glitch or a bounce landing inside the handler); callers other
// than tests should ignore the return value.
func (p *Port) Strobe() error {
	// Step 1: glitch filter.
	if p.lines.Strobe.Read() == gpio.High {
		return ErrGlitch
	}

	// Step 2: assert BUSY immediately, before touching the data bus.
	p.lines.Busy.Out(gpio.High)

	// Step 3: latch the byte.
	b, err := p.data.Read()
	if err != nil {
		// Even on a data-bus fault we must complete the handshake so the
		// host is not left stalled; the byte is simply not pushed.
		p.ackPulseOut()
		p.lowerBusyIfNormal()
		return err
	}

	// Step 4: ACK pulse.
	p.ackPulseOut()

	// Step 5: push to the ring buffer; overflow is recorded, never retried.
	p.ring.Push(b)

	// Step 6: BUSY is only ours to lower when flow control is Normal;
	// otherwise the flow engine owns it until its next tick.
	p.lowerBusyIfNormal()

	return nil
}

// Poll services a STROBE falling edge by calling Strobe. The i.MX6ULL pad
// driver this board wires (see board/bridge/pins.go) exposes no
// interrupt-on-pin-change register, so there is no GIC line to attach
// Strobe to directly; Poll is the scheduler-driven fallback, registered at
// scheduler.ParallelPortInterval so STROBE is still serviced within
// spec.md §4.1's latency budget. It only calls Strobe once per pulse — a
// level still low on a later poll is not a new edge.
func (p *Port) Poll() error {
	level := p.lines.Strobe.Read()
	edge := p.strobeWasHigh && level == gpio.Low
	p.strobeWasHigh = level == gpio.High

	if !edge {
		return nil
	}

	return p.Strobe()
}

func (p *Port) ackPulseOut() {
	p.lines.Ack.Out(gpio.Low)
	p.sleep(p.ackPulse)
	p.lines.Ack.Out(gpio.High)
}

func (p *Port) lowerBusyIfNormal() {
	if p.flow == nil || p.flow.Normal() {
		p.lines.Busy.Out(gpio.Low)
	}
}
