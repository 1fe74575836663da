// https://github.com/devicebridge/firmware
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package bridge wires the core components (parallel port capture, flow
// control, the capture framer, flash/SD/serial storage, and the
// cooperative scheduler) onto a concrete board's hardware, the way
// github.com/usbarmory/tamago/board/usbarmory/mk2 wires SoC drivers onto
// the USB armory Mk II itself: New assembles the components from the
// board's pin and bus handles, and Mount, Schedule and Run bring up
// storage and start the scheduler, with no dependency injection framework
// beyond passing concrete handles into constructors.
package bridge

import (
	"io"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"

	"github.com/devicebridge/firmware/capture"
	"github.com/devicebridge/firmware/config"
	"github.com/devicebridge/firmware/diag"
	"github.com/devicebridge/firmware/flash"
	"github.com/devicebridge/firmware/flashfs"
	"github.com/devicebridge/firmware/flowcontrol"
	"github.com/devicebridge/firmware/metrics"
	"github.com/devicebridge/firmware/parallel"
	"github.com/devicebridge/firmware/scheduler"
	"github.com/devicebridge/firmware/sdcard"
	"github.com/devicebridge/firmware/storage"
)

// Hardware is every pin and bus handle a board must supply. Each field is
// a periph.io interface so a real board, a register-mapped GPIO block, or
// gpiotest/spitest fakes can all satisfy it (SPEC_FULL.md §2).
type Hardware struct {
	Data [8]gpio.PinIn

	Strobe     gpio.PinIn
	AutoFeed   gpio.PinIn
	Initialize gpio.PinIn
	SelectIn   gpio.PinIn

	Ack       gpio.PinOut
	Busy      gpio.PinOut
	PaperOut  gpio.PinOut
	Select    gpio.PinOut
	ErrorLine gpio.PinOut

	FlashBus spi.Conn
	FlashCS  gpio.PinOut

	SDCardDetect   gpio.PinIn
	SDWriteProtect gpio.PinIn

	Console io.Writer
}

// Bridge is the assembled device: every core component plus the
// cooperative scheduler that drives them.
type Bridge struct {
	cfg config.Bridge

	Ring  *parallel.RingBuffer
	Flow  *flowcontrol.Engine
	Port  *parallel.Port
	Frame *capture.Framer

	Flash  *flash.Driver
	FS     *flashfs.FileSystem
	SD     *sdcard.Card
	Serial *storage.SerialSink
	Router *storage.Router

	Sched *scheduler.Scheduler

	Metrics metrics.Counters
}

// New assembles a Bridge from board hardware and configuration. It does
// not yet mount the flash filesystem or start the scheduler — call Mount
// and Run once the caller is ready.
func New(hw Hardware, cfg config.Bridge) (*Bridge, error) {
	b := &Bridge{cfg: cfg}

	b.Ring = parallel.NewRingBuffer(cfg.RingBufferCapacity)

	flowLines := flowcontrol.Lines{
		Busy:      hw.Busy,
		ErrorLine: hw.ErrorLine,
		PaperOut:  hw.PaperOut,
		Select:    hw.Select,
	}
	thresholds := flowcontrol.Thresholds{
		WarnPercent:     cfg.WarnPercent,
		CriticalPercent: cfg.CriticalPercent,
		RecoveryPercent: cfg.RecoveryPercent,
	}
	b.Flow = flowcontrol.New(b.Ring, flowLines, thresholds)

	portLines := parallel.Lines{
		Strobe:     hw.Strobe,
		AutoFeed:   hw.AutoFeed,
		Initialize: hw.Initialize,
		SelectIn:   hw.SelectIn,
		Ack:        hw.Ack,
		Busy:       hw.Busy,
		PaperOut:   hw.PaperOut,
		Select:     hw.Select,
		ErrorLine:  hw.ErrorLine,
	}
	bus := &parallel.GPIOBus{Lines: hw.Data}

	port, err := parallel.NewPort(portLines, bus, b.Ring, b.Flow)
	if err != nil {
		return nil, err
	}
	port.SetAckPulse(cfg.AckPulse)
	b.Port = port

	b.Router = storage.New(cfg.FilePrefix)
	b.Frame = capture.New(b.Ring, b.Router, capture.Params{ChunkMax: cfg.ChunkMax, IdleTimeout: cfg.IdleTimeout})

	b.Flash = flash.New(hw.FlashBus, hw.FlashCS, cfg.ExpectedFlashJEDECID)
	b.FS = flashfs.New(b.Flash, flash.AddressSpace)

	b.SD = sdcard.New(sdcard.Pins{CardDetect: hw.SDCardDetect, WriteProtect: hw.SDWriteProtect}, "/sd", cfg.FilePrefix, ".bin")

	if hw.Console != nil {
		b.Serial = storage.NewSerialSink(hw.Console, storage.ModeText)
	}

	b.Sched = scheduler.New()

	return b, nil
}

// Mount brings up the flash filesystem, falling back to SD then serial if
// the flash part is unrecognized (SPEC_FULL.md §3 item 2).
func (b *Bridge) Mount() error {
	if err := b.Flash.Init(); err != nil {
		b.Router.SetSinks(nil, b.SD, b.Serial)
		b.Router.Auto()
		return err
	}

	if _, err := b.FS.Mount(); err != nil {
		return err
	}

	flashSink := &flashFileSink{fs: b.FS}
	b.Router.SetSinks(flashSink, b.SD, b.Serial)
	b.Router.Auto()

	return nil
}

// flashFileSink adapts the flash filesystem's create/write/close calls to
// the storage.Sink interface the router expects.
type flashFileSink struct {
	fs *flashfs.FileSystem
	h  *flashfs.Handle
}

func (s *flashFileSink) Begin(name string) error {
	h, err := s.fs.Create(name)
	if err != nil {
		return err
	}
	s.h = h
	return nil
}

func (s *flashFileSink) Write(p []byte) error {
	_, err := s.fs.Write(s.h, p)
	return err
}

func (s *flashFileSink) End() error {
	return s.fs.Close(s.h)
}

// Schedule registers every subsystem on the cooperative scheduler at the
// intervals spec.md §4.8 specifies.
func (b *Bridge) Schedule() {
	b.Sched.Add("parallel", scheduler.ParallelPortInterval, func(time.Time) {
		b.Port.Poll()
	})

	b.Sched.Add("flow", flowcontrol.Interval(), func(time.Time) {
		b.Flow.Tick()
		b.Metrics.FlowTransitions = b.Flow.Counters.Transitions
		b.Metrics.FlowEmergencies = b.Flow.Counters.Emergencies
	})

	b.Sched.Add("capture", scheduler.FilesystemInterval, func(time.Time) {
		b.Frame.Tick()
		b.Metrics.FilesOpened = b.Frame.Counters.FilesOpened
		b.Metrics.SinkBeginErrors = b.Router.Counters.SinkBeginErrors
		b.Metrics.SinkWriteErrors = b.Router.Counters.SinkWriteErrors
		b.Metrics.SinkEndErrors = b.Router.Counters.SinkEndErrors
	})

	b.Sched.Add("overflow", scheduler.FilesystemInterval, func(time.Time) {
		if b.Ring.Overflowed() {
			b.Metrics.RingOverflows++
		}
	})
}

// Run starts the cooperative scheduler; it blocks until stop is closed.
func (b *Bridge) Run(stop <-chan struct{}) {
	b.Sched.Run(stop)
}

// diagSource adapts Bridge to diag.Source.
type diagSource struct{ b *Bridge }

func (d diagSource) RingFill() int                { return d.b.Ring.Fill() }
func (d diagSource) RingCapacity() int            { return d.b.Ring.Capacity() }
func (d diagSource) FlowState() flowcontrol.State { return d.b.Flow.State() }
func (d diagSource) Counters() metrics.Counters   { return d.b.Metrics }

// Diagnostics builds the optional network diagnostics endpoint
// (SPEC_FULL.md §2) bound to this bridge's live state.
func (b *Bridge) Diagnostics() *diag.Server {
	return diag.New(diagSource{b})
}
