// https://github.com/devicebridge/firmware
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package storage implements the storage router (component G, spec.md
// §4.7): it dispatches capture chunk events to whichever sink is currently
// active — the flash filesystem, an SD card, or a serial stream — behind a
// single small interface.
package storage

import "errors"

// Sink is the common contract every storage backend implements (spec.md
// §4.7). Kept as a tiny interface rather than a heap of per-sink options so
// the router can hold a single value of whichever concrete sink is active;
// spec.md §9 prefers a compile-time-known tagged set of sinks over dynamic
// plugin discovery, which a 3-method interface with 3 known implementations
// satisfies without virtual-dispatch overhead mattering.
type Sink interface {
	Begin(name string) error
	Write(p []byte) error
	End() error
}

var (
	ErrSinkBeginFailed = errors.New("storage: sink begin failed")
	ErrSinkWriteFailed = errors.New("storage: sink write failed")
	ErrSinkEndFailed   = errors.New("storage: sink end failed")
	ErrNoActiveSink    = errors.New("storage: no sink selected")
)

// Kind names the sink selectable via the serial command shell's `storage`
// command (spec.md §6).
type Kind int

const (
	KindFlash Kind = iota
	KindSD
	KindSerial
)

func (k Kind) String() string {
	switch k {
	case KindFlash:
		return "eeprom"
	case KindSD:
		return "sd"
	case KindSerial:
		return "serial"
	default:
		return "unknown"
	}
}
