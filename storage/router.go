// https://github.com/devicebridge/firmware
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package storage

import (
	"bytes"
	"fmt"

	"github.com/devicebridge/firmware/capture"
	"github.com/devicebridge/firmware/metrics"
)

// magic maps a file-type's signature bytes to an extension (spec.md §4.7).
var magic = []struct {
	sig []byte
	ext string
}{
	{[]byte{0x42, 0x4D}, ".bmp"},
	{[]byte{0x89, 'P', 'N', 'G'}, ".png"},
	{[]byte{0x0A}, ".pcx"}, // PCX manufacturer byte
	{[]byte{'%', '!'}, ".ps"},
	{[]byte{0x49, 0x49, 0x2A, 0x00}, ".tif"},
	{[]byte{0x4D, 0x4D, 0x00, 0x2A}, ".tif"},
}

const defaultExt = ".bin"

func sniffExt(firstPayload []byte) string {
	for _, m := range magic {
		if bytes.HasPrefix(firstPayload, m.sig) {
			return m.ext
		}
	}
	if isLikelyText(firstPayload) {
		return ".txt"
	}
	return defaultExt
}

func isLikelyText(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	for _, c := range b {
		if c == '\n' || c == '\r' || c == '\t' {
			continue
		}
		if c < 0x20 || c > 0x7e {
			return false
		}
	}
	return true
}

// Router dispatches chunk events to the active sink (component G).
type Router struct {
	prefix  string
	sink    Sink
	counter int

	Counters metrics.Counters

	// sinks available for Auto fallback (flash, SD, serial, in that
	// order — SPEC_FULL.md §3 item 2).
	flash, sd, serial Sink
}

// New builds a router with the given filename prefix (e.g. "CAPTURE").
func New(prefix string) *Router {
	return &Router{prefix: prefix}
}

// SetSink selects the active sink directly (the `storage {sd|eeprom|
// serial}` shell command, spec.md §6).
func (r *Router) SetSink(s Sink) {
	r.sink = s
}

// Sink returns the currently active sink.
func (r *Router) Sink() Sink {
	return r.sink
}

// SetSinks registers the three known sinks so Auto() can fall back between
// them.
func (r *Router) SetSinks(flash, sd, serial Sink) {
	r.flash, r.sd, r.serial = flash, sd, serial
}

// Auto selects flash, falling back to SD then serial if flash is
// unavailable (nil), matching original_source's FileSystemRegistry
// ordering (SPEC_FULL.md §3 item 2).
func (r *Router) Auto() {
	switch {
	case r.flash != nil:
		r.sink = r.flash
	case r.sd != nil:
		r.sink = r.sd
	default:
		r.sink = r.serial
	}
}

// Emit implements capture.Emitter: it forwards a chunk event to the active
// sink, incrementing error counters on rejection rather than retrying
// (spec.md §4.7, §7).
func (r *Router) Emit(c capture.Chunk) error {
	if r.sink == nil {
		return ErrNoActiveSink
	}

	if c.Flags.Has(capture.NewFile) {
		r.counter++
		ext := sniffExt(c.Payload)
		name := fmt.Sprintf("%s%04d%s", r.prefix, r.counter, ext)

		if err := r.sink.Begin(name); err != nil {
			r.Counters.SinkBeginErrors++
			return ErrSinkBeginFailed
		}
	}

	if len(c.Payload) > 0 {
		if err := r.sink.Write(c.Payload); err != nil {
			r.Counters.SinkWriteErrors++
			return ErrSinkWriteFailed
		}
	}

	if c.Flags.Has(capture.EndOfFile) {
		if err := r.sink.End(); err != nil {
			r.Counters.SinkEndErrors++
			return ErrSinkEndFailed
		}
	}

	return nil
}
