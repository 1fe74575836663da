// https://github.com/devicebridge/firmware
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package capture

import "time"

// FillReader is the consumer side of the ring buffer the framer drains.
type FillReader interface {
	Fill() int
	PopInto(dst []byte) int
}

// Emitter receives chunk events. The storage router (package storage)
// implements this; tests use a slice-collecting fake.
type Emitter interface {
	Emit(Chunk) error
}

// Counters accumulates the framer's own bookkeeping for the diagnostics
// surface (SPEC_FULL.md §3.1).
type Counters struct {
	FilesOpened int
	EmitErrors  int
}

// Params are the per-bridge chunking knobs (config.Bridge's ChunkMax and
// IdleTimeout, spec.md §6). A zero field falls back to this package's
// default const, so a caller only overriding one knob doesn't have to
// restate the other.
type Params struct {
	ChunkMax    int
	IdleTimeout time.Duration
}

func (p Params) withDefaults() Params {
	if p.ChunkMax == 0 {
		p.ChunkMax = ChunkMax
	}
	if p.IdleTimeout == 0 {
		p.IdleTimeout = IdleTimeout
	}
	return p
}

// Framer implements component D: it drains the ring buffer in bounded
// chunks and detects file boundaries by idleness (spec.md §4.4).
type Framer struct {
	src    FillReader
	out    Emitter
	params Params

	inFile        bool
	lastDataTime  time.Time
	bytesThisFile uint32
	haveLastData  bool

	pendingSince time.Time
	havePending  bool

	Counters Counters

	now func() time.Time
}

// New builds a framer draining src and emitting boundary-tagged chunks to
// out. A zero-valued params uses the package defaults (ChunkMax,
// IdleTimeout).
func New(src FillReader, out Emitter, params Params) *Framer {
	return &Framer{
		src:    src,
		out:    out,
		params: params.withDefaults(),
		now:    time.Now,
	}
}

// Tick runs one framer cycle (spec.md §4.4).
func (f *Framer) Tick() {
	now := f.now()
	fill := f.src.Fill()

	if fill > 0 {
		f.onData(now, fill)
		return
	}

	f.onIdle(now)
}

// onData implements the chunk-sizing policy (spec.md §4.4): bytes sit in
// the ring until either MinChunk has accumulated or ChunkSendTimeout has
// elapsed since the first byte of the pending run arrived, whichever
// comes first. This trades a little latency for fewer, fuller writes to
// the storage sinks without ever holding a byte longer than
// ChunkSendTimeout.
func (f *Framer) onData(now time.Time, fill int) {
	f.lastDataTime = now
	f.haveLastData = true

	if !f.havePending {
		f.pendingSince = now
		f.havePending = true
	}

	if fill < MinChunk && now.Sub(f.pendingSince) < ChunkSendTimeout {
		return
	}

	var flags Flags

	if !f.inFile {
		f.inFile = true
		flags |= NewFile
		f.Counters.FilesOpened++
		f.bytesThisFile = 0
	}

	n := fill
	if n > f.params.ChunkMax {
		n = f.params.ChunkMax
	}

	buf := make([]byte, n)
	copied := f.src.PopInto(buf)
	buf = buf[:copied]

	f.bytesThisFile += uint32(copied)
	f.havePending = false

	f.emit(Chunk{Payload: buf, Flags: flags, Timestamp: now})
}

func (f *Framer) onIdle(now time.Time) {
	if !f.haveLastData {
		f.lastDataTime = now
		f.haveLastData = true
	}

	idle := now.Sub(f.lastDataTime)

	if f.inFile && idle >= f.params.IdleTimeout {
		f.inFile = false
		f.bytesThisFile = 0
		f.emit(Chunk{Flags: EndOfFile, Timestamp: now})
	}
}

// emit forwards a chunk to the sink; a rejection is not retried, per
// spec.md §4.4's failure semantics — the chunk is lost and an error
// counter increments.
func (f *Framer) emit(c Chunk) {
	if err := f.out.Emit(c); err != nil {
		f.Counters.EmitErrors++
	}
}

// InFile reports whether a file capture is currently open.
func (f *Framer) InFile() bool {
	return f.inFile
}

// BytesThisFile returns the running byte count of the open file, or 0 if
// none is open.
func (f *Framer) BytesThisFile() uint32 {
	return f.bytesThisFile
}
