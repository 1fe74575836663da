// https://github.com/devicebridge/firmware
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package capture implements the byte-stream-to-chunk-events framer
// (component D, spec.md §4.4): it watches the ring buffer and detects file
// boundaries, producing NewFile/Data/EndOfFile events for the storage
// router.
package capture

import "time"

// Flags is a bitset of boundary markers carried on a Chunk.
type Flags uint8

const (
	// NewFile marks the first chunk of a file.
	NewFile Flags = 1 << iota
	// EndOfFile marks the (possibly empty) chunk that closes a file.
	EndOfFile
)

func (f Flags) Has(flag Flags) bool { return f&flag != 0 }

// ChunkMax is the maximum payload length of a single chunk (spec.md §3 and
// §9: the 256-byte figure is authoritative over an older 512-byte
// reference in the original comments).
const ChunkMax = 256

// MinChunk is the smallest payload the framer will proactively drain
// before CHUNK_SEND_TIMEOUT_MS elapses (spec.md §4.4).
const MinChunk = 64

// ChunkSendTimeout bounds the latency of slow trailing bytes.
const ChunkSendTimeout = 50 * time.Millisecond

// IdleTimeout is how long the buffer must sit empty before an in-progress
// file is closed (spec.md §3, §4.4).
const IdleTimeout = 2 * time.Second

// Chunk is the triple described in spec.md §3: a payload of at most
// ChunkMax bytes, a set of boundary flags, and the main-loop timestamp at
// emission.
type Chunk struct {
	Payload   []byte
	Flags     Flags
	Timestamp time.Time
}
