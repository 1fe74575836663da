// https://github.com/devicebridge/firmware
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package parallel implements the Centronics/IEEE-1284 parallel port
// capture path: the strobe-triggered byte reader and the bounded
// single-producer/single-consumer ring buffer that sits between it and the
// rest of the system.
package parallel

import (
	"sync/atomic"
)

// RingBuffer is a bounded single-producer/single-consumer byte queue. The
// producer (the parallel port ISR) calls only Push; the consumer (the
// capture framer, running on the main loop) calls only Pop/PopInto and the
// observers. Capacity is rounded up to the next power of two so occupancy
// can be derived from a pair of ever-increasing indices without a modulo,
// matching the masked-cursor technique used by lock-free SPSC queues.
type RingBuffer struct {
	buf  []byte
	mask uint32

	// head is advanced only by the producer, tail only by the consumer.
	// Both are accessed with the atomic package so that a reader on the
	// other side never observes a torn update; on a single-core target
	// this degrades to a single aligned word load/store, which is all
	// the hardware needs.
	head uint32
	tail uint32

	// overflow is set by the producer when Push is attempted against a
	// full buffer. The consumer clears it after logging.
	overflow uint32
}

// NewRingBuffer allocates a ring buffer of at least capacity bytes, rounded
// up to the next power of two.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 1
	}

	size := uint32(1)
	for int(size) < capacity {
		size <<= 1
	}

	return &RingBuffer{
		buf:  make([]byte, size),
		mask: size - 1,
	}
}

// Capacity returns the number of bytes the buffer can hold.
func (r *RingBuffer) Capacity() int {
	return len(r.buf)
}

// Fill returns the current occupancy. Safe to call from the consumer side
// at any time; reflects the most recent producer-visible head.
func (r *RingBuffer) Fill() int {
	head := atomic.LoadUint32(&r.head)
	tail := atomic.LoadUint32(&r.tail)
	return int(head - tail)
}

// IsEmpty reports whether the buffer currently holds no bytes.
func (r *RingBuffer) IsEmpty() bool {
	return r.Fill() == 0
}

// IsFull reports whether the buffer is at capacity.
func (r *RingBuffer) IsFull() bool {
	return r.Fill() >= len(r.buf)
}

// Overflowed reports whether the producer has dropped at least one byte
// since the previous call to Overflowed, and clears the flag.
func (r *RingBuffer) Overflowed() bool {
	return atomic.SwapUint32(&r.overflow, 0) != 0
}

// Push is the producer-side operation: ISR-safe and wait-free. It appends a
// single byte and returns false if the buffer has no room, in which case
// the byte is dropped and the overflow flag is set. Push must only ever be
// called from the single producer context (the strobe ISR).
func (r *RingBuffer) Push(b byte) bool {
	head := atomic.LoadUint32(&r.head)
	tail := atomic.LoadUint32(&r.tail)

	if head-tail >= uint32(len(r.buf)) {
		atomic.StoreUint32(&r.overflow, 1)
		return false
	}

	r.buf[head&r.mask] = b
	atomic.StoreUint32(&r.head, head+1)

	return true
}

// Pop is the consumer-side operation: wait-free, returns false if the
// buffer is empty. Pop must only ever be called from the single consumer
// context (the main loop / capture framer).
func (r *RingBuffer) Pop() (byte, bool) {
	head := atomic.LoadUint32(&r.head)
	tail := atomic.LoadUint32(&r.tail)

	if tail == head {
		return 0, false
	}

	b := r.buf[tail&r.mask]
	atomic.StoreUint32(&r.tail, tail+1)

	return b, true
}

// PopInto drains up to len(dst) bytes into dst in arrival order, returning
// the number copied.
func (r *RingBuffer) PopInto(dst []byte) int {
	head := atomic.LoadUint32(&r.head)
	tail := atomic.LoadUint32(&r.tail)

	avail := int(head - tail)
	n := len(dst)
	if avail < n {
		n = avail
	}

	for i := 0; i < n; i++ {
		dst[i] = r.buf[(tail+uint32(i))&r.mask]
	}

	atomic.StoreUint32(&r.tail, tail+uint32(n))

	return n
}
