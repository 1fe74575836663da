// https://github.com/devicebridge/firmware
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package parallel

import "testing"

func TestNewRingBufferRoundsToPowerOfTwo(t *testing.T) {
	r := NewRingBuffer(10)

	if r.Capacity() != 16 {
		t.Fatalf("expected capacity 16, got %d", r.Capacity())
	}
}

func TestPushPopOrder(t *testing.T) {
	r := NewRingBuffer(4)

	for _, b := range []byte{1, 2, 3} {
		if !r.Push(b) {
			t.Fatalf("push %d: unexpected false", b)
		}
	}

	for _, want := range []byte{1, 2, 3} {
		got, ok := r.Pop()
		if !ok {
			t.Fatalf("pop: expected byte, got empty")
		}
		if got != want {
			t.Errorf("pop order: got %d, want %d", got, want)
		}
	}

	if _, ok := r.Pop(); ok {
		t.Error("pop on empty buffer should report false")
	}
}

func TestPushOverflowSetsFlagAndDropsByte(t *testing.T) {
	r := NewRingBuffer(2)

	if !r.Push(1) || !r.Push(2) {
		t.Fatal("expected first two pushes to succeed")
	}

	if r.Push(3) {
		t.Fatal("push into full buffer should fail")
	}

	if !r.Overflowed() {
		t.Error("expected overflow flag to be set after dropped push")
	}

	if r.Overflowed() {
		t.Error("Overflowed should clear the flag once read")
	}

	got, ok := r.Pop()
	if !ok || got != 1 {
		t.Errorf("dropped byte should not have displaced buffered data, got %d ok=%v", got, ok)
	}
}

func TestPopIntoDrainsUpToDstLen(t *testing.T) {
	r := NewRingBuffer(8)

	for i := byte(0); i < 5; i++ {
		r.Push(i)
	}

	dst := make([]byte, 3)
	n := r.PopInto(dst)

	if n != 3 {
		t.Fatalf("expected 3 bytes copied, got %d", n)
	}

	for i, want := range []byte{0, 1, 2} {
		if dst[i] != want {
			t.Errorf("dst[%d] = %d, want %d", i, dst[i], want)
		}
	}

	if r.Fill() != 2 {
		t.Errorf("expected 2 bytes remaining, got %d", r.Fill())
	}
}

func TestIsEmptyIsFull(t *testing.T) {
	r := NewRingBuffer(2)

	if !r.IsEmpty() {
		t.Error("new buffer should be empty")
	}

	r.Push(1)
	r.Push(2)

	if !r.IsFull() {
		t.Error("buffer at capacity should report full")
	}
}

func TestWraparoundPreservesOrder(t *testing.T) {
	r := NewRingBuffer(4)

	for i := byte(0); i < 4; i++ {
		r.Push(i)
	}
	for i := 0; i < 3; i++ {
		r.Pop()
	}

	for i := byte(10); i < 13; i++ {
		if !r.Push(i) {
			t.Fatalf("push %d after wraparound should succeed", i)
		}
	}

	want := []byte{3, 10, 11, 12}
	for _, w := range want {
		got, ok := r.Pop()
		if !ok || got != w {
			t.Errorf("wraparound order: got %d ok=%v, want %d", got, ok, w)
		}
	}
}
