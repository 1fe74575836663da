// https://github.com/devicebridge/firmware
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sdcard

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// fakeIn is a settable gpio.PinIn fake.
type fakeIn struct {
	level gpio.Level
}

func (p *fakeIn) Name() string                 { return "fakeIn" }
func (p *fakeIn) String() string                { return "fakeIn" }
func (p *fakeIn) Number() int                   { return -1 }
func (p *fakeIn) Function() string              { return "" }
func (p *fakeIn) Halt() error                   { return nil }
func (p *fakeIn) In(gpio.Pull, gpio.Edge) error { return nil }
func (p *fakeIn) Read() gpio.Level              { return p.level }
func (p *fakeIn) WaitForEdge(time.Duration) bool { return false }
func (p *fakeIn) Pull() gpio.Pull               { return gpio.PullNoChange }
func (p *fakeIn) DefaultPull() gpio.Pull        { return gpio.PullNoChange }

func TestMountAbsentWhenCardDetectHigh(t *testing.T) {
	c := New(Pins{CardDetect: &fakeIn{level: gpio.High}}, t.TempDir(), "CAP", ".bin")

	if err := c.Mount(); err != ErrNotPresent {
		t.Errorf("expected ErrNotPresent when card-detect reads high, got %v", err)
	}
}

func TestMountPresentWhenCardDetectLow(t *testing.T) {
	c := New(Pins{CardDetect: &fakeIn{level: gpio.Low}}, t.TempDir(), "CAP", ".bin")

	if err := c.Mount(); err != nil {
		t.Fatalf("Mount: %v", err)
	}
}

func TestMountWithNoCardDetectPinAlwaysPresent(t *testing.T) {
	c := New(Pins{}, t.TempDir(), "CAP", ".bin")

	if err := c.Mount(); err != nil {
		t.Fatalf("expected nil card-detect pin to mean always present, got %v", err)
	}
}

func TestBeginRejectsWriteProtectedCard(t *testing.T) {
	c := New(Pins{
		CardDetect:   &fakeIn{level: gpio.Low},
		WriteProtect: &fakeIn{level: gpio.High},
	}, t.TempDir(), "CAP", ".bin")

	if err := c.Mount(); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if err := c.Begin("x"); err != ErrWriteProtected {
		t.Errorf("expected ErrWriteProtected, got %v", err)
	}
}

func TestBeginWithoutMountFailsAsNotPresent(t *testing.T) {
	c := New(Pins{}, t.TempDir(), "CAP", ".bin")

	if err := c.Begin("x"); err != ErrNotPresent {
		t.Errorf("expected ErrNotPresent before Mount is ever called, got %v", err)
	}
}

func TestBeginWriteEndRoundTripUsesCounterBasedName(t *testing.T) {
	dir := t.TempDir()
	c := New(Pins{CardDetect: &fakeIn{level: gpio.Low}}, dir, "CAP", ".bin")

	if err := c.Mount(); err != nil {
		t.Fatalf("Mount: %v", err)
	}

	if err := c.Begin("ignored"); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := c.Write([]byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := c.End(); err != nil {
		t.Fatalf("End: %v", err)
	}

	want := filepath.Join(dir, "CAP0001.bin")
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("expected file %s to exist: %v", want, err)
	}
	if string(data) != "hello" {
		t.Errorf("expected file content %q, got %q", "hello", data)
	}
}

func TestSecondBeginIncrementsCounter(t *testing.T) {
	dir := t.TempDir()
	c := New(Pins{CardDetect: &fakeIn{level: gpio.Low}}, dir, "CAP", ".bin")
	c.Mount()

	c.Begin("a")
	c.End()
	c.Begin("b")
	c.End()

	if _, err := os.Stat(filepath.Join(dir, "CAP0002.bin")); err != nil {
		t.Errorf("expected second file to use counter 2: %v", err)
	}
}

func TestWriteWithoutActiveFileFails(t *testing.T) {
	c := New(Pins{}, t.TempDir(), "CAP", ".bin")

	if err := c.Write([]byte("x")); err != ErrNotPresent {
		t.Errorf("expected ErrNotPresent when writing without an active file, got %v", err)
	}
}

func TestEndWithoutBeginIsNoop(t *testing.T) {
	c := New(Pins{}, t.TempDir(), "CAP", ".bin")

	if err := c.End(); err != nil {
		t.Errorf("expected End without a prior Begin to be a no-op, got %v", err)
	}
}
