// https://github.com/devicebridge/firmware
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package flash

import (
	"testing"
	"time"

	conn "periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// fakeConn is a scripted spi.Conn: each Tx call consumes the next queued
// response, recording every transaction for assertions.
type fakeConn struct {
	responses [][]byte
	calls     [][]byte
}

func (f *fakeConn) String() string { return "fakeConn" }

func (f *fakeConn) Tx(w, r []byte) error {
	f.calls = append(f.calls, append([]byte(nil), w...))

	// Write-only transactions pass a nil r and have nothing queued for
	// them; only transactions that actually read a response consume one.
	if r != nil && len(f.responses) > 0 {
		resp := f.responses[0]
		f.responses = f.responses[1:]
		copy(r, resp)
	}

	return nil
}

func (f *fakeConn) Duplex() conn.Duplex { return conn.Full }

type fakeCS struct{ level gpio.Level }

func (f *fakeCS) Name() string                          { return "CS" }
func (f *fakeCS) String() string                        { return "CS" }
func (f *fakeCS) Number() int                           { return -1 }
func (f *fakeCS) Function() string                      { return "" }
func (f *fakeCS) Halt() error                            { return nil }
func (f *fakeCS) Out(l gpio.Level) error                 { f.level = l; return nil }
func (f *fakeCS) PWM(gpio.Duty, physic.Frequency) error { return nil }

func readyStatusResponse() []byte {
	return []byte{0, 0} // BUSY and WEL both clear
}

func welSetStatusResponse() []byte {
	return []byte{0, statusWEL}
}

func newTestDriver(c *fakeConn) *Driver {
	d := New(c, &fakeCS{}, ExpectedJEDECID)
	d.now = time.Now
	d.sleep = func(time.Duration) {}
	return d
}

func TestInitRejectsUnknownJEDECID(t *testing.T) {
	c := &fakeConn{responses: [][]byte{{0, 0xDE, 0xAD, 0xBE}}}
	d := newTestDriver(c)

	if err := d.Init(); err == nil {
		t.Fatal("expected Init to reject an unrecognized JEDEC ID")
	}
}

func TestInitAcceptsKnownPart(t *testing.T) {
	id := []byte{0, byte(ExpectedJEDECID >> 16), byte(ExpectedJEDECID >> 8), byte(ExpectedJEDECID)}
	c := &fakeConn{responses: [][]byte{id}}
	d := newTestDriver(c)

	if err := d.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	if d.Part().Name != "W25Q128" {
		t.Errorf("expected part name W25Q128, got %q", d.Part().Name)
	}
}

func initializedDriver(t *testing.T) (*Driver, *fakeConn) {
	t.Helper()

	id := []byte{0, byte(ExpectedJEDECID >> 16), byte(ExpectedJEDECID >> 8), byte(ExpectedJEDECID)}
	c := &fakeConn{responses: [][]byte{id}}
	d := newTestDriver(c)

	if err := d.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	return d, c
}

func TestProgramPageRejectsWriteCrossingPageBoundary(t *testing.T) {
	d, _ := initializedDriver(t)

	data := make([]byte, 10)
	addr := uint32(PageSize - 5) // 5 bytes fit, 10 would cross into next page

	if err := d.ProgramPage(addr, data); err != ErrBadAddress {
		t.Fatalf("expected ErrBadAddress for a page-crossing write, got %v", err)
	}
}

func TestProgramPageWithinBoundarySucceeds(t *testing.T) {
	d, c := initializedDriver(t)

	c.responses = [][]byte{
		welSetStatusResponse(), // writeEnable's status read
		readyStatusResponse(),  // pollReady
		readyStatusResponse(),  // final WEL check
	}

	data := []byte{1, 2, 3}
	addr := uint32(PageSize - 3)

	if err := d.ProgramPage(addr, data); err != nil {
		t.Fatalf("ProgramPage: %v", err)
	}
}

func TestReadClipsAtAddressSpaceEnd(t *testing.T) {
	d, c := initializedDriver(t)

	c.responses = [][]byte{
		readyStatusResponse(),
		make([]byte, 4+10), // fake payload returned for the read transaction
	}

	dst := make([]byte, 100)
	n, err := d.Read(AddressSpace-10, dst)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != 10 {
		t.Errorf("expected Read to clip to 10 bytes at end of address space, got %d", n)
	}
}

func TestOperationsRequireInit(t *testing.T) {
	d := newTestDriver(&fakeConn{})

	if _, err := d.Read(0, make([]byte, 1)); err != ErrUninitialized {
		t.Errorf("expected ErrUninitialized from Read before Init, got %v", err)
	}
	if err := d.ProgramPage(0, []byte{1}); err != ErrUninitialized {
		t.Errorf("expected ErrUninitialized from ProgramPage before Init, got %v", err)
	}
	if err := d.EraseSector(0); err != ErrUninitialized {
		t.Errorf("expected ErrUninitialized from EraseSector before Init, got %v", err)
	}
}
