// https://github.com/devicebridge/firmware
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package flash drives a 24-bit-addressed SPI NOR flash part (component E,
// spec.md §4.5): write enable, page program, sector/chip erase, JEDEC ID,
// and bounded reads, all framed as CS-low / opcode [/ address] [/ payload]
// / CS-high transactions over a periph.io SPI connection.
package flash

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"
)

// Opcodes (spec.md §4.5).
const (
	opWriteEnable  = 0x06
	opWriteDisable = 0x04
	opReadStatus1  = 0x05
	opPageProgram  = 0x02
	opSectorErase  = 0x20
	opBlockErase32 = 0x52
	opBlockErase64 = 0xD8
	opChipErase    = 0xC7
	opRead         = 0x03
	opFastRead     = 0x0B
	opReadJEDECID  = 0x9F
	opPowerDown    = 0xB9
	opReleasePD    = 0xAB
)

// Status register bits (spec.md §4.5).
const (
	statusBusy = 1 << 0
	statusWEL  = 1 << 1
)

// Geometry constants (spec.md §3, §4.5).
const (
	PageSize     = 256
	SectorSize   = 4096
	Block32Size  = 32 * 1024
	Block64Size  = 64 * 1024
	AddressSpace = 16 * 1024 * 1024 // 16 MiB

	ExpectedJEDECID = 0xEF4018 // Winbond-style 128 Mib part, spec.md §4.5/§6
)

// Poll timeouts (spec.md §5).
const (
	pageProgramTimeout = 3 * time.Millisecond
	sectorEraseTimeout = 400 * time.Millisecond
	chipEraseTimeout   = 50 * time.Second
	pollInterval       = 100 * time.Microsecond
)

var (
	ErrUninitialized     = errors.New("flash: not initialized")
	ErrBadAddress        = errors.New("flash: address out of range")
	ErrWriteEnableRefused = errors.New("flash: write enable refused")
	ErrTimeout           = errors.New("flash: status poll timeout")
	ErrWrongChip         = errors.New("flash: unexpected JEDEC ID")
)

// Part names a known JEDEC triple; spec.md §4.5 only names one supported
// part, but SPEC_FULL.md §3 keeps the table shape the retrieval pack's own
// flash driver uses for the next one.
type Part struct {
	ID   uint32
	Name string
}

var knownParts = map[uint32]string{
	ExpectedJEDECID: "W25Q128",
}

// Driver is the SPI NOR flash driver (component E).
type Driver struct {
	conn spi.Conn
	cs   gpio.PinOut

	expectedID uint32

	initialized bool
	part        Part

	now   func() time.Time
	sleep func(time.Duration)
}

// New constructs a driver bound to a SPI connection and chip-select pin.
// expectedID is the only JEDEC ID Init will accept (config.Bridge's
// ExpectedFlashJEDECID, spec.md §4.5/§6); a zero value falls back to
// ExpectedJEDECID. Init must be called before use.
func New(conn spi.Conn, cs gpio.PinOut, expectedID uint32) *Driver {
	if expectedID == 0 {
		expectedID = ExpectedJEDECID
	}
	return &Driver{
		conn:       conn,
		cs:         cs,
		expectedID: expectedID,
		now:        time.Now,
		sleep:      time.Sleep,
	}
}

// tx performs one CS-low .. CS-high SPI transaction.
func (d *Driver) tx(w, r []byte) error {
	if err := d.cs.Out(gpio.Low); err != nil {
		return err
	}

	err := d.conn.Tx(w, r)

	if csErr := d.cs.Out(gpio.High); csErr != nil && err == nil {
		err = csErr
	}

	return err
}

func address(addr uint32) [3]byte {
	return [3]byte{byte(addr >> 16), byte(addr >> 8), byte(addr)}
}

// Init configures the chip-select line, reads the JEDEC ID, and rejects the
// part if it does not match a known, supported device (spec.md §4.5/§6).
func (d *Driver) Init() error {
	if err := d.cs.Out(gpio.High); err != nil {
		return err
	}

	id, err := d.readJEDECID()
	if err != nil {
		return err
	}

	if id != d.expectedID {
		return fmt.Errorf("%w: got %#06x, want %#06x", ErrWrongChip, id, d.expectedID)
	}

	d.part = Part{ID: id, Name: knownParts[id]}
	d.initialized = true

	return nil
}

func (d *Driver) readJEDECID() (uint32, error) {
	w := make([]byte, 4)
	r := make([]byte, 4)
	w[0] = opReadJEDECID

	if err := d.tx(w, r); err != nil {
		return 0, err
	}

	return uint32(r[1])<<16 | uint32(r[2])<<8 | uint32(r[3]), nil
}

// Part returns the identified flash part; valid only after Init succeeds.
func (d *Driver) Part() Part {
	return d.part
}

func (d *Driver) readStatus() (byte, error) {
	w := []byte{opReadStatus1, 0}
	r := make([]byte, 2)

	if err := d.tx(w, r); err != nil {
		return 0, err
	}

	return r[1], nil
}

// pollReady waits for the BUSY bit to clear, or returns ErrTimeout.
func (d *Driver) pollReady(timeout time.Duration) error {
	deadline := d.now().Add(timeout)

	for {
		sr, err := d.readStatus()
		if err != nil {
			return err
		}
		if sr&statusBusy == 0 {
			return nil
		}
		if d.now().After(deadline) {
			return ErrTimeout
		}
		d.sleep(pollInterval)
	}
}

func (d *Driver) writeEnable() error {
	if err := d.tx([]byte{opWriteEnable}, nil); err != nil {
		return err
	}

	sr, err := d.readStatus()
	if err != nil {
		return err
	}
	if sr&statusWEL == 0 {
		return ErrWriteEnableRefused
	}

	return nil
}

// Read reads len(dst) bytes starting at addr, clipping so addr+len never
// exceeds the flash's address space (spec.md §4.5).
func (d *Driver) Read(addr uint32, dst []byte) (int, error) {
	if !d.initialized {
		return 0, ErrUninitialized
	}
	if addr >= AddressSpace {
		return 0, ErrBadAddress
	}

	n := len(dst)
	if uint64(addr)+uint64(n) > AddressSpace {
		n = AddressSpace - int(addr)
	}

	if err := d.pollReady(pageProgramTimeout); err != nil {
		return 0, err
	}

	a := address(addr)
	w := make([]byte, 4+n)
	w[0] = opRead
	copy(w[1:4], a[:])
	r := make([]byte, len(w))

	if err := d.tx(w, r); err != nil {
		return 0, err
	}

	copy(dst, r[4:])

	return n, nil
}

// ProgramPage writes up to 256 bytes within a single page (spec.md §4.5):
// addr%256+len must not exceed 256.
func (d *Driver) ProgramPage(addr uint32, data []byte) error {
	if !d.initialized {
		return ErrUninitialized
	}
	if addr >= AddressSpace || int(addr%PageSize)+len(data) > PageSize {
		return ErrBadAddress
	}

	if err := d.writeEnable(); err != nil {
		return err
	}

	a := address(addr)
	w := make([]byte, 4+len(data))
	w[0] = opPageProgram
	copy(w[1:4], a[:])
	copy(w[4:], data)

	if err := d.tx(w, nil); err != nil {
		return err
	}

	if err := d.pollReady(pageProgramTimeout); err != nil {
		return err
	}

	sr, err := d.readStatus()
	if err != nil {
		return err
	}
	if sr&statusWEL != 0 {
		return ErrWriteEnableRefused
	}

	return nil
}

// EraseSector erases the 4KiB sector containing addr, aligning addr down
// to the sector boundary first (spec.md §4.5).
func (d *Driver) EraseSector(addr uint32) error {
	if !d.initialized {
		return ErrUninitialized
	}
	if addr >= AddressSpace {
		return ErrBadAddress
	}

	aligned := addr &^ (SectorSize - 1)

	if err := d.writeEnable(); err != nil {
		return err
	}

	a := address(aligned)
	w := []byte{opSectorErase, a[0], a[1], a[2]}

	if err := d.tx(w, nil); err != nil {
		return err
	}

	return d.pollReady(sectorEraseTimeout)
}

// EraseChip erases the entire part.
func (d *Driver) EraseChip() error {
	if !d.initialized {
		return ErrUninitialized
	}

	if err := d.writeEnable(); err != nil {
		return err
	}

	if err := d.tx([]byte{opChipErase}, nil); err != nil {
		return err
	}

	return d.pollReady(chipEraseTimeout)
}
