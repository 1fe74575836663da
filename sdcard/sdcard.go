// https://github.com/devicebridge/firmware
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package sdcard implements the SD-card sink (spec.md §4.7, §6): capture
// files are written as ordinary FAT files named with a zero-padded
// counter, over an SPI/SDIO bus whose card-detect and write-protect sense
// pins are sampled on mount. The FAT semantics themselves are provided by
// the host OS/card controller; this package only owns the card presence
// state machine and the filename policy, adapted from the teacher's
// usdhc driver's own mount-time voltage/card detection sequencing
// (imx6/usdhc/sd.go) down to the parts relevant to a file sink rather than
// a full block-device driver.
package sdcard

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"periph.io/x/conn/v3/gpio"
)

var (
	ErrNotPresent     = errors.New("sdcard: not present")
	ErrWriteProtected = errors.New("sdcard: write protected")
)

// Pins groups the card-detect (active-low) and write-protect (active-high)
// sense pins sampled on Mount (spec.md §6).
type Pins struct {
	CardDetect   gpio.PinIn
	WriteProtect gpio.PinIn
}

// Card is the SD card sink.
type Card struct {
	pins   Pins
	dir    string
	prefix string
	ext    string

	present       bool
	writeProtect  bool
	counter       int
	file          *os.File
}

// New builds an SD sink rooted at dir, naming files
// "<prefix><counter><ext>" with a 4-digit zero-padded counter; ext carries
// its own leading dot (e.g. ".bin").
func New(pins Pins, dir, prefix, ext string) *Card {
	return &Card{pins: pins, dir: dir, prefix: prefix, ext: ext}
}

// Mount samples the card-detect and write-protect pins; hot-swap is
// supported by calling Mount again before the next Begin.
func (c *Card) Mount() error {
	c.present = c.pins.CardDetect == nil || c.pins.CardDetect.Read() == gpio.Low
	c.writeProtect = c.pins.WriteProtect != nil && c.pins.WriteProtect.Read() == gpio.High

	if !c.present {
		return ErrNotPresent
	}

	return nil
}

// Begin implements storage.Sink.
func (c *Card) Begin(name string) error {
	if !c.present {
		return ErrNotPresent
	}
	if c.writeProtect {
		return ErrWriteProtected
	}

	c.counter++
	fname := fmt.Sprintf("%s%04d%s", c.prefix, c.counter, c.ext)

	f, err := os.OpenFile(filepath.Join(c.dir, fname), os.O_WRONLY|os.O_CREATE|os.O_EXCL|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}

	c.file = f

	return nil
}

// Write implements storage.Sink.
func (c *Card) Write(p []byte) error {
	if c.file == nil {
		return ErrNotPresent
	}
	_, err := c.file.Write(p)
	return err
}

// End implements storage.Sink.
func (c *Card) End() error {
	if c.file == nil {
		return nil
	}
	err := c.file.Close()
	c.file = nil
	return err
}
