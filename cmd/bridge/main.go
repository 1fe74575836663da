// https://github.com/devicebridge/firmware
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// +build tamago,arm

// Parallel port capture bridge firmware for tamago/arm running on the USB
// armory Mk II.
package main

import (
	"fmt"
	"io/ioutil"
	"log"
	"os"

	"periph.io/x/conn/v3/gpio"
	_ "github.com/usbarmory/tamago/board/usbarmory/mk2"

	"github.com/devicebridge/firmware/board/bridge"
	"github.com/devicebridge/firmware/config"
)

const banner = "parallel port capture bridge"
const verbose = true

func init() {
	log.SetFlags(0)

	if verbose {
		log.SetOutput(os.Stdout)
	} else {
		log.SetOutput(ioutil.Discard)
	}
}

// pins is the reference pin table referred to by spec.md §9: the eight
// data lines plus the four control lines and five status lines, each
// mapped to a GPIO pad on the expansion header. Pad/mux/instance numbers
// are the board's own and are supplied by the caller of New in a real
// deployment; this table is the one the reference firmware ships with.
func pins() (hw bridge.Hardware, err error) {
	named := func(name string, num, instance int, mux, pad uint32) (*bridge.Pin, error) {
		return bridge.NewPin(name, num, instance, mux, pad)
	}

	type assign struct {
		name          string
		num, instance int
		mux, pad      uint32
		dst           **bridge.Pin
	}

	var (
		d0, d1, d2, d3, d4, d5, d6, d7 *bridge.Pin
		strobe, autoFeed, initialize, selectIn *bridge.Pin
		ack, busy, paperOut, sel, errLine *bridge.Pin
	)

	table := []assign{
		{"D0", 16, 2, 0x01b8, 0x0360, &d0},
		{"D1", 17, 2, 0x01bc, 0x0364, &d1},
		{"D2", 18, 2, 0x01c0, 0x0368, &d2},
		{"D3", 19, 2, 0x01c4, 0x036c, &d3},
		{"D4", 20, 2, 0x01c8, 0x0370, &d4},
		{"D5", 21, 2, 0x01cc, 0x0374, &d5},
		{"D6", 22, 2, 0x01d0, 0x0378, &d6},
		{"D7", 23, 2, 0x01d4, 0x037c, &d7},
		{"STROBE", 24, 2, 0x01d8, 0x0380, &strobe},
		{"AUTOFEED", 25, 2, 0x01dc, 0x0384, &autoFeed},
		{"INIT", 26, 2, 0x01e0, 0x0388, &initialize},
		{"SELECT_IN", 27, 2, 0x01e4, 0x038c, &selectIn},
		{"ACK", 28, 2, 0x01e8, 0x0390, &ack},
		{"BUSY", 29, 2, 0x01ec, 0x0394, &busy},
		{"PAPER_OUT", 30, 2, 0x01f0, 0x0398, &paperOut},
		{"SELECT", 31, 2, 0x01f4, 0x039c, &sel},
		{"ERROR", 0, 3, 0x01f8, 0x03a0, &errLine},
	}

	for _, a := range table {
		p, perr := named(a.name, a.num, a.instance, a.mux, a.pad)
		if perr != nil {
			return hw, perr
		}
		*a.dst = p
	}

	hw.Data = [8]gpio.PinIn{d0, d1, d2, d3, d4, d5, d6, d7}
	hw.Strobe, hw.AutoFeed, hw.Initialize, hw.SelectIn = strobe, autoFeed, initialize, selectIn
	hw.Ack, hw.Busy, hw.PaperOut, hw.Select, hw.ErrorLine = ack, busy, paperOut, sel, errLine

	return hw, nil
}

func main() {
	fmt.Println(banner)

	hw, err := pins()
	if err != nil {
		log.Fatalf("pin setup: %v", err)
	}

	hw.Console = os.Stdout

	br, err := bridge.New(hw, config.Default())
	if err != nil {
		log.Fatalf("bridge init: %v", err)
	}

	if err := br.Mount(); err != nil {
		log.Printf("flash mount failed, falling back: %v", err)
	}

	br.Schedule()

	stop := make(chan struct{})
	br.Run(stop)
}
