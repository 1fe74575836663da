// https://github.com/devicebridge/firmware
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package parallel

import (
	"periph.io/x/conn/v3/gpio"
)

// GPIOBus assembles one byte from eight parallel data-line GPIO inputs,
// bit 0 = D0, as required by spec.md §4.1 step 3.
type GPIOBus struct {
	Lines [8]gpio.PinIn
}

// Read samples all eight lines and returns the assembled byte.
func (b *GPIOBus) Read() (byte, error) {
	var v byte

	for i, pin := range b.Lines {
		if pin.Read() == gpio.High {
			v |= 1 << uint(i)
		}
	}

	return v, nil
}
