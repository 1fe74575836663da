// https://github.com/devicebridge/firmware
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// pins.go adapts github.com/usbarmory/tamago/soc/imx6's register-mapped
// GPIO driver to the periph.io gpio.PinIO interface the rest of the tree
// is written against. Board pin tables elsewhere in the TamaGo ecosystem
// assign raw pad numbers directly to imx6.NewGPIO; this carries the
// result one step further so package parallel and package flowcontrol
// never import soc/imx6 directly.
package bridge

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"

	"github.com/usbarmory/tamago/soc/imx6"
)

// Pin wraps an imx6.GPIO pad as a periph.io gpio.PinIO.
type Pin struct {
	name string
	g    *imx6.GPIO
}

// NewPin configures pad/mux/instance/num as a GPIO (spec.md §9's pin table
// is supplied by the board, not hardcoded here) and wraps it.
func NewPin(name string, num, instance int, mux, pad uint32) (*Pin, error) {
	g, err := imx6.NewGPIO(num, instance, mux, pad)
	if err != nil {
		return nil, fmt.Errorf("bridge: pin %s: %w", name, err)
	}
	return &Pin{name: name, g: g}, nil
}

func (p *Pin) Name() string     { return p.name }
func (p *Pin) String() string   { return p.name }
func (p *Pin) Number() int      { return -1 }
func (p *Pin) Function() string { return "" }
func (p *Pin) Halt() error      { return nil }

// In configures the pad as an input. periph.io's pull/edge knobs are not
// meaningful on this SoC's plain GPIO block, so both are ignored.
func (p *Pin) In(pull gpio.Pull, edge gpio.Edge) error {
	p.g.In()
	return nil
}

// Read returns the pad's current level.
func (p *Pin) Read() gpio.Level {
	return gpio.Level(p.g.Value())
}

func (p *Pin) WaitForEdge(timeout time.Duration) bool {
	return false
}

func (p *Pin) Pull() gpio.Pull        { return gpio.PullNoChange }
func (p *Pin) DefaultPull() gpio.Pull { return gpio.PullNoChange }

// Out drives the pad to the given level, configuring it as an output on
// first use.
func (p *Pin) Out(l gpio.Level) error {
	p.g.Out()
	if l == gpio.High {
		p.g.High()
	} else {
		p.g.Low()
	}
	return nil
}

func (p *Pin) PWM(duty gpio.Duty, freq physic.Frequency) error {
	return fmt.Errorf("bridge: PWM not supported on pin %s", p.name)
}

var _ gpio.PinIO = (*Pin)(nil)
