//go:build rp2040

package main

import "machine"

// button is a push button wired from pin to GND.
type button struct {
	pin machine.Pin
}

func newButton(pin machine.Pin) *button {
	pin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	return &button{pin: pin}
}

func (b *button) Pressed() bool {
	return !b.pin.Get()
}
