//go:build rp2040

package main

import (
	"fmt"
	"machine"
	"runtime/interrupt"
	"time"

	"github.com/itohio/filscale/pkg/controller"
)

const (
	// Clock pulses after the 24 data bits: 1 selects channel A, gain 128.
	hx711GainPulses = 1
	// Raw units are thousands of ADC counts.
	hx711CountsPerUnit = 1000.0
	// Longest wait for a conversion when averaging. The HX711 converts at 10Hz.
	hx711Timeout = 500 * time.Millisecond
)

// hx711 bit-bangs the HX711 two-wire interface.
type hx711 struct {
	dout machine.Pin
	sck  machine.Pin
}

func newHX711(dout, sck machine.Pin) *hx711 {
	dout.Configure(machine.PinConfig{Mode: machine.PinInput})
	sck.Configure(machine.PinConfig{Mode: machine.PinOutput})
	sck.Low()
	return &hx711{dout: dout, sck: sck}
}

// ready reports whether a conversion is waiting. DOUT goes low when it is.
func (h *hx711) ready() bool {
	return !h.dout.Get()
}

func (h *hx711) Read() (float64, error) {
	if !h.ready() {
		return 0, controller.ErrNotReady
	}
	return float64(h.shift()) / hx711CountsPerUnit, nil
}

func (h *hx711) ReadAverage(n int) (float64, error) {
	if n <= 0 {
		n = 1
	}
	var sum float64
	for i := 0; i < n; i++ {
		deadline := time.Now().Add(hx711Timeout)
		for !h.ready() {
			if time.Now().After(deadline) {
				return 0, fmt.Errorf("sample %d of %d: %w", i+1, n, controller.ErrNotReady)
			}
			time.Sleep(time.Millisecond)
		}
		sum += float64(h.shift())
	}
	return sum / float64(n) / hx711CountsPerUnit, nil
}

// shift clocks out one 24-bit two's complement conversion.
// SCK held high for over 60us powers the chip down, so interrupts are off.
func (h *hx711) shift() int32 {
	state := interrupt.Disable()
	var v uint32
	for i := 0; i < 24; i++ {
		h.sck.High()
		v = v<<1 | boolBit(h.dout.Get())
		h.sck.Low()
	}
	for i := 0; i < hx711GainPulses; i++ {
		h.sck.High()
		h.sck.Low()
	}
	interrupt.Restore(state)

	// sign extend
	return int32(v<<8) >> 8
}

func boolBit(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
