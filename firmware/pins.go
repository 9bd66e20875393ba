//go:build rp2040

package main

import (
	"machine"
	"time"

	"github.com/itohio/filscale/pkg/scale"
)

const (
	// HX711 load cell amplifier
	PIN_HX711_DOUT = machine.GP16
	PIN_HX711_SCK  = machine.GP17

	// Active-low push button to GND
	PIN_BUTTON = machine.GP15

	// SSD1306 64x48 OLED on I2C0
	PIN_OLED_SDA = machine.GP4
	PIN_OLED_SCL = machine.GP5
	OLED_ADDRESS = 0x3C

	// Main loop period. HX711 converts at 10Hz, so most steps see no new sample.
	LOOP_PERIOD = 50 * time.Millisecond
)

// defaultParams is used until a calibration has been saved to flash.
func defaultParams() scale.Params {
	return scale.Params{
		Slope:         2.78037,
		ZeroOffset:    8533,
		MetersPerGram: 0.3,
		Presets: []scale.Preset{
			{Name: "Spool 219g", Grams: 219},
			{Name: "Bare", Grams: 0},
		},
	}
}
