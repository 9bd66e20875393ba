//go:build rp2040

package main

import (
	"image/color"
	"machine"

	"tinygo.org/x/drivers/ssd1306"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/freesans"
	"tinygo.org/x/tinyfont/proggy"

	"github.com/itohio/filscale/pkg/display"
)

var white = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}

// oled draws frames on the SSD1306. Text is drawn into the buffer and sent
// on Flush.
type oled struct {
	dev *ssd1306.Device
}

var _ display.Screen = (*oled)(nil)

func newOLED(bus *machine.I2C) *oled {
	dev := ssd1306.NewI2C(bus)
	dev.Configure(ssd1306.Config{
		Width:    display.Width,
		Height:   display.Height,
		Address:  OLED_ADDRESS,
		VccState: ssd1306.SWITCHCAPVCC,
		// 64x48 panels sit in the middle of the controller's 128 columns.
		ResetCol:  ssd1306.ResetValue{32, 32 + display.Width - 1},
		ResetPage: ssd1306.ResetValue{0, display.Height/8 - 1},
	})
	dev.ClearDisplay()
	return &oled{dev: dev}
}

func (o *oled) Clear() {
	o.dev.ClearBuffer()
}

// DrawText draws text with its top edge at y.
func (o *oled) DrawText(x, y int16, size uint8, text string) {
	if size >= 2 {
		tinyfont.WriteLine(o.dev, &freesans.Bold9pt7b, x, y+2*display.LineHeight-2, text, white)
		return
	}
	tinyfont.WriteLine(o.dev, &proggy.TinySZ8pt7b, x, y+display.LineHeight-1, text, white)
}

func (o *oled) Flush() error {
	return o.dev.Display()
}
