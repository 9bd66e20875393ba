package main

import (
	"fmt"
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/filscale/pkg/display"
	"github.com/itohio/filscale/pkg/menu"
	"github.com/itohio/filscale/pkg/proto"
	"github.com/itohio/filscale/pkg/scale"
)

const (
	oledScale    = 4 // desktop pixels per OLED pixel
	oledTextSize = display.LineHeight * oledScale * 3 / 4
)

var (
	oledBackground = color.Black
	oledForeground = color.NRGBA{R: 0x9c, G: 0xd8, B: 0xff, A: 0xff}
)

// oled mirrors the scale's 64x48 display.
type oled struct {
	widget.BaseWidget

	box *fyne.Container
}

func newOLED() *oled {
	o := &oled{}
	bg := canvas.NewRectangle(oledBackground)
	bg.SetMinSize(fyne.NewSize(display.Width*oledScale, display.Height*oledScale))
	bg.Resize(bg.MinSize())
	o.box = container.NewWithoutLayout(bg)
	o.box.Resize(bg.MinSize())
	o.ExtendBaseWidget(o)
	return o
}

// SetFrame replaces the mirrored frame. Must be called on the UI goroutine.
func (o *oled) SetFrame(f display.Frame) {
	bg := o.box.Objects[0]
	objects := []fyne.CanvasObject{bg}

	var y float32
	for _, l := range f.Lines {
		size := l.Size
		if size == 0 {
			size = 1
		}
		t := canvas.NewText(l.Text, oledForeground)
		t.TextStyle = fyne.TextStyle{Monospace: true}
		t.TextSize = float32(oledTextSize) * float32(size)
		t.Move(fyne.NewPos(2, y))
		t.Resize(t.MinSize())
		objects = append(objects, t)
		y += float32(display.LineHeight*oledScale) * float32(size)
	}
	o.box.Objects = objects
	o.box.Refresh()
}

func (o *oled) MinSize() fyne.Size {
	return fyne.NewSize(display.Width*oledScale, display.Height*oledScale)
}

func (o *oled) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(o.box)
}

// mirrorFrame rebuilds the scale's screen from a telemetry line. Telemetry
// does not carry the menu cursor, so list screens show no selection.
func mirrorFrame(t proto.Telemetry, params scale.Params, limits scale.Limits) display.Frame {
	v := display.View{
		Mode:       display.ModeWeight,
		Uptime:     t.Uptime,
		Grams:      t.Grams,
		Meters:     t.Meters,
		Raw:        t.Raw,
		Filtered:   t.Filtered,
		ZeroOffset: params.ZeroOffset,
		Slope:      params.Slope,
		Cursor:     -1,
	}
	if t.Preset >= 0 && t.Preset < len(params.Presets) {
		v.Preset = params.Presets[t.Preset].Name
	}
	if t.Fault == "network" {
		v.Network = "NO NET"
	}

	switch t.State {
	case menu.List.String():
		names := make([]string, len(params.Presets))
		for i, p := range params.Presets {
			names[i] = p.Name
		}
		v.Mode = display.ModeList
		v.Items = menu.New(names).Labels()
		return display.Compose(v)
	case menu.Diagnostics.String():
		v.Mode = display.ModeDiagnostics
		return display.Compose(v)
	case menu.ZeroPrompt.String():
		v.Mode = display.ModeZeroPrompt
		return display.Compose(v)
	}

	switch t.Fault {
	case "sensor":
		v.Mode = display.ModeFault
		v.Fault = "SENSOR"
		v.Detail = "no data"
	case "range":
		v.Mode = display.ModeFault
		v.Fault = "RANGE"
		v.Detail = "overload"
		if t.Grams < limits.Min {
			v.Detail = "no spool?"
		}
	}
	return display.Compose(v)
}

// statusLine summarizes a telemetry line for the status bar.
func statusLine(t proto.Telemetry) string {
	s := fmt.Sprintf("%s  %.1f g  %.1f m  raw %.1f",
		display.FormatUptime(t.Uptime), t.Grams, t.Meters, t.Raw)
	if t.Fault != "" && t.Fault != "none" {
		s += "  fault: " + t.Fault
	}
	return s
}
