package display

import (
	"fmt"
	"time"

	"github.com/chewxy/math32"
)

const listRows = Height/LineHeight - 1

// Compose builds the frame for a view.
func Compose(v View) Frame {
	switch v.Mode {
	case ModeList:
		return listFrame(v)
	case ModeDiagnostics:
		return diagFrame(v)
	case ModeFault:
		return faultFrame(v)
	case ModeZeroPrompt:
		return zeroFrame()
	default:
		return weightFrame(v)
	}
}

func line(s string) Line { return Line{Text: fit(s, 1), Size: 1} }
func bigLine(s string) Line { return Line{Text: fit(s, 2), Size: 2} }

func weightFrame(v View) Frame {
	return Frame{Lines: []Line{
		line(v.Preset),
		line(FormatUptime(v.Uptime)),
		line(v.Network),
		bigLine(FormatGrams(float32(v.Grams))),
		line(FormatMeters(float32(v.Meters))),
	}}
}

func listFrame(v View) Frame {
	lines := []Line{line("MENU")}

	start := 0
	if v.Cursor >= listRows {
		start = v.Cursor - listRows + 1
	}
	for i := start; i < len(v.Items) && i < start+listRows; i++ {
		mark := " "
		if i == v.Cursor {
			mark = ">"
		}
		lines = append(lines, line(mark+v.Items[i]))
	}
	return Frame{Lines: lines}
}

func diagFrame(v View) Frame {
	return Frame{Lines: []Line{
		line("DIAG"),
		line(fmt.Sprintf("r%.1f", v.Raw)),
		line(fmt.Sprintf("f%.1f", v.Filtered)),
		line(fmt.Sprintf("z%.1f", v.ZeroOffset)),
		line(fmt.Sprintf("k%.4f", v.Slope)),
		line(FormatUptime(v.Uptime)),
	}}
}

func faultFrame(v View) Frame {
	return Frame{Lines: []Line{
		line("FAULT"),
		line(v.Fault),
		line(v.Detail),
		bigLine("---g"),
	}}
}

// zeroFrame asks for an empty scale before the zero offset is captured.
func zeroFrame() Frame {
	return Frame{Lines: []Line{
		line("ZERO"),
		line("Remove"),
		line("spool,"),
		line("hold: zero"),
		line("tap: back"),
	}}
}

// FormatGrams formats a weight rounded to whole grams.
func FormatGrams(g float32) string {
	return formatWhole(g) + "g"
}

// FormatMeters formats a filament length rounded to whole meters.
func FormatMeters(m float32) string {
	return formatWhole(m) + "m"
}

func formatWhole(v float32) string {
	if math32.IsNaN(v) || math32.IsInf(v, 0) {
		return "?"
	}
	r := math32.Round(v)
	if r == 0 {
		// avoid "-0"
		r = 0
	}
	return fmt.Sprintf("%.0f", r)
}

// FormatUptime formats d as h:mm:ss.
func FormatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	s := int64(d / time.Second)
	h := s / 3600
	s -= h * 3600
	m := s / 60
	s -= m * 60
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}
