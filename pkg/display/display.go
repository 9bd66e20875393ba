package display

import "time"

const (
	// Width and Height of the 64x48 OLED.
	Width  = 64
	Height = 48

	// LineHeight is the height of a size 1 text line in pixels.
	LineHeight = 8
	// CharWidth is the width of a size 1 character in pixels.
	CharWidth = 6
)

// Screen is a character/graphics surface.
type Screen interface {
	Clear()
	DrawText(x, y int16, size uint8, text string)
	Flush() error
}

// Line is a line of text at a size multiplier.
type Line struct {
	Text string
	Size uint8
}

// Frame is a full screen of stacked lines.
type Frame struct {
	Lines []Line
}

// Strings returns the text of each line.
func (f Frame) Strings() []string {
	s := make([]string, len(f.Lines))
	for i, l := range f.Lines {
		s[i] = l.Text
	}
	return s
}

// Mode selects which screen Compose produces.
type Mode int

const (
	ModeWeight Mode = iota
	ModeList
	ModeDiagnostics
	ModeFault
	ModeZeroPrompt
)

// View is everything the screens can show.
type View struct {
	Mode Mode

	Uptime  time.Duration
	Preset  string
	Grams   float64
	Meters  float64
	Network string // empty when no network is configured

	Items  []string
	Cursor int

	Raw        float64
	Filtered   float64
	ZeroOffset float64
	Slope      float64

	Fault  string
	Detail string
}

// Render draws f on s top-down and flushes it.
func Render(s Screen, f Frame) error {
	s.Clear()
	var y int16
	for _, l := range f.Lines {
		size := l.Size
		if size == 0 {
			size = 1
		}
		s.DrawText(0, y, size, l.Text)
		y += int16(LineHeight) * int16(size)
	}
	return s.Flush()
}

// Columns returns how many characters fit on a line of the given size.
func Columns(size uint8) int {
	if size == 0 {
		size = 1
	}
	return Width / (CharWidth * int(size))
}

func fit(s string, size uint8) string {
	n := Columns(size)
	if len(s) <= n {
		return s
	}
	return s[:n]
}
