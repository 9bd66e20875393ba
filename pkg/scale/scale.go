package scale

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrNoPreset is returned when a preset index is outside the preset list.
	ErrNoPreset = errors.New("no such spool preset")
	// ErrImplausible is returned by Limits.Check for weights outside the plausible range.
	ErrImplausible = errors.New("implausible weight")
)

// Preset is a named spool tare weight.
type Preset struct {
	Name  string
	Grams float64
}

// Params holds the calibration of a load cell.
type Params struct {
	Slope         float64 // grams per raw unit
	ZeroOffset    float64 // raw reading with no load applied
	MetersPerGram float64 // filament length per gram
	Presets       []Preset
	Preset        int // selected preset index
}

// Limits is the range of net weights that are considered plausible.
type Limits struct {
	Min float64
	Max float64
}

// Check returns ErrImplausible if grams is outside the limits or not a number.
func (l Limits) Check(grams float64) error {
	if math.IsNaN(grams) || math.IsInf(grams, 0) {
		return fmt.Errorf("%w: %v", ErrImplausible, grams)
	}
	if grams < l.Min || grams > l.Max {
		return fmt.Errorf("%w: %.1fg outside [%.0f, %.0f]", ErrImplausible, grams, l.Min, l.Max)
	}
	return nil
}

// Calibration converts raw load cell readings to filament weight and length.
type Calibration struct {
	p Params
}

// New creates a Calibration from params. The preset list is copied.
func New(p Params) *Calibration {
	p.Presets = append([]Preset(nil), p.Presets...)
	if p.Preset < 0 || p.Preset >= len(p.Presets) {
		p.Preset = 0
	}
	return &Calibration{p: p}
}

// GrossOf returns the weight on the scale including the spool.
func (c *Calibration) GrossOf(raw float64) float64 {
	return c.p.Slope * (raw - c.p.ZeroOffset)
}

// GramsOf returns the filament weight: gross weight minus the selected spool.
// The result may be negative when the scale is under-calibrated.
func (c *Calibration) GramsOf(raw float64) float64 {
	return c.GrossOf(raw) - c.Preset().Grams
}

// MetersOf returns the filament length for a filament weight.
func (c *Calibration) MetersOf(grams float64) float64 {
	return grams * c.p.MetersPerGram
}

// Zero captures raw as the new zero offset. The scale must be empty.
func (c *Calibration) Zero(raw float64) {
	c.p.ZeroOffset = raw
}

// SetLinear replaces slope and zero offset.
func (c *Calibration) SetLinear(slope, zeroOffset float64) error {
	if !(slope > 0) || math.IsInf(slope, 0) {
		return fmt.Errorf("slope must be positive, got %v", slope)
	}
	if math.IsNaN(zeroOffset) || math.IsInf(zeroOffset, 0) {
		return fmt.Errorf("invalid zero offset %v", zeroOffset)
	}
	c.p.Slope = slope
	c.p.ZeroOffset = zeroOffset
	return nil
}

// Preset returns the selected spool preset, or a zero-weight preset when none are configured.
func (c *Calibration) Preset() Preset {
	if len(c.p.Presets) == 0 {
		return Preset{Name: "none"}
	}
	return c.p.Presets[c.p.Preset]
}

// PresetIndex returns the index of the selected preset.
func (c *Calibration) PresetIndex() int {
	return c.p.Preset
}

// Presets returns a copy of the preset list.
func (c *Calibration) Presets() []Preset {
	return append([]Preset(nil), c.p.Presets...)
}

// SelectPreset selects preset i.
func (c *Calibration) SelectPreset(i int) error {
	if i < 0 || i >= len(c.p.Presets) {
		return fmt.Errorf("%w: %d of %d", ErrNoPreset, i, len(c.p.Presets))
	}
	c.p.Preset = i
	return nil
}

// NextPreset selects the following preset, wrapping around to the first.
func (c *Calibration) NextPreset() Preset {
	if len(c.p.Presets) > 0 {
		c.p.Preset = (c.p.Preset + 1) % len(c.p.Presets)
	}
	return c.Preset()
}

// Params returns a copy of the current parameters.
func (c *Calibration) Params() Params {
	p := c.p
	p.Presets = append([]Preset(nil), c.p.Presets...)
	return p
}
