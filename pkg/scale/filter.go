package scale

// DefaultAlpha is the smoothing coefficient used when none is configured.
const DefaultAlpha = 0.2

// Filter is an exponential moving average over raw readings.
type Filter struct {
	alpha  float64
	value  float64
	primed bool
}

// NewFilter creates a filter. alpha outside (0, 1] falls back to DefaultAlpha.
func NewFilter(alpha float64) *Filter {
	if alpha <= 0 || alpha > 1 {
		alpha = DefaultAlpha
	}
	return &Filter{alpha: alpha}
}

// Update folds raw into the filter and returns the filtered value.
// The first update seeds the filter with raw.
func (f *Filter) Update(raw float64) float64 {
	if !f.primed {
		f.Reset(raw)
		return f.value
	}
	f.value += (raw - f.value) * f.alpha
	return f.value
}

// Reset seeds the filter with v.
func (f *Filter) Reset(v float64) {
	f.value = v
	f.primed = true
}

// Value returns the current filtered value.
func (f *Filter) Value() float64 {
	return f.value
}

// Primed reports whether the filter has seen at least one value.
func (f *Filter) Primed() bool {
	return f.primed
}

// Alpha returns the smoothing coefficient.
func (f *Filter) Alpha() float64 {
	return f.alpha
}
