package scope

import (
	"image/color"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/filscale/pkg/meter"
	"github.com/itohio/filscale/pkg/sample"
)

// TrendWidget is a Fyne widget that plots filament weight over time and
// marks consumption runs.
type TrendWidget struct {
	widget.BaseWidget

	window time.Duration

	mu             sync.RWMutex
	displaySamples []sample.Sample // downsampled, reused between updates
	runs           []meter.Run
	rate           float64 // g/s

	yMin, yMax float64
	xMin, xMax time.Time

	maxDisplayPoints int
}

// New creates a TrendWidget showing at least window of history.
func New(window time.Duration) *TrendWidget {
	if window <= 0 {
		window = time.Minute
	}
	s := &TrendWidget{
		window:           window,
		displaySamples:   make([]sample.Sample, 0, 1000),
		maxDisplayPoints: 1000,
	}
	s.ExtendBaseWidget(s)
	s.Refresh()
	return s
}

// UpdateData updates the plot. Call it from the UI goroutine (fyne.Do).
func (s *TrendWidget) UpdateData(samples []sample.Sample, runs []meter.Run, rate float64) {
	s.mu.Lock()

	s.displaySamples = sample.Downsample(s.displaySamples, samples, s.maxDisplayPoints)
	s.runs = runs
	s.rate = rate
	s.yMin, s.yMax = yRange(s.displaySamples)
	s.xMin, s.xMax = xRange(s.displaySamples, s.window, time.Now())

	s.mu.Unlock()

	s.Refresh()
}

// yRange returns the weight range with a 10% margin.
func yRange(samples []sample.Sample) (float64, float64) {
	if len(samples) == 0 {
		return 0, 1
	}

	lo, hi := samples[0].Grams, samples[0].Grams
	for _, s := range samples {
		lo = min(lo, s.Grams)
		hi = max(hi, s.Grams)
	}

	span := hi - lo
	if span < 1 {
		// Keep sub-gram noise from filling the plot.
		mid := (hi + lo) / 2
		lo, hi, span = mid-0.5, mid+0.5, 1
	}
	margin := span * 0.1
	return lo - margin, hi + margin
}

// xRange returns the time range, at least window long.
func xRange(samples []sample.Sample, window time.Duration, now time.Time) (time.Time, time.Time) {
	if len(samples) == 0 {
		return now, now.Add(window)
	}
	lo := samples[0].Timestamp
	hi := samples[len(samples)-1].Timestamp
	if hi.Sub(lo) < window {
		hi = lo.Add(window)
	}
	return lo, hi
}

// CreateRenderer creates the widget renderer.
func (s *TrendWidget) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(color.RGBA{R: 20, G: 20, B: 20, A: 255})
	return &trendRenderer{
		trend:   s,
		bg:      bg,
		objects: []fyne.CanvasObject{bg},
	}
}
