package meter

import (
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/itohio/filscale/pkg/config"
	"github.com/itohio/filscale/pkg/sample"
)

var _ WeightMeter = (*Meter)(nil)

// Run is a stretch of time during which filament was being consumed.
type Run struct {
	StartIndex int       // Start sample index in buffer
	EndIndex   int       // End sample index in buffer (updated as the run continues)
	StartTime  time.Time // Start timestamp
	EndTime    time.Time // End timestamp (updated as the run continues)
	Used       float64   // Grams consumed during the run
}

// Duration returns the length of the run.
func (r Run) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// WeightMeter keeps a window of weight samples and detects consumption runs.
type WeightMeter interface {
	ProcessSamples(input <-chan sample.Sample)
	Samples() []sample.Sample                                                  // Current samples buffer (ordered first to last)
	Derivatives() []float64                                                    // g/s, n-1 derivatives for n samples
	Runs() []Run                                                               // Consumption runs within the window
	Rate() float64                                                             // Least-squares weight trend over the window (g/s)
	OnUpdate(func(samples []sample.Sample, derivatives []float64, runs []Run)) // Register callback for updates
}

// Meter implements WeightMeter.
//
// Derivatives correspond exactly to sample pairs:
// derivative[i] = (sample[i+1].Grams - sample[i].Grams) / dt.
// Samples outside the time window are dropped together with their derivatives.
type Meter struct {
	samples     []sample.Sample
	derivatives []float64
	runs        []Run
	active      bool // last run is still growing

	mu sync.RWMutex

	callbacks []func(samples []sample.Sample, derivatives []float64, runs []Run)
	cbMu      sync.RWMutex

	windowDuration time.Duration
	threshold      float64
	minRunDuration time.Duration

	// Set when the input channel closes, prevents further callbacks
	shutdown bool
}

// New creates a new Meter from the meter section of cfg.
func New(cfg *config.Config) *Meter {
	return &Meter{
		windowDuration: time.Duration(cfg.Meter.WindowSeconds * float64(time.Second)),
		threshold:      cfg.Meter.RateThreshold,
		minRunDuration: time.Duration(cfg.Meter.MinRunDuration * float64(time.Second)),
	}
}

// ProcessSamples processes samples from the input channel until it closes.
func (m *Meter) ProcessSamples(input <-chan sample.Sample) {
	for s := range input {
		m.processSample(s)
	}
	m.mu.Lock()
	m.shutdown = true
	m.mu.Unlock()
}

// processSample adds a valid sample to the buffer, updates derivatives and runs.
func (m *Meter) processSample(s sample.Sample) {
	if !s.Valid {
		return
	}

	m.mu.Lock()
	m.samples = append(m.samples, s)
	m.trim(s.Timestamp.Add(-m.windowDuration))

	if n := len(m.samples); n >= 2 {
		prev, curr := m.samples[n-2], m.samples[n-1]
		dt := curr.Timestamp.Sub(prev.Timestamp).Seconds()
		if dt > 0 {
			m.derivatives = append(m.derivatives, (curr.Grams-prev.Grams)/dt)
			m.updateRuns()
		} else {
			// Duplicate timestamp, keep the newer value only.
			m.samples = append(m.samples[:n-2], curr)
		}
	}

	shouldNotify := !m.shutdown
	m.mu.Unlock()

	if shouldNotify {
		m.notifyCallbacks()
	}
}

// trim drops samples at or before cutoff and shifts derivative and run indices.
func (m *Meter) trim(cutoff time.Time) {
	cut := 0
	for cut < len(m.samples) && !m.samples[cut].Timestamp.After(cutoff) {
		cut++
	}
	if cut == 0 {
		return
	}

	m.samples = m.samples[cut:]
	if cut <= len(m.derivatives) {
		m.derivatives = m.derivatives[cut:]
	} else {
		m.derivatives = m.derivatives[:0]
	}

	runs := m.runs[:0]
	for _, r := range m.runs {
		r.StartIndex -= cut
		r.EndIndex -= cut
		if r.EndIndex < 0 {
			continue
		}
		if r.StartIndex < 0 {
			r.StartIndex = 0
			r.StartTime = m.samples[0].Timestamp
		}
		runs = append(runs, r)
	}
	m.runs = runs
	if len(m.runs) == 0 {
		m.active = false
	}
}

// updateRuns extends the active run or starts a new one while the weight falls
// faster than the threshold.
func (m *Meter) updateRuns() {
	last := len(m.samples) - 1
	consuming := m.derivatives[len(m.derivatives)-1] < -m.threshold

	if !consuming {
		m.active = false
		return
	}

	if m.active {
		r := &m.runs[len(m.runs)-1]
		r.EndIndex = last
		r.EndTime = m.samples[last].Timestamp
		r.Used = m.samples[r.StartIndex].Grams - m.samples[last].Grams
		return
	}

	m.runs = append(m.runs, Run{
		StartIndex: last - 1,
		EndIndex:   last,
		StartTime:  m.samples[last-1].Timestamp,
		EndTime:    m.samples[last].Timestamp,
		Used:       m.samples[last-1].Grams - m.samples[last].Grams,
	})
	m.active = true
}

// Samples returns a copy of the current samples buffer.
func (m *Meter) Samples() []sample.Sample {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]sample.Sample(nil), m.samples...)
}

// Derivatives returns a copy of the current derivatives buffer.
func (m *Meter) Derivatives() []float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]float64(nil), m.derivatives...)
}

// Runs returns the runs that lasted at least the minimum run duration.
func (m *Meter) Runs() []Run {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.longRuns()
}

func (m *Meter) longRuns() []Run {
	result := make([]Run, 0, len(m.runs))
	for _, r := range m.runs {
		if r.Duration() >= m.minRunDuration {
			result = append(result, r)
		}
	}
	return result
}

// Rate returns the slope of a least-squares line through the window in g/s.
func (m *Meter) Rate() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return rate(m.samples)
}

func rate(samples []sample.Sample) float64 {
	if len(samples) < 2 {
		return 0
	}
	t0 := samples[0].Timestamp
	x := make([]float64, len(samples))
	y := make([]float64, len(samples))
	for i, s := range samples {
		x[i] = s.Timestamp.Sub(t0).Seconds()
		y[i] = s.Grams
	}
	if stat.Variance(x, nil) == 0 {
		return 0
	}
	_, beta := stat.LinearRegression(x, y, nil, false)
	return beta
}

// OnUpdate registers a callback invoked after every processed sample.
// The callback should copy data quickly and return as fast as possible.
func (m *Meter) OnUpdate(callback func(samples []sample.Sample, derivatives []float64, runs []Run)) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.callbacks = append(m.callbacks, callback)
}

// ResetShutdown allows callbacks again before starting a new chain.
func (m *Meter) ResetShutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdown = false
}

// Reset clears all buffers.
func (m *Meter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = nil
	m.derivatives = nil
	m.runs = nil
	m.active = false
}

// notifyCallbacks copies the buffers under the read lock and calls callbacks without locks.
func (m *Meter) notifyCallbacks() {
	m.mu.RLock()
	samples := append([]sample.Sample(nil), m.samples...)
	derivatives := append([]float64(nil), m.derivatives...)
	runs := m.longRuns()
	m.mu.RUnlock()

	m.cbMu.RLock()
	callbacks := append(([]func([]sample.Sample, []float64, []Run))(nil), m.callbacks...)
	m.cbMu.RUnlock()

	for _, cb := range callbacks {
		if cb != nil {
			cb(samples, derivatives, runs)
		}
	}
}
