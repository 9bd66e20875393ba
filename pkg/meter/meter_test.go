package meter

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/filscale/pkg/config"
	"github.com/itohio/filscale/pkg/sample"
)

func testMeter(window, threshold, minRun float64) *Meter {
	cfg := config.Default()
	cfg.Meter.WindowSeconds = window
	cfg.Meter.RateThreshold = threshold
	cfg.Meter.MinRunDuration = minRun
	return New(cfg)
}

var t0 = time.Unix(1000, 0)

func at(sec float64, grams float64) sample.Sample {
	return sample.Sample{
		Timestamp: t0.Add(time.Duration(sec * float64(time.Second))),
		Grams:     grams,
		Valid:     true,
	}
}

func feed(m *Meter, samples ...sample.Sample) {
	ch := make(chan sample.Sample, len(samples))
	for _, s := range samples {
		ch <- s
	}
	close(ch)
	m.ProcessSamples(ch)
}

func TestMeter_DerivativesCorrespondToSamples(t *testing.T) {
	m := testMeter(100, 0.01, 0)
	feed(m, at(0, 500), at(1, 499), at(2, 499), at(4, 495))

	assert.Len(t, m.Samples(), 4)
	assert.Equal(t, []float64{-1, 0, -2}, m.Derivatives())
}

func TestMeter_WindowDropsOldSamples(t *testing.T) {
	m := testMeter(10, 0.01, 0)

	var samples []sample.Sample
	for i := 0; i <= 30; i++ {
		samples = append(samples, at(float64(i), 500))
	}
	feed(m, samples...)

	s := m.Samples()
	require.Len(t, s, 10)
	assert.Equal(t, at(21, 0).Timestamp, s[0].Timestamp)
	assert.Len(t, m.Derivatives(), len(s)-1)
}

func TestMeter_InvalidSamplesIgnored(t *testing.T) {
	m := testMeter(100, 0.01, 0)
	bad := at(1, -219)
	bad.Valid = false
	feed(m, at(0, 500), bad, at(2, 500))

	assert.Len(t, m.Samples(), 2)
	assert.Equal(t, []float64{0}, m.Derivatives())
}

func TestMeter_ConsumptionRuns(t *testing.T) {
	m := testMeter(1000, 0.01, 5)

	var samples []sample.Sample
	g := 500.0
	// Idle 10s, print 20s at 0.05 g/s, idle 10s, short 2s blip, idle.
	for i := 0; i <= 60; i++ {
		switch {
		case i > 10 && i <= 30:
			g -= 0.05
		case i > 40 && i <= 42:
			g -= 0.05
		}
		samples = append(samples, at(float64(i), g))
	}
	feed(m, samples...)

	runs := m.Runs()
	require.Len(t, runs, 1, "short blip must be filtered")
	r := runs[0]
	assert.Equal(t, at(10, 0).Timestamp, r.StartTime)
	assert.Equal(t, at(30, 0).Timestamp, r.EndTime)
	assert.Equal(t, 20*time.Second, r.Duration())
	assert.InDelta(t, 1.0, r.Used, 1e-9)
}

func TestMeter_Rate(t *testing.T) {
	m := testMeter(1000, 0.01, 0)
	assert.Zero(t, m.Rate())

	var samples []sample.Sample
	for i := 0; i < 50; i++ {
		noise := 0.2
		if i%2 == 0 {
			noise = -0.2
		}
		samples = append(samples, at(float64(i), 800-0.1*float64(i)+noise))
	}
	feed(m, samples...)

	assert.InDelta(t, -0.1, m.Rate(), 0.01)
}

func TestMeter_Reset(t *testing.T) {
	m := testMeter(100, 0.01, 0)
	feed(m, at(0, 500), at(1, 400))
	m.Reset()

	assert.Empty(t, m.Samples())
	assert.Empty(t, m.Derivatives())
	assert.Empty(t, m.Runs())
}

func TestMeter_OnUpdate(t *testing.T) {
	m := testMeter(100, 0.01, 0)

	var mu sync.Mutex
	calls := 0
	var last []sample.Sample
	m.OnUpdate(func(samples []sample.Sample, derivatives []float64, runs []Run) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		last = samples
		assert.Len(t, derivatives, len(samples)-1)
	})

	feed(m, at(0, 500), at(1, 499), at(2, 498))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, calls)
	assert.Len(t, last, 3)
}

// TestMeter_GracefulShutdown tests that callbacks stop after the input closes
// and resume after ResetShutdown.
func TestMeter_GracefulShutdown(t *testing.T) {
	m := testMeter(100, 0.01, 0)
	calls := 0
	m.OnUpdate(func([]sample.Sample, []float64, []Run) { calls++ })

	feed(m, at(0, 1))
	assert.Equal(t, 1, calls)

	m.processSample(at(1, 1))
	assert.Equal(t, 1, calls, "no callbacks after shutdown")

	m.ResetShutdown()
	m.processSample(at(2, 1))
	assert.Equal(t, 2, calls)
}
