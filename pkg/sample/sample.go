package sample

import (
	"context"
	"fmt"
	"log"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/itohio/filscale/pkg/link"
)

// Sample is a host-side weight measurement.
type Sample struct {
	Timestamp time.Time
	Raw       float64 // smoothed raw reading
	Grams     float64 // net filament weight
	Meters    float64 // filament length
	Valid     bool    // false while the scale reports a measurement fault
}

// Converter is a function type that converts a Reading channel to a Sample channel.
type Converter func(in <-chan link.Reading) <-chan Sample

// NewConverter creates a converter function that transforms readings to samples.
func NewConverter(bufSize int) Converter {
	if bufSize <= 0 {
		bufSize = 100
	}

	return func(in <-chan link.Reading) <-chan Sample {
		out := make(chan Sample, bufSize)

		go func() {
			defer close(out)

			for r := range in {
				select {
				case out <- FromReading(r):
				case <-time.After(time.Second):
					log.Printf("Converter output channel full, dropping sample")
				}
			}
		}()

		return out
	}
}

// FromReading converts a telemetry reading. Network faults do not invalidate
// the weight.
func FromReading(r link.Reading) Sample {
	return Sample{
		Timestamp: r.Timestamp,
		Raw:       r.Filtered,
		Grams:     r.Grams,
		Meters:    r.Meters,
		Valid:     r.Fault == "none" || r.Fault == "network",
	}
}

// Average collects n valid readings and returns the mean and standard
// deviation of the smoothed raw value.
func Average(ctx context.Context, in <-chan link.Reading, n int) (mean, stddev float64, err error) {
	if n <= 0 {
		n = 1
	}

	raw := make([]float64, 0, n)
	for len(raw) < n {
		select {
		case <-ctx.Done():
			return 0, 0, ctx.Err()
		case r, ok := <-in:
			if !ok {
				return 0, 0, fmt.Errorf("readings closed after %d of %d samples", len(raw), n)
			}
			if r.Fault == "sensor" {
				continue
			}
			raw = append(raw, r.Filtered)
		}
	}

	mean, stddev = stat.MeanStdDev(raw, nil)
	if n == 1 {
		stddev = 0
	}
	return mean, stddev, nil
}
