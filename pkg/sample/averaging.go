package sample

import (
	"log"
	"time"
)

// NewAveraging creates a stage that averages the last windowSize valid
// samples and emits the average every period.
func NewAveraging(windowSize int, period time.Duration, bufSize int) func(in <-chan Sample) <-chan Sample {
	if windowSize <= 0 {
		windowSize = 1
	}
	if period <= 0 {
		period = 100 * time.Millisecond
	}
	if bufSize <= 0 {
		bufSize = 100
	}

	return func(in <-chan Sample) <-chan Sample {
		out := make(chan Sample, bufSize)

		go func() {
			defer close(out)

			var buffer []Sample
			ticker := time.NewTicker(period)
			defer ticker.Stop()

			for {
				select {
				case s, ok := <-in:
					if !ok {
						if len(buffer) > 0 {
							select {
							case out <- averageSamples(buffer):
							default:
							}
						}
						return
					}
					if !s.Valid {
						// A fault restarts the window.
						buffer = buffer[:0]
						continue
					}

					buffer = append(buffer, s)
					if len(buffer) > windowSize {
						buffer = buffer[1:]
					}

				case <-ticker.C:
					if len(buffer) > 0 {
						select {
						case out <- averageSamples(buffer):
						default:
							log.Printf("Averaging output channel full")
						}
					}
				}
			}
		}()

		return out
	}
}

// averageSamples averages samples, keeping the newest timestamp.
func averageSamples(samples []Sample) Sample {
	if len(samples) == 0 {
		return Sample{}
	}

	var raw, grams, meters float64
	for _, s := range samples {
		raw += s.Raw
		grams += s.Grams
		meters += s.Meters
	}

	n := float64(len(samples))
	return Sample{
		Timestamp: samples[len(samples)-1].Timestamp,
		Raw:       raw / n,
		Grams:     grams / n,
		Meters:    meters / n,
		Valid:     true,
	}
}
