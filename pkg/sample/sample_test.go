package sample

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/filscale/pkg/link"
	"github.com/itohio/filscale/pkg/proto"
)

func reading(ts time.Time, raw, grams float64, fault string) link.Reading {
	return link.Reading{
		Timestamp: ts,
		Telemetry: proto.Telemetry{
			Filtered: raw,
			Grams:    grams,
			Meters:   grams * 0.3,
			State:    "idle",
			Fault:    fault,
		},
	}
}

func TestFromReading(t *testing.T) {
	ts := time.Unix(10, 0)

	s := FromReading(reading(ts, 8634.2, 62.4, "none"))
	assert.Equal(t, Sample{Timestamp: ts, Raw: 8634.2, Grams: 62.4, Meters: 62.4 * 0.3, Valid: true}, s)

	assert.True(t, FromReading(reading(ts, 0, 0, "network")).Valid)
	assert.False(t, FromReading(reading(ts, 0, 0, "range")).Valid)
	assert.False(t, FromReading(reading(ts, 0, 0, "sensor")).Valid)
}

func TestConverter(t *testing.T) {
	in := make(chan link.Reading, 3)
	out := NewConverter(0)(in)

	base := time.Unix(100, 0)
	in <- reading(base, 1, 10, "none")
	in <- reading(base.Add(time.Second), 2, 20, "range")
	close(in)

	var got []Sample
	for s := range out {
		got = append(got, s)
	}
	require.Len(t, got, 2)
	assert.Equal(t, 10.0, got[0].Grams)
	assert.True(t, got[0].Valid)
	assert.Equal(t, base.Add(time.Second), got[1].Timestamp)
	assert.False(t, got[1].Valid)
}

// TestConverter_GracefulShutdown tests that the converter closes its output
// when the input channel is closed.
func TestConverter_GracefulShutdown(t *testing.T) {
	in := make(chan link.Reading)
	out := NewConverter(10)(in)
	close(in)

	select {
	case _, ok := <-out:
		assert.False(t, ok, "Output channel should be closed")
	case <-time.After(time.Second):
		t.Fatal("Output channel did not close")
	}
}

func TestAverage(t *testing.T) {
	in := make(chan link.Reading, 10)
	in <- reading(time.Time{}, 0, 0, "sensor") // skipped
	for _, raw := range []float64{8530, 8532, 8534, 8536} {
		in <- reading(time.Time{}, raw, 0, "range")
	}

	mean, std, err := Average(context.Background(), in, 4)
	require.NoError(t, err)
	assert.InDelta(t, 8533, mean, 1e-9)
	assert.InDelta(t, 2.5820, std, 1e-3)
}

func TestAverage_Single(t *testing.T) {
	in := make(chan link.Reading, 1)
	in <- reading(time.Time{}, 8600, 0, "none")

	mean, std, err := Average(context.Background(), in, 0)
	require.NoError(t, err)
	assert.Equal(t, 8600.0, mean)
	assert.Zero(t, std)
}

func TestAverage_Closed(t *testing.T) {
	in := make(chan link.Reading, 1)
	in <- reading(time.Time{}, 1, 0, "none")
	close(in)

	_, _, err := Average(context.Background(), in, 3)
	assert.Error(t, err)
}

func TestAverage_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := Average(ctx, make(chan link.Reading), 3)
	assert.ErrorIs(t, err, context.Canceled)
}
