package sample

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAverageSamples(t *testing.T) {
	base := time.Unix(0, 0)
	avg := averageSamples([]Sample{
		{Timestamp: base, Raw: 10, Grams: 100, Meters: 30, Valid: true},
		{Timestamp: base.Add(time.Second), Raw: 20, Grams: 200, Meters: 60, Valid: true},
	})

	assert.Equal(t, base.Add(time.Second), avg.Timestamp)
	assert.Equal(t, 15.0, avg.Raw)
	assert.Equal(t, 150.0, avg.Grams)
	assert.Equal(t, 45.0, avg.Meters)
	assert.True(t, avg.Valid)

	assert.Equal(t, Sample{}, averageSamples(nil))
}

func TestAveraging_FlushOnClose(t *testing.T) {
	in := make(chan Sample, 5)
	out := NewAveraging(3, time.Hour, 10)(in)

	for _, g := range []float64{1, 2, 3, 4} {
		in <- Sample{Grams: g, Valid: true}
	}
	close(in)

	var got []Sample
	for s := range out {
		got = append(got, s)
	}
	require.Len(t, got, 1)
	assert.Equal(t, 3.0, got[0].Grams) // window holds 2, 3, 4
}

func TestAveraging_FaultRestartsWindow(t *testing.T) {
	in := make(chan Sample, 5)
	out := NewAveraging(10, time.Hour, 10)(in)

	in <- Sample{Grams: 100, Valid: true}
	in <- Sample{Valid: false}
	in <- Sample{Grams: 4, Valid: true}
	close(in)

	s, ok := <-out
	require.True(t, ok)
	assert.Equal(t, 4.0, s.Grams)
}

func TestAveraging_Periodic(t *testing.T) {
	in := make(chan Sample)
	out := NewAveraging(5, 10*time.Millisecond, 10)(in)
	defer close(in)

	in <- Sample{Grams: 7, Valid: true}

	select {
	case s := <-out:
		assert.Equal(t, 7.0, s.Grams)
	case <-time.After(time.Second):
		t.Fatal("no periodic output")
	}
}
