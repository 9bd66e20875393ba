package button

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// hold feeds a press of duration d sampled every tick and returns every
// non-None event in order.
func hold(c *Classifier, start time.Time, d, tick time.Duration) []Event {
	var events []Event
	for t := time.Duration(0); t < d; t += tick {
		if ev := c.Update(true, start.Add(t)); ev != None {
			events = append(events, ev)
		}
	}
	if ev := c.Update(false, start.Add(d)); ev != None {
		events = append(events, ev)
	}
	return events
}

func TestClassify(t *testing.T) {
	tests := []struct {
		hold time.Duration
		want Event
	}{
		{100 * time.Millisecond, Short},
		{499 * time.Millisecond, Short},
		{500 * time.Millisecond, Long},
		{600 * time.Millisecond, Long},
	}
	for _, tt := range tests {
		t.Run(tt.hold.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.hold, DefaultLongPress))
		})
	}
}

func TestClassifier_ShortPress(t *testing.T) {
	c := New(DefaultLongPress, DefaultDebounce)
	events := hold(c, time.Now(), 100*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, []Event{Short}, events)
}

func TestClassifier_LongPress(t *testing.T) {
	c := New(DefaultLongPress, DefaultDebounce)
	events := hold(c, time.Now(), 600*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, []Event{Long}, events)
}

func TestClassifier_LongFiresWhileHeld(t *testing.T) {
	c := New(DefaultLongPress, DefaultDebounce)
	start := time.Now()

	assert.Equal(t, None, c.Update(true, start))
	assert.True(t, c.Pending())
	assert.Equal(t, None, c.Update(true, start.Add(499*time.Millisecond)))
	assert.True(t, c.Pending())
	assert.Equal(t, Long, c.Update(true, start.Add(500*time.Millisecond)))
	assert.False(t, c.Pending())
	assert.Equal(t, None, c.Update(true, start.Add(2*time.Second)))
	assert.Equal(t, None, c.Update(false, start.Add(3*time.Second)))
}

func TestClassifier_CoarseSampling(t *testing.T) {
	// A 100ms poll period must still separate the two kinds of press.
	c := New(DefaultLongPress, DefaultDebounce)
	start := time.Now()

	assert.Equal(t, []Event{Short}, hold(c, start, 300*time.Millisecond, 100*time.Millisecond))
	assert.Equal(t, []Event{Long}, hold(c, start.Add(time.Second), 700*time.Millisecond, 100*time.Millisecond))
}

func TestClassifier_Debounce(t *testing.T) {
	c := New(DefaultLongPress, DefaultDebounce)
	start := time.Now()

	assert.Equal(t, None, c.Update(true, start))
	assert.Equal(t, None, c.Update(false, start.Add(5*time.Millisecond)))
	assert.False(t, c.Pending())
}

func TestClassifier_IdleReleaseIsNone(t *testing.T) {
	c := New(0, 0)
	assert.Equal(t, DefaultLongPress, c.LongPress())
	assert.Equal(t, None, c.Update(false, time.Now()))
}

func TestClassifier_ZeroDebounceUsesDefault(t *testing.T) {
	c := New(0, 0)
	start := time.Now()

	assert.Equal(t, None, c.Update(true, start))
	assert.Equal(t, None, c.Update(false, start.Add(DefaultDebounce-time.Millisecond)))
	assert.Equal(t, []Event{Short}, hold(c, start.Add(time.Second), 50*time.Millisecond, 5*time.Millisecond))
}

func TestEvent_String(t *testing.T) {
	assert.Equal(t, "none", None.String())
	assert.Equal(t, "short", Short.String())
	assert.Equal(t, "long", Long.String())
}
