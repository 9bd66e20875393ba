package button

import "time"

const (
	// DefaultLongPress is the hold time at which a press becomes a long press.
	DefaultLongPress = 500 * time.Millisecond
	// DefaultDebounce is the shortest hold that counts as a press at all.
	DefaultDebounce = 20 * time.Millisecond
)

// Event is the result of classifying a button press.
type Event int

const (
	None Event = iota
	Short
	Long
)

func (e Event) String() string {
	switch e {
	case Short:
		return "short"
	case Long:
		return "long"
	default:
		return "none"
	}
}

// Classify returns Long for holds of at least threshold and Short otherwise.
func Classify(hold, threshold time.Duration) Event {
	if hold >= threshold {
		return Long
	}
	return Short
}

// Classifier turns sampled button levels into short and long press events
// without blocking. It must be fed the logical (pressed = true) level.
type Classifier struct {
	longPress time.Duration
	debounce  time.Duration

	down  bool
	since time.Time
	fired bool
}

// New creates a Classifier. Zero durations fall back to the defaults.
func New(longPress, debounce time.Duration) *Classifier {
	if longPress <= 0 {
		longPress = DefaultLongPress
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Classifier{longPress: longPress, debounce: debounce}
}

// Update samples the button at now. A hold that reaches the long press
// threshold reports Long immediately; its release then reports None.
// A release before the threshold reports Short, unless the hold was
// shorter than the debounce interval.
func (c *Classifier) Update(pressed bool, now time.Time) Event {
	switch {
	case pressed && !c.down:
		c.down = true
		c.since = now
		c.fired = false
		return None

	case pressed && c.down:
		if !c.fired && now.Sub(c.since) >= c.longPress {
			c.fired = true
			return Long
		}
		return None

	case !pressed && c.down:
		c.down = false
		if c.fired {
			return None
		}
		hold := now.Sub(c.since)
		if hold < c.debounce {
			return None
		}
		return Classify(hold, c.longPress)
	}
	return None
}

// Pending reports whether a press is in progress and not yet classified.
func (c *Classifier) Pending() bool {
	return c.down && !c.fired
}

// LongPress returns the long press threshold.
func (c *Classifier) LongPress() time.Duration {
	return c.longPress
}
