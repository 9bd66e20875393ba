package display

import (
	"strings"
	"sync"
)

// Text is an in-memory Screen. It keeps the lines of the last flushed frame.
type Text struct {
	mu      sync.RWMutex
	pending []Line
	shown   []Line
	flushes int
}

var _ Screen = (*Text)(nil)

// NewText creates an empty Text screen.
func NewText() *Text {
	return &Text{}
}

func (t *Text) Clear() {
	t.mu.Lock()
	t.pending = t.pending[:0]
	t.mu.Unlock()
}

func (t *Text) DrawText(_, _ int16, size uint8, text string) {
	t.mu.Lock()
	t.pending = append(t.pending, Line{Text: text, Size: size})
	t.mu.Unlock()
}

func (t *Text) Flush() error {
	t.mu.Lock()
	t.shown = append(t.shown[:0], t.pending...)
	t.flushes++
	t.mu.Unlock()
	return nil
}

// Frame returns the last flushed frame.
func (t *Text) Frame() Frame {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Frame{Lines: append([]Line(nil), t.shown...)}
}

// Flushes returns how many frames have been flushed.
func (t *Text) Flushes() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.flushes
}

// String returns the last flushed frame, one line per row.
func (t *Text) String() string {
	return strings.Join(t.Frame().Strings(), "\n")
}
