// Package sim provides simulated scale peripherals for the desktop simulator
// and for tests: a load cell, a button, a network link, an updater and a store.
package sim

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/itohio/filscale/pkg/controller"
	"github.com/itohio/filscale/pkg/scale"
)

// Clock returns the current time.
type Clock func() time.Time

// ErrEmpty is returned by Store.Load before anything was saved.
var ErrEmpty = errors.New("store is empty")

// Sensor simulates an HX711 with a load cell. The load is set in grams and
// converted to raw units with the inverse of the sensor's own calibration.
type Sensor struct {
	mu      sync.Mutex
	slope   float64
	zero    float64
	load    float64
	noise   distuv.Normal
	stalled bool
	err     error
}

var _ controller.Sensor = (*Sensor)(nil)

// NewSensor creates a sensor whose raw reading is zero + grams/slope plus
// gaussian noise with the given standard deviation in raw units.
func NewSensor(slope, zero, noise float64, seed uint64) *Sensor {
	if slope <= 0 {
		slope = 1
	}
	return &Sensor{
		slope: slope,
		zero:  zero,
		noise: distuv.Normal{Mu: 0, Sigma: noise, Src: rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)},
	}
}

// SetLoad sets the gross load on the scale in grams.
func (s *Sensor) SetLoad(grams float64) {
	s.mu.Lock()
	s.load = grams
	s.mu.Unlock()
}

// AddLoad adds grams to the load and returns the new load.
func (s *Sensor) AddLoad(grams float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load += grams
	return s.load
}

// Load returns the gross load in grams.
func (s *Sensor) Load() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load
}

// Stall makes Read report ErrNotReady, as a disconnected HX711 would.
func (s *Sensor) Stall(stalled bool) {
	s.mu.Lock()
	s.stalled = stalled
	s.mu.Unlock()
}

// Fail makes reads return err. A nil err clears the failure.
func (s *Sensor) Fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *Sensor) Read() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *Sensor) read() (float64, error) {
	if s.err != nil {
		return 0, s.err
	}
	if s.stalled {
		return 0, controller.ErrNotReady
	}
	raw := s.zero + s.load/s.slope
	if s.noise.Sigma > 0 {
		raw += s.noise.Rand()
	}
	return raw, nil
}

func (s *Sensor) ReadAverage(n int) (float64, error) {
	if n <= 0 {
		n = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var sum float64
	for i := 0; i < n; i++ {
		v, err := s.read()
		if err != nil {
			return 0, fmt.Errorf("failed to average %d samples: %w", n, err)
		}
		sum += v
	}
	return sum / float64(n), nil
}

// Button is a simulated push button. Holds are scheduled against a clock so
// that a press spans several controller steps.
type Button struct {
	mu    sync.Mutex
	clock Clock
	from  time.Time
	until time.Time
	held  bool
}

var _ controller.Button = (*Button)(nil)

// NewButton creates a button. A nil clock uses time.Now.
func NewButton(clock Clock) *Button {
	if clock == nil {
		clock = time.Now
	}
	return &Button{clock: clock}
}

// Press holds the button down for d starting now.
func (b *Button) Press(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.from = b.clock()
	b.until = b.from.Add(d)
}

// Hold presses or releases the button until the next call.
func (b *Button) Hold(down bool) {
	b.mu.Lock()
	b.held = down
	b.mu.Unlock()
}

func (b *Button) Pressed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.held {
		return true
	}
	now := b.clock()
	return !now.Before(b.from) && now.Before(b.until)
}

// Network simulates a wireless link that connects after a delay.
type Network struct {
	mu      sync.Mutex
	clock   Clock
	delay   time.Duration
	never   bool
	began   time.Time
	started bool
	dropped bool
}

var _ controller.Network = (*Network)(nil)

// NewNetwork creates a link connecting delay after Begin. A negative delay
// never connects. A nil clock uses time.Now.
func NewNetwork(delay time.Duration, clock Clock) *Network {
	if clock == nil {
		clock = time.Now
	}
	return &Network{clock: clock, delay: delay, never: delay < 0}
}

func (n *Network) Begin() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.began = n.clock()
	n.started = true
	return nil
}

func (n *Network) Connected() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.started || n.never || n.dropped {
		return false
	}
	return n.clock().Sub(n.began) >= n.delay
}

// Drop disconnects or reconnects the link.
func (n *Network) Drop(dropped bool) {
	n.mu.Lock()
	n.dropped = dropped
	n.mu.Unlock()
}

// Updater counts update checks.
type Updater struct {
	mu     sync.Mutex
	checks int
	err    error
}

var _ controller.Updater = (*Updater)(nil)

func (u *Updater) Check() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.checks++
	return u.err
}

// Checks returns how many times Check was called.
func (u *Updater) Checks() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.checks
}

// Fail makes Check return err.
func (u *Updater) Fail(err error) {
	u.mu.Lock()
	u.err = err
	u.mu.Unlock()
}

// Store keeps parameters in memory.
type Store struct {
	mu     sync.Mutex
	params *scale.Params
	saves  int
}

var _ controller.Store = (*Store)(nil)

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

func (s *Store) Load() (scale.Params, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.params == nil {
		return scale.Params{}, ErrEmpty
	}
	return copyParams(*s.params), nil
}

func (s *Store) Save(p scale.Params) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p = copyParams(p)
	s.params = &p
	s.saves++
	return nil
}

// Saves returns how many times parameters were saved.
func (s *Store) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func copyParams(p scale.Params) scale.Params {
	p.Presets = append([]scale.Preset(nil), p.Presets...)
	return p
}
