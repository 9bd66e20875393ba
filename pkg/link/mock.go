package link

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/itohio/filscale/pkg/config"
	"github.com/itohio/filscale/pkg/controller"
	"github.com/itohio/filscale/pkg/display"
	"github.com/itohio/filscale/pkg/proto"
	"github.com/itohio/filscale/pkg/sim"
)

// Mock runs the scale controller in-process on simulated peripherals.
// The simulated spool loses filament while a print is running.
type Mock struct {
	cfg   *config.Config
	store controller.Store

	sensor  *sim.Sensor
	button  *sim.Button
	network *sim.Network
	updater *sim.Updater
	screen  *display.Text

	readings  chan Reading
	cmds      chan proto.Command
	done      chan struct{}
	mu        sync.RWMutex
	cancel    context.CancelFunc
	connected bool

	startTime time.Time
	lastStep  time.Time
}

// NewMock creates a simulated scale from a copy of cfg. Calibration changes
// go to store; a nil store keeps them in memory.
func NewMock(cfg *config.Config, store controller.Store) *Mock {
	if cfg == nil {
		cfg = config.Default()
	}
	cfg = cfg.Clone()
	if store == nil {
		store = sim.NewStore()
	}

	m := &Mock{
		cfg:      cfg,
		store:    store,
		sensor:   sim.NewSensor(cfg.Scale.Slope, cfg.Scale.ZeroOffset, cfg.Mock.NoiseLevel, uint64(time.Now().UnixNano())),
		button:   sim.NewButton(nil),
		updater:  &sim.Updater{},
		screen:   display.NewText(),
		readings: make(chan Reading, DefaultBufferSize),
		cmds:     make(chan proto.Command, 8),
	}
	if cfg.Mock.ConnectDelay > 0 {
		m.network = sim.NewNetwork(cfg.Mock.ConnectDelay, nil)
	}
	m.sensor.SetLoad(cfg.Mock.LoadGrams)
	return m
}

// Connect starts the simulated scale.
func (m *Mock) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return fmt.Errorf("already connected")
	}
	if m.done != nil {
		return fmt.Errorf("mock cannot be reconnected")
	}

	parts := controller.Parts{
		Sensor: m.sensor,
		Button: m.button,
		Screen: m.screen,
		Store:  m.store,
	}
	if m.network != nil {
		parts.Network = m.network
		parts.Updater = m.updater
	}

	c, err := controller.New(m.cfg.Options(), parts)
	if err != nil {
		return fmt.Errorf("failed to create controller: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	m.connected = true
	m.startTime = time.Now()
	m.lastStep = m.startTime

	go m.run(ctx, c)

	return nil
}

func (m *Mock) run(ctx context.Context, c *controller.Controller) {
	defer close(m.done)
	defer close(m.readings)

	err := c.Run(ctx, m.cfg.Mock.SampleRate, m.cmds, func(s controller.Snapshot) {
		now := time.Now()
		m.consume(now)

		select {
		case m.readings <- Reading{Timestamp: now, Telemetry: s.Telemetry()}:
		default:
			// Channel full, skip
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		m.mu.Lock()
		m.connected = false
		m.mu.Unlock()
	}
}

// consume removes filament while the simulated print is running.
func (m *Mock) consume(now time.Time) {
	dt := now.Sub(m.lastStep)
	m.lastStep = now

	mc := m.cfg.Mock
	if mc.PrintPeriod <= 0 || mc.FeedRate <= 0 {
		return
	}
	phase := now.Sub(m.startTime) % mc.PrintPeriod
	if phase < mc.PrintLength && m.sensor.Load() > 0 {
		m.sensor.AddLoad(-mc.FeedRate * dt.Seconds())
	}
}

// Close stops the simulated scale and waits for it to finish.
func (m *Mock) Close() error {
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return nil
	}
	m.cancel()
	m.connected = false
	done := m.done
	m.mu.Unlock()

	<-done
	return nil
}

// Readings returns the channel of simulated telemetry.
func (m *Mock) Readings() <-chan Reading {
	return m.readings
}

// Send queues a command for the controller.
func (m *Mock) Send(cmd proto.Command) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.connected {
		return fmt.Errorf("not connected")
	}

	select {
	case m.cmds <- cmd:
		return nil
	default:
		return fmt.Errorf("command queue full")
	}
}

// IsConnected returns whether the simulation is running.
func (m *Mock) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// Frame returns what the simulated OLED shows.
func (m *Mock) Frame() display.Frame {
	return m.screen.Frame()
}

// SetLoad sets the gross load on the simulated scale in grams.
func (m *Mock) SetLoad(grams float64) {
	m.sensor.SetLoad(grams)
}

// Load returns the gross load on the simulated scale in grams.
func (m *Mock) Load() float64 {
	return m.sensor.Load()
}

// Press holds the simulated button for d.
func (m *Mock) Press(d time.Duration) {
	m.button.Press(d)
}

// Stall simulates a disconnected load cell amplifier.
func (m *Mock) Stall(stalled bool) {
	m.sensor.Stall(stalled)
}

// DropNetwork disconnects or reconnects the simulated wireless link. It does
// nothing when the simulated network is disabled.
func (m *Mock) DropNetwork(dropped bool) {
	if m.network != nil {
		m.network.Drop(dropped)
	}
}
