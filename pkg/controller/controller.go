package controller

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/itohio/filscale/pkg/button"
	"github.com/itohio/filscale/pkg/display"
	"github.com/itohio/filscale/pkg/menu"
	"github.com/itohio/filscale/pkg/proto"
	"github.com/itohio/filscale/pkg/scale"
)

// Fault is an abnormal condition shown on screen.
type Fault int

const (
	FaultNone Fault = iota
	FaultNetwork
	FaultRange
	FaultSensor
)

func (f Fault) String() string {
	switch f {
	case FaultNetwork:
		return "network"
	case FaultRange:
		return "range"
	case FaultSensor:
		return "sensor"
	default:
		return "none"
	}
}

type netState int

const (
	netOff netState = iota
	netConnecting
	netUp
	netFailed
)

// Options configure the controller.
type Options struct {
	Params scale.Params
	Limits scale.Limits
	Alpha  float64

	LongPress time.Duration
	Debounce  time.Duration

	SensorTimeout  time.Duration
	ConnectTimeout time.Duration
	UpdateInterval time.Duration // 0 checks for updates every step

	AverageSamples int
}

// DefaultOptions returns options with the default timings around params.
func DefaultOptions(params scale.Params) Options {
	return Options{
		Params:         params,
		Limits:         scale.Limits{Min: -10, Max: 5000},
		Alpha:          scale.DefaultAlpha,
		LongPress:      button.DefaultLongPress,
		Debounce:       button.DefaultDebounce,
		SensorTimeout:  2 * time.Second,
		ConnectTimeout: 30 * time.Second,
		AverageSamples: 10,
	}
}

// Snapshot is the outcome of one step.
type Snapshot struct {
	Uptime   time.Duration
	Raw      float64
	Filtered float64
	Grams    float64
	Meters   float64
	Preset   int
	State    menu.State
	Fault    Fault
}

// Telemetry converts the snapshot into a telemetry line record.
func (s Snapshot) Telemetry() proto.Telemetry {
	return proto.Telemetry{
		Uptime:   s.Uptime,
		Raw:      s.Raw,
		Filtered: s.Filtered,
		Grams:    s.Grams,
		Meters:   s.Meters,
		Preset:   s.Preset,
		State:    s.State.String(),
		Fault:    s.Fault.String(),
	}
}

// Controller holds all application state of the scale and runs the poll step.
// It is not safe for concurrent use; Run serializes commands with steps.
type Controller struct {
	opts  Options
	parts Parts

	cal    *scale.Calibration
	filter *scale.Filter
	press  *button.Classifier
	menu   *menu.Machine

	started    bool
	start      time.Time
	lastSample time.Time
	lastCheck  time.Time
	raw        float64

	fault     Fault // measurement fault, network is tracked in net
	net       netState
	netSince  time.Time
	virtual   []button.Event
	lastErr   string
	renderErr string
}

// New creates a controller. Sensor, Button and Screen are required.
func New(opts Options, parts Parts) (*Controller, error) {
	if parts.Sensor == nil || parts.Button == nil || parts.Screen == nil {
		return nil, fmt.Errorf("sensor, button and screen are required")
	}
	if opts.SensorTimeout <= 0 {
		opts.SensorTimeout = DefaultOptions(opts.Params).SensorTimeout
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultOptions(opts.Params).ConnectTimeout
	}
	if opts.AverageSamples <= 0 {
		opts.AverageSamples = 1
	}

	c := &Controller{
		opts:   opts,
		parts:  parts,
		filter: scale.NewFilter(opts.Alpha),
		press:  button.New(opts.LongPress, opts.Debounce),
	}
	c.setParams(opts.Params)
	return c, nil
}

func (c *Controller) setParams(p scale.Params) {
	c.cal = scale.New(p)
	names := make([]string, 0, len(p.Presets))
	for _, pr := range p.Presets {
		names = append(names, pr.Name)
	}
	c.menu = menu.New(names)
}

// Start loads stored parameters, seeds the filter and starts the network.
// Step calls it on first use.
func (c *Controller) Start(now time.Time) {
	if c.started {
		return
	}
	c.started = true
	c.start = now
	c.lastSample = now

	if c.parts.Store != nil {
		p, err := c.parts.Store.Load()
		if err != nil {
			log.Printf("Using configured calibration, failed to load stored one: %v", err)
		} else {
			c.setParams(p)
			log.Printf("Loaded calibration: slope=%.5f zero=%.3f", p.Slope, p.ZeroOffset)
		}
	}

	if raw, err := c.parts.Sensor.ReadAverage(c.opts.AverageSamples); err != nil {
		log.Printf("Failed to read initial average: %v", err)
	} else {
		c.filter.Reset(raw)
		c.raw = raw
		c.lastSample = now
	}

	if c.parts.Network != nil {
		if err := c.parts.Network.Begin(); err != nil {
			log.Printf("Failed to start network: %v", err)
			c.net = netFailed
		} else {
			c.net = netConnecting
			c.netSince = now
		}
	}
}

// Step runs one poll cycle: read sensor, filter, render, poll button,
// service the updater. It never blocks.
func (c *Controller) Step(now time.Time) Snapshot {
	c.Start(now)

	c.sample(now)
	c.evaluate(now)
	c.render(now)
	c.poll(now)
	c.service(now)

	return c.snapshot(now)
}

func (c *Controller) sample(now time.Time) {
	raw, err := c.parts.Sensor.Read()
	switch {
	case err == nil:
		c.raw = raw
		c.filter.Update(raw)
		c.lastSample = now
		c.lastErr = ""
	case errors.Is(err, ErrNotReady):
	default:
		if msg := err.Error(); msg != c.lastErr {
			log.Printf("Sensor read failed: %v", err)
			c.lastErr = msg
		}
	}
}

func (c *Controller) evaluate(now time.Time) {
	fault := FaultNone
	switch {
	case now.Sub(c.lastSample) > c.opts.SensorTimeout || !c.filter.Primed():
		fault = FaultSensor
	case c.opts.Limits.Check(c.grams()) != nil:
		fault = FaultRange
	}
	c.setFault(fault)
}

func (c *Controller) setFault(f Fault) {
	if f == c.fault {
		return
	}
	log.Printf("Fault: %s -> %s", c.fault, f)
	c.fault = f
}

func (c *Controller) grams() float64 {
	return c.cal.GramsOf(c.filter.Value())
}

func (c *Controller) render(now time.Time) {
	err := display.Render(c.parts.Screen, display.Compose(c.view(now)))
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	if msg != c.renderErr {
		if err != nil {
			log.Printf("Display flush failed: %v", err)
		}
		c.renderErr = msg
	}
}

func (c *Controller) poll(now time.Time) {
	ev := c.press.Update(c.parts.Button.Pressed(), now)
	if ev == button.None && len(c.virtual) > 0 {
		ev = c.virtual[0]
		c.virtual = c.virtual[1:]
	}
	if ev == button.None {
		return
	}
	c.apply(c.menu.Handle(ev))
}

func (c *Controller) apply(a menu.Action) {
	switch a.Kind {
	case menu.Zero:
		c.Zero()
	case menu.SelectPreset:
		if err := c.SelectPreset(a.Preset); err != nil {
			log.Printf("Failed to select preset: %v", err)
		}
	}
}

func (c *Controller) service(now time.Time) {
	if c.parts.Network == nil {
		return
	}

	connected := c.parts.Network.Connected()
	switch {
	case connected && c.net != netUp:
		log.Printf("Network connected")
		c.net = netUp
	case !connected && c.net == netUp:
		log.Printf("Network lost")
		c.net = netConnecting
		c.netSince = now
	case !connected && c.net == netConnecting && now.Sub(c.netSince) > c.opts.ConnectTimeout:
		log.Printf("Network did not connect within %v", c.opts.ConnectTimeout)
		c.net = netFailed
	}

	if c.net != netUp || c.parts.Updater == nil {
		return
	}
	if !c.lastCheck.IsZero() && now.Sub(c.lastCheck) < c.opts.UpdateInterval {
		return
	}
	c.lastCheck = now
	if err := c.parts.Updater.Check(); err != nil {
		log.Printf("Update check failed: %v", err)
	}
}

// Zero captures the smoothed reading as the new zero offset and stores it.
func (c *Controller) Zero() {
	if !c.filter.Primed() {
		log.Printf("Cannot zero without a reading")
		return
	}
	c.cal.Zero(c.filter.Value())
	log.Printf("Zero offset set to %.3f", c.filter.Value())
	c.save()
}

// SelectPreset selects spool preset i and stores it.
func (c *Controller) SelectPreset(i int) error {
	if err := c.cal.SelectPreset(i); err != nil {
		return err
	}
	log.Printf("Spool preset %q (%.0fg)", c.cal.Preset().Name, c.cal.Preset().Grams)
	c.save()
	return nil
}

// SetCalibration replaces slope and zero offset and stores them.
func (c *Controller) SetCalibration(slope, zeroOffset float64) error {
	if err := c.cal.SetLinear(slope, zeroOffset); err != nil {
		return err
	}
	log.Printf("Calibration set: slope=%.5f zero=%.3f", slope, zeroOffset)
	c.save()
	return nil
}

func (c *Controller) save() {
	if c.parts.Store == nil {
		return
	}
	if err := c.parts.Store.Save(c.cal.Params()); err != nil {
		log.Printf("Failed to store calibration: %v", err)
	}
}

// Execute applies a host command. Virtual presses take effect on the next step.
func (c *Controller) Execute(cmd proto.Command) error {
	switch cmd.Op {
	case proto.OpZero:
		c.Zero()
	case proto.OpPreset:
		return c.SelectPreset(cmd.Preset)
	case proto.OpCalibrate:
		return c.SetCalibration(cmd.Slope, cmd.Zero)
	case proto.OpShort:
		c.virtual = append(c.virtual, button.Short)
	case proto.OpLong:
		c.virtual = append(c.virtual, button.Long)
	default:
		return fmt.Errorf("unsupported command %q", cmd.String())
	}
	return nil
}

// Run steps the controller every period until ctx is done. Commands are
// executed between steps; onStep, if set, receives every snapshot.
func (c *Controller) Run(ctx context.Context, period time.Duration, cmds <-chan proto.Command, onStep func(Snapshot)) error {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd, ok := <-cmds:
			if !ok {
				cmds = nil
				continue
			}
			if err := c.Execute(cmd); err != nil {
				log.Printf("Command %q failed: %v", cmd.String(), err)
			}
		case now := <-ticker.C:
			s := c.Step(now)
			if onStep != nil {
				onStep(s)
			}
		}
	}
}

func (c *Controller) view(now time.Time) display.View {
	p := c.cal.Params()
	v := display.View{
		Uptime:     c.Uptime(now),
		Preset:     c.cal.Preset().Name,
		Grams:      c.grams(),
		Meters:     c.cal.MetersOf(c.grams()),
		Network:    c.networkLabel(),
		Items:      c.menu.Labels(),
		Cursor:     c.menu.Cursor(),
		Raw:        c.raw,
		Filtered:   c.filter.Value(),
		ZeroOffset: p.ZeroOffset,
		Slope:      p.Slope,
	}

	switch c.menu.State() {
	case menu.List:
		v.Mode = display.ModeList
	case menu.Diagnostics:
		v.Mode = display.ModeDiagnostics
	case menu.ZeroPrompt:
		v.Mode = display.ModeZeroPrompt
	default:
		switch c.fault {
		case FaultSensor:
			v.Mode = display.ModeFault
			v.Fault = "SENSOR"
			v.Detail = "no data"
		case FaultRange:
			v.Mode = display.ModeFault
			v.Fault = "RANGE"
			v.Detail = "overload"
			if v.Grams < c.opts.Limits.Min {
				v.Detail = "no spool?"
			}
		default:
			v.Mode = display.ModeWeight
		}
	}
	return v
}

func (c *Controller) networkLabel() string {
	switch c.net {
	case netConnecting:
		return "NET..."
	case netUp:
		return "WIFI OK"
	case netFailed:
		return "NO NET"
	default:
		return ""
	}
}

func (c *Controller) snapshot(now time.Time) Snapshot {
	g := c.grams()
	return Snapshot{
		Uptime:   c.Uptime(now),
		Raw:      c.raw,
		Filtered: c.filter.Value(),
		Grams:    g,
		Meters:   c.cal.MetersOf(g),
		Preset:   c.cal.PresetIndex(),
		State:    c.menu.State(),
		Fault:    c.Fault(),
	}
}

// Uptime returns the time since Start.
func (c *Controller) Uptime(now time.Time) time.Duration {
	if !c.started {
		return 0
	}
	return now.Sub(c.start)
}

// Fault returns the most severe active fault.
func (c *Controller) Fault() Fault {
	if c.fault != FaultNone {
		return c.fault
	}
	if c.net == netFailed {
		return FaultNetwork
	}
	return FaultNone
}

// Params returns the current calibration.
func (c *Controller) Params() scale.Params { return c.cal.Params() }

// State returns the menu state.
func (c *Controller) State() menu.State { return c.menu.State() }

// Pending reports a button press that is still being timed.
func (c *Controller) Pending() bool { return c.press.Pending() }
