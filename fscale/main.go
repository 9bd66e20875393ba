package main

import (
	"flag"
	"fmt"
	"log"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/filscale/pkg/config"
	"github.com/itohio/filscale/pkg/display"
	"github.com/itohio/filscale/pkg/link"
	"github.com/itohio/filscale/pkg/meter"
	"github.com/itohio/filscale/pkg/proto"
	"github.com/itohio/filscale/pkg/sample"
	"github.com/itohio/filscale/pkg/scale"
	"github.com/itohio/filscale/pkg/scope"
)

func main() {
	var (
		portFlag           = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyACM0)")
		configFlag         = flag.String("config", "config.yaml", "Configuration file path")
		mockFlag           = flag.Bool("mock", false, "Use simulated scale instead of serial port")
		averageSamplesFlag = flag.Int("average-samples", -1, "Number of readings to average (0 = disabled, overrides config)")
	)
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}
	if *averageSamplesFlag >= 0 {
		cfg.Meter.AverageSamples = *averageSamplesFlag
	}

	application := app.NewWithID("com.itohio.filscale")

	window := application.NewWindow("Filament Scale")
	window.Resize(fyne.NewSize(1100, 600))
	window.CenterOnScreen()

	state := &appState{
		cfg:        cfg,
		configPath: *configFlag,
		weight:     meter.New(cfg),
		window:     window,
		useMock:    *mockFlag,
		oled:       newOLED(),
		status:     widget.NewLabel("Disconnected"),
		trend:      scope.New(time.Duration(cfg.Meter.WindowSeconds * float64(time.Second))),
	}
	state.syncMirror()

	toolbar := createToolbar(state)
	side := container.NewVBox(state.oled, createLoadControls(state))

	window.SetContent(container.NewBorder(
		toolbar,
		state.status,
		side,
		nil,
		state.trend,
	))
	window.SetOnClosed(func() {
		disconnect(state)
	})
	window.ShowAndRun()
}

// measurementChain tracks the components of the measurement chain for graceful shutdown.
type measurementChain struct {
	device         link.Device
	meterGoroutine chan struct{} // Closed when the meter goroutine exits
	stateGoroutine chan struct{} // Closed when the telemetry watcher exits
}

// appState holds the application state.
type appState struct {
	cfg        *config.Config
	configPath string
	device     link.Device
	mock       *link.Mock        // set when device is simulated
	store      *config.FileStore // calibration store of the simulated device
	weight     *meter.Meter
	window     fyne.Window
	useMock    bool

	oled   *oled
	trend  *scope.TrendWidget
	status *widget.Label

	connectBtn  *widget.Button
	controlBtns []*widget.Button
	loadSlider  *widget.Slider

	chain *measurementChain

	mu       sync.Mutex
	last     proto.Telemetry
	haveLast bool
	params   scale.Params // calibration used by the OLED mirror
	limits   scale.Limits

	// Throttling for trend updates
	lastUpdateTime time.Time
	updateMu       sync.Mutex
}

// lastTelemetry returns the most recent telemetry line.
func (s *appState) lastTelemetry() (proto.Telemetry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.haveLast
}

// syncMirror publishes the configured calibration to the reading goroutine.
// It must be called on the UI thread after cfg changes.
func (s *appState) syncMirror() {
	params, limits := s.cfg.Params(), s.cfg.Limits()
	s.mu.Lock()
	s.params = params
	s.limits = limits
	s.mu.Unlock()
}

// adoptStoredParams copies calibration changes made by the simulated scale
// into cfg.
func (s *appState) adoptStoredParams() {
	if s.store == nil {
		return
	}
	p, err := s.store.Load()
	if err != nil {
		log.Printf("Failed to read simulated calibration: %v", err)
		return
	}
	s.cfg.SetParams(p)
	s.syncMirror()
}

// createToolbar creates the toolbar with connect, settings and scale controls.
func createToolbar(state *appState) fyne.CanvasObject {
	connectBtn := widget.NewButtonWithIcon("", theme.LoginIcon(), func() {
		handleConnect(state)
	})
	state.connectBtn = connectBtn

	settingsBtn := widget.NewButtonWithIcon("", theme.SettingsIcon(), func() {
		showSettingsDialog(state)
	})

	zeroBtn := widget.NewButton("Zero", func() { send(state, proto.Command{Op: proto.OpZero}) })
	presetBtn := widget.NewButton("Next preset", func() { nextPreset(state) })
	shortBtn := widget.NewButton("Short press", func() { send(state, proto.Command{Op: proto.OpShort}) })
	longBtn := widget.NewButton("Long press", func() { send(state, proto.Command{Op: proto.OpLong}) })

	state.controlBtns = []*widget.Button{zeroBtn, presetBtn, shortBtn, longBtn}
	setControlsEnabled(state, false)

	return container.NewBorder(
		nil,
		nil,
		container.NewHBox(connectBtn, settingsBtn),
		container.NewHBox(zeroBtn, presetBtn, shortBtn, longBtn),
		nil,
	)
}

func setControlsEnabled(state *appState, enabled bool) {
	for _, b := range state.controlBtns {
		if enabled {
			b.Enable()
		} else {
			b.Disable()
		}
	}
	if state.loadSlider != nil {
		if enabled && state.mock != nil {
			state.loadSlider.Enable()
		} else {
			state.loadSlider.Disable()
		}
	}
}

// closeMeasurementChain gracefully closes the measurement chain.
func closeMeasurementChain(chain *measurementChain) {
	if chain == nil {
		return
	}

	// Closing the device closes its readings channel which drains the pipeline.
	if chain.device != nil {
		chain.device.Close()
	}
	if chain.stateGoroutine != nil {
		<-chain.stateGoroutine
	}
	if chain.meterGoroutine != nil {
		<-chain.meterGoroutine
	}
}

func disconnect(state *appState) {
	if state.device == nil {
		return
	}
	closeMeasurementChain(state.chain)
	state.adoptStoredParams()
	state.chain = nil
	state.device = nil
	state.mock = nil
	state.store = nil
	setControlsEnabled(state, false)
	state.status.SetText("Disconnected")
	log.Printf("Disconnected")
}

// handleConnect handles the connect/disconnect button click.
func handleConnect(state *appState) {
	if state.device != nil {
		wasConnected := state.device.IsConnected()
		disconnect(state)
		if wasConnected {
			return
		}
	}

	var device link.Device
	if state.useMock {
		state.store = config.NewStore(state.cfg, state.configPath)
		state.mock = link.NewMock(state.cfg, state.store)
		device = state.mock
		log.Printf("Using simulated scale")
	} else {
		device = link.New(state.cfg.Serial.Port, state.cfg.Serial.BaudRate, link.DefaultBufferSize)
	}

	if err := device.Connect(); err != nil {
		state.mock = nil
		state.store = nil
		if state.useMock {
			dialog.ShowError(fmt.Errorf("failed to start simulated scale: %w", err), state.window)
		} else {
			dialog.ShowError(fmt.Errorf("failed to connect to %s: %w", state.cfg.Serial.Port, err), state.window)
		}
		return
	}
	state.device = device
	if !state.useMock {
		log.Printf("Connected to serial port: %s", state.cfg.Serial.Port)
	}

	if state.mock != nil {
		state.loadSlider.SetValue(state.mock.Load())
	}
	setControlsEnabled(state, true)

	state.weight.Reset()
	state.weight.ResetShutdown()

	// Throttle trend updates to ~30 FPS
	const updateInterval = 33 * time.Millisecond
	state.weight.OnUpdate(func(samples []sample.Sample, _ []float64, runs []meter.Run) {
		state.updateMu.Lock()
		now := time.Now()
		if now.Sub(state.lastUpdateTime) < updateInterval {
			state.updateMu.Unlock()
			return
		}
		state.lastUpdateTime = now
		state.updateMu.Unlock()

		rate := state.weight.Rate()
		fyne.Do(func() {
			state.trend.UpdateData(samples, runs, rate)
		})
	})

	// Tee readings: one branch updates the OLED mirror and status, the other
	// feeds the weight meter.
	readings := device.Readings()
	forMeter := make(chan link.Reading, link.DefaultBufferSize)
	stateDone := make(chan struct{})
	meterDone := make(chan struct{})

	go func() {
		defer close(stateDone)
		defer close(forMeter)
		for r := range readings {
			onReading(state, r)
			select {
			case forMeter <- r:
			default:
			}
		}
	}()

	stream := sample.NewConverter(500)(forMeter)
	if n := state.cfg.Meter.AverageSamples; n > 0 {
		stream = sample.NewAveraging(n, 100*time.Millisecond, 500)(stream)
	}

	go func() {
		defer close(meterDone)
		state.weight.ProcessSamples(stream)
	}()

	state.chain = &measurementChain{
		device:         device,
		meterGoroutine: meterDone,
		stateGoroutine: stateDone,
	}
}

// onReading records the reading and refreshes the OLED mirror and status line.
func onReading(state *appState, r link.Reading) {
	state.mu.Lock()
	state.last = r.Telemetry
	state.haveLast = true
	params, limits := state.params, state.limits
	state.mu.Unlock()

	var frame display.Frame
	if m := state.mock; m != nil {
		frame = m.Frame()
	} else {
		frame = mirrorFrame(r.Telemetry, params, limits)
	}
	status := statusLine(r.Telemetry)

	fyne.Do(func() {
		state.oled.SetFrame(frame)
		state.status.SetText(status)
	})
}

func send(state *appState, cmd proto.Command) {
	if state.device == nil || !state.device.IsConnected() {
		return
	}
	if err := state.device.Send(cmd); err != nil {
		dialog.ShowError(err, state.window)
	}
}

// nextPreset selects the preset following the one the scale reports.
func nextPreset(state *appState) {
	n := len(state.cfg.Presets)
	if n == 0 {
		return
	}
	cur := state.cfg.Scale.Preset
	if t, ok := state.lastTelemetry(); ok {
		cur = t.Preset
	}
	send(state, proto.Command{Op: proto.OpPreset, Preset: (cur + 1) % n})
}
