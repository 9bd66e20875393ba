package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/filscale/pkg/config"
	"github.com/itohio/filscale/pkg/link"
	"github.com/itohio/filscale/pkg/meter"
	"github.com/itohio/filscale/pkg/proto"
)

// showSettingsDialog displays a settings dialog with tabs for all configuration options.
func showSettingsDialog(state *appState) {
	state.adoptStoredParams()

	tabs := container.NewAppTabs(
		createSerialTab(state),
		createScaleTab(state),
		createPresetsTab(state),
		createTimingTab(state),
		createMeterTab(state),
		createMockTab(state),
	)

	content := container.NewBorder(nil, nil, nil, nil, tabs)
	content.Resize(fyne.NewSize(600, 500))

	d := dialog.NewCustom("Settings", "Close", content, state.window)
	d.Resize(fyne.NewSize(600, 500))
	d.Show()
}

func saveConfig(state *appState) bool {
	if err := state.cfg.Save(state.configPath); err != nil {
		dialog.ShowError(fmt.Errorf("failed to save config: %w", err), state.window)
		return false
	}
	state.syncMirror()
	return true
}

// createSerialTab creates the Serial configuration tab.
func createSerialTab(state *appState) *container.TabItem {
	ports, err := link.Ports()
	portOptions := []string{}
	portMap := make(map[string]string) // display name to port name

	if err == nil {
		for _, port := range ports {
			displayName := port.Name
			if port.Description != "" && port.Description != port.Name {
				displayName = fmt.Sprintf("%s (%s)", port.Name, port.Description)
			}
			portOptions = append(portOptions, displayName)
			portMap[displayName] = port.Name
		}
	}

	currentPort := state.cfg.Serial.Port
	currentDisplay := currentPort
	found := false
	for _, opt := range portOptions {
		if portMap[opt] == currentPort {
			currentDisplay = opt
			found = true
			break
		}
	}
	if !found && currentPort != "" {
		portOptions = append(portOptions, currentPort)
		portMap[currentPort] = currentPort
	}

	portSelect := widget.NewSelect(portOptions, nil)
	if currentDisplay != "" {
		portSelect.SetSelected(currentDisplay)
	}

	baudEntry := widget.NewEntry()
	baudEntry.SetText(strconv.Itoa(state.cfg.Serial.BaudRate))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Serial Port", Widget: portSelect},
			{Text: "Baud Rate", Widget: baudEntry},
		},
		OnSubmit: func() {
			if portSelect.Selected == "" {
				return
			}
			selectedPort := portMap[portSelect.Selected]
			if selectedPort == "" {
				selectedPort = portSelect.Selected
			}

			changed := state.cfg.Serial.Port != selectedPort
			if baud, err := strconv.Atoi(baudEntry.Text); err == nil && baud > 0 {
				changed = changed || baud != state.cfg.Serial.BaudRate
				state.cfg.Serial.BaudRate = baud
			}
			wasConnected := state.device != nil && state.device.IsConnected()

			state.cfg.Serial.Port = selectedPort
			if !saveConfig(state) {
				return
			}

			if changed && wasConnected && !state.useMock {
				disconnect(state)
				handleConnect(state)
			}
		},
	}

	return container.NewTabItem("Serial", form)
}

// createScaleTab creates the calibration and limits tab. Submitting pushes
// the calibration to a connected scale.
func createScaleTab(state *appState) *container.TabItem {
	slopeEntry := widget.NewEntry()
	slopeEntry.SetText(strconv.FormatFloat(state.cfg.Scale.Slope, 'f', -1, 64))

	zeroEntry := widget.NewEntry()
	zeroEntry.SetText(strconv.FormatFloat(state.cfg.Scale.ZeroOffset, 'f', -1, 64))

	mpgEntry := widget.NewEntry()
	mpgEntry.SetText(fmt.Sprintf("%.3f", state.cfg.Scale.MetersPerGram))

	alphaEntry := widget.NewEntry()
	alphaEntry.SetText(fmt.Sprintf("%.2f", state.cfg.Scale.Alpha))

	minEntry := widget.NewEntry()
	minEntry.SetText(fmt.Sprintf("%.0f", state.cfg.Scale.MinGrams))

	maxEntry := widget.NewEntry()
	maxEntry.SetText(fmt.Sprintf("%.0f", state.cfg.Scale.MaxGrams))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Slope (g/raw)", Widget: slopeEntry},
			{Text: "Zero Offset (raw)", Widget: zeroEntry},
			{Text: "Meters per Gram", Widget: mpgEntry},
			{Text: "Filter Alpha", Widget: alphaEntry},
			{Text: "Min Net (g)", Widget: minEntry},
			{Text: "Max Net (g)", Widget: maxEntry},
		},
		OnSubmit: func() {
			if v, err := strconv.ParseFloat(slopeEntry.Text, 64); err == nil && v > 0 {
				state.cfg.Scale.Slope = v
			}
			if v, err := strconv.ParseFloat(zeroEntry.Text, 64); err == nil {
				state.cfg.Scale.ZeroOffset = v
			}
			if v, err := strconv.ParseFloat(mpgEntry.Text, 64); err == nil && v > 0 {
				state.cfg.Scale.MetersPerGram = v
			}
			if v, err := strconv.ParseFloat(alphaEntry.Text, 64); err == nil && v > 0 && v <= 1 {
				state.cfg.Scale.Alpha = v
			}
			if v, err := strconv.ParseFloat(minEntry.Text, 64); err == nil {
				state.cfg.Scale.MinGrams = v
			}
			if v, err := strconv.ParseFloat(maxEntry.Text, 64); err == nil {
				state.cfg.Scale.MaxGrams = v
			}
			if !saveConfig(state) {
				return
			}
			send(state, proto.Command{
				Op:    proto.OpCalibrate,
				Slope: state.cfg.Scale.Slope,
				Zero:  state.cfg.Scale.ZeroOffset,
			})
		},
	}

	return container.NewTabItem("Scale", form)
}

// createPresetsTab edits the spool presets, one "name = grams" per line.
func createPresetsTab(state *appState) *container.TabItem {
	entry := widget.NewMultiLineEntry()
	entry.SetText(formatPresets(state.cfg.Presets))
	entry.SetMinRowsVisible(6)

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Presets", Widget: entry, HintText: "one \"name = grams\" per line"},
		},
		OnSubmit: func() {
			presets, err := parsePresets(entry.Text)
			if err != nil {
				dialog.ShowError(err, state.window)
				return
			}
			state.cfg.Presets = presets
			if state.cfg.Scale.Preset >= len(presets) {
				state.cfg.Scale.Preset = 0
			}
			saveConfig(state)
		},
	}

	return container.NewTabItem("Presets", form)
}

// createTimingTab creates the button and loop timing tab.
func createTimingTab(state *appState) *container.TabItem {
	longPressEntry := widget.NewEntry()
	longPressEntry.SetText(state.cfg.Button.LongPress.String())

	debounceEntry := widget.NewEntry()
	debounceEntry.SetText(state.cfg.Button.Debounce.String())

	periodEntry := widget.NewEntry()
	periodEntry.SetText(state.cfg.Loop.Period.String())

	timeoutEntry := widget.NewEntry()
	timeoutEntry.SetText(state.cfg.Loop.SensorTimeout.String())

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Long Press", Widget: longPressEntry},
			{Text: "Debounce", Widget: debounceEntry},
			{Text: "Loop Period", Widget: periodEntry},
			{Text: "Sensor Timeout", Widget: timeoutEntry},
		},
		OnSubmit: func() {
			if d, err := time.ParseDuration(longPressEntry.Text); err == nil {
				state.cfg.Button.LongPress = d
			}
			if d, err := time.ParseDuration(debounceEntry.Text); err == nil {
				state.cfg.Button.Debounce = d
			}
			if d, err := time.ParseDuration(periodEntry.Text); err == nil {
				state.cfg.Loop.Period = d
			}
			if d, err := time.ParseDuration(timeoutEntry.Text); err == nil {
				state.cfg.Loop.SensorTimeout = d
			}
			saveConfig(state)
		},
	}

	return container.NewTabItem("Timing", form)
}

// createMeterTab creates the trend analysis tab. Changes made while
// connected apply on the next connect.
func createMeterTab(state *appState) *container.TabItem {
	windowSecondsEntry := widget.NewEntry()
	windowSecondsEntry.SetText(fmt.Sprintf("%.1f", state.cfg.Meter.WindowSeconds))

	rateThresholdEntry := widget.NewEntry()
	rateThresholdEntry.SetText(fmt.Sprintf("%.4f", state.cfg.Meter.RateThreshold))

	minRunEntry := widget.NewEntry()
	minRunEntry.SetText(fmt.Sprintf("%.1f", state.cfg.Meter.MinRunDuration))

	averageSamplesEntry := widget.NewEntry()
	averageSamplesEntry.SetText(strconv.Itoa(state.cfg.Meter.AverageSamples))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Window (seconds)", Widget: windowSecondsEntry},
			{Text: "Rate Threshold (g/s)", Widget: rateThresholdEntry},
			{Text: "Min Run Duration (s)", Widget: minRunEntry},
			{Text: "Average Samples (0=disabled)", Widget: averageSamplesEntry},
		},
		OnSubmit: func() {
			if ws, err := strconv.ParseFloat(windowSecondsEntry.Text, 64); err == nil {
				state.cfg.Meter.WindowSeconds = ws
			}
			if rt, err := strconv.ParseFloat(rateThresholdEntry.Text, 64); err == nil {
				state.cfg.Meter.RateThreshold = rt
			}
			if mr, err := strconv.ParseFloat(minRunEntry.Text, 64); err == nil {
				state.cfg.Meter.MinRunDuration = mr
			}
			if avg, err := strconv.Atoi(averageSamplesEntry.Text); err == nil {
				state.cfg.Meter.AverageSamples = avg
			}
			if !saveConfig(state) {
				return
			}
			if state.device == nil {
				state.weight = meter.New(state.cfg)
			}
		},
	}

	return container.NewTabItem("Meter", form)
}

// createMockTab creates the simulated scale tab.
func createMockTab(state *appState) *container.TabItem {
	loadEntry := widget.NewEntry()
	loadEntry.SetText(fmt.Sprintf("%.0f", state.cfg.Mock.LoadGrams))

	noiseLevelEntry := widget.NewEntry()
	noiseLevelEntry.SetText(fmt.Sprintf("%.3f", state.cfg.Mock.NoiseLevel))

	feedRateEntry := widget.NewEntry()
	feedRateEntry.SetText(fmt.Sprintf("%.3f", state.cfg.Mock.FeedRate))

	printPeriodEntry := widget.NewEntry()
	printPeriodEntry.SetText(state.cfg.Mock.PrintPeriod.String())

	printLengthEntry := widget.NewEntry()
	printLengthEntry.SetText(state.cfg.Mock.PrintLength.String())

	connectDelayEntry := widget.NewEntry()
	connectDelayEntry.SetText(state.cfg.Mock.ConnectDelay.String())

	sampleRateEntry := widget.NewEntry()
	sampleRateEntry.SetText(state.cfg.Mock.SampleRate.String())

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Initial Load (g)", Widget: loadEntry},
			{Text: "Noise Level (raw)", Widget: noiseLevelEntry},
			{Text: "Feed Rate (g/s)", Widget: feedRateEntry},
			{Text: "Print Period", Widget: printPeriodEntry},
			{Text: "Print Length", Widget: printLengthEntry},
			{Text: "Network Delay (0=off)", Widget: connectDelayEntry},
			{Text: "Sample Rate", Widget: sampleRateEntry},
		},
		OnSubmit: func() {
			if v, err := strconv.ParseFloat(loadEntry.Text, 64); err == nil {
				state.cfg.Mock.LoadGrams = v
			}
			if v, err := strconv.ParseFloat(noiseLevelEntry.Text, 64); err == nil {
				state.cfg.Mock.NoiseLevel = v
			}
			if v, err := strconv.ParseFloat(feedRateEntry.Text, 64); err == nil {
				state.cfg.Mock.FeedRate = v
			}
			if d, err := time.ParseDuration(printPeriodEntry.Text); err == nil {
				state.cfg.Mock.PrintPeriod = d
			}
			if d, err := time.ParseDuration(printLengthEntry.Text); err == nil {
				state.cfg.Mock.PrintLength = d
			}
			if d, err := time.ParseDuration(connectDelayEntry.Text); err == nil {
				state.cfg.Mock.ConnectDelay = d
			}
			if d, err := time.ParseDuration(sampleRateEntry.Text); err == nil {
				state.cfg.Mock.SampleRate = d
			}
			saveConfig(state)
		},
	}

	return container.NewTabItem("Mock", form)
}

func formatPresets(presets []config.PresetConfig) string {
	lines := make([]string, len(presets))
	for i, p := range presets {
		lines[i] = p.Name + " = " + strconv.FormatFloat(p.Grams, 'f', -1, 64)
	}
	return strings.Join(lines, "\n")
}

// parsePresets parses "name = grams" lines. Blank lines are skipped.
func parsePresets(text string) ([]config.PresetConfig, error) {
	var presets []config.PresetConfig
	for i, l := range strings.Split(text, "\n") {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		name, grams, ok := strings.Cut(l, "=")
		if !ok {
			return nil, fmt.Errorf("line %d: expected \"name = grams\"", i+1)
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("line %d: empty name", i+1)
		}
		g, err := strconv.ParseFloat(strings.TrimSpace(grams), 64)
		if err != nil || g < 0 {
			return nil, fmt.Errorf("line %d: invalid tare weight %q", i+1, strings.TrimSpace(grams))
		}
		presets = append(presets, config.PresetConfig{Name: name, Grams: g})
	}
	if len(presets) == 0 {
		return nil, fmt.Errorf("at least one preset is required")
	}
	return presets, nil
}
