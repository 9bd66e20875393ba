package main

import (
	"fmt"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

const (
	maxLoadGrams = 3000
	tapDuration  = 150 * time.Millisecond
	holdDuration = 800 * time.Millisecond
)

// createLoadControls creates the controls that act on the simulated scale.
// They are disabled unless the simulation is connected.
func createLoadControls(state *appState) fyne.CanvasObject {
	loadLabel := widget.NewLabel(loadText(state.cfg.Mock.LoadGrams))

	slider := widget.NewSlider(0, maxLoadGrams)
	slider.Step = 1
	slider.SetValue(state.cfg.Mock.LoadGrams)
	slider.OnChanged = func(v float64) {
		loadLabel.SetText(loadText(v))
		if m := state.mock; m != nil {
			m.SetLoad(v)
		}
	}
	slider.Disable()
	state.loadSlider = slider

	stall := widget.NewCheck("Unplug sensor", func(on bool) {
		if m := state.mock; m != nil {
			m.Stall(on)
		}
	})
	dropNet := widget.NewCheck("Drop Wi-Fi", func(on bool) {
		if m := state.mock; m != nil {
			m.DropNetwork(on)
		}
	})

	// The physical button, as opposed to the S/L commands in the toolbar.
	tap := widget.NewButton("Tap", func() {
		if m := state.mock; m != nil {
			m.Press(tapDuration)
		}
	})
	hold := widget.NewButton("Hold", func() {
		if m := state.mock; m != nil {
			m.Press(holdDuration)
		}
	})

	if !state.useMock {
		return container.NewVBox()
	}
	return container.NewVBox(
		widget.NewLabelWithStyle("Simulation", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		loadLabel,
		slider,
		stall,
		dropNet,
		container.NewGridWithColumns(2, tap, hold),
	)
}

func loadText(grams float64) string {
	return fmt.Sprintf("Load: %.0f g", grams)
}
