package controller

import (
	"errors"

	"github.com/itohio/filscale/pkg/display"
	"github.com/itohio/filscale/pkg/scale"
)

// ErrNotReady is returned by Sensor.Read when no new conversion is available.
var ErrNotReady = errors.New("sensor not ready")

// Sensor is the load cell amplifier. Readings are in raw units.
type Sensor interface {
	// Read returns the latest sample without blocking, or ErrNotReady.
	Read() (float64, error)
	// ReadAverage returns the mean of n consecutive samples.
	ReadAverage(n int) (float64, error)
}

// Button is the push button, reporting the logical (pressed) level.
type Button interface {
	Pressed() bool
}

// Network is the wireless link used only for firmware updates.
type Network interface {
	// Begin starts connecting and returns without waiting for the link.
	Begin() error
	Connected() bool
}

// Updater checks for and applies firmware updates.
type Updater interface {
	Check() error
}

// Store persists calibration parameters.
type Store interface {
	Load() (scale.Params, error)
	Save(scale.Params) error
}

// Parts are the peripherals the controller drives. Network, Updater and
// Store are optional.
type Parts struct {
	Sensor  Sensor
	Button  Button
	Screen  display.Screen
	Network Network
	Updater Updater
	Store   Store
}
