// Package link connects the host to a scale: a real one over USB serial or
// an in-process simulation.
package link

import (
	"time"

	"github.com/itohio/filscale/pkg/proto"
)

const (
	// DefaultBufferSize is the default size for the readings channel buffer.
	DefaultBufferSize = 100
)

// Reading is a telemetry line stamped with the host receive time.
type Reading struct {
	Timestamp time.Time
	proto.Telemetry
}

// Device defines the interface for scales (real or simulated).
type Device interface {
	Connect() error
	Close() error
	Readings() <-chan Reading
	Send(cmd proto.Command) error
	IsConnected() bool
}

var (
	_ Device = (*Serial)(nil)
	_ Device = (*Mock)(nil)
)
