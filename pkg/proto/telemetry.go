// Package proto is the line protocol spoken over the scale's USB serial port.
//
// The firmware writes one telemetry line per poll step:
//
//	uptime_ms,raw,filtered,grams,meters,preset,state,fault
//	12345,8700.000,8699.512,62.3,18.7,0,idle,none
//
// Lines starting with '#' are log output and carry no telemetry.
// The host writes single command lines, see ParseCommand.
package proto

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// BaudRate of the firmware's serial port.
	BaudRate = 115200
	// CommentPrefix starts log lines that share the serial port with telemetry.
	CommentPrefix = "#"

	telemetryFields = 8
)

// Telemetry is one poll step as reported by the firmware.
type Telemetry struct {
	Uptime   time.Duration
	Raw      float64
	Filtered float64
	Grams    float64
	Meters   float64
	Preset   int
	State    string
	Fault    string
}

// IsComment reports whether line is log output rather than telemetry.
func IsComment(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), CommentPrefix)
}

// AppendTelemetry appends the telemetry line for t, including the newline.
func AppendTelemetry(dst []byte, t Telemetry) []byte {
	dst = strconv.AppendInt(dst, t.Uptime.Milliseconds(), 10)
	dst = append(dst, ',')
	dst = strconv.AppendFloat(dst, t.Raw, 'f', 3, 64)
	dst = append(dst, ',')
	dst = strconv.AppendFloat(dst, t.Filtered, 'f', 3, 64)
	dst = append(dst, ',')
	dst = strconv.AppendFloat(dst, t.Grams, 'f', 1, 64)
	dst = append(dst, ',')
	dst = strconv.AppendFloat(dst, t.Meters, 'f', 1, 64)
	dst = append(dst, ',')
	dst = strconv.AppendInt(dst, int64(t.Preset), 10)
	dst = append(dst, ',')
	dst = append(dst, t.State...)
	dst = append(dst, ',')
	dst = append(dst, t.Fault...)
	return append(dst, '\n')
}

// FormatTelemetry returns the telemetry line for t, including the newline.
func FormatTelemetry(t Telemetry) string {
	return string(AppendTelemetry(make([]byte, 0, 64), t))
}

// ParseTelemetry parses a telemetry line. Surrounding whitespace is ignored.
func ParseTelemetry(line string) (Telemetry, error) {
	parts := strings.Split(strings.TrimSpace(line), ",")
	if len(parts) != telemetryFields {
		return Telemetry{}, fmt.Errorf("invalid line format: expected %d comma-separated values, got %d", telemetryFields, len(parts))
	}

	ms, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Telemetry{}, fmt.Errorf("invalid uptime: %w", err)
	}
	if ms < 0 {
		return Telemetry{}, fmt.Errorf("invalid uptime: %d", ms)
	}

	var vals [4]float64
	names := [4]string{"raw", "filtered", "grams", "meters"}
	for i := range vals {
		vals[i], err = strconv.ParseFloat(parts[i+1], 64)
		if err != nil {
			return Telemetry{}, fmt.Errorf("invalid %s: %w", names[i], err)
		}
	}

	preset, err := strconv.Atoi(parts[5])
	if err != nil {
		return Telemetry{}, fmt.Errorf("invalid preset: %w", err)
	}

	if parts[6] == "" {
		return Telemetry{}, fmt.Errorf("empty state")
	}
	if parts[7] == "" {
		return Telemetry{}, fmt.Errorf("empty fault")
	}

	return Telemetry{
		Uptime:   time.Duration(ms) * time.Millisecond,
		Raw:      vals[0],
		Filtered: vals[1],
		Grams:    vals[2],
		Meters:   vals[3],
		Preset:   preset,
		State:    parts[6],
		Fault:    parts[7],
	}, nil
}
