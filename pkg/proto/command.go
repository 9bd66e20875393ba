package proto

import (
	"fmt"
	"strconv"
	"strings"
)

// Op is a command opcode.
type Op byte

const (
	OpZero      Op = 'Z' // zero the scale: "Z"
	OpPreset    Op = 'P' // select preset n: "P1"
	OpCalibrate Op = 'C' // set slope and zero offset: "C 2.78037 8533"
	OpShort     Op = 'S' // virtual short press: "S"
	OpLong      Op = 'L' // virtual long press: "L"
)

// Command is a host to firmware request.
type Command struct {
	Op     Op
	Preset int
	Slope  float64
	Zero   float64
}

// String returns the command line without the newline.
func (c Command) String() string {
	switch c.Op {
	case OpPreset:
		return "P" + strconv.Itoa(c.Preset)
	case OpCalibrate:
		return "C " + strconv.FormatFloat(c.Slope, 'g', -1, 64) + " " + strconv.FormatFloat(c.Zero, 'g', -1, 64)
	default:
		return string(rune(c.Op))
	}
}

// ParseCommand parses a command line. Case and surrounding whitespace are ignored.
func ParseCommand(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{}, fmt.Errorf("empty command")
	}

	op := Op(strings.ToUpper(line[:1])[0])
	arg := strings.TrimSpace(line[1:])

	switch op {
	case OpZero, OpShort, OpLong:
		if arg != "" {
			return Command{}, fmt.Errorf("command %c takes no arguments", op)
		}
		return Command{Op: op}, nil

	case OpPreset:
		n, err := strconv.Atoi(arg)
		if err != nil {
			return Command{}, fmt.Errorf("invalid preset: %w", err)
		}
		if n < 0 {
			return Command{}, fmt.Errorf("invalid preset: %d", n)
		}
		return Command{Op: op, Preset: n}, nil

	case OpCalibrate:
		fields := strings.Fields(arg)
		if len(fields) != 2 {
			return Command{}, fmt.Errorf("calibrate expects slope and zero offset, got %d values", len(fields))
		}
		slope, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return Command{}, fmt.Errorf("invalid slope: %w", err)
		}
		zero, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return Command{}, fmt.Errorf("invalid zero offset: %w", err)
		}
		return Command{Op: op, Slope: slope, Zero: zero}, nil
	}

	return Command{}, fmt.Errorf("unknown command %q", line)
}

// LineReader assembles bytes into lines without allocating per byte.
// Overlong lines are dropped.
type LineReader struct {
	buf      [48]byte
	n        int
	overflow bool
}

// Feed adds b and returns a complete line once a newline arrives.
func (r *LineReader) Feed(b byte) (string, bool) {
	if b == '\n' || b == '\r' {
		n, overflow := r.n, r.overflow
		r.n = 0
		r.overflow = false
		if n == 0 || overflow {
			return "", false
		}
		return string(r.buf[:n]), true
	}
	if r.n >= len(r.buf) {
		r.overflow = true
		return "", false
	}
	r.buf[r.n] = b
	r.n++
	return "", false
}
