package link

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/itohio/filscale/pkg/proto"
)

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Serial is a connection to the scale firmware over USB serial.
type Serial struct {
	port     string
	baudRate int
	bufSize  int

	conn      io.ReadWriteCloser
	readings  chan Reading
	done      chan struct{}
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool

	now func() time.Time
}

// New creates a serial device with the specified port, baud rate, and buffer size.
func New(port string, baudRate int, bufSize int) *Serial {
	if baudRate == 0 {
		baudRate = proto.BaudRate
	}
	if bufSize == 0 {
		bufSize = DefaultBufferSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Serial{
		port:     port,
		baudRate: baudRate,
		bufSize:  bufSize,
		readings: make(chan Reading, bufSize),
		ctx:      ctx,
		cancel:   cancel,
		now:      time.Now,
	}
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		result = append(result, Port{Name: name, Description: name})
	}
	return result, nil
}

// Connect opens the serial port and starts reading telemetry.
func (d *Serial) Connect() error {
	port, err := serial.Open(d.port, &serial.Mode{
		BaudRate: d.baudRate,
	})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", d.port, err)
	}
	return d.attach(port)
}

// attach starts reading from an open connection.
func (d *Serial) attach(conn io.ReadWriteCloser) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		conn.Close()
		return fmt.Errorf("already connected")
	}

	d.conn = conn
	d.connected = true
	d.done = make(chan struct{})

	go d.readLines(conn, d.done)

	return nil
}

// Close closes the port. The readings channel is closed once the reader exits.
func (d *Serial) Close() error {
	d.mu.Lock()
	if !d.connected {
		d.mu.Unlock()
		return nil
	}

	d.cancel()
	if err := d.conn.Close(); err != nil {
		log.Printf("Error closing serial port: %v", err)
	}
	d.conn = nil
	d.connected = false
	done := d.done
	d.mu.Unlock()

	<-done
	return nil
}

// Readings returns the channel of received telemetry.
func (d *Serial) Readings() <-chan Reading {
	return d.readings
}

// Send writes a command line to the firmware.
func (d *Serial) Send(cmd proto.Command) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.connected {
		return fmt.Errorf("not connected")
	}

	if _, err := io.WriteString(d.conn, cmd.String()+"\n"); err != nil {
		return fmt.Errorf("failed to send command %q: %w", cmd.String(), err)
	}
	return nil
}

// IsConnected returns whether the device is currently connected.
func (d *Serial) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

// readLines parses telemetry lines until the port is closed. Comment lines
// carry firmware log output and are logged.
func (d *Serial) readLines(r io.Reader, done chan struct{}) {
	defer close(done)
	defer close(d.readings)
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("Panic in readLines: %v", rec)
		}
	}()

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if proto.IsComment(line) {
			log.Printf("device: %s", strings.TrimSpace(strings.TrimPrefix(line, proto.CommentPrefix)))
			continue
		}

		t, err := proto.ParseTelemetry(line)
		if err != nil {
			log.Printf("Failed to parse line '%s': %v", line, err)
			continue
		}

		select {
		case d.readings <- Reading{Timestamp: d.now(), Telemetry: t}:
		case <-d.ctx.Done():
			return
		default:
			log.Printf("Readings channel full, dropping reading")
		}
	}

	if err := scanner.Err(); err != nil && d.ctx.Err() == nil {
		log.Printf("Error reading from serial port: %v", err)
	}
}
