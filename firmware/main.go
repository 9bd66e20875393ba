//go:build rp2040

//go:generate tinygo flash -target=pico

package main

import (
	"log"
	"machine"
	"os"
	"time"

	"github.com/itohio/filscale/pkg/controller"
	"github.com/itohio/filscale/pkg/proto"
)

func main() {
	// Log lines share the USB serial port with telemetry.
	log.SetFlags(0)
	log.SetPrefix(proto.CommentPrefix + " ")
	log.SetOutput(os.Stdout)

	machine.I2C0.Configure(machine.I2CConfig{
		SDA:       PIN_OLED_SDA,
		SCL:       PIN_OLED_SCL,
		Frequency: 400 * machine.KHz,
	})

	c, err := controller.New(controller.DefaultOptions(defaultParams()), controller.Parts{
		Sensor: newHX711(PIN_HX711_DOUT, PIN_HX711_SCK),
		Button: newButton(PIN_BUTTON),
		Screen: newOLED(machine.I2C0),
		Store:  flashStore{},
	})
	if err != nil {
		for {
			log.Printf("Failed to start: %v", err)
			time.Sleep(time.Second)
		}
	}

	var lines proto.LineReader
	buf := make([]byte, 0, 64)

	for {
		processSerial(c, &lines)

		snap := c.Step(time.Now())
		buf = proto.AppendTelemetry(buf[:0], snap.Telemetry())
		os.Stdout.Write(buf)

		time.Sleep(LOOP_PERIOD)
	}
}

// processSerial executes complete command lines waiting on the USB serial port.
func processSerial(c *controller.Controller, lines *proto.LineReader) {
	for machine.Serial.Buffered() > 0 {
		b, err := machine.Serial.ReadByte()
		if err != nil {
			return
		}
		line, ok := lines.Feed(b)
		if !ok {
			continue
		}
		cmd, err := proto.ParseCommand(line)
		if err != nil {
			log.Printf("Invalid command %q: %v", line, err)
			continue
		}
		if err := c.Execute(cmd); err != nil {
			log.Printf("Command %q failed: %v", line, err)
		}
	}
}
