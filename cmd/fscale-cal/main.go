// Command fscale-cal walks through calibrating the filament scale: tare,
// known weights, least-squares fit, then saves and pushes the result.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/itohio/filscale/pkg/config"
	"github.com/itohio/filscale/pkg/link"
)

func main() {
	var (
		portFlag    = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyACM0)")
		configFlag  = flag.String("config", "config.yaml", "Configuration file path")
		mockFlag    = flag.Bool("mock", false, "Calibrate the simulated scale")
		samplesFlag = flag.Int("samples", 0, "Readings averaged per point (overrides config)")
		logFlag     = flag.String("log", "", "Write log output to this file")
	)
	flag.Parse()

	// The terminal belongs to the UI.
	if *logFlag != "" {
		f, err := tea.LogToFile(*logFlag, "fscale-cal")
		if err != nil {
			fmt.Println("error:", err)
			os.Exit(1)
		}
		defer f.Close()
	} else {
		log.SetOutput(io.Discard)
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}
	if *samplesFlag > 0 {
		cfg.Calibration.Samples = *samplesFlag
	}

	var dev link.Device
	if *mockFlag {
		sim := *cfg
		sim.Mock.FeedRate = 0
		sim.Mock.ConnectDelay = 0
		dev = link.NewMock(&sim, nil)
	} else {
		dev = link.New(cfg.Serial.Port, cfg.Serial.BaudRate, link.DefaultBufferSize)
	}
	if err := dev.Connect(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
	defer dev.Close()

	p := tea.NewProgram(newModel(cfg, *configFlag, dev), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}
