package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/itohio/filscale/pkg/calib"
	"github.com/itohio/filscale/pkg/config"
	"github.com/itohio/filscale/pkg/link"
	"github.com/itohio/filscale/pkg/proto"
	"github.com/itohio/filscale/pkg/sample"
)

type screen int

const (
	screenStep screen = iota
	screenResult
	screenDone
)

type stepStatus int

const (
	statusIdle stepStatus = iota
	statusRunning
	statusError
)

// defaultSettle is how long readings are ignored after a weight is placed.
const defaultSettle = 3 * time.Second

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

type model struct {
	scr    screen
	status stepStatus

	cfg        *config.Config
	configPath string
	dev        link.Device
	mock       *link.Mock
	settle     time.Duration

	weightInput textinput.Model

	// steps are the reference weights in grams; the first is the empty scale.
	steps   []float64
	stepIdx int
	points  []calib.Point
	spread  []float64

	result    calib.Result
	residuals []float64

	infoLine string
	lastErr  error

	ctx    context.Context
	cancel context.CancelFunc
	runID  int
}

type errMsg struct {
	runID int
	err   error
}

type pointMsg struct {
	runID  int
	point  calib.Point
	stddev float64
}

type savedMsg struct{}

func newModel(cfg *config.Config, configPath string, dev link.Device) model {
	in := textinput.New()
	in.Placeholder = "grams"
	in.CharLimit = 10
	in.Width = 12

	ctx, cancel := context.WithCancel(context.Background())
	m := model{
		cfg:         cfg,
		configPath:  configPath,
		dev:         dev,
		settle:      defaultSettle,
		weightInput: in,
		ctx:         ctx,
		cancel:      cancel,
	}
	if mock, ok := dev.(*link.Mock); ok {
		m.mock = mock
	}
	m.restart()
	return m
}

func (m *model) restart() {
	m.scr = screenStep
	m.status = statusIdle
	m.steps = append([]float64{0}, m.cfg.Calibration.Weights...)
	m.stepIdx = 0
	m.points = nil
	m.spread = nil
	m.residuals = nil
	m.lastErr = nil
	m.runID++
	m.prepareStep()
}

// prepareStep loads the current reference weight into the input.
func (m *model) prepareStep() {
	if m.stepIdx == 0 {
		m.weightInput.Blur()
		m.weightInput.SetValue("")
		return
	}
	m.weightInput.SetValue(strconv.FormatFloat(m.steps[m.stepIdx], 'f', -1, 64))
	m.weightInput.CursorEnd()
	m.weightInput.Focus()
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.cancel()
			return m, tea.Quit
		}
		switch m.scr {
		case screenStep:
			return m.updateStepKey(msg)
		case screenResult:
			return m.updateResultKey(msg)
		case screenDone:
			if msg.String() == "q" || msg.String() == "enter" {
				m.cancel()
				return m, tea.Quit
			}
			return m, nil
		}

	case errMsg:
		if msg.runID != m.runID {
			return m, nil
		}
		m.status = statusError
		m.lastErr = msg.err
		return m, nil

	case pointMsg:
		if msg.runID != m.runID {
			return m, nil
		}
		m.status = statusIdle
		m.lastErr = nil
		m.points = append(m.points, msg.point)
		m.spread = append(m.spread, msg.stddev)
		m.infoLine = fmt.Sprintf("Measured %.0f g: raw %.1f ± %.2f", msg.point.Grams, msg.point.Raw, msg.stddev)
		m.stepIdx++
		if m.stepIdx < len(m.steps) {
			m.prepareStep()
			return m, nil
		}
		return m.fit(), nil

	case savedMsg:
		m.scr = screenDone
		m.infoLine = "Calibration saved to " + m.configPath + " and sent to the scale."
		return m, nil
	}

	if m.scr == screenStep && m.stepIdx > 0 {
		var cmd tea.Cmd
		m.weightInput, cmd = m.weightInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) updateStepKey(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.status == statusRunning {
		return m, nil
	}
	switch k.String() {
	case "enter":
		grams := 0.0
		if m.stepIdx > 0 {
			g, err := strconv.ParseFloat(strings.TrimSpace(m.weightInput.Value()), 64)
			if err != nil || g <= 0 {
				m.lastErr = fmt.Errorf("reference weight must be a positive number of grams")
				return m, nil
			}
			grams = g
			m.steps[m.stepIdx] = g
		}
		m.status = statusRunning
		m.lastErr = nil
		return m, m.measureCmd(grams)
	case "esc":
		if len(m.points) >= 2 {
			return m.fit(), nil
		}
		return m, nil
	}

	if m.stepIdx > 0 {
		var cmd tea.Cmd
		m.weightInput, cmd = m.weightInput.Update(k)
		return m, cmd
	}
	return m, nil
}

func (m model) updateResultKey(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.status == statusRunning {
		return m, nil
	}
	switch k.String() {
	case "s":
		if m.residuals == nil {
			return m, nil
		}
		m.status = statusRunning
		return m, m.saveCmd()
	case "a":
		m.scr = screenStep
		m.status = statusIdle
		m.lastErr = nil
		m.steps = append(m.steps, m.steps[len(m.steps)-1])
		m.prepareStep()
		return m, nil
	case "r":
		m.restart()
		m.infoLine = "Restarted."
		return m, nil
	case "q":
		m.cancel()
		return m, tea.Quit
	}
	return m, nil
}

// fit computes the calibration from the collected points.
func (m model) fit() model {
	m.scr = screenResult
	res, err := calib.Fit(m.points)
	if err != nil {
		m.status = statusError
		m.lastErr = err
		m.residuals = nil
		return m
	}
	m.status = statusIdle
	m.result = res
	m.residuals = res.Residuals(m.points)
	return m
}

// measureCmd averages readings taken after the settle time.
func (m model) measureCmd(grams float64) tea.Cmd {
	runID := m.runID
	ctx := m.ctx
	dev := m.dev
	mock := m.mock
	n := m.cfg.Calibration.Samples
	settle := m.settle

	return func() tea.Msg {
		if mock != nil {
			mock.SetLoad(grams)
		}
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		in := readingsAfter(ctx, dev.Readings(), time.Now().Add(settle))
		mean, stddev, err := sample.Average(ctx, in, n)
		if err != nil {
			return errMsg{runID: runID, err: fmt.Errorf("failed to measure: %w", err)}
		}
		return pointMsg{runID: runID, point: calib.Point{Raw: mean, Grams: grams}, stddev: stddev}
	}
}

// saveCmd stores the fit in the configuration file and pushes it to the scale.
func (m model) saveCmd() tea.Cmd {
	cfg := m.cfg
	path := m.configPath
	dev := m.dev
	res := m.result
	points := append([]calib.Point(nil), m.points...)
	runID := m.runID

	return func() tea.Msg {
		cfg.Scale.Slope = res.Slope
		cfg.Scale.ZeroOffset = res.ZeroOffset
		cfg.Calibration.Points = points
		if err := cfg.Save(path); err != nil {
			return errMsg{runID: runID, err: err}
		}
		cmd := proto.Command{Op: proto.OpCalibrate, Slope: res.Slope, Zero: res.ZeroOffset}
		if err := dev.Send(cmd); err != nil {
			return errMsg{runID: runID, err: fmt.Errorf("saved, but failed to send to the scale: %w", err)}
		}
		return savedMsg{}
	}
}

// readingsAfter forwards readings stamped at or after t until ctx is done.
func readingsAfter(ctx context.Context, in <-chan link.Reading, t time.Time) <-chan link.Reading {
	out := make(chan link.Reading)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case r, ok := <-in:
				if !ok {
					return
				}
				if r.Timestamp.Before(t) {
					continue
				}
				select {
				case out <- r:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Filament scale calibration") + "\n")
	b.WriteString(helpStyle.Render("Ctrl+C to quit.") + "\n\n")
	if m.infoLine != "" {
		b.WriteString(okStyle.Render(m.infoLine) + "\n")
	}
	if m.lastErr != nil {
		b.WriteString(errStyle.Render("Error: "+m.lastErr.Error()) + "\n")
	}
	b.WriteString("\n")

	switch m.scr {
	case screenStep:
		b.WriteString(m.viewStep())
	case screenResult:
		b.WriteString(m.viewResult())
	case screenDone:
		b.WriteString(okStyle.Render("Done.") + "\n")
		b.WriteString(helpStyle.Render("Press Enter to exit.") + "\n")
	}
	return b.String()
}

func (m model) viewStep() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Step %d/%d: ", m.stepIdx+1, len(m.steps))
	if m.stepIdx == 0 {
		b.WriteString("remove everything from the scale.\n\n")
	} else {
		b.WriteString("place a known weight on the scale.\n\n")
		b.WriteString("Reference weight (g): " + m.weightInput.View() + "\n\n")
	}
	b.WriteString(m.viewPoints())

	if m.status == statusRunning {
		fmt.Fprintf(&b, "Measuring %d samples...\n", m.cfg.Calibration.Samples)
		return b.String()
	}
	help := "Press Enter to measure."
	if len(m.points) >= 2 {
		help += " Press Esc to finish with the points taken."
	}
	b.WriteString(helpStyle.Render(help) + "\n")
	return b.String()
}

func (m model) viewPoints() string {
	if len(m.points) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Points:\n")
	for i, p := range m.points {
		fmt.Fprintf(&b, "  %7.1f g  raw %10.1f ± %.2f", p.Grams, p.Raw, m.spread[i])
		if i < len(m.residuals) {
			fmt.Fprintf(&b, "  residual %+.2f g", m.residuals[i])
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return b.String()
}

func (m model) viewResult() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Result") + "\n\n")
	b.WriteString(m.viewPoints())
	if m.residuals == nil {
		b.WriteString(helpStyle.Render("Press a to add a point, r to restart.") + "\n")
		return b.String()
	}
	fmt.Fprintf(&b, "Slope:       %.6f g/raw\n", m.result.Slope)
	fmt.Fprintf(&b, "Zero offset: %.1f raw\n", m.result.ZeroOffset)
	fmt.Fprintf(&b, "R²:          %.6f\n\n", m.result.RSquared)
	if m.status == statusRunning {
		b.WriteString("Saving...\n")
		return b.String()
	}
	b.WriteString(helpStyle.Render("Press s to save and send to the scale, a to add a point, r to restart, q to quit.") + "\n")
	return b.String()
}
