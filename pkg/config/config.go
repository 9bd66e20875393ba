package config

import (
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/itohio/filscale/pkg/calib"
	"github.com/itohio/filscale/pkg/controller"
	"github.com/itohio/filscale/pkg/scale"
)

// Config represents the application configuration.
type Config struct {
	Serial      SerialConfig      `yaml:"serial"`
	Scale       ScaleConfig       `yaml:"scale"`
	Presets     []PresetConfig    `yaml:"presets"`
	Button      ButtonConfig      `yaml:"button"`
	Loop        LoopConfig        `yaml:"loop"`
	Network     NetworkConfig     `yaml:"network"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Meter       MeterConfig       `yaml:"meter"`
	Mock        MockConfig        `yaml:"mock"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// ScaleConfig contains the load cell calibration and plausibility limits.
type ScaleConfig struct {
	Slope         float64 `yaml:"slope"`           // grams per raw unit
	ZeroOffset    float64 `yaml:"zero_offset"`     // raw reading of the empty scale
	MetersPerGram float64 `yaml:"meters_per_gram"` // filament length per gram
	Preset        int     `yaml:"preset"`          // selected preset index
	Alpha         float64 `yaml:"alpha"`           // smoothing factor
	MinGrams      float64 `yaml:"min_grams"`
	MaxGrams      float64 `yaml:"max_grams"`
}

// PresetConfig is a named spool tare weight.
type PresetConfig struct {
	Name  string  `yaml:"name"`
	Grams float64 `yaml:"grams"`
}

// ButtonConfig contains press timing.
type ButtonConfig struct {
	LongPress time.Duration `yaml:"long_press"`
	Debounce  time.Duration `yaml:"debounce"`
}

// LoopConfig contains poll loop timing.
type LoopConfig struct {
	Period         time.Duration `yaml:"period"`
	SensorTimeout  time.Duration `yaml:"sensor_timeout"`
	AverageSamples int           `yaml:"average_samples"` // samples averaged to seed the filter
}

// NetworkConfig contains the update link settings.
type NetworkConfig struct {
	SSID           string        `yaml:"ssid"`
	Password       string        `yaml:"password"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	UpdateInterval time.Duration `yaml:"update_interval"`
}

// CalibrationConfig contains the calibration wizard settings and the last fitted points.
type CalibrationConfig struct {
	Samples int           `yaml:"samples"` // raw readings averaged per point
	Weights []float64     `yaml:"weights"` // reference weights offered by the wizard (g)
	Points  []calib.Point `yaml:"points"`
}

// MeterConfig contains host-side trend analysis parameters.
type MeterConfig struct {
	WindowSeconds  float64 `yaml:"window_seconds"`
	RateThreshold  float64 `yaml:"rate_threshold"`   // g/s below which filament is being consumed
	MinRunDuration float64 `yaml:"min_run_duration"` // seconds
	AverageSamples int     `yaml:"average_samples"`  // 0 = disabled
}

// MockConfig contains mock device configuration.
type MockConfig struct {
	LoadGrams    float64       `yaml:"load_grams"`    // initial gross load (g)
	NoiseLevel   float64       `yaml:"noise_level"`   // raw units standard deviation
	FeedRate     float64       `yaml:"feed_rate"`     // g/s consumed while printing
	PrintPeriod  time.Duration `yaml:"print_period"`  // time between simulated prints
	PrintLength  time.Duration `yaml:"print_length"`  // duration of a simulated print
	ConnectDelay time.Duration `yaml:"connect_delay"` // 0 disables the simulated network
	SampleRate   time.Duration `yaml:"sample_rate"`
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:     "/dev/ttyACM0", // "COM3" on Windows
			BaudRate: 115200,
		},
		Scale: ScaleConfig{
			Slope:         2.78037,
			ZeroOffset:    8533.0,
			MetersPerGram: 0.3,
			Alpha:         scale.DefaultAlpha,
			MinGrams:      -10,
			MaxGrams:      5000,
		},
		Presets: []PresetConfig{
			{Name: "Preset A", Grams: 219},
			{Name: "Preset B", Grams: 0},
		},
		Button: ButtonConfig{
			LongPress: 500 * time.Millisecond,
			Debounce:  20 * time.Millisecond,
		},
		Loop: LoopConfig{
			Period:         100 * time.Millisecond,
			SensorTimeout:  2 * time.Second,
			AverageSamples: 10,
		},
		Network: NetworkConfig{
			ConnectTimeout: 30 * time.Second,
			UpdateInterval: time.Minute,
		},
		Calibration: CalibrationConfig{
			Samples: 20,
			Weights: []float64{219, 1190},
		},
		Meter: MeterConfig{
			WindowSeconds:  600,
			RateThreshold:  0.01,
			MinRunDuration: 30,
		},
		Mock: MockConfig{
			LoadGrams:    219 + 750,
			NoiseLevel:   0.5,
			FeedRate:     0.05,
			PrintPeriod:  5 * time.Minute,
			PrintLength:  2 * time.Minute,
			ConnectDelay: 3 * time.Second,
			SampleRate:   100 * time.Millisecond,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}

	if c.Scale.Slope <= 0 {
		c.Scale.Slope = def.Scale.Slope
	}
	if c.Scale.MetersPerGram == 0 {
		c.Scale.MetersPerGram = def.Scale.MetersPerGram
	}
	if c.Scale.Alpha <= 0 || c.Scale.Alpha > 1 {
		c.Scale.Alpha = def.Scale.Alpha
	}
	if c.Scale.MinGrams == 0 && c.Scale.MaxGrams == 0 {
		c.Scale.MinGrams = def.Scale.MinGrams
		c.Scale.MaxGrams = def.Scale.MaxGrams
	}
	if c.Scale.Preset < 0 || c.Scale.Preset >= len(c.Presets) {
		c.Scale.Preset = 0
	}

	if c.Button.LongPress == 0 {
		c.Button.LongPress = def.Button.LongPress
	}
	if c.Button.Debounce == 0 {
		c.Button.Debounce = def.Button.Debounce
	}

	if c.Loop.Period == 0 {
		c.Loop.Period = def.Loop.Period
	}
	if c.Loop.SensorTimeout == 0 {
		c.Loop.SensorTimeout = def.Loop.SensorTimeout
	}
	if c.Loop.AverageSamples == 0 {
		c.Loop.AverageSamples = def.Loop.AverageSamples
	}

	if c.Network.ConnectTimeout == 0 {
		c.Network.ConnectTimeout = def.Network.ConnectTimeout
	}

	if c.Calibration.Samples == 0 {
		c.Calibration.Samples = def.Calibration.Samples
	}
	if len(c.Calibration.Weights) == 0 {
		c.Calibration.Weights = def.Calibration.Weights
	}

	if c.Meter.WindowSeconds == 0 {
		c.Meter.WindowSeconds = def.Meter.WindowSeconds
	}
	if c.Meter.RateThreshold == 0 {
		c.Meter.RateThreshold = def.Meter.RateThreshold
	}
	if c.Meter.MinRunDuration == 0 {
		c.Meter.MinRunDuration = def.Meter.MinRunDuration
	}

	if c.Mock.SampleRate == 0 {
		c.Mock.SampleRate = def.Mock.SampleRate
	}
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	out := *c
	out.Presets = slices.Clone(c.Presets)
	out.Calibration.Weights = slices.Clone(c.Calibration.Weights)
	out.Calibration.Points = slices.Clone(c.Calibration.Points)
	return &out
}

// Params returns the calibration parameters.
func (c *Config) Params() scale.Params {
	presets := make([]scale.Preset, len(c.Presets))
	for i, p := range c.Presets {
		presets[i] = scale.Preset{Name: p.Name, Grams: p.Grams}
	}
	return scale.Params{
		Slope:         c.Scale.Slope,
		ZeroOffset:    c.Scale.ZeroOffset,
		MetersPerGram: c.Scale.MetersPerGram,
		Presets:       presets,
		Preset:        c.Scale.Preset,
	}
}

// SetParams stores calibration parameters back into the configuration.
func (c *Config) SetParams(p scale.Params) {
	c.Scale.Slope = p.Slope
	c.Scale.ZeroOffset = p.ZeroOffset
	c.Scale.MetersPerGram = p.MetersPerGram
	c.Scale.Preset = p.Preset
	c.Presets = make([]PresetConfig, len(p.Presets))
	for i, pr := range p.Presets {
		c.Presets[i] = PresetConfig{Name: pr.Name, Grams: pr.Grams}
	}
}

// Limits returns the plausible net weight range.
func (c *Config) Limits() scale.Limits {
	return scale.Limits{Min: c.Scale.MinGrams, Max: c.Scale.MaxGrams}
}

// Options returns controller options built from the configuration.
func (c *Config) Options() controller.Options {
	opts := controller.DefaultOptions(c.Params())
	opts.Limits = c.Limits()
	opts.Alpha = c.Scale.Alpha
	opts.LongPress = c.Button.LongPress
	opts.Debounce = c.Button.Debounce
	opts.SensorTimeout = c.Loop.SensorTimeout
	opts.AverageSamples = c.Loop.AverageSamples
	opts.ConnectTimeout = c.Network.ConnectTimeout
	opts.UpdateInterval = c.Network.UpdateInterval
	return opts
}
