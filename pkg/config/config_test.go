package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/filscale/pkg/calib"
	"github.com/itohio/filscale/pkg/scale"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.NotNil(t, cfg)
	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.Port)
	assert.Equal(t, 115200, cfg.Serial.BaudRate)
	assert.Equal(t, 2.78037, cfg.Scale.Slope)
	assert.Equal(t, 8533.0, cfg.Scale.ZeroOffset)
	assert.Equal(t, 0.3, cfg.Scale.MetersPerGram)
	assert.Equal(t, []PresetConfig{{Name: "Preset A", Grams: 219}, {Name: "Preset B", Grams: 0}}, cfg.Presets)
	assert.Equal(t, 500*time.Millisecond, cfg.Button.LongPress)
	assert.Equal(t, 2*time.Second, cfg.Loop.SensorTimeout)
	assert.Equal(t, 30*time.Second, cfg.Network.ConnectTimeout)
}

func TestLoad_FileNotExists(t *testing.T) {
	cfg, err := Load("nonexistent.yaml")
	require.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.Port)
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	name := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(name, []byte(content), 0644))
	return name
}

func TestLoad_ValidYAML(t *testing.T) {
	name := writeTemp(t, `
serial:
  port: "COM4"

scale:
  slope: 2.6945
  zero_offset: 8595.6
  meters_per_gram: 0.33
  preset: 1
  min_grams: -20
  max_grams: 3000

presets:
  - name: "Esun"
    grams: 224
  - name: "Bambu"
    grams: 250
  - name: "Cardboard"
    grams: 140

button:
  long_press: 800ms

network:
  ssid: "workshop"
  connect_timeout: 10s

calibration:
  points:
    - raw: 8595.6
      grams: 0
    - raw: 8695.6
      grams: 269.45
`)

	cfg, err := Load(name)
	require.NoError(t, err)

	assert.Equal(t, "COM4", cfg.Serial.Port)
	assert.Equal(t, 2.6945, cfg.Scale.Slope)
	assert.Equal(t, 8595.6, cfg.Scale.ZeroOffset)
	assert.Len(t, cfg.Presets, 3)
	assert.Equal(t, 800*time.Millisecond, cfg.Button.LongPress)
	assert.Equal(t, 20*time.Millisecond, cfg.Button.Debounce) // default
	assert.Equal(t, "workshop", cfg.Network.SSID)
	assert.Equal(t, 10*time.Second, cfg.Network.ConnectTimeout)
	assert.Equal(t, []calib.Point{{Raw: 8595.6, Grams: 0}, {Raw: 8695.6, Grams: 269.45}}, cfg.Calibration.Points)

	p := cfg.Params()
	assert.Equal(t, 1, p.Preset)
	assert.Equal(t, scale.Preset{Name: "Bambu", Grams: 250}, p.Presets[1])
	assert.Equal(t, scale.Limits{Min: -20, Max: 3000}, cfg.Limits())

	opts := cfg.Options()
	assert.Equal(t, 800*time.Millisecond, opts.LongPress)
	assert.Equal(t, 10*time.Second, opts.ConnectTimeout)
	assert.Equal(t, cfg.Limits(), opts.Limits)
}

func TestLoad_InvalidYAML(t *testing.T) {
	cfg, err := Load(writeTemp(t, "invalid: yaml: content: ["))
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_PartialYAML(t *testing.T) {
	cfg, err := Load(writeTemp(t, `
serial:
  port: "/dev/ttyUSB1"
scale:
  slope: -1
  preset: 7
`))
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyUSB1", cfg.Serial.Port)
	assert.Equal(t, 2.78037, cfg.Scale.Slope) // invalid slope replaced
	assert.Equal(t, 0, cfg.Scale.Preset)      // out of range preset reset
	assert.Equal(t, 115200, cfg.Serial.BaudRate)
	assert.Equal(t, scale.Limits{Min: -10, Max: 5000}, cfg.Limits())
	assert.Equal(t, 100*time.Millisecond, cfg.Loop.Period)
}

func TestSave(t *testing.T) {
	cfg := Default()
	cfg.Serial.Port = "/dev/ttyUSB0"
	cfg.Scale.ZeroOffset = 8600

	name := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, cfg.Save(name))

	loaded, err := Load(name)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", loaded.Serial.Port)
	assert.Equal(t, 8600.0, loaded.Scale.ZeroOffset)
	assert.Equal(t, cfg.Presets, loaded.Presets)
}

func TestFileStore(t *testing.T) {
	name := filepath.Join(t.TempDir(), "store.yaml")
	cfg := Default()
	store := NewStore(cfg, name)

	p, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, cfg.Params(), p)

	p.ZeroOffset = 8612
	p.Preset = 1
	require.NoError(t, store.Save(p))

	loaded, err := Load(name)
	require.NoError(t, err)
	assert.Equal(t, 8612.0, loaded.Scale.ZeroOffset)
	assert.Equal(t, 1, loaded.Scale.Preset)
}

func TestFileStore_MemoryOnly(t *testing.T) {
	cfg := Default()
	store := NewStore(cfg, "")

	p := cfg.Params()
	p.Slope = 3
	require.NoError(t, store.Save(p))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 3.0, got.Slope)
	assert.Equal(t, Default().Scale.Slope, cfg.Scale.Slope)
}

func TestFileStore_KeepsOtherSections(t *testing.T) {
	name := filepath.Join(t.TempDir(), "store.yaml")
	cfg := Default()
	require.NoError(t, cfg.Save(name))
	store := NewStore(cfg, name)

	// Settings saved by the caller after the store was created.
	cfg.Serial.Port = "/dev/ttyACM1"
	require.NoError(t, cfg.Save(name))

	p := cfg.Params()
	p.ZeroOffset = 8700
	require.NoError(t, store.Save(p))

	loaded, err := Load(name)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM1", loaded.Serial.Port)
	assert.Equal(t, 8700.0, loaded.Scale.ZeroOffset)
}

func TestFileStore_ConcurrentReaders(t *testing.T) {
	cfg := Default()
	store := NewStore(cfg, "")

	done := make(chan struct{})
	go func() {
		defer close(done)
		p := cfg.Params()
		for i := 0; i < 200; i++ {
			p.ZeroOffset = float64(8500 + i)
			p.Preset = i % len(p.Presets)
			assert.NoError(t, store.Save(p))
		}
	}()

	for i := 0; i < 200; i++ {
		_ = cfg.Params()
		_, err := store.Load()
		require.NoError(t, err)
	}
	<-done

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 8699.0, got.ZeroOffset)
	assert.Equal(t, Default().Scale.ZeroOffset, cfg.Scale.ZeroOffset)
}

func TestClone(t *testing.T) {
	cfg := Default()
	cfg.Calibration.Weights = []float64{100, 500}
	c := cfg.Clone()

	c.Presets[0].Name = "changed"
	c.Calibration.Weights[0] = 1
	c.Scale.Slope = 9

	assert.NotEqual(t, "changed", cfg.Presets[0].Name)
	assert.Equal(t, 100.0, cfg.Calibration.Weights[0])
	assert.NotEqual(t, 9.0, cfg.Scale.Slope)
}
