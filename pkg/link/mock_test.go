package link

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/filscale/pkg/config"
	"github.com/itohio/filscale/pkg/proto"
	"github.com/itohio/filscale/pkg/sim"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Mock.NoiseLevel = 0
	cfg.Mock.FeedRate = 0
	cfg.Mock.ConnectDelay = 0
	cfg.Mock.SampleRate = 5 * time.Millisecond
	cfg.Mock.LoadGrams = 219 + 62.4
	return cfg
}

func next(t *testing.T, m *Mock) Reading {
	t.Helper()
	select {
	case r, ok := <-m.Readings():
		require.True(t, ok, "readings closed")
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("no reading")
	}
	return Reading{}
}

// waitFor reads until cond holds or the timeout expires.
func waitFor(t *testing.T, m *Mock, cond func(Reading) bool) Reading {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case r, ok := <-m.Readings():
			require.True(t, ok, "readings closed")
			if cond(r) {
				return r
			}
		case <-deadline:
			t.Fatal("condition not reached")
			return Reading{}
		}
	}
}

func TestMock_Telemetry(t *testing.T) {
	m := NewMock(testConfig(), nil)
	require.NoError(t, m.Connect())
	defer m.Close()

	r := next(t, m)
	assert.InDelta(t, 62.4, r.Grams, 0.01)
	assert.Equal(t, "idle", r.State)
	assert.Equal(t, "none", r.Fault)
	assert.Equal(t, "62g", m.Frame().Strings()[3])

	assert.Error(t, m.Connect())
}

func TestMock_Commands(t *testing.T) {
	store := sim.NewStore()
	m := NewMock(testConfig(), store)

	assert.Error(t, m.Send(proto.Command{Op: proto.OpZero}))
	require.NoError(t, m.Connect())
	defer m.Close()
	next(t, m)

	require.NoError(t, m.Send(proto.Command{Op: proto.OpPreset, Preset: 1}))
	r := waitFor(t, m, func(r Reading) bool { return r.Preset == 1 })
	assert.InDelta(t, 281.4, r.Grams, 0.01)

	require.NoError(t, m.Send(proto.Command{Op: proto.OpShort}))
	waitFor(t, m, func(r Reading) bool { return r.State == "list" })

	m.SetLoad(0)
	waitFor(t, m, func(r Reading) bool { return r.Filtered-8533 < 0.001 })
	require.NoError(t, m.Send(proto.Command{Op: proto.OpZero}))
	waitFor(t, m, func(r Reading) bool { return r.Grams > -0.1 && r.Grams < 0.1 })

	p, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 1, p.Preset)
}

func TestMock_StallRaisesSensorFault(t *testing.T) {
	cfg := testConfig()
	cfg.Loop.SensorTimeout = 50 * time.Millisecond
	m := NewMock(cfg, nil)
	require.NoError(t, m.Connect())
	defer m.Close()
	next(t, m)

	m.Stall(true)
	waitFor(t, m, func(r Reading) bool { return r.Fault == "sensor" })
	assert.Equal(t, "SENSOR", m.Frame().Strings()[1])
}

func TestMock_Consumes(t *testing.T) {
	cfg := testConfig()
	cfg.Mock.FeedRate = 100
	cfg.Mock.PrintPeriod = time.Hour
	cfg.Mock.PrintLength = time.Hour
	m := NewMock(cfg, nil)
	require.NoError(t, m.Connect())
	defer m.Close()

	before := m.Load()
	time.Sleep(100 * time.Millisecond)
	assert.Less(t, m.Load(), before)
}

func TestMock_NetworkDrop(t *testing.T) {
	cfg := testConfig()
	cfg.Mock.ConnectDelay = 10 * time.Millisecond
	cfg.Network.ConnectTimeout = 50 * time.Millisecond
	m := NewMock(cfg, nil)
	require.NoError(t, m.Connect())
	defer m.Close()

	networkLine := func() string { return m.Frame().Strings()[2] }
	waitFor(t, m, func(Reading) bool { return networkLine() == "WIFI OK" })

	m.DropNetwork(true)
	waitFor(t, m, func(r Reading) bool { return r.Fault == "network" })
	waitFor(t, m, func(Reading) bool { return networkLine() == "NO NET" })

	m.DropNetwork(false)
	waitFor(t, m, func(r Reading) bool { return r.Fault == "none" })
}

func TestMock_ZeroWhileCallerReadsConfig(t *testing.T) {
	cfg := testConfig()
	store := config.NewStore(cfg, "")
	m := NewMock(cfg, store)
	require.NoError(t, m.Connect())
	defer m.Close()

	for i := 0; i < 20; i++ {
		r := next(t, m)
		p := cfg.Params()
		require.NotEmpty(t, p.Presets)
		assert.GreaterOrEqual(t, r.Preset, 0)
		require.NoError(t, m.Send(proto.Command{Op: proto.OpZero}))
		cfg.Mock.LoadGrams = float64(i)
	}

	// The store saw the zero, the caller's configuration did not change.
	waitFor(t, m, func(r Reading) bool { return r.Grams < -200 })
	p, err := store.Load()
	require.NoError(t, err)
	assert.NotEqual(t, testConfig().Scale.ZeroOffset, p.ZeroOffset)
	assert.Equal(t, testConfig().Scale.ZeroOffset, cfg.Scale.ZeroOffset)
}

func TestMock_ButtonPress(t *testing.T) {
	m := NewMock(testConfig(), nil)
	require.NoError(t, m.Connect())
	defer m.Close()
	next(t, m)

	m.Press(100 * time.Millisecond)
	waitFor(t, m, func(r Reading) bool { return r.State == "list" })
	waitFor(t, m, func(Reading) bool { return m.Frame().Strings()[0] == "MENU" })
}

// TestMock_GracefulShutdown tests that Mock closes the readings channel
// when Close() is called.
func TestMock_GracefulShutdown(t *testing.T) {
	m := NewMock(testConfig(), nil)
	require.NoError(t, m.Connect())

	readings := m.Readings()

	received := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range readings {
			received++
			if received == 3 {
				m.Close()
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Readings channel did not close within timeout")
	}

	assert.GreaterOrEqual(t, received, 3)
	assert.False(t, m.IsConnected())
	assert.NoError(t, m.Close())
}
