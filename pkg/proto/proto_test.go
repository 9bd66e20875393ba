package proto

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTelemetry(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    Telemetry
		wantErr bool
	}{
		{
			name: "valid line",
			line: "12345,8700.000,8699.512,62.3,18.7,0,idle,none",
			want: Telemetry{
				Uptime:   12345 * time.Millisecond,
				Raw:      8700,
				Filtered: 8699.512,
				Grams:    62.3,
				Meters:   18.7,
				Preset:   0,
				State:    "idle",
				Fault:    "none",
			},
		},
		{
			name: "negative weight and fault",
			line: "10,8533.000,8533.000,-219.0,-65.7,1,idle,range\r\n",
			want: Telemetry{
				Uptime:   10 * time.Millisecond,
				Raw:      8533,
				Filtered: 8533,
				Grams:    -219,
				Meters:   -65.7,
				Preset:   1,
				State:    "idle",
				Fault:    "range",
			},
		},
		{name: "too few fields", line: "1,2,3,4,5,6,idle", wantErr: true},
		{name: "too many fields", line: "1,2,3,4,5,6,idle,none,extra", wantErr: true},
		{name: "bad uptime", line: "x,2,3,4,5,6,idle,none", wantErr: true},
		{name: "negative uptime", line: "-1,2,3,4,5,6,idle,none", wantErr: true},
		{name: "bad raw", line: "1,x,3,4,5,6,idle,none", wantErr: true},
		{name: "bad grams", line: "1,2,3,x,5,6,idle,none", wantErr: true},
		{name: "bad preset", line: "1,2,3,4,5,x,idle,none", wantErr: true},
		{name: "empty state", line: "1,2,3,4,5,6,,none", wantErr: true},
		{name: "empty fault", line: "1,2,3,4,5,6,idle,", wantErr: true},
		{name: "empty", line: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTelemetry(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatTelemetry(t *testing.T) {
	line := FormatTelemetry(Telemetry{
		Uptime:   1500 * time.Millisecond,
		Raw:      8700,
		Filtered: 8699.51234,
		Grams:    62.3058,
		Meters:   18.69,
		Preset:   2,
		State:    "list",
		Fault:    "none",
	})
	assert.Equal(t, "1500,8700.000,8699.512,62.3,18.7,2,list,none\n", line)

	parsed, err := ParseTelemetry(line)
	require.NoError(t, err)
	assert.Equal(t, "list", parsed.State)
	assert.InDelta(t, 62.3, parsed.Grams, 1e-9)
}

func TestIsComment(t *testing.T) {
	assert.True(t, IsComment("# menu: idle -> list"))
	assert.True(t, IsComment("  #x"))
	assert.False(t, IsComment("1,2,3,4,5,6,idle,none"))
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line    string
		want    Command
		wantErr bool
	}{
		{line: "Z", want: Command{Op: OpZero}},
		{line: " z \r", want: Command{Op: OpZero}},
		{line: "S", want: Command{Op: OpShort}},
		{line: "L", want: Command{Op: OpLong}},
		{line: "P1", want: Command{Op: OpPreset, Preset: 1}},
		{line: "P 0", want: Command{Op: OpPreset, Preset: 0}},
		{line: "C 2.78037 8533", want: Command{Op: OpCalibrate, Slope: 2.78037, Zero: 8533}},
		{line: "", wantErr: true},
		{line: "Z1", wantErr: true},
		{line: "P", wantErr: true},
		{line: "P-1", wantErr: true},
		{line: "C 2.7", wantErr: true},
		{line: "C x 1", wantErr: true},
		{line: "C 1 y", wantErr: true},
		{line: "X", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := ParseCommand(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCommand_String(t *testing.T) {
	cmds := []Command{
		{Op: OpZero},
		{Op: OpShort},
		{Op: OpLong},
		{Op: OpPreset, Preset: 3},
		{Op: OpCalibrate, Slope: 2.6945, Zero: 8595.6},
	}
	for _, c := range cmds {
		parsed, err := ParseCommand(c.String())
		require.NoError(t, err, c.String())
		assert.Equal(t, c, parsed)
	}
	assert.Equal(t, "C 2.6945 8595.6", cmds[4].String())
}

func TestLineReader(t *testing.T) {
	var r LineReader
	var lines []string

	for _, b := range []byte("Z\r\nP1\n\n") {
		if line, ok := r.Feed(b); ok {
			lines = append(lines, line)
		}
	}
	assert.Equal(t, []string{"Z", "P1"}, lines)
}

func TestLineReader_DropsOverlong(t *testing.T) {
	var r LineReader
	var lines []string

	input := strings.Repeat("x", 100) + "\nS\n"
	for _, b := range []byte(input) {
		if line, ok := r.Feed(b); ok {
			lines = append(lines, line)
		}
	}
	assert.Equal(t, []string{"S"}, lines)
}
