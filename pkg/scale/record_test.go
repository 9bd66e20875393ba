package scale

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordParams() Params {
	return Params{
		Slope:         2.78037,
		ZeroOffset:    8533,
		MetersPerGram: 0.3,
		Presets: []Preset{
			{Name: "PLA 1kg", Grams: 219},
			{Name: "", Grams: 0},
		},
		Preset: 1,
	}
}

func TestRecordRoundTrip(t *testing.T) {
	data, err := recordParams().MarshalBinary()
	require.NoError(t, err)
	assert.LessOrEqual(t, len(data), MaxRecordSize)

	// a flash block has erased bytes after the record
	block := append(data, 0xff, 0xff, 0xff, 0xff)

	var p Params
	require.NoError(t, p.UnmarshalBinary(block))
	assert.Equal(t, recordParams(), p)
}

func TestRecordTruncatesLongNames(t *testing.T) {
	in := recordParams()
	in.Presets[0].Name = strings.Repeat("x", 40)

	data, err := in.MarshalBinary()
	require.NoError(t, err)

	var p Params
	require.NoError(t, p.UnmarshalBinary(data))
	assert.Equal(t, strings.Repeat("x", maxPresetName), p.Presets[0].Name)
}

func TestRecordErased(t *testing.T) {
	var p Params
	assert.ErrorIs(t, p.UnmarshalBinary([]byte{0xff, 0xff, 0xff, 0xff, 0xff}), ErrNoRecord)
	assert.ErrorIs(t, p.UnmarshalBinary(nil), ErrNoRecord)
}

func TestRecordCorrupt(t *testing.T) {
	data, err := recordParams().MarshalBinary()
	require.NoError(t, err)

	flipped := append([]byte(nil), data...)
	flipped[6] ^= 0x01
	var p Params
	assert.ErrorIs(t, p.UnmarshalBinary(flipped), ErrCorrupt)

	assert.ErrorIs(t, p.UnmarshalBinary(data[:len(data)-2]), ErrCorrupt)
	assert.ErrorIs(t, p.UnmarshalBinary(data[:10]), ErrCorrupt)
	assert.Equal(t, Params{}, p, "failed decode leaves params untouched")
}

func TestRecordRejects(t *testing.T) {
	in := recordParams()
	in.Presets = make([]Preset, maxPresets+1)
	_, err := in.MarshalBinary()
	assert.Error(t, err)

	in = recordParams()
	in.Preset = -1
	_, err = in.MarshalBinary()
	assert.ErrorIs(t, err, ErrNoPreset)
}
