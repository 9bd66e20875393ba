package scale

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"math"
)

// Binary record layout, little endian:
//
//	magic[4] slope f64 zero f64 m/g f64 preset u8 count u8
//	count x (len u8, name[len], grams f64)
//	crc32 u32 over everything before it
const (
	recordMagic   = "FSC1"
	maxPresets    = 16
	maxPresetName = 32
)

var (
	// ErrNoRecord is returned when the data does not start with a record.
	ErrNoRecord = errors.New("no calibration record")
	// ErrCorrupt is returned when a record fails its checksum or is truncated.
	ErrCorrupt = errors.New("corrupt calibration record")
)

// MaxRecordSize is the largest encoded size of Params.
const MaxRecordSize = len(recordMagic) + 3*8 + 2 + maxPresets*(1+maxPresetName+8) + 4

// MarshalBinary encodes the parameters into a compact checksummed record.
func (p Params) MarshalBinary() ([]byte, error) {
	if len(p.Presets) > maxPresets {
		return nil, fmt.Errorf("too many presets: %d > %d", len(p.Presets), maxPresets)
	}
	if p.Preset < 0 || p.Preset > math.MaxUint8 {
		return nil, fmt.Errorf("%w: %d", ErrNoPreset, p.Preset)
	}

	b := make([]byte, 0, MaxRecordSize)
	b = append(b, recordMagic...)
	b = binary.LittleEndian.AppendUint64(b, math.Float64bits(p.Slope))
	b = binary.LittleEndian.AppendUint64(b, math.Float64bits(p.ZeroOffset))
	b = binary.LittleEndian.AppendUint64(b, math.Float64bits(p.MetersPerGram))
	b = append(b, byte(p.Preset), byte(len(p.Presets)))
	for _, pr := range p.Presets {
		name := pr.Name
		if len(name) > maxPresetName {
			name = name[:maxPresetName]
		}
		b = append(b, byte(len(name)))
		b = append(b, name...)
		b = binary.LittleEndian.AppendUint64(b, math.Float64bits(pr.Grams))
	}
	return binary.LittleEndian.AppendUint32(b, crc32.ChecksumIEEE(b)), nil
}

// UnmarshalBinary decodes a record. Bytes after the record are ignored, so a
// whole flash block may be passed in.
func (p *Params) UnmarshalBinary(data []byte) error {
	if len(data) < len(recordMagic) || string(data[:len(recordMagic)]) != recordMagic {
		return ErrNoRecord
	}
	r := reader{b: data, off: len(recordMagic), ok: true}

	var out Params
	out.Slope = r.float()
	out.ZeroOffset = r.float()
	out.MetersPerGram = r.float()
	out.Preset = int(r.byte())
	n := int(r.byte())
	if n > maxPresets {
		return fmt.Errorf("%w: %d presets", ErrCorrupt, n)
	}
	for i := 0; i < n && r.ok; i++ {
		name := r.bytes(int(r.byte()))
		out.Presets = append(out.Presets, Preset{Name: string(name), Grams: r.float()})
	}

	end := r.off
	sum := r.uint32()
	if !r.ok {
		return fmt.Errorf("%w: truncated", ErrCorrupt)
	}
	if crc32.ChecksumIEEE(data[:end]) != sum {
		return fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	*p = out
	return nil
}

type reader struct {
	b   []byte
	off int
	ok  bool
}

func (r *reader) bytes(n int) []byte {
	if !r.ok || r.off+n > len(r.b) {
		r.ok = false
		return nil
	}
	s := r.b[r.off : r.off+n]
	r.off += n
	return s
}

func (r *reader) byte() byte {
	s := r.bytes(1)
	if s == nil {
		return 0
	}
	return s[0]
}

func (r *reader) float() float64 {
	s := r.bytes(8)
	if s == nil {
		return 0
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(s))
}

func (r *reader) uint32() uint32 {
	s := r.bytes(4)
	if s == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(s)
}
