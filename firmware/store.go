//go:build rp2040

package main

import (
	"fmt"
	"machine"

	"github.com/itohio/filscale/pkg/controller"
	"github.com/itohio/filscale/pkg/scale"
)

// flashStore keeps the calibration record at the start of the flash data area.
type flashStore struct{}

var _ controller.Store = flashStore{}

func (flashStore) Load() (scale.Params, error) {
	buf := make([]byte, scale.MaxRecordSize)
	if _, err := machine.Flash.ReadAt(buf, 0); err != nil {
		return scale.Params{}, fmt.Errorf("flash read: %w", err)
	}
	var p scale.Params
	if err := p.UnmarshalBinary(buf); err != nil {
		return scale.Params{}, err
	}
	return p, nil
}

func (flashStore) Save(p scale.Params) error {
	data, err := p.MarshalBinary()
	if err != nil {
		return err
	}

	ws := int(machine.Flash.WriteBlockSize())
	for len(data)%ws != 0 {
		data = append(data, 0xff)
	}

	bs := machine.Flash.EraseBlockSize()
	blocks := (int64(len(data)) + bs - 1) / bs
	if err := machine.Flash.EraseBlocks(0, blocks); err != nil {
		return fmt.Errorf("flash erase: %w", err)
	}
	if _, err := machine.Flash.WriteAt(data, 0); err != nil {
		return fmt.Errorf("flash write: %w", err)
	}
	return nil
}
