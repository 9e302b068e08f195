// Package apu implements the DMG sound unit as a register store: every NRxx
// register and wave-RAM byte round-trips faithfully, channel-enable status
// bits (NR52) track the power gate, but no channel actually synthesizes
// samples. Audio output is out of scope; host software
// that needs silence-shaped bytes can read zeros from a frame sink instead.
package apu

import (
	"bytes"
	"encoding/gob"
)

// Register offsets relative to 0xFF10, matching the NRxx naming used by
// every DMG reference.
const (
	nr10 = 0x00
	nr11 = 0x01
	nr12 = 0x02
	nr13 = 0x03
	nr14 = 0x04
	nr21 = 0x06
	nr22 = 0x07
	nr23 = 0x08
	nr24 = 0x09
	nr30 = 0x0A
	nr31 = 0x0B
	nr32 = 0x0C
	nr33 = 0x0D
	nr34 = 0x0E
	nr41 = 0x10
	nr42 = 0x11
	nr43 = 0x12
	nr44 = 0x13
	nr50 = 0x14
	nr51 = 0x15
	nr52 = 0x16
)

// readOnlyMask ORs in the bits that always read as 1 regardless of what was
// last written, per the DMG register map (unused/write-only bits float high).
var readOnlyMask = map[int]byte{
	nr10: 0x80,
	nr11: 0x3F,
	nr13: 0xFF,
	nr14: 0xBF,
	nr21: 0x3F,
	nr23: 0xFF,
	nr24: 0xBF,
	nr30: 0x7F,
	nr31: 0xFF,
	nr32: 0x9F,
	nr33: 0xFF,
	nr34: 0xBF,
	nr41: 0xFF,
	nr44: 0xBF,
	nr52: 0x70,
}

// APU stores the full NR10-NR52 register file plus wave RAM. CH1-CH4's
// individual enable bits (NR52 bits 0-3) are exposed for inspection by tests
// and trace tooling but are never set by internal synthesis, since there is
// none: they reflect only what channel-trigger writes have requested.
type APU struct {
	regs    [0x17]byte // FF10-FF26, indexed by the nrXX constants above
	waveRAM [0x10]byte // FF30-FF3F
	powered bool
}

// New returns an APU with all registers zeroed, as after a cold DMG boot.
func New() *APU {
	return &APU{}
}

func (a *APU) Read(addr uint16) byte {
	switch {
	case addr >= 0xFF10 && addr <= 0xFF26:
		idx := int(addr - 0xFF10)
		v := a.regs[idx]
		if mask, ok := readOnlyMask[idx]; ok {
			v |= mask
		}
		if idx == nr52 {
			v = (v & 0x80) | 0x70 | (v & 0x0F)
		}
		return v
	case addr >= 0xFF30 && addr <= 0xFF3F:
		return a.waveRAM[addr-0xFF30]
	}
	return 0xFF
}

func (a *APU) Write(addr uint16, value byte) {
	switch {
	case addr >= 0xFF10 && addr <= 0xFF26:
		idx := int(addr - 0xFF10)
		if idx == nr52 {
			a.setPower((value & 0x80) != 0)
			a.regs[idx] = (a.regs[idx] & 0x0F) | (value & 0x80)
			return
		}
		if !a.powered && idx != nr52 {
			// DMG ignores writes to every sound register except NR52 while powered off.
			return
		}
		a.regs[idx] = value
		if idx == nr14 || idx == nr24 || idx == nr34 || idx == nr44 {
			if (value & 0x80) != 0 {
				a.trigger(idx)
			}
		}
	case addr >= 0xFF30 && addr <= 0xFF3F:
		a.waveRAM[addr-0xFF30] = value
	}
}

// trigger sets the corresponding channel-enabled bit in NR52. Real hardware
// may immediately clear it again if the channel's DAC is disabled; that
// nuance is left to the frame sink, which never reads audio data from here.
func (a *APU) trigger(nrX4Idx int) {
	var bit byte
	switch nrX4Idx {
	case nr14:
		bit = 1 << 0
	case nr24:
		bit = 1 << 1
	case nr34:
		bit = 1 << 2
	case nr44:
		bit = 1 << 3
	}
	a.regs[nr52] |= bit
}

// setPower implements the NR52 power gate: powering off clears every
// register except the wave RAM and the NR52 byte itself (real DMG behavior).
func (a *APU) setPower(on bool) {
	wasOn := a.powered
	a.powered = on
	if wasOn && !on {
		for i := range a.regs {
			if i == nr52 {
				continue
			}
			a.regs[i] = 0
		}
	}
}

type apuState struct {
	Regs    [0x17]byte
	WaveRAM [0x10]byte
	Powered bool
}

func (a *APU) SaveState() []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(apuState{Regs: a.regs, WaveRAM: a.waveRAM, Powered: a.powered})
	return buf.Bytes()
}

func (a *APU) LoadState(data []byte) {
	var s apuState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	a.regs = s.Regs
	a.waveRAM = s.WaveRAM
	a.powered = s.Powered
}
