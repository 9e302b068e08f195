package cart

import (
	"bytes"
	"encoding/gob"
)

// MBC2 implements ROM banking (4 bits, up to 256KiB) plus a built-in
// 512x4-bit RAM. Unlike MBC1/MBC3, MBC2 has no separate RAM-enable and
// ROM-bank-select write windows: both live in 0x0000-0x3FFF, distinguished
// by bit 8 of the write address (bit clear selects RAM enable, bit set
// selects the ROM bank).
type MBC2 struct {
	rom []byte
	ram [512]byte // built-in, nibble-wide; only the low 4 bits of each byte are meaningful

	ramEnabled bool
	romBank    byte // 4 bits, 0 remaps to 1
}

func NewMBC2(rom []byte) *MBC2 {
	m := &MBC2{rom: rom}
	m.romBank = 1
	return m
}

func (m *MBC2) Read(addr uint16) byte {
	switch {
	case addr < 0x4000:
		if int(addr) < len(m.rom) {
			return m.rom[addr]
		}
		return 0xFF
	case addr < 0x8000:
		bank := int(m.romBank & 0x0F)
		if bank == 0 {
			bank = 1
		}
		off := bank*0x4000 + int(addr-0x4000)
		if off >= 0 && off < len(m.rom) {
			return m.rom[off]
		}
		return 0xFF
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled {
			return 0xFF
		}
		// The built-in RAM is 512 bytes, mirrored across the full A000-BFFF window.
		idx := int(addr-0xA000) % len(m.ram)
		return 0xF0 | (m.ram[idx] & 0x0F)
	default:
		return 0xFF
	}
}

func (m *MBC2) Write(addr uint16, value byte) {
	switch {
	case addr < 0x4000:
		if addr&0x0100 == 0 {
			m.ramEnabled = (value & 0x0F) == 0x0A
		} else {
			bank := value & 0x0F
			if bank == 0 {
				bank = 1
			}
			m.romBank = bank
		}
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled {
			return
		}
		idx := int(addr-0xA000) % len(m.ram)
		m.ram[idx] = value & 0x0F
	}
}

func (m *MBC2) SaveRAM() []byte { return append([]byte(nil), m.ram[:]...) }

func (m *MBC2) LoadRAM(data []byte) {
	n := copy(m.ram[:], data)
	for i := n; i < len(m.ram); i++ {
		m.ram[i] = 0
	}
}

type mbc2State struct {
	RAM        [512]byte
	RAMEnabled bool
	RomBank    byte
}

func (m *MBC2) SaveState() []byte {
	var buf bytes.Buffer
	s := mbc2State{RAM: m.ram, RAMEnabled: m.ramEnabled, RomBank: m.romBank}
	_ = gob.NewEncoder(&buf).Encode(s)
	return buf.Bytes()
}

func (m *MBC2) LoadState(data []byte) {
	var s mbc2State
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	m.ram, m.ramEnabled, m.romBank = s.RAM, s.RAMEnabled, s.RomBank
}
