package cart

import "testing"

func TestMBC2_ROMBanking(t *testing.T) {
	rom := make([]byte, 256*1024)
	for bank := 0; bank < 16; bank++ {
		rom[bank*0x4000] = byte(bank)
	}
	m := NewMBC2(rom)

	if got := m.Read(0x4000); got != 0x01 {
		t.Fatalf("default switchable bank got %02X want 01", got)
	}

	// Bit 8 of the write address set selects the ROM bank register.
	m.Write(0x2100, 0x05)
	if got := m.Read(0x4000); got != 0x05 {
		t.Fatalf("bank5 read got %02X want 05", got)
	}

	m.Write(0x2100, 0x00)
	if got := m.Read(0x4000); got != 0x01 {
		t.Fatalf("bank0->1 remap failed: got %02X", got)
	}
}

func TestMBC2_BuiltinRAMNibbleWidthAndMirroring(t *testing.T) {
	rom := make([]byte, 0x8000)
	m := NewMBC2(rom)

	// Bit 8 of the write address clear selects RAM enable.
	m.Write(0x0000, 0x0A)
	m.Write(0xA000, 0xFE)
	if got := m.Read(0xA000); got != 0xFE {
		t.Fatalf("low nibble write/read got %02X want FE (upper nibble forced high)", got)
	}

	// The 512-byte RAM mirrors across the whole A000-BFFF window.
	if got := m.Read(0xA200); got != 0xFE {
		t.Fatalf("expected mirrored RAM at 0xA200, got %02X", got)
	}

	m.Write(0x0000, 0x00) // disable RAM
	if got := m.Read(0xA000); got != 0xFF {
		t.Fatalf("expected 0xFF with RAM disabled, got %02X", got)
	}
}

func TestMBC2_SaveStateRoundTrip(t *testing.T) {
	rom := make([]byte, 8*0x4000)
	rom[0x07*0x4000] = 0x07
	m := NewMBC2(rom)
	m.Write(0x0000, 0x0A)
	m.Write(0xA010, 0x0C)
	m.Write(0x2100, 0x07)

	data := m.SaveState()
	n := NewMBC2(rom)
	n.LoadState(data)
	if got := n.Read(0xA010); got != 0xFC {
		t.Fatalf("ram nibble not restored: got %02X want FC", got)
	}
	if got := n.Read(0x4000); got != rom[0x07*0x4000] {
		t.Fatalf("rom bank not restored")
	}
}
