package emu

import "testing"

// tightLoopROM builds a minimal 32KiB ROM-only cartridge image whose entry
// point at 0x0100 spins on a JP to itself, just enough to drive the PPU
// through full frames without depending on any particular game logic.
func tightLoopROM() []byte {
	rom := make([]byte, 0x8000)
	rom[0x0100] = 0x00             // NOP
	rom[0x0101] = 0xC3             // JP 0x0100
	rom[0x0102] = 0x00
	rom[0x0103] = 0x01
	rom[0x0147] = 0x00 // ROM ONLY
	rom[0x0148] = 0x00 // 32KiB
	rom[0x0149] = 0x00 // no RAM
	return rom
}

func TestMachine_LoadCartridgeAndStepFrame(t *testing.T) {
	m := New(Config{})
	if err := m.LoadCartridge(tightLoopROM(), nil); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	if err := m.StepFrame(); err != nil {
		t.Fatalf("StepFrame: %v", err)
	}
	fb := m.Framebuffer()
	if len(fb) != 160*144*4 {
		t.Fatalf("framebuffer size got %d want %d", len(fb), 160*144*4)
	}
	// Every pixel must be opaque (all palette colors have alpha 0xFF).
	for i := 3; i < len(fb); i += 4 {
		if fb[i] != 0xFF {
			t.Fatalf("unexpected alpha %02X at byte %d", fb[i], i)
		}
	}
}

func TestMachine_IllegalOpcodeStopsMachine(t *testing.T) {
	rom := make([]byte, 0x8000)
	rom[0x0100] = 0xD3 // illegal opcode
	rom[0x0147] = 0x00
	rom[0x0148] = 0x00
	rom[0x0149] = 0x00

	m := New(Config{})
	if err := m.LoadCartridge(rom, nil); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	err := m.StepFrame()
	if err == nil {
		t.Fatalf("expected illegal opcode error")
	}
	if m.IllegalOpcode() == nil {
		t.Fatalf("expected IllegalOpcode() to be populated")
	}
	if m.IllegalOpcode().PC != 0x0100 || m.IllegalOpcode().Opcode != 0xD3 {
		t.Fatalf("unexpected fault: %+v", m.IllegalOpcode())
	}
}

func TestMachine_LoadCartridgeRejectsBadHeader(t *testing.T) {
	m := New(Config{})
	if err := m.LoadCartridge([]byte{0x00, 0x01}, nil); err == nil {
		t.Fatalf("expected an error for a too-small ROM image")
	}
}

func TestMachine_SaveStateRoundTrip(t *testing.T) {
	m := New(Config{})
	if err := m.LoadCartridge(tightLoopROM(), nil); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	if err := m.StepFrame(); err != nil {
		t.Fatalf("StepFrame: %v", err)
	}
	pcBefore := m.PC()

	data := m.SaveState()

	n := New(Config{})
	if err := n.LoadCartridge(tightLoopROM(), nil); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	if err := n.LoadState(data); err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if n.PC() != pcBefore {
		t.Fatalf("PC not restored: got %04X want %04X", n.PC(), pcBefore)
	}
}

func TestMachine_BatteryRoundTripOnMBC1(t *testing.T) {
	rom := make([]byte, 0x20000) // 128KiB, enough for a couple MBC1 banks
	rom[0x0147] = 0x03           // MBC1+RAM+BATTERY
	rom[0x0148] = 0x03           // 256KiB ROM size code (banks only; image itself may be smaller)
	rom[0x0149] = 0x02           // 8KiB RAM

	m := New(Config{})
	if err := m.LoadCartridge(rom, nil); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	if _, ok := m.SaveBattery(); !ok {
		t.Fatalf("expected MBC1+BATTERY cartridge to report battery support")
	}
	save := make([]byte, 8*1024)
	save[0] = 0x5A
	if !m.LoadBattery(save) {
		t.Fatalf("expected LoadBattery to succeed on a battery-backed cartridge")
	}
	got, ok := m.SaveBattery()
	if !ok || len(got) == 0 || got[0] != 0x5A {
		t.Fatalf("battery RAM not round-tripped through LoadBattery/SaveBattery")
	}
}
