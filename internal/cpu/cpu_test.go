package cpu

import (
	"testing"

	"github.com/kaiolsen/gbcore/internal/bus"
)

func newCPUWithROM(code []byte) *CPU {
	rom := make([]byte, 0x8000)
	copy(rom, code)
	b := bus.New(rom)
	c := New(b)
	return c
}

func step(t *testing.T, c *CPU) int {
	t.Helper()
	cycles, err := c.Step()
	if err != nil {
		t.Fatalf("unexpected Step error: %v", err)
	}
	return cycles
}

func TestCPU_NopAndPC(t *testing.T) {
	c := newCPUWithROM([]byte{0x00}) // NOP
	if cycles := step(t, c); cycles != 4 {
		t.Fatalf("NOP cycles got %d want 4", cycles)
	}
	if c.PC != 1 {
		t.Fatalf("PC after NOP got %#04x want 0x0001", c.PC)
	}
}

func TestCPU_LD_A_d8_And_XOR_A(t *testing.T) {
	c := newCPUWithROM([]byte{0x3E, 0x12, 0xAF}) // LD A,0x12; XOR A
	step(t, c)                                   // LD
	if c.A != 0x12 {
		t.Fatalf("A after LD got %02x want 12", c.A)
	}
	step(t, c) // XOR A
	if c.A != 0x00 {
		t.Fatalf("A after XOR got %02x want 00", c.A)
	}
	if (c.F & 0x80) == 0 { // Z flag
		t.Fatalf("Z flag not set after XOR A")
	}
}

func TestCPU_LD_a16_A_and_LD_A_a16(t *testing.T) {
	// Program: LD A,0x77; LD (0xC000),A; LD A,0x00; LD A,(0xC000)
	prog := []byte{0x3E, 0x77, 0xEA, 0x00, 0xC0, 0x3E, 0x00, 0xFA, 0x00, 0xC0}
	c := newCPUWithROM(prog)
	step(t, c) // LD A,77
	step(t, c) // LD (C000),A
	if a := c.bus.Read(0xC000); a != 0x77 {
		t.Fatalf("WRAM at C000 got %02x want 77", a)
	}
	step(t, c) // LD A,00
	step(t, c) // LD A,(C000)
	if c.A != 0x77 {
		t.Fatalf("A after LD A,(C000) got %02x want 77", c.A)
	}
}

func TestCPU_JP_and_JR(t *testing.T) {
	// JP to 0x0010 then JR -2 to loop
	prog := []byte{0xC3, 0x10, 0x00} // at 0x0000: JP 0x0010
	rom := make([]byte, 0x8000)
	copy(rom, prog)
	for i := 0x0003; i < 0x0010; i++ {
		rom[i] = 0x00
	}
	// at 0x0010: JR -2 (0xFE), which will hop back to 0x0010 itself (infinite)
	rom[0x0010] = 0x18
	rom[0x0011] = 0xFE
	b := bus.New(rom)
	c := New(b)
	cycles := step(t, c) // JP
	if cycles != 16 || c.PC != 0x0010 {
		t.Fatalf("JP cycles=%d PC=%#04x want cycles=16 PC=0x0010", cycles, c.PC)
	}
	pcBefore := c.PC
	step(t, c)            // JR -2
	if c.PC != pcBefore { // stays at 0x0010
		t.Fatalf("JR -2 PC got %#04x want %#04x", c.PC, pcBefore)
	}
}

func TestCPU_INC_B_Flags(t *testing.T) {
	c := newCPUWithROM([]byte{0x04, 0x04}) // INC B twice
	c.B = 0x0F
	c.F = 0x10 // carry set initially
	step(t, c)
	if c.B != 0x10 {
		t.Fatalf("INC B result got %02x want 10", c.B)
	}
	if (c.F & 0x20) == 0 { // H set
		t.Fatalf("INC B should set H flag")
	}
	if (c.F & 0x10) == 0 { // C preserved
		t.Fatalf("INC B should preserve C flag")
	}
	c.B = 0xFF
	step(t, c)
	if c.B != 0x00 || (c.F&0x80) == 0 { // Z set
		t.Fatalf("INC B to 0 should set Z flag, B=%02x, F=%02x", c.B, c.F)
	}
}

func TestCPU_DEC_B_HalfBorrow(t *testing.T) {
	c := newCPUWithROM([]byte{0x05}) // DEC B
	c.B = 0x00
	step(t, c)
	if c.B != 0xFF {
		t.Fatalf("DEC B from 0 got %02x want FF", c.B)
	}
	if (c.F & 0x20) == 0 {
		t.Fatalf("DEC B 0x00->0xFF should set H (borrow from bit 4)")
	}
	if (c.F & 0x40) == 0 {
		t.Fatalf("DEC should set N")
	}
}

func TestCPU_LD_16bit_and_LDH(t *testing.T) {
	// Program:
	// LD HL,0xC000; LD (HL),0x5A; LD A,0x00; LD A,(0xFF00+0x00); LD (0xFF00+1),A
	prog := []byte{
		0x21, 0x00, 0xC0, // LD HL, C000
		0x36, 0x5A, // LD (HL), 5A
		0x3E, 0x00, // LD A, 00
		0xF0, 0x00, // LD A, (FF00+0)
		0xE0, 0x01, // LD (FF00+1), A
	}
	c := newCPUWithROM(prog)
	c.Bus().Write(0xFF00, 0x20) // select dpad so read is deterministic
	c.Bus().Write(0xFF00, 0x30) // select none to keep 0x0F
	c.Bus().Write(0xFF80, 0xA7) // HRAM base

	for i := 0; i < 5; i++ {
		step(t, c)
	}
	if v := c.Bus().Read(0xC000); v != 0x5A {
		t.Fatalf("WRAM C000 got %02x want 5A", v)
	}
	if v := c.Bus().Read(0xFF01); v != c.A {
		t.Fatalf("LDH (FF00+1),A expected write to FF01 with A=%02x got %02x", c.A, v)
	}
}

func TestCPU_CALL_RET(t *testing.T) {
	// 0000: CALL 0005; NOP; NOP; RET
	rom := make([]byte, 0x8000)
	rom[0x0000] = 0xCD
	rom[0x0001] = 0x05
	rom[0x0002] = 0x00
	for i := 0x0003; i < 0x0005; i++ {
		rom[i] = 0x00
	}
	rom[0x0005] = 0xC9 // RET
	b := bus.New(rom)
	c := New(b)
	step(t, c) // CALL
	if c.PC != 0x0005 {
		t.Fatalf("PC after CALL got %04x want 0005", c.PC)
	}
	retCycles := step(t, c)
	if c.PC != 0x0003 || retCycles != 16 {
		t.Fatalf("RET did not return to 0003; PC=%04x cyc=%d", c.PC, retCycles)
	}
}

func TestCPU_RLCA_RRA(t *testing.T) {
	c := newCPUWithROM([]byte{0x07, 0x1F}) // RLCA; RRA
	c.A = 0x85                             // 1000_0101
	step(t, c)                             // RLCA -> 0000_1011, C=1
	if c.A != 0x0B {
		t.Fatalf("RLCA got %02x want 0B", c.A)
	}
	if (c.F & flagC) == 0 {
		t.Fatalf("RLCA should set carry from bit7")
	}
	if c.F&(flagZ|flagN|flagH) != 0 {
		t.Fatalf("RLCA should clear Z/N/H, got F=%02x", c.F)
	}
	c.A = 0x01
	c.F = 0 // carry clear going into RRA
	step(t, c)
	if c.A != 0x00 {
		t.Fatalf("RRA of 0x01 with no carry-in got %02x want 00", c.A)
	}
	if (c.F & flagC) == 0 {
		t.Fatalf("RRA should set carry from bit0 of 0x01")
	}
}

func TestCPU_ADD_HL_HL_HalfCarryBoundary(t *testing.T) {
	// HL=0x0FFF + HL=0x0FFF overflows bit 11 -> H=1.
	c := newCPUWithROM([]byte{0x29}) // ADD HL,HL
	c.setHL(0x0FFF)
	step(t, c)
	if c.getHL() != 0x1FFE {
		t.Fatalf("ADD HL,HL result got %04x want 1FFE", c.getHL())
	}
	if (c.F & flagH) == 0 {
		t.Fatalf("ADD HL,HL with HL=0x0FFF should set H (bit-11 carry)")
	}
	if (c.F & flagC) != 0 {
		t.Fatalf("ADD HL,HL with HL=0x0FFF should not set C")
	}
}

func TestCPU_LD_HL_SP_e8_Negative(t *testing.T) {
	// SP=0x0005, e8=0xFB(-5) -> HL=0x0000, C=1, H=1.
	c := newCPUWithROM([]byte{0xF8, 0xFB})
	c.SP = 0x0005
	step(t, c)
	if c.getHL() != 0x0000 {
		t.Fatalf("LD HL,SP+e8 result got %04x want 0000", c.getHL())
	}
	if (c.F & flagZ) != 0 || (c.F & flagN) != 0 {
		t.Fatalf("LD HL,SP+e8 must always clear Z and N, got F=%02x", c.F)
	}
	if (c.F & flagC) == 0 {
		t.Fatalf("LD HL,SP+e8 should set C (carry out of low byte)")
	}
	if (c.F & flagH) == 0 {
		t.Fatalf("LD HL,SP+e8 should set H per the stated low-byte half-carry rule")
	}
}

func TestCPU_IllegalOpcode(t *testing.T) {
	c := newCPUWithROM([]byte{0xD3}) // illegal
	_, err := c.Step()
	if err == nil {
		t.Fatalf("expected IllegalOpcodeError for 0xD3")
	}
	ioe, ok := err.(*IllegalOpcodeError)
	if !ok {
		t.Fatalf("expected *IllegalOpcodeError, got %T", err)
	}
	if ioe.Opcode != 0xD3 || ioe.PC != 0x0000 {
		t.Fatalf("IllegalOpcodeError got opcode=%02x pc=%04x", ioe.Opcode, ioe.PC)
	}
}

func TestCPU_HaltBug(t *testing.T) {
	// IME=0, IE & IF already have a pending bit, then HALT: the next opcode
	// byte executes, but PC is not advanced past it, so the byte is fetched again.
	rom := make([]byte, 0x8000)
	rom[0x0000] = 0x76 // HALT
	rom[0x0001] = 0x3C // INC A
	b := bus.New(rom)
	c := New(b)
	c.IME = false
	b.Write(0xFFFF, 0x01) // IE: VBlank enabled
	b.Write(0xFF0F, 0x01) // IF: VBlank pending
	step(t, c)            // HALT observes pending+IME=0 -> sets haltBug, does not halt
	if c.halted {
		t.Fatalf("CPU should not halt when IME=0 and an interrupt is already pending")
	}
	if c.PC != 0x0001 {
		t.Fatalf("PC after HALT bug setup got %04x want 0001", c.PC)
	}
	step(t, c) // first replay of INC A
	if c.A != 1 {
		t.Fatalf("A after first INC A got %d want 1", c.A)
	}
	if c.PC != 0x0001 {
		t.Fatalf("PC after halt-bug replay should stay at 0001, got %04x", c.PC)
	}
	step(t, c) // real execution of INC A, now PC advances normally
	if c.A != 2 {
		t.Fatalf("A after second INC A got %d want 2", c.A)
	}
	if c.PC != 0x0002 {
		t.Fatalf("PC after halt-bug resolved got %04x want 0002", c.PC)
	}
}

func TestCPU_EI_Latency(t *testing.T) {
	// EI; NOP; then a VBlank interrupt should not be serviced until after the NOP.
	rom := make([]byte, 0x8000)
	rom[0x0000] = 0xFB // EI
	rom[0x0001] = 0x00 // NOP
	rom[0x0002] = 0x00 // NOP
	b := bus.New(rom)
	c := New(b)
	b.Write(0xFFFF, 0x01)
	b.Write(0xFF0F, 0x01)
	step(t, c) // EI: IME still false immediately after
	if c.IME {
		t.Fatalf("IME should not be set immediately after EI")
	}
	step(t, c) // NOP: IME becomes true only after this instruction completes
	if !c.IME {
		t.Fatalf("IME should be set after the instruction following EI")
	}
	// Interrupt is now pending and IME is set: the next Step services it instead
	// of executing the NOP at 0x0002.
	pcBefore := c.PC
	cyc := step(t, c)
	if cyc != 20 {
		t.Fatalf("expected interrupt dispatch cost 20, got %d", cyc)
	}
	if c.PC != 0x40 {
		t.Fatalf("expected dispatch to VBlank vector 0x0040, got %04x", c.PC)
	}
	if c.pop16() != pcBefore {
		t.Fatalf("interrupt dispatch should have pushed the pre-dispatch PC")
	}
}

func TestCPU_DAA_AfterBCDAdd(t *testing.T) {
	// 0x45 + 0x38 = 0x7D in binary, which is not valid BCD (low digit D > 9): DAA adds 0x06 to give 0x83.
	// 0x19 + 0x19 = 0x32 binary needs +0x06 correction to read as BCD 0x38.
	c := newCPUWithROM([]byte{0x27}) // DAA
	c.A = 0x32
	c.F = 0 // result of a prior ADD with H set would normally drive this; force H
	c.F = flagH
	step(t, c)
	if c.A != 0x38 {
		t.Fatalf("DAA after half-carry add got %02x want 38", c.A)
	}
}

func TestCPU_SaveStateRoundTrip(t *testing.T) {
	c := newCPUWithROM([]byte{0x00})
	c.A, c.F, c.B, c.C = 0x12, 0xB0, 0x34, 0x56
	c.SP, c.PC = 0xD000, 0x1234
	c.IME = true

	data := c.SaveState()

	other := newCPUWithROM([]byte{0x00})
	other.LoadState(data)
	if other.A != 0x12 || other.B != 0x34 || other.C != 0x56 {
		t.Fatalf("registers not restored: %+v", other)
	}
	if other.SP != 0xD000 || other.PC != 0x1234 {
		t.Fatalf("SP/PC not restored: SP=%04x PC=%04x", other.SP, other.PC)
	}
	if !other.IME {
		t.Fatalf("IME not restored")
	}
}
