// Package emu wires the CPU, Bus (VRAM/OAM/IO, PPU, APU, cartridge) into a
// runnable DMG and exposes the single entry point CLI and UI front ends
// drive: load a cartridge, feed it button state, and pull frames.
package emu

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"image/color"
	"io"
	"os"

	"github.com/kaiolsen/gbcore/internal/bus"
	"github.com/kaiolsen/gbcore/internal/cart"
	"github.com/kaiolsen/gbcore/internal/cpu"
	"github.com/kaiolsen/gbcore/internal/ppu"
)

// Buttons is the instantaneous state of the eight-button DMG pad, consulted
// only when the CPU reads the JOYP register.
type Buttons struct {
	A, B, Start, Select   bool
	Up, Down, Left, Right bool
}

func (btn Buttons) mask() byte {
	var m byte
	if btn.Right {
		m |= bus.JoypRight
	}
	if btn.Left {
		m |= bus.JoypLeft
	}
	if btn.Up {
		m |= bus.JoypUp
	}
	if btn.Down {
		m |= bus.JoypDown
	}
	if btn.A {
		m |= bus.JoypA
	}
	if btn.B {
		m |= bus.JoypB
	}
	if btn.Select {
		m |= bus.JoypSelectBtn
	}
	if btn.Start {
		m |= bus.JoypStart
	}
	return m
}

var paletteRGBA = map[Palette][4]color.RGBA{
	PaletteGreen: {
		{R: 0xE0, G: 0xF8, B: 0xD0, A: 0xFF},
		{R: 0x88, G: 0xC0, B: 0x70, A: 0xFF},
		{R: 0x34, G: 0x68, B: 0x56, A: 0xFF},
		{R: 0x08, G: 0x18, B: 0x20, A: 0xFF},
	},
	PaletteGrayscale: {
		{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF},
		{R: 0xAA, G: 0xAA, B: 0xAA, A: 0xFF},
		{R: 0x55, G: 0x55, B: 0x55, A: 0xFF},
		{R: 0x00, G: 0x00, B: 0x00, A: 0xFF},
	},
}

// CyclesPerFrame is the DMG's fixed frame length in T-cycles, usable by a
// host loop for optional ~60 Hz pacing. The orchestrator itself does not
// need it: StepFrame/StepFrameNoRender already stop exactly at frame_ready.
const CyclesPerFrame = 70224

// Machine is a single DMG instance: one cartridge, one CPU, one Bus.
type Machine struct {
	cfg Config

	bus *bus.Bus
	cpu *cpu.CPU

	romPath  string
	romTitle string

	palette Palette
	fb      []byte // RGBA, ScreenWidth*ScreenHeight*4, updated by StepFrame

	traceOut  io.Writer
	traceFile *os.File

	illegalErr *cpu.IllegalOpcodeError
}

// New constructs a Machine with no cartridge loaded yet.
func New(cfg Config) *Machine {
	return &Machine{
		cfg:     cfg,
		palette: cfg.Palette,
		fb:      make([]byte, ppu.ScreenWidth*ppu.ScreenHeight*4),
	}
}

// SetPalette changes the palette applied by subsequent StepFrame calls.
func (m *Machine) SetPalette(p Palette) { m.palette = p }

// Palette reports the palette currently applied by StepFrame.
func (m *Machine) Palette() Palette { return m.palette }

// ROMPath returns the path LoadROMFromFile was given, or "" if the
// cartridge was loaded directly from bytes via LoadCartridge.
func (m *Machine) ROMPath() string { return m.romPath }

// ROMTitle returns the cartridge header title, or "" before a cartridge is loaded.
func (m *Machine) ROMTitle() string { return m.romTitle }

// IllegalOpcode returns the fault that stopped the machine, or nil if it is
// still running (or hasn't started).
func (m *Machine) IllegalOpcode() *cpu.IllegalOpcodeError { return m.illegalErr }

// LoadCartridge builds a fresh Bus and CPU around rom. If boot is a full
// 256-byte DMG boot ROM image, the CPU starts execution at 0x0000 and runs
// the real boot sequence; otherwise the CPU and IO registers are primed to
// the documented post-boot state and execution starts at the cartridge
// entry point, 0x0100. Returns cart.ErrBadHeader or cart.ErrUnsupportedMBC
// without mutating the Machine if rom fails to parse or names a mapper this
// implementation does not provide.
func (m *Machine) LoadCartridge(rom []byte, boot []byte) error {
	c, err := cart.NewCartridgeStrict(rom)
	if err != nil {
		return err
	}
	h, _ := cart.ParseHeader(rom)

	m.bus = bus.NewWithCartridge(c)
	m.cpu = cpu.New(m.bus)
	m.illegalErr = nil

	if len(boot) >= 0x100 {
		m.bus.SetBootROM(boot)
		m.cpu.SetPC(0x0000)
	} else {
		m.cpu.ResetNoBoot()
		m.cpu.SetPC(0x0100)
		m.primePostBootIO()
	}

	if h != nil {
		m.romTitle = h.Title
	}
	return m.openTrace()
}

// LoadROMFromFile reads rom bytes from path and loads them with no boot ROM.
// Unlike LoadCartridge it also records ROMPath for battery/.sav naming.
func (m *Machine) LoadROMFromFile(path string) error {
	return m.LoadROMFromFileWithBoot(path, nil)
}

// LoadROMFromFileWithBoot is LoadROMFromFile with an optional boot ROM image.
func (m *Machine) LoadROMFromFileWithBoot(path string, boot []byte) error {
	rom, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := m.LoadCartridge(rom, boot); err != nil {
		return err
	}
	m.romPath = path
	return nil
}

// primePostBootIO mirrors the IO register values the DMG boot ROM leaves
// behind, so a cartridge started without a real boot image still finds the
// hardware in the state it expects.
func (m *Machine) primePostBootIO() {
	b := m.bus
	b.Write(0xFF00, 0xCF)
	b.Write(0xFF05, 0x00)
	b.Write(0xFF06, 0x00)
	b.Write(0xFF07, 0x00)
	b.Write(0xFF40, 0x91)
	b.Write(0xFF42, 0x00)
	b.Write(0xFF43, 0x00)
	b.Write(0xFF45, 0x00)
	b.Write(0xFF47, 0xFC)
	b.Write(0xFF48, 0xFF)
	b.Write(0xFF49, 0xFF)
	b.Write(0xFF4A, 0x00)
	b.Write(0xFF4B, 0x00)
	b.Write(0xFFFF, 0x00)
}

func (m *Machine) openTrace() error {
	if !m.cfg.Trace || m.traceOut != nil {
		return nil
	}
	if m.cfg.TraceFile == "" {
		m.traceOut = os.Stdout
		return nil
	}
	f, err := os.Create(m.cfg.TraceFile)
	if err != nil {
		return fmt.Errorf("open trace file: %w", err)
	}
	m.traceFile = f
	m.traceOut = f
	return nil
}

// Close releases any open trace file. Safe to call on a Machine that never opened one.
func (m *Machine) Close() error {
	if m.traceFile == nil {
		return nil
	}
	err := m.traceFile.Close()
	m.traceFile = nil
	m.traceOut = nil
	return err
}

// SetSerialWriter routes bytes written through the serial port (0xFF01/0xFF02)
// to w. Must be called after a cartridge is loaded, since LoadCartridge
// replaces the Bus.
func (m *Machine) SetSerialWriter(w io.Writer) {
	if m.bus != nil {
		m.bus.SetSerialWriter(w)
	}
}

// SetButtons updates the joypad state consulted on the next JOYP read.
func (m *Machine) SetButtons(b Buttons) {
	if m.bus != nil {
		m.bus.SetJoypadState(b.mask())
	}
}

// stepInstruction executes one CPU step (or interrupt dispatch) — CPU.Step
// already ticks the bus itself with the cycle cost it reports — and records
// an illegal-opcode fault if one occurred. The machine is not usable after
// an illegal opcode: callers must stop calling Step*/StepFrame* once an
// error is returned.
func (m *Machine) stepInstruction() error {
	if m.traceOut != nil {
		fmt.Fprintln(m.traceOut, m.traceLine())
	}
	_, err := m.cpu.Step()
	if e, ok := err.(*cpu.IllegalOpcodeError); ok {
		m.illegalErr = e
	}
	return err
}

// StepFrameNoRender runs the machine until the PPU completes one frame
// without converting it to RGBA, for callers that only care about CPU and
// serial behavior (conformance-test harnesses).
func (m *Machine) StepFrameNoRender() error {
	p := m.bus.PPU()
	for {
		if err := m.stepInstruction(); err != nil {
			return err
		}
		if p.FrameReady() {
			p.TakeFrame()
			return nil
		}
	}
}

// StepFrame runs the machine until one frame completes and converts it to
// RGBA through the current palette, retrievable via Framebuffer. With no
// cartridge loaded it returns nil and leaves the framebuffer unchanged.
func (m *Machine) StepFrame() error {
	if m.bus == nil {
		return nil
	}
	p := m.bus.PPU()
	for {
		if err := m.stepInstruction(); err != nil {
			return err
		}
		if p.FrameReady() {
			m.renderFrame(p.TakeFrame())
			return nil
		}
	}
}

func (m *Machine) renderFrame(f ppu.Frame) {
	pal := paletteRGBA[m.palette]
	i := 0
	for y := 0; y < ppu.ScreenHeight; y++ {
		for x := 0; x < ppu.ScreenWidth; x++ {
			c := pal[f[y][x]&0x03]
			m.fb[i+0] = c.R
			m.fb[i+1] = c.G
			m.fb[i+2] = c.B
			m.fb[i+3] = c.A
			i += 4
		}
	}
}

// Framebuffer returns the RGBA pixels (ScreenWidth*ScreenHeight*4 bytes)
// from the most recent StepFrame call. The slice is reused across frames;
// callers that need to keep a frame must copy it.
func (m *Machine) Framebuffer() []byte { return m.fb }

// LoadBattery restores external RAM on cartridges that expose it. Reports
// false if the loaded cartridge has no battery-backed RAM to restore.
func (m *Machine) LoadBattery(data []byte) bool {
	bb, ok := m.bus.Cart().(cart.BatteryBacked)
	if !ok {
		return false
	}
	bb.LoadRAM(data)
	return true
}

// SaveBattery returns a copy of external RAM on cartridges that expose it.
// Reports false if the loaded cartridge has no battery-backed RAM.
func (m *Machine) SaveBattery() ([]byte, bool) {
	bb, ok := m.bus.Cart().(cart.BatteryBacked)
	if !ok {
		return nil, false
	}
	return bb.SaveRAM(), true
}

type machineState struct {
	CPU  []byte
	Bus  []byte
	Path string
}

// SaveState snapshots CPU registers and the full Bus (WRAM, HRAM, PPU, APU,
// cartridge banking+RAM) into one opaque blob.
func (m *Machine) SaveState() []byte {
	s := machineState{CPU: m.cpu.SaveState(), Bus: m.bus.SaveState(), Path: m.romPath}
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(s)
	return buf.Bytes()
}

// LoadState restores a snapshot produced by SaveState. The Machine must
// already have a cartridge loaded that matches the one the snapshot was
// taken from; LoadState does not reconstruct the cartridge itself.
func (m *Machine) LoadState(data []byte) error {
	var s machineState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return fmt.Errorf("decode save state: %w", err)
	}
	m.cpu.LoadState(s.CPU)
	m.bus.LoadState(s.Bus)
	return nil
}

// SaveStateToFile writes SaveState's output to path.
func (m *Machine) SaveStateToFile(path string) error {
	return os.WriteFile(path, m.SaveState(), 0644)
}

// LoadStateFromFile restores a snapshot previously written by SaveStateToFile.
func (m *Machine) LoadStateFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return m.LoadState(data)
}
