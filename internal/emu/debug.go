package emu

import (
	"fmt"
	"io"

	"github.com/kaiolsen/gbcore/internal/cpu"
)

// traceLine formats the instruction about to execute at the CPU's current
// PC in the fixed-width register-dump format validation tooling expects:
// A:xx F:xx B:xx C:xx D:xx E:xx H:xx L:xx SP:xxxx PC:xxxx PCMEM:xx,xx,xx,xx
func (m *Machine) traceLine() string {
	c, b := m.cpu, m.bus
	pc := c.PC
	return fmt.Sprintf(
		"A:%02X F:%02X B:%02X C:%02X D:%02X E:%02X H:%02X L:%02X SP:%04X PC:%04X PCMEM:%02X,%02X,%02X,%02X",
		c.A, c.F, c.B, c.C, c.D, c.E, c.H, c.L, c.SP, pc,
		b.Read(pc), b.Read(pc+1), b.Read(pc+2), b.Read(pc+3),
	)
}

// StepOne executes exactly one instruction, writing a trace line to w first
// if w is non-nil. Returns the CPU's illegal-opcode error verbatim.
func (m *Machine) StepOne(w io.Writer) error {
	if w != nil {
		fmt.Fprintln(w, m.traceLine())
	}
	_, err := m.cpu.Step()
	if e, ok := err.(*cpu.IllegalOpcodeError); ok {
		m.illegalErr = e
	}
	return err
}

// PC returns the CPU's current program counter. Panics if no cartridge has
// been loaded.
func (m *Machine) PC() uint16 { return m.cpu.PC }

// RunUntilBreak steps the CPU until PC equals breakAt, an illegal opcode
// aborts, or maxSteps instructions have executed (0 means unbounded). Each
// executed instruction is traced to w if w is non-nil. Returns the number of
// instructions executed and the CPU's error, if any.
func (m *Machine) RunUntilBreak(breakAt uint16, maxSteps int, w io.Writer) (steps int, err error) {
	for maxSteps <= 0 || steps < maxSteps {
		if m.cpu.PC == breakAt {
			return steps, nil
		}
		if err := m.StepOne(w); err != nil {
			return steps, err
		}
		steps++
	}
	return steps, nil
}
