package cpu

import (
	"fmt"

	"github.com/valerio/go-jeebie/dmg/addr"
)

// Flag is one of the 4 possible flags used in the flag register (high nibble of F).
type Flag uint8

const (
	zeroFlag      Flag = 0x80
	subFlag       Flag = 0x40
	halfCarryFlag Flag = 0x20
	carryFlag     Flag = 0x10
)

// interrupt vector table, indexed by bit position in IE/IF.
var interruptVectors = [5]uint16{
	0x40, // VBlank
	0x48, // LCD STAT
	0x50, // Timer
	0x58, // Serial
	0x60, // Joypad
}

// Bus is the memory-mapped surface the CPU fetches instructions from and
// drives its clock through. A single call to Tick advances the bus-side
// peripherals (timer, serial, OAM DMA) by the same number of clock cycles;
// the PPU and APU are ticked by the emulator loop, not through the bus.
type Bus interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8)
	Tick(cycles int)
}

// CPU is the LR35902 core: flat 8-bit registers, a 16-bit stack pointer and
// program counter, and the interrupt/HALT state machine that sits on top of
// them. It owns no memory directly; every access goes through bus.
type CPU struct {
	bus Bus

	a, b, c, d, e, h, l, f uint8
	sp, pc                 uint16

	interruptsEnabled bool
	eiPending         bool
	halted            bool
	haltBug           bool
	stopped           bool

	cycles        uint64
	currentOpcode uint16
}

// New returns a CPU reset to the post-boot-ROM register state, ready to run
// cartridge code starting at 0x0100. Callers that want to run the boot ROM
// itself should zero the registers and set pc to 0 instead.
func New(bus Bus) *CPU {
	return &CPU{
		bus: bus,
		a:   0x01, f: 0xB0,
		b: 0x00, c: 0x13,
		d: 0x00, e: 0xD8,
		h: 0x01, l: 0x4D,
		sp: 0xFFFE,
		pc: 0x0100,
	}
}

// NewForBootROM returns a CPU with every register zeroed and pc at 0x0000,
// the actual power-on state of the hardware, for use with a bus that has the
// boot ROM overlay active. At the jump to 0x0100 the bundled boot program
// leaves A, SP and pc as New sets them, but not F, BC, DE or HL.
func NewForBootROM(bus Bus) *CPU {
	return &CPU{
		bus: bus,
		pc:  0x0000,
	}
}

// PC returns the current program counter, mostly for disassembly/debugging.
func (c *CPU) PC() uint16 { return c.pc }

// Cycles returns the running total of clock cycles this CPU has executed.
func (c *CPU) Cycles() uint64 { return c.cycles }

// The accessors below exist for debug tooling (disassembly views, terminal
// status panels) that has no business reaching into unexported register
// fields just to print them.
func (c *CPU) GetA() uint8   { return c.a }
func (c *CPU) GetF() uint8   { return c.f }
func (c *CPU) GetB() uint8   { return c.b }
func (c *CPU) GetC() uint8   { return c.c }
func (c *CPU) GetD() uint8   { return c.d }
func (c *CPU) GetE() uint8   { return c.e }
func (c *CPU) GetH() uint8   { return c.h }
func (c *CPU) GetL() uint8   { return c.l }
func (c *CPU) GetSP() uint16 { return c.sp }
func (c *CPU) GetPC() uint16 { return c.pc }

// GetFlagString renders the Z/N/H/C flag register as four characters: the
// upper-case letter when the flag is set and '-' when it is clear, e.g.
// "Z-H-" or "----".
func (c *CPU) GetFlagString() string {
	flags := [4]byte{'z', 'n', 'h', 'c'}
	bits := [4]Flag{zeroFlag, subFlag, halfCarryFlag, carryFlag}
	out := make([]byte, 4)
	for i, f := range bits {
		if c.isSetFlag(f) {
			out[i] = flags[i] - ('a' - 'A')
		} else {
			out[i] = '-'
		}
	}
	return string(out)
}

// IME reports whether the interrupt master enable flag is currently set.
func (c *CPU) IME() bool { return c.interruptsEnabled }

// Halted reports whether the CPU is in the HALT low-power state.
func (c *CPU) Halted() bool { return c.halted }

func (c *CPU) setFlag(flag Flag) {
	c.f |= uint8(flag)
}

func (c *CPU) resetFlag(flag Flag) {
	c.f &^= uint8(flag)
}

func (c *CPU) setFlagToCondition(flag Flag, condition bool) {
	if condition {
		c.setFlag(flag)
	} else {
		c.resetFlag(flag)
	}
}

func (c *CPU) isSetFlag(flag Flag) bool {
	return c.f&uint8(flag) != 0
}

// flagToBit returns 1 if the flag is set, 0 otherwise - used by ADC/SBC/RL/RR.
func (c *CPU) flagToBit(flag Flag) uint8 {
	if c.isSetFlag(flag) {
		return 1
	}
	return 0
}

func (c *CPU) getBC() uint16 { return uint16(c.b)<<8 | uint16(c.c) }
func (c *CPU) getDE() uint16 { return uint16(c.d)<<8 | uint16(c.e) }
func (c *CPU) getHL() uint16 { return uint16(c.h)<<8 | uint16(c.l) }
func (c *CPU) getAF() uint16 { return uint16(c.a)<<8 | uint16(c.f&0xF0) }

func (c *CPU) setBC(value uint16) { c.b = uint8(value >> 8); c.c = uint8(value) }
func (c *CPU) setDE(value uint16) { c.d = uint8(value >> 8); c.e = uint8(value) }
func (c *CPU) setHL(value uint16) { c.h = uint8(value >> 8); c.l = uint8(value) }
func (c *CPU) setAF(value uint16) { c.a = uint8(value >> 8); c.f = uint8(value) & 0xF0 }

// readImmediate fetches the byte at pc and advances pc past it.
func (c *CPU) readImmediate() uint8 {
	value := c.bus.Read(c.pc)
	c.pc++
	return value
}

// readSignedImmediate fetches a signed 8-bit displacement and advances pc.
func (c *CPU) readSignedImmediate() int8 {
	return int8(c.readImmediate())
}

// readImmediateWord fetches the little-endian word at pc and advances pc by 2.
func (c *CPU) readImmediateWord() uint16 {
	low := c.readImmediate()
	high := c.readImmediate()
	return uint16(high)<<8 | uint16(low)
}

// peekOpcode reads the opcode (and, for 0xCB, the following byte) at pc
// without moving it - Decode uses this so callers can inspect the next
// instruction before committing to execute it.
func (c *CPU) peekOpcode() uint16 {
	b := c.bus.Read(c.pc)
	if b != 0xCB {
		return uint16(b)
	}

	second := c.bus.Read(c.pc + 1)
	return 0xCB00 | uint16(second)
}

// Decode looks up the instruction at the CPU's current pc, recording it as
// currentOpcode for fault diagnostics. It does not advance pc or consume the
// opcode byte(s) - Step does that as each handler runs.
func Decode(c *CPU) Opcode {
	opcode := c.peekOpcode()
	c.currentOpcode = opcode
	return decode(opcode)
}

// Step performs one unit of CPU work and returns the number of clock cycles
// it consumed: an interrupt dispatch (20 cycles, no instruction executed),
// one idle HALT tick (4 cycles), or one instruction. The bus is advanced by
// that same amount so that the peripherals it ticks stay in lockstep with
// the CPU.
func (c *CPU) Step() int {
	cyclesBefore := c.cycles
	woke := c.handleInterrupts()
	if c.cycles != cyclesBefore {
		// handleInterrupts actually dispatched (pushed pc and jumped to a
		// vector); the 20 cycles it already ticked are this Step's cost.
		c.halted = false
		return 20
	}

	if c.halted {
		if woke {
			c.halted = false
			if !c.interruptsEnabled {
				c.haltBug = true
			}
		} else {
			c.bus.Tick(4)
			c.cycles += 4
			return 4
		}
	}

	if c.eiPending {
		c.eiPending = false
		c.interruptsEnabled = true
	}

	opcode := c.peekOpcode()
	c.currentOpcode = opcode

	if opcode&0xCB00 == 0xCB00 {
		c.pc += 2
	} else {
		c.pc++
	}

	if c.haltBug {
		c.haltBug = false
		c.pc--
	}

	handler := decode(opcode)
	cycles := handler(c)

	c.bus.Tick(cycles)
	c.cycles += uint64(cycles)

	return cycles
}

// handleInterrupts services the highest-priority pending interrupt if IME is
// set, pushing pc and jumping to its vector. It returns true whenever an
// interrupt is pending in IF&IE regardless of IME, since that alone is
// enough to wake the CPU from HALT (the handler itself only runs when IME
// is also enabled).
func (c *CPU) handleInterrupts() bool {
	requested := c.bus.Read(addr.IF)
	enabled := c.bus.Read(addr.IE)
	pending := requested & enabled & 0x1F

	if pending == 0 {
		return false
	}

	if !c.interruptsEnabled {
		return true
	}

	for bit := 0; bit < 5; bit++ {
		if pending&(1<<uint(bit)) == 0 {
			continue
		}

		c.interruptsEnabled = false
		c.bus.Write(addr.IF, requested&^(1<<uint(bit)))

		c.pushStack(c.pc)
		c.bus.Tick(16)
		c.pc = interruptVectors[bit]
		c.bus.Tick(4)

		c.cycles += 20
		return true
	}

	return true
}

func unimplemented(cpu *CPU) int {
	msg := fmt.Sprintf("unimplemented or illegal opcode 0x%X at pc=0x%04X", cpu.currentOpcode, cpu.pc)
	panic(msg)
}
