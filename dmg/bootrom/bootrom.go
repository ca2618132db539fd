// Package bootrom holds the 256-byte program the DMG executes before
// handing control to the cartridge. It clears video RAM, sets the default
// background palette, turns the LCD on, unmaps itself by writing 1 to
// 0xFF50, and jumps to the cartridge entry point at 0x0100.
//
// This is an original, minimal stand-in for Nintendo's boot ROM, not a
// transcription of it: it skips the logo scroll, the startup chime, and the
// cartridge logo/checksum comparison, since none of those are observable by
// software running after the jump to 0x0100.
package bootrom

// Size is the length of the boot ROM image in bytes, and the extent of the
// address range it overlays (0x0000-0x00FF).
const Size = 256

// Image is the boot program, padded to Size with NOP (0x00).
var Image [Size]byte

func init() {
	program := []byte{
		0x31, 0xFE, 0xFF, // LD SP,0xFFFE
		0xAF,             // XOR A
		0x21, 0xFF, 0x9F, // LD HL,0x9FFF
		// clear VRAM downward from 0x9FFF to 0x8000
		0x32,       // LD (HL-),A
		0xCB, 0x7C, // BIT 7,H
		0x20, 0xFB, // JR NZ,-5 (back to the LD (HL-),A above)
		0x3E, 0xFC, // LD A,0xFC        ; default BG palette
		0xE0, 0x47, // LDH (0xFF47),A   ; BGP
		0x3E, 0x91, // LD A,0x91        ; LCD+BG on, tile data at 0x8000, map at 0x9800
		0xE0, 0x40, // LDH (0xFF40),A   ; LCDC
		0x3E, 0x01, // LD A,0x01
		0xE0, 0x50, // LDH (0xFF50),A   ; unmap the boot ROM
		0xC3, 0x00, 0x01, // JP 0x0100        ; hand off to the cartridge
	}

	copy(Image[:], program)
}
