package memory

import (
	"fmt"
	"log/slog"

	"github.com/valerio/go-jeebie/dmg/bit"
)

const titleLength = 16

const (
	entryPointAddress     = 0x100
	logoAddress           = 0x104
	titleAddress          = 0x134
	manufacturerAddress   = 0x13F
	cgbFlagAddress        = 0x143
	newLicenseCodeAddress = 0x144
	sgbFlagAddress        = 0x146
	cartridgeTypeAddress  = 0x147
	romSizeAddress        = 0x148
	ramSizeAddress        = 0x149
	destinationAddress    = 0x14A
	oldLicenseCodeAddress = 0x14B
	versionNumberAddress  = 0x14C
	headerChecksumAddress = 0x14D
	globalChecksumAddress = 0x14E
)

// MBCType identifies which memory bank controller a cartridge's header
// declares, classified from the cartridge-type byte at 0x147.
type MBCType uint8

const (
	NoMBCType MBCType = iota
	MBC1Type
	MBC1MultiType
	MBC2Type
	MBC3Type
	MBC5Type
	MBCUnknownType
)

// classifyMBC maps the raw cartridge-type byte to the MBC family this core
// supports, along with the battery/RTC/rumble flags packed into the same
// byte on real hardware.
func classifyMBC(cartType uint8) (mbcType MBCType, hasBattery, hasRTC, hasRumble bool) {
	switch cartType {
	case 0x00:
		return NoMBCType, false, false, false
	case 0x01:
		return MBC1Type, false, false, false
	case 0x02:
		return MBC1Type, false, false, false
	case 0x03:
		return MBC1Type, true, false, false
	case 0x05:
		return MBC2Type, false, false, false
	case 0x06:
		return MBC2Type, true, false, false
	case 0x0F:
		return MBC3Type, true, true, false
	case 0x10:
		return MBC3Type, true, true, false
	case 0x11:
		return MBC3Type, false, false, false
	case 0x12:
		return MBC3Type, false, false, false
	case 0x13:
		return MBC3Type, true, false, false
	case 0x19:
		return MBC5Type, false, false, false
	case 0x1A:
		return MBC5Type, false, false, false
	case 0x1B:
		return MBC5Type, true, false, false
	case 0x1C:
		return MBC5Type, false, false, true
	case 0x1D:
		return MBC5Type, false, false, true
	case 0x1E:
		return MBC5Type, true, false, true
	default:
		return MBCUnknownType, false, false, false
	}
}

// romBanksForCode converts the ROM-size header byte into a bank count (each
// bank is 16KB).
func romBanksForCode(code uint8) uint16 {
	if code > 0x08 {
		return 2
	}
	return 2 << code
}

// ramBanksForCode converts the RAM-size header byte into a bank count (each
// bank is 8KB). Code 0x01 is the unofficial 2KB size, treated as a single
// partial bank.
func ramBanksForCode(code uint8) uint8 {
	switch code {
	case 0x00:
		return 0
	case 0x01:
		return 1
	case 0x02:
		return 1
	case 0x03:
		return 4
	case 0x04:
		return 16
	case 0x05:
		return 8
	default:
		return 0
	}
}

// Cartridge holds ROM data and the header-derived metadata that selects and
// sizes its memory bank controller.
type Cartridge struct {
	data []byte

	title          string
	headerChecksum uint16
	globalChecksum uint16
	version        uint8
	cartType       uint8

	mbcType      MBCType
	hasBattery   bool
	hasRTC       bool
	hasRumble    bool
	romBankCount uint16
	ramBankCount uint8
}

// NewCartridge creates an empty cartridge, useful only for debugging purposes.
func NewCartridge() *Cartridge {
	return &Cartridge{
		data:    make([]byte, 0x8000),
		mbcType: NoMBCType,
	}
}

// NewCartridgeWithData initializes a new Cartridge from a slice of bytes,
// parsing the header fields at their fixed offsets. A header checksum
// mismatch is logged, not fatal - real hardware ignores it too.
func NewCartridgeWithData(bytes []byte) *Cartridge {
	cart := &Cartridge{
		data: make([]byte, len(bytes)),
	}
	copy(cart.data, bytes)

	if len(bytes) <= globalChecksumAddress+1 {
		slog.Warn("cartridge data too small to contain a header", "size", len(bytes))
		return cart
	}

	cart.title = cleanGameboyTitle(bytes[titleAddress : titleAddress+titleLength])
	cart.cartType = bytes[cartridgeTypeAddress]
	cart.version = bytes[versionNumberAddress]
	cart.headerChecksum = uint16(bytes[headerChecksumAddress])
	cart.globalChecksum = bit.Combine(bytes[globalChecksumAddress], bytes[globalChecksumAddress+1])

	cart.mbcType, cart.hasBattery, cart.hasRTC, cart.hasRumble = classifyMBC(cart.cartType)
	cart.romBankCount = romBanksForCode(bytes[romSizeAddress])
	cart.ramBankCount = ramBanksForCode(bytes[ramSizeAddress])

	if computed := computeHeaderChecksum(bytes); computed != uint8(cart.headerChecksum) {
		slog.Warn("cartridge header checksum mismatch", "title", cart.title, "computed", computed, "header", cart.headerChecksum)
	}

	slog.Info("loaded cartridge", "title", cart.title, "mbc", cart.mbcType, "romBanks", cart.romBankCount, "ramBanks", cart.ramBankCount, "battery", cart.hasBattery)

	return cart
}

// computeHeaderChecksum replicates the boot ROM's header checksum algorithm
// over bytes 0x134-0x14C.
func computeHeaderChecksum(data []byte) uint8 {
	var checksum uint8
	for i := titleAddress; i <= versionNumberAddress; i++ {
		checksum = checksum - data[i] - 1
	}
	return checksum
}

// ReadByte reads a byte at the specified address. Does not check bounds, so
// the caller must make sure the address is valid for the cartridge.
func (c Cartridge) ReadByte(addr uint16) uint8 {
	return c.data[addr]
}

// Title returns the cartridge's ASCII title as read from its header.
func (c *Cartridge) Title() string { return c.title }

// MBCType returns the memory bank controller classified from the
// cartridge's header byte at 0x147.
func (c *Cartridge) MBCType() MBCType { return c.mbcType }

// Size returns the raw ROM image size in bytes.
func (c *Cartridge) Size() int { return len(c.data) }

// minROMSize is the smallest ROM image a real cartridge can be: two 16KiB
// banks, the minimum a DMG header can describe.
const minROMSize = 0x8000

// Validate reports a non-nil error if the cartridge is too small to be real
// hardware or declares an MBC type this emulator doesn't recognize. Both are
// fatal conditions a host should refuse to boot from, rather than limping
// along with a cartridge that can't possibly behave correctly.
func (c *Cartridge) Validate() error {
	if len(c.data) < minROMSize {
		return fmt.Errorf("malformed ROM: %d bytes is smaller than the minimum cartridge size of %d", len(c.data), minROMSize)
	}
	if c.mbcType == MBCUnknownType {
		return fmt.Errorf("malformed ROM: unrecognized MBC type (cartridge header byte 0x147 = 0x%02X)", c.cartType)
	}
	return nil
}
