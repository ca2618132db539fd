package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/valerio/go-jeebie/dmg/addr"
	"github.com/valerio/go-jeebie/dmg/bootrom"
)

func TestMMU_DMATransfer(t *testing.T) {
	mmu := New()

	for i := range uint16(160) {
		mmu.Write(0xC000+i, uint8(i+1))
	}

	mmu.Write(addr.DMA, 0xC0)

	// A DMA byte copies every 4 T-cycles; after fewer than 4 cycles nothing
	// should have landed in OAM yet.
	mmu.Tick(3)
	assert.Equal(t, uint8(0), mmu.Read(0xFE00))

	mmu.Tick(1)
	assert.Equal(t, uint8(1), mmu.Read(0xFE00))

	// Advance the remaining 159 bytes.
	mmu.Tick(159 * 4)
	for i := range uint16(160) {
		assert.Equalf(t, uint8(i+1), mmu.Read(0xFE00+i), "OAM[%d]", i)
	}
	assert.False(t, mmu.dma.active)
}

func TestMMU_DMARestartIsIdempotent(t *testing.T) {
	mmu := New()
	mmu.Write(0xC000, 0xAA)
	mmu.Write(0xD000, 0xBB)

	mmu.Write(addr.DMA, 0xC0)
	mmu.Tick(20) // partially through the C000 transfer

	mmu.Write(addr.DMA, 0xD0)
	assert.Equal(t, 0, mmu.dma.index)
	assert.Equal(t, uint16(0xD000), mmu.dma.source)

	mmu.Tick(160 * 4)
	assert.Equal(t, uint8(0xBB), mmu.Read(0xFE00))
}

func TestMMU_RegionRouting(t *testing.T) {
	mmu := New()

	mmu.Write(0x8000, 0x11)
	assert.Equal(t, uint8(0x11), mmu.Read(0x8000))

	mmu.Write(0xC000, 0x22)
	assert.Equal(t, uint8(0x22), mmu.Read(0xC000))
	// Echo RAM mirrors 0xC000-0xDDFF at 0xE000-0xFDFF.
	assert.Equal(t, uint8(0x22), mmu.Read(0xE000))

	mmu.Write(0xFF80, 0x33)
	assert.Equal(t, uint8(0x33), mmu.Read(0xFF80))
}

func TestMMU_RequestInterrupt(t *testing.T) {
	mmu := New()

	mmu.RequestInterrupt(addr.VBlankInterrupt)
	assert.Equal(t, uint8(0xE1), mmu.Read(addr.IF))

	mmu.RequestInterrupt(addr.TimerInterrupt)
	assert.Equal(t, uint8(0xE5), mmu.Read(addr.IF))
}

func TestMMU_JoypadSelection(t *testing.T) {
	mmu := New()

	mmu.HandleKeyPress(JoypadA)
	mmu.Write(addr.P1, 0x10) // select button group (bit 5 low, bit 4 high)
	assert.Equal(t, uint8(0xD0|0x0E), mmu.Read(addr.P1))

	mmu.HandleKeyRelease(JoypadA)
	assert.Equal(t, uint8(0xD0|0x0F), mmu.Read(addr.P1))
}

func TestMMU_BootROMOverlayActiveAfterCartridgeLoad(t *testing.T) {
	rom := make([]byte, minROMSize)
	rom[0x0000] = 0xAA
	rom[0x0147] = 0x00 // NoMBC

	mmu := NewWithCartridge(NewCartridgeWithData(rom))

	assert.True(t, mmu.BootROMActive())
	assert.Equal(t, bootrom.Image[0x00], mmu.Read(0x0000))
	assert.NotEqual(t, uint8(0xAA), mmu.Read(0x0000))
}

func TestMMU_BootROMHandoffUnmapsOverlay(t *testing.T) {
	rom := make([]byte, minROMSize)
	rom[0x0000] = 0xAA
	rom[0x0147] = 0x00 // NoMBC

	mmu := NewWithCartridge(NewCartridgeWithData(rom))

	mmu.Write(addr.BootROMDisable, 1)

	assert.False(t, mmu.BootROMActive())
	assert.Equal(t, uint8(0xAA), mmu.Read(0x0000))
}

func TestMMU_BootROMDisableIgnoresZero(t *testing.T) {
	mmu := NewWithCartridge(NewCartridgeWithData(make([]byte, minROMSize)))

	mmu.Write(addr.BootROMDisable, 0)

	assert.True(t, mmu.BootROMActive())
}

func TestMMU_NoCartridgeHasNoBootROMOverlay(t *testing.T) {
	mmu := New()
	assert.False(t, mmu.BootROMActive())
}
