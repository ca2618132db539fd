package jeebie

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/valerio/go-jeebie/dmg/memory"
)

func TestNew_NoCartridge(t *testing.T) {
	e := New()
	assert.NotNil(t, e.GetCPU())
	assert.NotNil(t, e.GetMMU())
	assert.Equal(t, uint64(0), e.GetFrameCount())
}

func TestRunUntilFrame_AdvancesFrameCount(t *testing.T) {
	e := New()
	e.RunUntilFrame()
	assert.Equal(t, uint64(1), e.GetFrameCount())
	assert.True(t, e.GetInstructionCount() > 0)
}

func TestDebugger_PauseStopsExecution(t *testing.T) {
	e := New()
	e.DebuggerPause()
	e.RunUntilFrame()
	assert.Equal(t, uint64(0), e.GetFrameCount())
}

func TestDebugger_StepInstructionRunsExactlyOne(t *testing.T) {
	e := New()
	e.DebuggerStepInstruction()
	before := e.GetInstructionCount()
	e.RunUntilFrame()
	assert.Equal(t, before+1, e.GetInstructionCount())
	assert.Equal(t, DebuggerPaused, e.GetDebuggerState())
}

func TestDebugger_StepFrameRunsExactlyOneFrame(t *testing.T) {
	e := New()
	e.DebuggerStepFrame()
	e.RunUntilFrame()
	assert.Equal(t, uint64(1), e.GetFrameCount())
	assert.Equal(t, DebuggerPaused, e.GetDebuggerState())
}

func TestHandleKeyPressRelease(t *testing.T) {
	e := New()
	e.HandleKeyPress(memory.JoypadA)
	e.mmu.Write(0xFF00, 0x10)
	assert.Equal(t, uint8(0xD0|0x0E), e.mmu.Read(0xFF00))

	e.HandleKeyRelease(memory.JoypadA)
	assert.Equal(t, uint8(0xD0|0x0F), e.mmu.Read(0xFF00))
}

func TestSavePath(t *testing.T) {
	assert.Equal(t, "/roms/zelda.sav", SavePath("/roms/zelda.gb"))
	assert.Equal(t, "/roms/zelda.sav", SavePath("/roms/zelda.gbc"))
	assert.Equal(t, "noext.sav", SavePath("noext"))
}

func TestNewWithCartridge_BootsThroughBootROM(t *testing.T) {
	mmu := memory.NewWithCartridge(memory.NewCartridge())
	e := newEmulator(mmu)

	assert.True(t, mmu.BootROMActive())
	assert.Equal(t, uint16(0x0000), e.GetCPU().GetPC())
}

func TestRunUntilFrame_UnmapsBootROMDuringExecution(t *testing.T) {
	e := New()

	for i := 0; i < 5 && e.GetMMU().BootROMActive(); i++ {
		e.RunUntilFrame()
	}

	assert.False(t, e.GetMMU().BootROMActive())
	assert.True(t, e.GetCPU().GetPC() >= 0x0100)
}

func TestLoadSave_NoBatteryIsNoOp(t *testing.T) {
	e := New()
	err := e.LoadSave(filepath.Join(t.TempDir(), "missing.sav"))
	assert.NoError(t, err)
}

func TestFlushSaveAndLoadSave_RoundTrip(t *testing.T) {
	rom := make([]byte, 0x8000)
	rom[0x147] = 0x03 // MBC1+RAM+BATTERY
	rom[0x148] = 0x00 // 32KB ROM (2 banks)
	rom[0x149] = 0x02 // 8KB RAM

	mmu := memory.NewWithCartridge(memory.NewCartridgeWithData(rom))
	e := newEmulator(mmu)
	assert.True(t, e.GetMMU().HasBattery())

	e.mmu.Write(0x0000, 0x0A) // RAM enable latch
	e.mmu.Write(0xA000, 0x42)

	path := filepath.Join(t.TempDir(), "save.sav")
	err := e.FlushSave(path)
	assert.NoError(t, err)

	data, err := os.ReadFile(path)
	assert.NoError(t, err)
	assert.Equal(t, byte(0x42), data[0])

	e2 := newEmulator(memory.NewWithCartridge(memory.NewCartridgeWithData(rom)))
	assert.NoError(t, e2.LoadSave(path))
	assert.Equal(t, []byte(data), e2.mmu.SaveRAM())
}
