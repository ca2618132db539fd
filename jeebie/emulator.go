// Package jeebie wires the CPU, PPU, APU and memory core together into a
// runnable emulator: the run loop, joypad input, and battery-RAM save/load
// live here, one layer above the hardware packages in dmg/.
package jeebie

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/valerio/go-jeebie/dmg/cpu"
	"github.com/valerio/go-jeebie/dmg/memory"
	"github.com/valerio/go-jeebie/dmg/timing"
	"github.com/valerio/go-jeebie/dmg/video"
)

// CyclesPerFrame is the number of T-cycles the DMG spends producing one
// 160x144 frame (70224, the length of one full scan of all 154 lines).
const CyclesPerFrame = timing.CyclesPerFrame

// DebuggerState controls whether RunUntilFrame executes freely or is
// single-stepping under operator control.
type DebuggerState int

const (
	DebuggerRunning DebuggerState = iota
	DebuggerPaused
	DebuggerStep
	DebuggerStepFrame
)

// Emulator is the root struct tying together the CPU, PPU, APU and MMU of a
// single DMG instance, plus the run-loop/debugger bookkeeping around them.
type Emulator struct {
	cpu *cpu.CPU
	gpu *video.GPU
	mmu *memory.MMU

	limiter timing.Limiter

	debuggerMutex    sync.RWMutex
	debuggerState    DebuggerState
	stepRequested    bool
	frameRequested   bool
	instructionCount uint64
	frameCount       uint64
}

func newEmulator(mmu *memory.MMU) *Emulator {
	newCPU := cpu.New
	if mmu.BootROMActive() {
		newCPU = cpu.NewForBootROM
		slog.Debug("boot ROM overlay active, starting execution at 0x0000")
	}

	return &Emulator{
		cpu:     newCPU(mmu),
		gpu:     video.NewGpu(mmu),
		mmu:     mmu,
		limiter: timing.NewNoOpLimiter(),
	}
}

// New creates an emulator with no cartridge loaded, equivalent to turning on
// a DMG with an empty cartridge slot.
func New() *Emulator {
	return newEmulator(memory.NewWithCartridge(memory.NewCartridge()))
}

// NewWithFile loads the ROM at path and returns an emulator ready to run it.
// If the cartridge declares battery-backed RAM and a save file exists next
// to the ROM (same path, .sav extension), it is loaded automatically.
func NewWithFile(path string) (*Emulator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading ROM %q: %w", path, err)
	}

	slog.Debug("loaded ROM data", "path", path, "size", len(data))

	cart := memory.NewCartridgeWithData(data)
	if err := cart.Validate(); err != nil {
		return nil, fmt.Errorf("loading ROM %q: %w", path, err)
	}

	mmu := memory.NewWithCartridge(cart)
	e := newEmulator(mmu)

	if mmu.HasBattery() {
		if err := e.LoadSave(SavePath(path)); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to load save file", "path", SavePath(path), "error", err)
		}
	}

	return e, nil
}

// SavePath derives the conventional battery-save path for a ROM file: the
// same path with its extension replaced by .sav.
func SavePath(romPath string) string {
	ext := ""
	for i := len(romPath) - 1; i >= 0 && romPath[i] != '/'; i-- {
		if romPath[i] == '.' {
			ext = romPath[i:]
			break
		}
	}
	return romPath[:len(romPath)-len(ext)] + ".sav"
}

// LoadSave reads a battery-RAM save file from path into the cartridge's MBC,
// if the cartridge has battery-backed RAM at all.
func (e *Emulator) LoadSave(path string) error {
	if !e.mmu.HasBattery() {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	e.mmu.LoadRAM(data)
	slog.Info("loaded save RAM", "path", path, "size", len(data))
	return nil
}

// FlushSave writes the cartridge's battery-RAM to path, if it has any worth
// persisting. Safe to call on every frame; it is a no-op for cartridges
// without battery backup.
func (e *Emulator) FlushSave(path string) error {
	ram := e.mmu.SaveRAM()
	if ram == nil {
		return nil
	}
	if err := os.WriteFile(path, ram, 0o644); err != nil {
		return fmt.Errorf("writing save %q: %w", path, err)
	}
	return nil
}

// SetFrameLimiter installs the timing source RunUntilFrame blocks on between
// frames. Defaults to a no-op limiter (headless/benchmarked runs).
func (e *Emulator) SetFrameLimiter(limiter timing.Limiter) {
	e.limiter = limiter
}

// ResetFrameTiming resets the installed frame limiter's internal clock,
// useful right after a debugger pause/resume so the next frame isn't rushed
// to make up for lost wall-clock time.
func (e *Emulator) ResetFrameTiming() {
	e.limiter.Reset()
}

// RunUntilFrame executes CPU instructions, ticking the PPU and APU alongside
// every one, until a full frame (70224 cycles) has elapsed - or performs
// whatever the debugger's current single-step mode asks for instead.
// Respects the installed frame limiter's pacing.
func (e *Emulator) RunUntilFrame() {
	switch e.getDebuggerState() {
	case DebuggerPaused:
		return
	case DebuggerStep:
		e.debuggerMutex.Lock()
		requested := e.stepRequested
		e.stepRequested = false
		e.debuggerMutex.Unlock()
		if requested {
			e.step()
			e.SetDebuggerState(DebuggerPaused)
		}
		return
	case DebuggerStepFrame:
		e.debuggerMutex.Lock()
		requested := e.frameRequested
		e.frameRequested = false
		e.debuggerMutex.Unlock()
		if requested {
			e.runFrame()
			e.SetDebuggerState(DebuggerPaused)
		}
		return
	}

	e.limiter.WaitForNextFrame()
	e.runFrame()
}

func (e *Emulator) runFrame() {
	total := 0
	for total < CyclesPerFrame {
		total += e.step()
	}
	e.frameCount++
	if e.frameCount%60 == 0 {
		slog.Debug("frame completed", "frame", e.frameCount, "pc", fmt.Sprintf("0x%04X", e.cpu.PC()))
	}
}

// step executes a single CPU instruction (or interrupt dispatch, or one HALT
// idle tick) and keeps the PPU/APU in lockstep with the cycles it consumed.
// CPU.Step already ticks the MMU (timer/serial/OAM DMA) itself.
func (e *Emulator) step() int {
	wasBooting := e.mmu.BootROMActive()

	cycles := e.cpu.Step()
	e.gpu.Tick(cycles)
	e.mmu.APU.Tick(cycles)
	e.instructionCount++

	if wasBooting && !e.mmu.BootROMActive() {
		slog.Debug("boot ROM handoff", "pc", fmt.Sprintf("0x%04X", e.cpu.GetPC()), "instructions", e.instructionCount)
	}

	return cycles
}

func (e *Emulator) GetCurrentFrame() *video.FrameBuffer {
	return e.gpu.GetFrameBuffer()
}

func (e *Emulator) HandleKeyPress(key memory.JoypadKey) {
	e.mmu.HandleKeyPress(key)
}

func (e *Emulator) HandleKeyRelease(key memory.JoypadKey) {
	e.mmu.HandleKeyRelease(key)
}

func (e *Emulator) GetCPU() *cpu.CPU    { return e.cpu }
func (e *Emulator) GetMMU() *memory.MMU { return e.mmu }

func (e *Emulator) GetInstructionCount() uint64 { return e.instructionCount }
func (e *Emulator) GetFrameCount() uint64       { return e.frameCount }

func (e *Emulator) SetDebuggerState(state DebuggerState) {
	e.debuggerMutex.Lock()
	defer e.debuggerMutex.Unlock()
	e.debuggerState = state
	slog.Debug("debugger state changed", "state", state)
}

func (e *Emulator) getDebuggerState() DebuggerState {
	e.debuggerMutex.RLock()
	defer e.debuggerMutex.RUnlock()
	return e.debuggerState
}

func (e *Emulator) GetDebuggerState() DebuggerState { return e.getDebuggerState() }

func (e *Emulator) DebuggerPause() { e.SetDebuggerState(DebuggerPaused) }

func (e *Emulator) DebuggerResume() {
	e.SetDebuggerState(DebuggerRunning)
	e.ResetFrameTiming()
}

func (e *Emulator) DebuggerStepInstruction() {
	e.debuggerMutex.Lock()
	defer e.debuggerMutex.Unlock()
	e.stepRequested = true
	e.debuggerState = DebuggerStep
}

func (e *Emulator) DebuggerStepFrame() {
	e.debuggerMutex.Lock()
	defer e.debuggerMutex.Unlock()
	e.frameRequested = true
	e.debuggerState = DebuggerStepFrame
}
