// Package terminal is a tcell-based host frontend for the emulator core. It
// is the only part of this module allowed to depend on a rendering/windowing
// toolkit; dmg/ and jeebie/ stay toolkit-free so they can be embedded in
// other hosts (headless runners, test harnesses) without pulling in a
// terminal library.
package terminal

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gdamore/tcell/v2"

	"github.com/valerio/go-jeebie/dmg/disasm"
	"github.com/valerio/go-jeebie/dmg/memory"
	"github.com/valerio/go-jeebie/dmg/timing"
	"github.com/valerio/go-jeebie/dmg/video"
	"github.com/valerio/go-jeebie/jeebie"
)

const (
	gameWidth  = video.FramebufferWidth
	gameHeight = video.FramebufferHeight

	registerHeight = 7
	disasmHeight   = 9
	minTermWidth   = 100
	minTermHeight  = 35
)

// shadeChars renders the four DMG palette shades (lightest to darkest) as
// progressively sparser block characters (a full block for the lightest), since a terminal cell can't show
// the real green-tinted hex colors.
var shadeChars = [4]rune{'█', '▓', '▒', '░'}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Renderer drives a tcell screen from an Emulator: input, the game view,
// and a CPU register/disassembly panel for debugging.
type Renderer struct {
	screen   tcell.Screen
	emulator *jeebie.Emulator
	savePath string
	running  bool
}

// New initializes the terminal screen and wraps emu for rendering. savePath
// is flushed with the cartridge's battery RAM whenever the emulator is
// stopped; pass "" to disable save persistence.
func New(emu *jeebie.Emulator, savePath string) (*Renderer, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("initializing terminal: %w", err)
	}
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("initializing terminal: %w", err)
	}

	return &Renderer{
		screen:   screen,
		emulator: emu,
		savePath: savePath,
		running:  true,
	}, nil
}

// Run drives the render/input loop at 60Hz until the user quits or the
// process receives a termination signal. Flushes the save file on exit.
func (r *Renderer) Run() error {
	defer func() {
		r.screen.Fini()
		if r.savePath != "" {
			if err := r.emulator.FlushSave(r.savePath); err != nil {
				slog.Error("failed to flush save", "error", err)
			}
		}
	}()

	r.screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite))
	r.screen.Clear()
	r.emulator.SetFrameLimiter(timing.NewAdaptiveLimiter())

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT)

	go r.handleInput()
	go func() {
		<-signals
		r.running = false
	}()

	for r.running {
		// RunUntilFrame blocks on the adaptive limiter itself, so this loop
		// runs at the real DMG frame rate without a separate ticker.
		r.emulator.RunUntilFrame()
		r.render()
		r.screen.Show()
	}

	return nil
}

func (r *Renderer) handleInput() {
	for r.running {
		ev := r.screen.PollEvent()
		switch ev := ev.(type) {
		case *tcell.EventKey:
			r.handleKey(ev)
		case *tcell.EventResize:
			r.screen.Sync()
		}
	}
}

func (r *Renderer) handleKey(ev *tcell.EventKey) {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		r.running = false
	case tcell.KeyEnter:
		r.emulator.HandleKeyPress(memory.JoypadStart)
	case tcell.KeyRight:
		r.emulator.HandleKeyPress(memory.JoypadRight)
	case tcell.KeyLeft:
		r.emulator.HandleKeyPress(memory.JoypadLeft)
	case tcell.KeyUp:
		r.emulator.HandleKeyPress(memory.JoypadUp)
	case tcell.KeyDown:
		r.emulator.HandleKeyPress(memory.JoypadDown)
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'a':
			r.emulator.HandleKeyPress(memory.JoypadA)
		case 's':
			r.emulator.HandleKeyPress(memory.JoypadB)
		case 'q':
			r.emulator.HandleKeyPress(memory.JoypadSelect)
		case ' ':
			if r.emulator.GetDebuggerState() == jeebie.DebuggerPaused {
				r.emulator.DebuggerResume()
			} else {
				r.emulator.DebuggerPause()
			}
		case 'n':
			r.emulator.DebuggerStepInstruction()
		case 'f':
			r.emulator.DebuggerStepFrame()
		}
	}
}

func (r *Renderer) render() {
	termWidth, termHeight := r.screen.Size()

	if termWidth < minTermWidth || termHeight < minTermHeight {
		r.screen.Clear()
		style := tcell.StyleDefault.Foreground(tcell.ColorRed)
		msg := fmt.Sprintf("Terminal too small! Need at least %dx%d", minTermWidth, minTermHeight)
		for i, ch := range msg {
			r.screen.SetContent(i, termHeight/2, ch, nil, style)
		}
		return
	}

	r.screen.Clear()
	borderX := r.drawBorders(termWidth, termHeight)
	r.drawGame()
	r.drawRegisters(borderX, termHeight)
	r.drawDisassembly(borderX, termWidth, termHeight)
}

func (r *Renderer) drawBorders(termWidth, termHeight int) int {
	borderStyle := tcell.StyleDefault.Foreground(tcell.ColorWhite)
	titleStyle := tcell.StyleDefault.Foreground(tcell.ColorYellow)

	borderX := min(gameWidth+1, termWidth/2)
	if borderX >= termWidth-10 {
		borderX = termWidth - 10
	}

	for y := 0; y < termHeight; y++ {
		if borderX < termWidth {
			r.screen.SetContent(borderX, y, '│', nil, borderStyle)
		}
	}

	registerEndY := registerHeight + 1
	if registerEndY < termHeight {
		for x := borderX + 1; x < termWidth; x++ {
			r.screen.SetContent(x, registerEndY, '─', nil, borderStyle)
		}
		r.screen.SetContent(borderX, registerEndY, '├', nil, borderStyle)
	}

	for i, ch := range " Game Boy " {
		r.screen.SetContent(1+i, 0, ch, nil, titleStyle)
	}
	for i, ch := range " CPU " {
		r.screen.SetContent(borderX+2+i, 0, ch, nil, titleStyle)
	}
	if registerEndY+1 < termHeight {
		for i, ch := range " Disassembly " {
			r.screen.SetContent(borderX+2+i, registerEndY+1, ch, nil, titleStyle)
		}
	}

	return borderX
}

func (r *Renderer) drawGame() {
	fb := r.emulator.GetCurrentFrame()
	frame := fb.ToSlice()
	style := tcell.StyleDefault.Foreground(tcell.ColorWhite)

	for y := 0; y < gameHeight; y++ {
		for x := 0; x < gameWidth; x++ {
			pixel := video.GBColor(frame[y*gameWidth+x])

			shade := 0
			switch pixel {
			case video.Shade0Color:
				shade = 0
			case video.Shade1Color:
				shade = 1
			case video.Shade2Color:
				shade = 2
			case video.Shade3Color:
				shade = 3
			}

			r.screen.SetContent(x, y+1, shadeChars[shade], nil, style)
		}
	}
}

func (r *Renderer) drawRegisters(borderX, termHeight int) {
	cpu := r.emulator.GetCPU()
	startX := borderX + 2
	regStyle := tcell.StyleDefault.Foreground(tcell.ColorGreen)

	lines := []string{
		fmt.Sprintf("A: 0x%02X  F: 0x%02X [%s]", cpu.GetA(), cpu.GetF(), cpu.GetFlagString()),
		fmt.Sprintf("B: 0x%02X  C: 0x%02X", cpu.GetB(), cpu.GetC()),
		fmt.Sprintf("D: 0x%02X  E: 0x%02X", cpu.GetD(), cpu.GetE()),
		fmt.Sprintf("H: 0x%02X  L: 0x%02X", cpu.GetH(), cpu.GetL()),
		fmt.Sprintf("SP: 0x%04X  PC: 0x%04X", cpu.GetSP(), cpu.GetPC()),
		fmt.Sprintf("Frame: %d  Instr: %d", r.emulator.GetFrameCount(), r.emulator.GetInstructionCount()),
	}

	for i, line := range lines {
		y := 1 + i
		if y >= registerHeight+1 || y >= termHeight {
			break
		}
		for x, ch := range line {
			r.screen.SetContent(startX+x, y, ch, nil, regStyle)
		}
	}
}

func (r *Renderer) drawDisassembly(borderX, termWidth, termHeight int) {
	startX := borderX + 2
	startY := registerHeight + 3

	cpu := r.emulator.GetCPU()
	mmu := r.emulator.GetMMU()
	currentPC := cpu.GetPC()

	lines := disasm.DisassembleAround(currentPC, 4, 4, mmu)

	normalStyle := tcell.StyleDefault.Foreground(tcell.ColorGreen)
	currentStyle := tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorBlue)

	for i, line := range lines {
		if i >= disasmHeight || startY+i >= termHeight {
			break
		}

		isCurrent := line.Address == currentPC
		text := disasm.FormatDisassemblyLine(line, isCurrent)
		style := normalStyle
		if isCurrent {
			style = currentStyle
		}

		maxWidth := termWidth - startX - 1
		if len(text) > maxWidth && maxWidth > 3 {
			text = text[:maxWidth-3] + "..."
		}

		for x, ch := range text {
			if startX+x >= termWidth {
				break
			}
			r.screen.SetContent(startX+x, startY+i, ch, nil, style)
		}
	}
}
