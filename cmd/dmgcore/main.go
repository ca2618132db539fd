package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/urfave/cli"

	"github.com/valerio/go-jeebie/dmg/timing"
	"github.com/valerio/go-jeebie/frontend/terminal"
	"github.com/valerio/go-jeebie/jeebie"
)

func main() {
	app := cli.NewApp()
	app.Name = "dmgcore"
	app.Description = "A Game Boy (DMG) emulator core"
	app.Usage = "dmgcore [options] <ROM file>"
	app.Version = "1.0.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "rom",
			Usage: "path to the ROM file",
		},
		cli.BoolFlag{
			Name:  "headless",
			Usage: "run without a terminal display",
		},
		cli.IntFlag{
			Name:  "frames",
			Usage: "number of frames to run in headless mode (required for headless)",
			Value: 0,
		},
		cli.BoolFlag{
			Name:  "debug",
			Usage: "enable debug-level logging",
		},
		cli.StringFlag{
			Name:  "save",
			Usage: "battery-save file path (defaults to the ROM path with a .sav extension)",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		slog.Error("dmgcore exited with an error", "error", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.Bool("debug") {
		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
		slog.SetDefault(slog.New(handler))
	}

	romPath := c.String("rom")
	if romPath == "" {
		if c.NArg() > 0 {
			romPath = c.Args().Get(0)
		} else {
			cli.ShowAppHelp(c)
			return errors.New("no ROM path provided")
		}
	}

	emu, err := jeebie.NewWithFile(romPath)
	if err != nil {
		return err
	}

	savePath := c.String("save")
	if savePath == "" {
		savePath = jeebie.SavePath(romPath)
	}

	if c.Bool("headless") {
		return runHeadless(emu, c.Int("frames"), savePath)
	}

	renderer, err := terminal.New(emu, savePath)
	if err != nil {
		return err
	}
	return renderer.Run()
}

func runHeadless(emu *jeebie.Emulator, frames int, savePath string) error {
	if frames <= 0 {
		return errors.New("headless mode requires --frames with a positive value")
	}

	emu.SetFrameLimiter(timing.NewNoOpLimiter())

	for i := 0; i < frames; i++ {
		emu.RunUntilFrame()
		if (i+1)%60 == 0 {
			slog.Info("frame progress", "completed", i+1, "total", frames)
		}
	}

	slog.Info("headless run complete", "frames", frames)

	// A save-file write failure shouldn't take down an otherwise-successful
	// run; the cartridge's RAM is still intact in memory, just not persisted.
	if err := emu.FlushSave(savePath); err != nil {
		slog.Error("failed to flush save file", "path", savePath, "error", err)
	}

	return nil
}
