// Command gbcore runs a DMG cartridge, either in a window or headless.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"hash/crc32"
	"image"
	"image/png"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kaiolsen/gbcore/internal/cart"
	"github.com/kaiolsen/gbcore/internal/emu"
	"github.com/kaiolsen/gbcore/internal/ui"
)

// fileConfig mirrors the --config JSON schema. Every field is a pointer so
// "not present in the file" and "present but zero-valued" are distinguishable;
// a flag explicitly set on the command line always wins over either.
type fileConfig struct {
	Scale       *int    `json:"scale"`
	Title       *string `json:"title"`
	Palette     *string `json:"palette"`
	ROMsDir     *string `json:"romsDir"`
	Trace       *bool   `json:"trace"`
	TraceFile   *string `json:"traceFile"`
	SaveBattery *bool   `json:"saveBattery"`
}

func loadFileConfig(path string) (fileConfig, error) {
	var fc fileConfig
	if path == "" {
		return fc, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parse config: %w", err)
	}
	return fc, nil
}

type settings struct {
	scale       int
	title       string
	palette     string
	romsDir     string
	trace       bool
	traceFile   string
	saveBattery bool

	step     bool
	breakHex string

	bootROM string

	headless bool
	frames   int
	pngOut   string
	expect   string
}

func parseArgs(args []string) (romPath string, s settings, err error) {
	fs := flag.NewFlagSet("gbcore", flag.ContinueOnError)

	var configPath string
	fs.StringVar(&configPath, "config", "", "JSON config path; flags override values it sets explicitly")
	fs.IntVar(&s.scale, "scale", 3, "window scale")
	fs.StringVar(&s.title, "title", "gbcore", "window title")
	fs.StringVar(&s.palette, "palette", "green", "frame sink palette: green or grayscale")
	fs.StringVar(&s.romsDir, "roms-dir", "", "default ROM browse directory (carried by the UI)")
	fs.BoolVar(&s.trace, "print-cpu", false, "print a doctor-format trace line per executed instruction")
	fs.StringVar(&s.traceFile, "trace-file", "", "write the CPU trace here instead of stdout")
	fs.BoolVar(&s.saveBattery, "save", true, "persist battery RAM to ROM.sav on exit and load on start")
	fs.BoolVar(&s.step, "step", false, "execute exactly one instruction, print its trace line and registers, then exit")
	fs.StringVar(&s.breakHex, "break", "", "hex PC to run to before stopping (e.g. 0x0150)")
	fs.StringVar(&s.bootROM, "bootrom", "", "optional DMG boot ROM image")
	fs.BoolVar(&s.headless, "headless", false, "run without a window")
	fs.IntVar(&s.frames, "frames", 300, "frames to run in headless mode")
	fs.StringVar(&s.pngOut, "outpng", "", "write the last framebuffer to a PNG at this path")
	fs.StringVar(&s.expect, "expect", "", "assert the framebuffer's CRC32 (hex) in headless mode")
	if err = fs.Parse(args); err != nil {
		return "", s, err
	}

	fc, err := loadFileConfig(configPath)
	if err != nil {
		return "", s, err
	}
	explicit := map[string]bool{}
	fs.Visit(func(fl *flag.Flag) { explicit[fl.Name] = true })

	if fc.Scale != nil && !explicit["scale"] {
		s.scale = *fc.Scale
	}
	if fc.Title != nil && !explicit["title"] {
		s.title = *fc.Title
	}
	if fc.Palette != nil && !explicit["palette"] {
		s.palette = *fc.Palette
	}
	if fc.ROMsDir != nil && !explicit["roms-dir"] {
		s.romsDir = *fc.ROMsDir
	}
	if fc.Trace != nil && !explicit["print-cpu"] {
		s.trace = *fc.Trace
	}
	if fc.TraceFile != nil && !explicit["trace-file"] {
		s.traceFile = *fc.TraceFile
	}
	if fc.SaveBattery != nil && !explicit["save"] {
		s.saveBattery = *fc.SaveBattery
	}

	if fs.NArg() > 0 {
		romPath = fs.Arg(0)
	}
	return romPath, s, nil
}

func savPath(romPath string) string {
	return strings.TrimSuffix(romPath, ".gb") + ".sav"
}

func readBootROM(path string) []byte {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("read boot ROM: %v", err)
	}
	return data
}

func main() {
	romPath, s, err := parseArgs(os.Args[1:])
	if err != nil {
		os.Exit(1)
	}
	if romPath == "" {
		fmt.Fprintln(os.Stderr, "usage: gbcore [flags] <rom.gb>")
		os.Exit(1)
	}

	emuCfg := emu.Config{
		Trace:       s.trace,
		TraceFile:   s.traceFile,
		Palette:     emu.ParsePalette(s.palette),
		SaveBattery: s.saveBattery,
	}
	m := emu.New(emuCfg)
	defer m.Close()

	boot := readBootROM(s.bootROM)
	if err := m.LoadROMFromFileWithBoot(romPath, boot); err != nil {
		log.Printf("load cartridge: %v", describeLoadError(err))
		os.Exit(1)
	}

	if s.saveBattery {
		if data, err := os.ReadFile(savPath(romPath)); err == nil {
			m.LoadBattery(data)
		}
	}
	defer func() {
		if !s.saveBattery {
			return
		}
		if data, ok := m.SaveBattery(); ok {
			_ = os.WriteFile(savPath(romPath), data, 0644)
		}
	}()

	if s.step {
		os.Exit(runStep(m))
	}
	if s.breakHex != "" {
		os.Exit(runBreak(m, s.breakHex))
	}
	if s.headless {
		if err := runHeadless(m, s.frames, s.pngOut, s.expect); err != nil {
			log.Print(err)
			os.Exit(2)
		}
		return
	}

	uiCfg := ui.Config{Title: s.title, Scale: s.scale, Palette: emuCfg.Palette, ROMsDir: s.romsDir}
	app := ui.NewApp(uiCfg, m)
	if err := app.Run(); err != nil {
		log.Print(err)
		os.Exit(2)
	}
}

func describeLoadError(err error) error {
	switch err {
	case cart.ErrBadHeader:
		return fmt.Errorf("bad cartridge header: %w", err)
	case cart.ErrUnsupportedMBC:
		return fmt.Errorf("unsupported cartridge type: %w", err)
	default:
		return err
	}
}

func parseBreakHex(s string) (uint16, error) {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid --break value %q: %w", s, err)
	}
	return uint16(v), nil
}

func runStep(m *emu.Machine) int {
	if err := m.StepOne(os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	return 0
}

// maxBreakSteps bounds a --break run so a PC that's never reached (a typo,
// or a ROM that never gets there) still terminates instead of hanging forever.
const maxBreakSteps = 100_000_000

func runBreak(m *emu.Machine, breakHex string) int {
	breakAt, err := parseBreakHex(breakHex)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	steps, err := m.RunUntilBreak(breakAt, maxBreakSteps, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if steps >= maxBreakSteps {
		fmt.Fprintf(os.Stderr, "never reached PC=%04X after %d instructions\n", breakAt, steps)
		return 2
	}
	return 0
}

func runHeadless(m *emu.Machine, frames int, pngPath, expectCRC string) error {
	if frames <= 0 {
		frames = 1
	}
	start := time.Now()
	for i := 0; i < frames; i++ {
		if err := m.StepFrame(); err != nil {
			return err
		}
	}
	dur := time.Since(start)

	fb := m.Framebuffer()
	crc := crc32.ChecksumIEEE(fb)
	fps := float64(frames) / dur.Seconds()
	log.Printf("headless: frames=%d elapsed=%s fps=%.2f fb_crc32=%08x",
		frames, dur.Truncate(time.Millisecond), fps, crc)

	if pngPath != "" {
		if err := saveFramePNG(fb, 160, 144, pngPath); err != nil {
			return fmt.Errorf("write PNG: %w", err)
		}
		log.Printf("wrote %s", pngPath)
	}
	if expectCRC != "" {
		want := strings.TrimPrefix(strings.ToLower(expectCRC), "0x")
		got := fmt.Sprintf("%08x", crc)
		if got != want {
			return fmt.Errorf("checksum mismatch: got %s, want %s", got, want)
		}
	}
	return nil
}

func saveFramePNG(pix []byte, w, h int, path string) error {
	img := &image.RGBA{
		Pix:    append([]byte(nil), pix...),
		Stride: 4 * w,
		Rect:   image.Rect(0, 0, w, h),
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
