// Package ui implements the minimal ebiten-backed frame sink: a window that
// blits the palette-mapped 160x144 frame, reads keyboard input into the
// 8-button joypad mask, and offers pause/frame-step/palette-toggle/quicksave.
// It has no reset control.
package ui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/kaiolsen/gbcore/internal/emu"
)

// gbFPS is the DMG's true frame rate: 4194304 Hz / 70224 cycles per frame.
const gbFPS = 4194304.0 / 70224.0

// App drives one Machine inside an ebiten window.
type App struct {
	cfg Config
	m   *emu.Machine
	tex *ebiten.Image

	paused bool

	lastTime time.Time
	frameAcc float64

	toastMsg   string
	toastUntil time.Time
}

// NewApp wires cfg's window settings and palette into a fresh App. If m has
// no cartridge loaded, Run will still open a window; the screen stays blank
// until a cartridge is loaded out of band.
func NewApp(cfg Config, m *emu.Machine) *App {
	cfg.Defaults()
	ebiten.SetWindowTitle(windowTitle(cfg, m))
	ebiten.SetWindowSize(160*cfg.Scale, 144*cfg.Scale)
	if m != nil {
		m.SetPalette(cfg.Palette)
	}
	return &App{cfg: cfg, m: m, lastTime: time.Now()}
}

func windowTitle(cfg Config, m *emu.Machine) string {
	if m == nil || m.ROMTitle() == "" {
		return cfg.Title
	}
	return fmt.Sprintf("%s - [%s]", cfg.Title, m.ROMTitle())
}

// Run starts the ebiten game loop. It returns once the window is closed.
func (a *App) Run() error { return ebiten.RunGame(a) }

func readButtons() emu.Buttons {
	var b emu.Buttons
	b.Right = ebiten.IsKeyPressed(ebiten.KeyRight)
	b.Left = ebiten.IsKeyPressed(ebiten.KeyLeft)
	b.Up = ebiten.IsKeyPressed(ebiten.KeyUp)
	b.Down = ebiten.IsKeyPressed(ebiten.KeyDown)
	b.A = ebiten.IsKeyPressed(ebiten.KeyZ)
	b.B = ebiten.IsKeyPressed(ebiten.KeyX)
	b.Start = ebiten.IsKeyPressed(ebiten.KeyEnter)
	b.Select = ebiten.IsKeyPressed(ebiten.KeyShiftRight)
	return b
}

func (a *App) quicksavePath() string {
	rom := a.m.ROMPath()
	if rom == "" {
		return ""
	}
	return strings.TrimSuffix(rom, filepath.Ext(rom)) + ".state"
}

func (a *App) Update() error {
	a.m.SetButtons(readButtons())

	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		a.paused = !a.paused
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF11) {
		ebiten.SetFullscreen(!ebiten.IsFullscreen())
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyO) {
		next := emu.PaletteGreen
		if a.m.Palette() == emu.PaletteGreen {
			next = emu.PaletteGrayscale
		}
		a.m.SetPalette(next)
		a.toast("Palette: " + next.String())
	}
	if a.paused && inpututil.IsKeyJustPressed(ebiten.KeyN) {
		if err := a.m.StepFrame(); err != nil {
			return err
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF5) {
		if path := a.quicksavePath(); path != "" {
			if err := a.m.SaveStateToFile(path); err == nil {
				a.toast("Saved state")
			} else {
				a.toast("Save failed: " + err.Error())
			}
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF9) {
		if path := a.quicksavePath(); path != "" {
			if err := a.m.LoadStateFromFile(path); err == nil {
				a.toast("Loaded state")
			} else {
				a.toast("Load failed: " + err.Error())
			}
		}
	}

	if a.paused {
		a.lastTime = time.Now()
		return nil
	}

	now := time.Now()
	dt := now.Sub(a.lastTime).Seconds()
	if dt < 0 {
		dt = 0
	}
	a.lastTime = now
	a.frameAcc += dt * gbFPS
	for steps := 0; a.frameAcc >= 1.0 && steps < 10; steps++ {
		if err := a.m.StepFrame(); err != nil {
			return err
		}
		a.frameAcc -= 1.0
	}
	return nil
}

func (a *App) Draw(screen *ebiten.Image) {
	if a.tex == nil {
		a.tex = ebiten.NewImage(160, 144)
	}
	a.tex.WritePixels(a.m.Framebuffer())
	screen.DrawImage(a.tex, nil)

	if a.toastMsg != "" && time.Now().Before(a.toastUntil) {
		ebitenutil.DebugPrintAt(screen, a.toastMsg, 6, 4)
	}
}

func (a *App) Layout(outsideWidth, outsideHeight int) (int, int) { return 160, 144 }

func (a *App) toast(msg string) {
	a.toastMsg = msg
	a.toastUntil = time.Now().Add(2 * time.Second)
}
