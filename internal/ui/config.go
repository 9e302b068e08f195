package ui

import "github.com/kaiolsen/gbcore/internal/emu"

// Config contains window/frame-sink settings.
type Config struct {
	Title   string      // window title
	Scale   int         // integer upscaling factor
	Palette emu.Palette // host palette applied to the frame before display
	ROMsDir string      // default directory for future ROM-browsing front ends
}

// Defaults fills missing fields with reasonable defaults.
func (c *Config) Defaults() {
	if c.Title == "" {
		c.Title = "gbcore"
	}
	if c.Scale <= 0 {
		c.Scale = 3
	}
}
