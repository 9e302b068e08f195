package ppu

// ScreenWidth and ScreenHeight are the DMG's fixed visible resolution.
const (
	ScreenWidth  = 160
	ScreenHeight = 144
)

// Frame is a completed picture: one post-palette 2-bit color index per pixel,
// row-major. Palette application (classic green / grayscale) is a host
// concern and never happens inside the PPU.
type Frame [ScreenHeight][ScreenWidth]byte

func (p *PPU) renderScanline() {
	ly := p.ly
	if ly >= ScreenHeight {
		return
	}
	bgEnabled := p.lcdc&0x01 != 0

	var bgMapBase uint16 = 0x9800
	if p.lcdc&0x08 != 0 {
		bgMapBase = 0x9C00
	}
	tileData8000 := p.lcdc&0x10 != 0

	var bgRow [160]byte
	if bgEnabled {
		bgRow = RenderBGScanlineUsingFetcher(p, bgMapBase, tileData8000, p.scx, p.scy, ly)
	}

	windowEnabled := bgEnabled && p.lcdc&0x20 != 0 && int(p.wx) <= 166 && p.wy <= ly
	var winRow [160]byte
	wxStart := int(p.wx) - 7
	if windowEnabled {
		var winMapBase uint16 = 0x9800
		if p.lcdc&0x40 != 0 {
			winMapBase = 0x9C00
		}
		winRow = RenderWindowScanlineUsingFetcher(p, winMapBase, tileData8000, wxStart, p.windowLine)
		p.windowDrawnThisLine = true
	}

	sprites := renderSpriteScanline(&p.tiles, &p.oam, p.lcdc, ly)

	for x := 0; x < ScreenWidth; x++ {
		bgIdx := byte(0)
		if bgEnabled {
			bgIdx = bgRow[x]
			if windowEnabled && x >= wxStart {
				bgIdx = winRow[x]
			}
		}
		out := applyPalette(p.bgp, bgIdx)

		sp := sprites[x]
		if sp.opaque && (!sp.bgPriority || bgIdx == 0) {
			pal := p.obp0
			if sp.usePal1 {
				pal = p.obp1
			}
			out = applyPalette(pal, sp.colorIndex)
		}
		p.frame[ly][x] = out
	}
}

// Read implements VRAMReader for the fetcher, scoped to this PPU's VRAM.
func (p *PPU) Read(addr uint16) byte {
	if addr >= 0x8000 && addr <= 0x9FFF {
		return p.vram[addr-0x8000]
	}
	return 0xFF
}

// FrameReady reports whether a full frame has been produced since the last TakeFrame.
func (p *PPU) FrameReady() bool { return p.frameReady }

// TakeFrame returns the last completed frame and clears the ready flag.
func (p *PPU) TakeFrame() Frame {
	p.frameReady = false
	return p.frame
}
