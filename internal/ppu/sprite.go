package ppu

import "sort"

// object is one decoded OAM entry.
type object struct {
	y, x, tile, attr byte
	oamIndex         int
}

func (o object) xFlip() bool    { return o.attr&0x20 != 0 }
func (o object) yFlip() bool    { return o.attr&0x40 != 0 }
func (o object) priority() bool { return o.attr&0x80 != 0 } // true: BG colors 1-3 drawn over sprite
func (o object) palette1() bool { return o.attr&0x10 != 0 } // true: OBP1, false: OBP0

// decodeObjects reads all 40 OAM entries.
func decodeObjects(oam *[0xA0]byte) [40]object {
	var objs [40]object
	for i := 0; i < 40; i++ {
		base := i * 4
		objs[i] = object{
			y:        oam[base+0],
			x:        oam[base+1],
			tile:     oam[base+2],
			attr:     oam[base+3],
			oamIndex: i,
		}
	}
	return objs
}

// selectForScanline picks up to 10 objects visible on scanline ly, given
// object height (8 or 16), preserving OAM order on ties.
func selectForScanline(objs *[40]object, ly byte, height int) []object {
	var hits []object
	for _, o := range objs {
		topY := int(o.y) - 16
		if int(ly) >= topY && int(ly) < topY+height {
			hits = append(hits, o)
			if len(hits) == 40 {
				break
			}
		}
	}
	if len(hits) > 10 {
		hits = hits[:10]
	}
	// Stable sort by X ascending; OAM index (insertion order) breaks ties.
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].x < hits[j].x })
	return hits
}

// spritePixel is the decoded color/priority state of one sprite pixel
// candidate at a given screen X, used by the compositor to resolve overlap
// with the background/window layer.
type spritePixel struct {
	colorIndex byte // raw 2-bit index (0-3); renderScanline maps it through OBP0/OBP1
	opaque     bool
	bgPriority bool // true: background colors 1-3 win over this sprite
	usePal1    bool
}

// renderSpriteScanline composites the object layer for one scanline into a
// 160-wide row of spritePixel, already applying the first-opaque-match (by
// the post-sort X order, i.e. leftmost/lowest-OAM-index wins overlaps) rule.
func renderSpriteScanline(tc *tileCache, oam *[0xA0]byte, lcdc, ly byte) [160]spritePixel {
	var out [160]spritePixel
	if lcdc&0x02 == 0 { // OBJ display disabled
		return out
	}
	height := 8
	if lcdc&0x04 != 0 {
		height = 16
	}
	objs := decodeObjects(oam)
	hits := selectForScanline(&objs, ly, height)

	var drawn [160]bool
	for _, o := range hits {
		topY := int(o.y) - 16
		lineInSprite := int(ly) - topY
		if o.yFlip() {
			lineInSprite = height - 1 - lineInSprite
		}
		tileNum := o.tile
		if height == 16 {
			tileNum &^= 0x01
			if lineInSprite >= 8 {
				tileNum |= 0x01
				lineInSprite -= 8
			}
		}
		rowPixels := tc.row(tileNum, lineInSprite)
		for px := 0; px < 8; px++ {
			screenX := int(o.x) - 8 + px
			if screenX < 0 || screenX >= 160 || drawn[screenX] {
				continue
			}
			col := px
			if o.xFlip() {
				col = 7 - px
			}
			ci := rowPixels[col]
			if ci == 0 {
				continue // color 0 is always transparent for sprites
			}
			out[screenX] = spritePixel{colorIndex: ci, opaque: true, bgPriority: o.priority(), usePal1: o.palette1()}
			drawn[screenX] = true
		}
	}
	return out
}

// applyPalette maps a 2-bit color index through a DMG palette byte (BGP/OBP0/OBP1).
func applyPalette(palette byte, ci byte) byte {
	return (palette >> (ci * 2)) & 0x03
}
