package ppu

import "testing"

func TestSpriteScanlineTransparencyAndPriority(t *testing.T) {
	var tc tileCache
	// Tile 0: single opaque leftmost pixel (bit7 of lo set, hi=0) -> ci=1 at col 0.
	tc.tiles[0][0][0] = 1

	var oam [0xA0]byte
	oam[0], oam[1], oam[2], oam[3] = 21, 18, 0, 0 // Y=21 => top=5, X=18 => screenX starts at 10

	out := renderSpriteScanline(&tc, &oam, 0x02, 5)
	if !out[10].opaque {
		t.Fatalf("expected opaque sprite pixel at x=10")
	}

	// Same sprite with BG-priority bit set: a nonzero BG color index hides it.
	oam[3] = 1 << 7
	out = renderSpriteScanline(&tc, &oam, 0x02, 5)
	if !out[10].bgPriority {
		t.Fatalf("expected bgPriority flag set from OAM attr bit 7")
	}
}

func TestSpriteScanlineOAMIndexTieBreak(t *testing.T) {
	var tc tileCache
	for px := 0; px < 8; px++ {
		tc.tiles[0][0][px] = 1
	}
	var oam [0xA0]byte
	// Sprite 0 at OAM index 0, X=19 -> covers screen x 11..18, palette OBP0
	oam[0], oam[1], oam[2], oam[3] = 16, 19, 0, 0
	// Sprite 1 at OAM index 1, same X=19 -> same pixels, palette OBP1 (attr bit 4)
	oam[4], oam[5], oam[6], oam[7] = 16, 19, 0, 0x10

	out := renderSpriteScanline(&tc, &oam, 0x02, 0)
	// x=12 is covered by both with equal X; the stable X sort keeps OAM order,
	// so sprite 0 (lower OAM index, OBP0) wins the overlap.
	if !out[12].opaque {
		t.Fatalf("expected an opaque pixel at the overlap")
	}
	if out[12].usePal1 {
		t.Fatalf("expected sprite 0 (OBP0) to win the equal-X tie, got sprite 1 (OBP1)")
	}
}

func TestSpriteScanlineDisabledWhenOBJOff(t *testing.T) {
	var tc tileCache
	tc.tiles[0][0][0] = 1
	var oam [0xA0]byte
	oam[0], oam[1] = 16, 16
	out := renderSpriteScanline(&tc, &oam, 0x00, 0) // LCDC bit1 (OBJ enable) clear
	for x, px := range out {
		if px.opaque {
			t.Fatalf("expected no sprite pixels when OBJ display disabled, got one at x=%d", x)
		}
	}
}
