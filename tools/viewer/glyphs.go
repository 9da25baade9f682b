package viewer

import (
	"image"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	glyphWidth  = 7
	glyphHeight = 13
	firstGlyph  = ' '
	lastGlyph   = '~'
)

// glyphAtlas caches printable ASCII rendered with basicfont.Face7x13 in white so labels
// can be tinted per draw.
type glyphAtlas struct {
	glyphs [lastGlyph - firstGlyph + 1]*ebiten.Image
}

func newGlyphAtlas() *glyphAtlas {
	count := int(lastGlyph - firstGlyph + 1)
	img := image.NewNRGBA(image.Rect(0, 0, count*glyphWidth, glyphHeight))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.White),
		Face: basicfont.Face7x13,
	}
	for r := firstGlyph; r <= lastGlyph; r++ {
		drawer.Dot = fixed.P(int(r-firstGlyph)*glyphWidth, basicfont.Face7x13.Ascent)
		drawer.DrawString(string(r))
	}

	sheet := ebiten.NewImageFromImage(img)
	atlas := &glyphAtlas{}
	for idx := range atlas.glyphs {
		x := idx * glyphWidth
		atlas.glyphs[idx] = sheet.SubImage(image.Rect(x, 0, x+glyphWidth, glyphHeight)).(*ebiten.Image)
	}
	return atlas
}

// glyph returns the cell for r; runes outside printable ASCII render as '?'.
func (a *glyphAtlas) glyph(r rune) *ebiten.Image {
	if r < firstGlyph || r > lastGlyph {
		r = '?'
	}
	return a.glyphs[r-firstGlyph]
}

// draw writes msg with its top-left corner at x,y.
func (a *glyphAtlas) draw(screen *ebiten.Image, msg string, x, y float64, clr color.Color) {
	op := &ebiten.DrawImageOptions{}
	for _, r := range msg {
		op.GeoM.Reset()
		op.GeoM.Translate(x, y)
		op.ColorScale.Reset()
		op.ColorScale.ScaleWithColor(clr)
		screen.DrawImage(a.glyph(r), op)
		x += glyphWidth
	}
}
