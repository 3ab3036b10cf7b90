package blot

import (
	"fmt"
	"image"
	"image/draw"
	"math"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// rotatedMargin is the padding around a rotated label's glyph buffer.
const rotatedMargin = 10

var regularFont = sync.OnceValues(func() (*opentype.Font, error) {
	return opentype.Parse(goregular.TTF)
})

// newFace returns a face at size pixels, or nil when size is 0 and text is
// not drawn.
func newFace(size int) (font.Face, error) {
	if size <= 0 {
		return nil, nil
	}
	f, err := regularFont()
	if err != nil {
		return nil, fmt.Errorf("failed to load font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %dpx face: %w", size, err)
	}
	return face, nil
}

func textWidth(face font.Face, s string) int {
	return font.MeasureString(face, s).Ceil()
}

// drawText draws s in black with its baseline starting at (x, y).
func drawText(dst draw.Image, face font.Face, s string, x, y float64) {
	d := font.Drawer{
		Dst:  dst,
		Src:  image.Black,
		Face: face,
		Dot:  fixed.Point26_6{X: toFixed(x), Y: toFixed(y)},
	}
	d.DrawString(s)
}

func toFixed(v float64) fixed.Int26_6 {
	return fixed.Int26_6(math.Round(v * 64))
}

// rotatedText renders s into an alpha mask and turns it 90 degrees
// counter-clockwise so it reads bottom to top. The mask is (ascent+descent+margin)
// wide and (text width+margin) tall.
func rotatedText(face font.Face, s string) *image.Alpha {
	m := face.Metrics()
	ascent, descent := m.Ascent.Ceil(), m.Descent.Ceil()
	w := textWidth(face, s) + rotatedMargin
	h := ascent + descent + rotatedMargin

	buf := image.NewAlpha(image.Rect(0, 0, w, h))
	d := font.Drawer{
		Dst:  buf,
		Src:  image.Opaque,
		Face: face,
		Dot:  fixed.P(rotatedMargin/2, rotatedMargin/2+ascent),
	}
	d.DrawString(s)

	rot := image.NewAlpha(image.Rect(0, 0, h, w))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			rot.SetAlpha(y, w-1-x, buf.AlphaAt(x, y))
		}
	}
	return rot
}

// pasteMask paints black through mask with its top-left corner at p.
func pasteMask(dst draw.Image, mask *image.Alpha, p image.Point) {
	r := mask.Bounds().Add(p)
	draw.DrawMask(dst, r, image.Black, image.Point{}, mask, mask.Bounds().Min, draw.Over)
}

// floorDiv divides rounding toward negative infinity.
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
