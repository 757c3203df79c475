package grid

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	outlineColor = color.RGBA{G: 0xC0, A: 0xFF}
	labelColor   = color.RGBA{B: 0xFF, A: 0xFF}
)

// Overlay draws each cell's outline and "row,col" label over a copy of img
// for checking a detection by eye.
func Overlay(img image.Image, cells []CellBoundary) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(b)
	draw.Draw(out, b, img, b.Min, draw.Src)

	stroke := image.NewUniform(outlineColor)
	for _, c := range cells {
		r := c.Rect()
		for _, edge := range []image.Rectangle{
			image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+2),
			image.Rect(r.Min.X, r.Max.Y-2, r.Max.X, r.Max.Y),
			image.Rect(r.Min.X, r.Min.Y, r.Min.X+2, r.Max.Y),
			image.Rect(r.Max.X-2, r.Min.Y, r.Max.X, r.Max.Y),
		} {
			draw.Draw(out, edge.Intersect(b), stroke, image.Point{}, draw.Src)
		}

		d := font.Drawer{
			Dst:  out,
			Src:  image.NewUniform(labelColor),
			Face: basicfont.Face7x13,
			Dot:  fixed.P(r.Min.X+5, r.Min.Y+16),
		}
		d.DrawString(fmt.Sprintf("%d,%d", c.Row, c.Col))
	}
	return out
}
