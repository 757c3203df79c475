package grid

import (
	"image"
	"image/draw"
)

// CellBoundary is one day cell in image coordinates. Row and Col are the
// cell's position in the detected grid, both zero-based.
type CellBoundary struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
	Row    int `json:"row"`
	Col    int `json:"col"`
}

func (c CellBoundary) Center() image.Point {
	return image.Pt(c.X+c.Width/2, c.Y+c.Height/2)
}

func (c CellBoundary) Area() int { return c.Width * c.Height }

func (c CellBoundary) Rect() image.Rectangle {
	return image.Rect(c.X, c.Y, c.X+c.Width, c.Y+c.Height)
}

// Crop returns the cell's pixels shrunk by padding on every side so ruling
// lines stay out of OCR. The result is clipped to img and may be empty.
func (c CellBoundary) Crop(img image.Image, padding int) image.Image {
	r := c.Rect().Inset(padding).Intersect(img.Bounds())
	if r.Empty() {
		return image.NewGray(image.Rectangle{})
	}
	if s, ok := img.(interface {
		SubImage(image.Rectangle) image.Image
	}); ok {
		return s.SubImage(r)
	}
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst
}

func (c CellBoundary) offset(p image.Point) CellBoundary {
	c.X += p.X
	c.Y += p.Y
	return c
}
