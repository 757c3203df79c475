package grid

import (
	"image"
	"image/color"
)

// Gray converts img to an 8-bit luma image anchored at (0,0).
//
// Luma uses Rec. 601 weights (0.299R + 0.587G + 0.114B). Pixels with
// alpha < 128 are treated as paper (white) since a transparent PNG
// background is never ink. NRGBA and RGBA sources are read through Pix
// directly to avoid a per-pixel At() call.
func Gray(img image.Image) *image.Gray {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))

	switch src := img.(type) {
	case *image.Gray:
		for y := 0; y < h; y++ {
			copy(out.Pix[y*out.Stride:y*out.Stride+w], src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):])
		}
	case *image.NRGBA:
		for y := 0; y < h; y++ {
			row := src.PixOffset(b.Min.X, b.Min.Y+y)
			for x := 0; x < w; x++ {
				i := row + x*4
				out.Pix[y*out.Stride+x] = luma(src.Pix[i], src.Pix[i+1], src.Pix[i+2], src.Pix[i+3])
			}
		}
	case *image.RGBA:
		for y := 0; y < h; y++ {
			row := src.PixOffset(b.Min.X, b.Min.Y+y)
			for x := 0; x < w; x++ {
				i := row + x*4
				a := src.Pix[i+3]
				if a == 0 {
					out.Pix[y*out.Stride+x] = 0xFF
					continue
				}
				// Undo premultiplication before weighting.
				r := uint32(src.Pix[i]) * 0xFF / uint32(a)
				g := uint32(src.Pix[i+1]) * 0xFF / uint32(a)
				bl := uint32(src.Pix[i+2]) * 0xFF / uint32(a)
				out.Pix[y*out.Stride+x] = luma(uint8(r), uint8(g), uint8(bl), a)
			}
		}
	default:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
				out.Pix[y*out.Stride+x] = luma(c.R, c.G, c.B, c.A)
			}
		}
	}
	return out
}

func luma(r, g, b, a uint8) uint8 {
	if a < 128 {
		return 0xFF
	}
	y := 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
	if y > 255 {
		y = 255
	}
	return uint8(y + 0.5)
}
