package ocr

import (
	"image"

	"golang.org/x/image/draw"

	"calscan/internal/grid"
)

// Grayscale drops color; OCR is luma-only anyway and the smaller PNG
// encodes faster.
func Grayscale(img image.Image) image.Image {
	return grid.Gray(img)
}

// Stretch linearly maps the darkest and lightest luma to 0 and 255, which
// rescues faded scans and phone photos taken in poor light.
func Stretch(img image.Image) image.Image {
	g := grid.Gray(img)
	lo, hi := uint8(255), uint8(0)
	for _, v := range g.Pix {
		lo, hi = min(lo, v), max(hi, v)
	}
	if hi <= lo {
		return g
	}
	span := int(hi - lo)
	for i, v := range g.Pix {
		g.Pix[i] = uint8(int(v-lo) * 255 / span)
	}
	return g
}

// Upscale enlarges img by factor with Catmull-Rom resampling so small
// cell text reaches a size Tesseract reads reliably.
func Upscale(img image.Image, factor float64) image.Image {
	b := img.Bounds()
	w, h := int(float64(b.Dx())*factor), int(float64(b.Dy())*factor)
	if w <= 0 || h <= 0 {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
