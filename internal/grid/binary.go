package grid

import "image"

// binary is a foreground mask; true marks ink.
type binary struct {
	w, h int
	pix  []bool
}

func newBinary(w, h int) *binary {
	return &binary{w: w, h: h, pix: make([]bool, w*h)}
}

func (b *binary) at(x, y int) bool { return b.pix[y*b.w+x] }

// adaptiveThresholdInv marks a pixel as ink when it is at or below the mean
// of its block×block neighbourhood minus c. The neighbourhood mean is a box
// average over an integral image, clipped at the borders.
func adaptiveThresholdInv(g *image.Gray, block, c int) *binary {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	// integral has a zero row and column so sums need no bounds checks.
	iw := w + 1
	integral := make([]int64, iw*(h+1))
	for y := 0; y < h; y++ {
		var rowSum int64
		for x := 0; x < w; x++ {
			rowSum += int64(g.Pix[y*g.Stride+x])
			integral[(y+1)*iw+x+1] = integral[y*iw+x+1] + rowSum
		}
	}

	r := block / 2
	out := newBinary(w, h)
	for y := 0; y < h; y++ {
		y0, y1 := max(0, y-r), min(h, y+r+1)
		for x := 0; x < w; x++ {
			x0, x1 := max(0, x-r), min(w, x+r+1)
			sum := integral[y1*iw+x1] - integral[y0*iw+x1] - integral[y1*iw+x0] + integral[y0*iw+x0]
			n := int64((y1 - y0) * (x1 - x0))
			mean := sum / n
			out.pix[y*w+x] = int64(g.Pix[y*g.Stride+x]) <= mean-int64(c)
		}
	}
	return out
}

// otsuLevel picks the global threshold maximising between-class variance.
func otsuLevel(g *image.Gray) uint8 {
	var hist [256]int
	w, h := g.Rect.Dx(), g.Rect.Dy()
	for y := 0; y < h; y++ {
		for _, v := range g.Pix[y*g.Stride : y*g.Stride+w] {
			hist[v]++
		}
	}
	total := w * h
	var sumAll float64
	for i, n := range hist {
		sumAll += float64(i * n)
	}

	var (
		best     float64
		level    int
		weightB  int
		sumB     float64
		foundAny bool
	)
	for t := 0; t < 256; t++ {
		weightB += hist[t]
		if weightB == 0 {
			continue
		}
		weightF := total - weightB
		if weightF == 0 {
			break
		}
		sumB += float64(t * hist[t])
		meanB := sumB / float64(weightB)
		meanF := (sumAll - sumB) / float64(weightF)
		between := float64(weightB) * float64(weightF) * (meanB - meanF) * (meanB - meanF)
		if !foundAny || between > best {
			best, level, foundAny = between, t, true
		}
	}
	if !foundAny {
		// Single-valued image.
		for t, n := range hist {
			if n > 0 {
				return uint8(t)
			}
		}
	}
	return uint8(level)
}

// thresholdInv marks pixels at or below level as ink.
func thresholdInv(g *image.Gray, level uint8) *binary {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	out := newBinary(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.pix[y*w+x] = g.Pix[y*g.Stride+x] <= level
		}
	}
	return out
}

// openHorizontal keeps only horizontal ink runs at least k pixels long.
// For a 1×k rectangular kernel this is exactly a morphological opening.
func openHorizontal(b *binary, k int) *binary {
	out := newBinary(b.w, b.h)
	for y := 0; y < b.h; y++ {
		keepRuns(b.w, k, func(i int) bool { return b.at(i, y) }, func(i int) { out.pix[y*b.w+i] = true })
	}
	return out
}

// openVertical keeps only vertical ink runs at least k pixels long.
func openVertical(b *binary, k int) *binary {
	out := newBinary(b.w, b.h)
	for x := 0; x < b.w; x++ {
		keepRuns(b.h, k, func(i int) bool { return b.at(x, i) }, func(i int) { out.pix[i*b.w+x] = true })
	}
	return out
}

func keepRuns(n, k int, get func(int) bool, set func(int)) {
	if k < 1 {
		k = 1
	}
	start := -1
	for i := 0; i <= n; i++ {
		on := i < n && get(i)
		switch {
		case on && start < 0:
			start = i
		case !on && start >= 0:
			if i-start >= k {
				for j := start; j < i; j++ {
					set(j)
				}
			}
			start = -1
		}
	}
}

// rowProjection counts ink per row.
func rowProjection(b *binary) []int {
	out := make([]int, b.h)
	for y := 0; y < b.h; y++ {
		for x := 0; x < b.w; x++ {
			if b.at(x, y) {
				out[y]++
			}
		}
	}
	return out
}

// colProjection counts ink per column.
func colProjection(b *binary) []int {
	out := make([]int, b.w)
	for y := 0; y < b.h; y++ {
		for x := 0; x < b.w; x++ {
			if b.at(x, y) {
				out[x]++
			}
		}
	}
	return out
}

// peakMidpoints returns the midpoint of every maximal run strictly above
// frac of the projection's peak. A run still open at the end is closed
// there.
func peakMidpoints(proj []int, frac float64) []int {
	peak := 0
	for _, v := range proj {
		peak = max(peak, v)
	}
	if peak == 0 {
		return nil
	}
	threshold := float64(peak) * frac

	var out []int
	start := -1
	for i := 0; i <= len(proj); i++ {
		above := i < len(proj) && float64(proj[i]) > threshold
		switch {
		case above && start < 0:
			start = i
		case !above && start >= 0:
			out = append(out, (start+i)/2)
			start = -1
		}
	}
	return out
}
