package grid

import "image"

// region is one 4-connected area of equal mask value. Ink regions stand in
// for external contours and paper regions for the holes inside them.
type region struct {
	bounds image.Rectangle
	pixels int
	ink    bool
}

// regions labels every connected area of b, ink and paper alike.
func regions(b *binary) []region {
	labels := make([]int32, b.w*b.h)
	var out []region
	var stack []int

	for seed := range labels {
		if labels[seed] != 0 {
			continue
		}
		id := int32(len(out) + 1)
		val := b.pix[seed]
		r := region{bounds: image.Rect(seed%b.w, seed/b.w, seed%b.w+1, seed/b.w+1), ink: val}

		labels[seed] = id
		stack = append(stack[:0], seed)
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := p%b.w, p/b.w
			r.pixels++
			r.bounds = r.bounds.Union(image.Rect(x, y, x+1, y+1))

			for _, n := range [4]int{p - 1, p + 1, p - b.w, p + b.w} {
				switch {
				case n < 0 || n >= len(labels):
					continue
				case (n == p-1 && x == 0) || (n == p+1 && x == b.w-1):
					continue
				case labels[n] != 0 || b.pix[n] != val:
					continue
				}
				labels[n] = id
				stack = append(stack, n)
			}
		}
		out = append(out, r)
	}
	return out
}
