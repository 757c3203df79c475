package grid

import (
	"image"
	"sort"
)

// Strategy is one way of finding the grid. Cells returns nil or a short
// list when the strategy does not apply to the image.
type Strategy interface {
	Name() string
	Cells(g *image.Gray, cols, rows int) []CellBoundary
}

// DefaultStrategies is the fallback chain: ruled lines, then enclosed
// regions, then a proportional grid that always succeeds.
func DefaultStrategies() []Strategy {
	return []Strategy{LineStrategy{}, ContourStrategy{}, UniformStrategy{}}
}

// LineStrategy finds long horizontal and vertical rules and crosses them.
type LineStrategy struct{}

func (LineStrategy) Name() string { return "lines" }

const (
	adaptiveBlock = 15
	adaptiveC     = 2
	peakFraction  = 0.3
	edgeFraction  = 0.1
)

func (LineStrategy) Cells(g *image.Gray, cols, rows int) []CellBoundary {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	ink := adaptiveThresholdInv(g, adaptiveBlock, adaptiveC)

	horiz := openHorizontal(ink, w/10)
	vert := openVertical(ink, h/10)

	ys := withEdges(peakMidpoints(rowProjection(horiz), peakFraction), h)
	xs := withEdges(peakMidpoints(colProjection(vert), peakFraction), w)

	var cells []CellBoundary
	for r := 0; r+1 < len(ys); r++ {
		for c := 0; c+1 < len(xs); c++ {
			cells = append(cells, CellBoundary{
				X: xs[c], Y: ys[r],
				Width: xs[c+1] - xs[c], Height: ys[r+1] - ys[r],
				Row: r, Col: c,
			})
		}
	}
	return cells
}

// withEdges adds the image border as a line when the outermost detected
// line is more than 10% of the extent away from it.
func withEdges(pos []int, extent int) []int {
	if len(pos) == 0 || float64(pos[0]) > float64(extent)*edgeFraction {
		pos = append([]int{0}, pos...)
	}
	if float64(pos[len(pos)-1]) < float64(extent)*(1-edgeFraction) {
		pos = append(pos, extent)
	}
	return pos
}

// ContourStrategy looks for enclosed cell-sized regions after a global
// Otsu threshold.
type ContourStrategy struct{}

func (ContourStrategy) Name() string { return "contours" }

func (ContourStrategy) Cells(g *image.Gray, cols, rows int) []CellBoundary {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	total := float64(w * h)
	n := float64(cols * rows)
	minArea, maxArea := total/(n*4), total/n*2

	var cands []image.Rectangle
	for _, r := range regions(thresholdInv(g, otsuLevel(g))) {
		// Bounding-box area approximates the enclosed contour area for the
		// rectangular shapes calendars are drawn with.
		area := float64(r.bounds.Dx() * r.bounds.Dy())
		if area <= minArea || area >= maxArea {
			continue
		}
		aspect := float64(r.bounds.Dx()) / float64(r.bounds.Dy())
		if aspect <= 0.5 || aspect >= 3 {
			continue
		}
		cands = append(cands, r.bounds)
	}
	return organize(cands)
}

// organize sorts candidates top-to-bottom then left-to-right and groups
// them into rows; a vertical jump larger than half the first candidate's
// height starts a new row.
func organize(cands []image.Rectangle) []CellBoundary {
	if len(cands) == 0 {
		return nil
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].Min.Y != cands[j].Min.Y {
			return cands[i].Min.Y < cands[j].Min.Y
		}
		return cands[i].Min.X < cands[j].Min.X
	})

	breakAt := float64(cands[0].Dy()) * 0.5
	var rowsOf [][]image.Rectangle
	rowY := cands[0].Min.Y
	for i, r := range cands {
		if i == 0 || float64(r.Min.Y-rowY) > breakAt {
			rowsOf = append(rowsOf, nil)
			rowY = r.Min.Y
		}
		rowsOf[len(rowsOf)-1] = append(rowsOf[len(rowsOf)-1], r)
	}

	var cells []CellBoundary
	for row, rs := range rowsOf {
		sort.SliceStable(rs, func(i, j int) bool { return rs[i].Min.X < rs[j].Min.X })
		for col, r := range rs {
			cells = append(cells, CellBoundary{
				X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy(),
				Row: row, Col: col,
			})
		}
	}
	return cells
}

// UniformStrategy divides the image into rows×cols equal cells inside fixed
// margins: 5% left, right and bottom, 15% top for the month header.
type UniformStrategy struct{}

func (UniformStrategy) Name() string { return "uniform" }

func (UniformStrategy) Cells(g *image.Gray, cols, rows int) []CellBoundary {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	marginX := int(float64(w) * 0.05)
	marginTop := int(float64(h) * 0.15)
	marginBottom := int(float64(h) * 0.05)

	cellW := (w - 2*marginX) / cols
	cellH := (h - marginTop - marginBottom) / rows

	cells := make([]CellBoundary, 0, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			cells = append(cells, CellBoundary{
				X: marginX + c*cellW, Y: marginTop + r*cellH,
				Width: cellW, Height: cellH,
				Row: r, Col: c,
			})
		}
	}
	return cells
}
