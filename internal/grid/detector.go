// Package grid locates the day cells of a month-view calendar image.
package grid

import (
	"errors"
	"image"

	appLog "calscan/internal/log"
)

const (
	DefaultCols = 7
	DefaultRows = 6
)

// ErrEmptyImage is returned for an image with no pixels.
var ErrEmptyImage = errors.New("grid: empty image")

// Detector runs its strategies in order and keeps the first result with
// at least a full week of cells.
type Detector struct {
	Cols       int
	Rows       int
	Strategies []Strategy
}

// NewDetector returns a detector for a cols×rows month grid. Non-positive
// sizes fall back to 7×6.
func NewDetector(cols, rows int) *Detector {
	if cols <= 0 {
		cols = DefaultCols
	}
	if rows <= 0 {
		rows = DefaultRows
	}
	return &Detector{Cols: cols, Rows: rows, Strategies: DefaultStrategies()}
}

// Detect returns cell boundaries in img's coordinate space. It only fails
// for an empty image; otherwise the uniform grid is the floor.
func (d *Detector) Detect(img image.Image) ([]CellBoundary, error) {
	b := img.Bounds()
	if b.Empty() {
		return nil, ErrEmptyImage
	}
	g := Gray(img)

	for _, s := range d.Strategies {
		cells := s.Cells(g, d.Cols, d.Rows)
		if len(cells) >= d.Cols {
			appLog.Debug("grid: detected", "strategy", s.Name(), "cells", len(cells))
			return translate(cells, b.Min), nil
		}
		appLog.Debug("grid: strategy fell short", "strategy", s.Name(), "cells", len(cells), "want", d.Cols)
	}
	return translate(UniformStrategy{}.Cells(g, d.Cols, d.Rows), b.Min), nil
}

func translate(cells []CellBoundary, p image.Point) []CellBoundary {
	if p == (image.Point{}) {
		return cells
	}
	for i := range cells {
		cells[i] = cells[i].offset(p)
	}
	return cells
}
