package pipeline

import (
	"fmt"
	"time"

	"calscan/internal/config"
	"calscan/internal/extract"
	"calscan/internal/ocr"
)

// Params are per-call choices layered over the configured defaults.
type Params struct {
	Mode Mode
	// AcademicYearStart overrides the configured value when non-zero.
	AcademicYearStart int
	// Year and Month name the month of a grid or bulk image. A zero Year
	// is resolved from the academic year.
	Year  int
	Month time.Month
}

// RequestFromConfig builds an extraction request from cfg and p.
func RequestFromConfig(cfg *config.Config, p Params) (Request, error) {
	listing, err := cfg.ListingOptions()
	if err != nil {
		return Request{}, err
	}
	anchor := p.AcademicYearStart
	if anchor == 0 {
		anchor = cfg.AcademicYearStart
	}
	mode := p.Mode
	if mode == "" {
		mode = ModeListing
	}
	year := p.Year
	if mode != ModeListing {
		if p.Month < time.January || p.Month > time.December {
			return Request{}, fmt.Errorf("pipeline: %s mode needs a month", mode)
		}
		if year == 0 {
			year = extract.AcademicYear(anchor, p.Month)
		}
	}

	opts := ocr.Options{Languages: cfg.OCR.Languages, DPI: cfg.OCR.DPI}
	return Request{
		Mode:              mode,
		AcademicYearStart: anchor,
		Listing:           listing,
		Grid: GridRequest{
			Year:          year,
			Month:         p.Month,
			Cols:          cfg.Grid.Cols,
			Rows:          cfg.Grid.Rows,
			WeekStart:     cfg.WeekStart(),
			Padding:       cfg.Grid.Padding,
			Workers:       cfg.Grid.Workers,
			MinConfidence: cfg.OCR.MinConfidence,
			OCR:           opts,
		},
		OCR: opts,
	}, nil
}
