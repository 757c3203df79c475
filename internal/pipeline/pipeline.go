// Package pipeline wires grid detection, OCR and the event parsers into
// the two extraction paths: listing text and month grids.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"
	"strings"
	"sync"
	"time"

	"calscan/internal/extract"
	"calscan/internal/grid"
	appLog "calscan/internal/log"
	"calscan/internal/model"
	"calscan/internal/ocr"
)

// Mode selects how an image is read.
type Mode string

const (
	// ModeListing reads "date + description" lines from the whole page.
	ModeListing Mode = "listing"
	// ModeGrid locates day cells and reads each one.
	ModeGrid Mode = "grid"
	// ModeBulk reads the whole page as day-marked cell text.
	ModeBulk Mode = "bulk"
)

// DefaultPadding is trimmed from every cell edge before OCR so ruling
// lines do not turn into characters.
const DefaultPadding = 5

// ParseMode validates a mode name; "" means ModeListing.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeListing, nil
	case ModeListing, ModeGrid, ModeBulk:
		return m, nil
	default:
		return "", fmt.Errorf("pipeline: unknown mode %q", s)
	}
}

// Result is the outcome of one extraction.
type Result struct {
	Mode    Mode
	Events  []model.Event
	RawText string
	// Cells is set for grid extractions.
	Cells []grid.CellBoundary
}

// ExtractListing parses listing text for the academic year starting in
// August of academicYearStart and returns normalized events.
func ExtractListing(text string, academicYearStart int, opts ...extract.ListingOption) []model.Event {
	return extract.Normalize(extract.NewListingParser(academicYearStart, opts...).Parse(text))
}

// GridRequest describes the month shown in a grid image.
type GridRequest struct {
	Year  int
	Month time.Month
	Cols  int
	Rows  int
	// WeekStart is the weekday of the first column.
	WeekStart time.Weekday
	Padding   int
	// Workers bounds concurrent cell OCR calls; zero means GOMAXPROCS.
	Workers       int
	MinConfidence float64
	OCR           ocr.Options
}

func (r GridRequest) normalized() GridRequest {
	if r.Cols <= 0 {
		r.Cols = grid.DefaultCols
	}
	if r.Rows <= 0 {
		r.Rows = grid.DefaultRows
	}
	if r.Padding < 0 {
		r.Padding = 0
	}
	if r.Workers <= 0 {
		r.Workers = runtime.GOMAXPROCS(0)
	}
	if r.MinConfidence <= 0 {
		r.MinConfidence = ocr.DefaultMinConfidence
	}
	return r
}

type cellResult struct {
	text   string
	events []model.Event
}

// ExtractGrid detects the day cells of img, OCRs them concurrently and
// parses each cell against the date it holds. Cells outside the month are
// not read. A failed cell is logged and skipped; only a cancelled context
// fails the extraction.
func ExtractGrid(ctx context.Context, img image.Image, eng ocr.Engine, req GridRequest) (Result, error) {
	req = req.normalized()
	if req.Month < time.January || req.Month > time.December {
		return Result{}, fmt.Errorf("pipeline: grid month %d out of range", req.Month)
	}
	cells, err := grid.NewDetector(req.Cols, req.Rows).Detect(img)
	if err != nil {
		return Result{}, err
	}
	layout := model.CalendarGrid{
		Rows:           req.Rows,
		Cols:           req.Cols,
		FirstDayOffset: model.FirstDayOffsetFor(req.Year, req.Month, req.WeekStart),
	}

	results := make([]cellResult, len(cells))
	sem := make(chan struct{}, req.Workers)
	var wg sync.WaitGroup
	for i, c := range cells {
		date, ok := layout.DateForCell(c.Row, c.Col, req.Year, req.Month)
		if !ok {
			continue
		}
		wg.Add(1)
		go func(i int, c grid.CellBoundary, date model.Date) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()

			text, conf, err := ocr.Cell(ctx, eng, c.Crop(img, req.Padding), req.OCR, req.MinConfidence)
			if err != nil {
				if ctx.Err() == nil {
					appLog.Error("pipeline: cell ocr failed", err, "row", c.Row, "col", c.Col, "date", date.String())
				}
				return
			}
			results[i] = cellResult{text: text, events: extract.ParseCell(text, date, conf)}
		}(i, c, date)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	var (
		events []model.Event
		lines  []string
	)
	for _, r := range results {
		if r.text != "" {
			lines = append(lines, r.text)
		}
		events = append(events, r.events...)
	}
	appLog.Debug("pipeline: grid read", "cells", len(cells), "events", len(events))
	return Result{
		Mode:    ModeGrid,
		Events:  extract.Normalize(events),
		RawText: strings.Join(lines, "\n"),
		Cells:   cells,
	}, nil
}

// Request configures ExtractImage.
type Request struct {
	Mode              Mode
	AcademicYearStart int
	Listing           []extract.ListingOption
	// Grid carries the month for grid and bulk modes.
	Grid   GridRequest
	OCR    ocr.Options
	Passes []ocr.Pass
}

// ExtractImage reads img with the path chosen by req.Mode. A grid read
// that yields nothing is retried as bulk text over the whole page.
func ExtractImage(ctx context.Context, img image.Image, eng ocr.Engine, req Request) (Result, error) {
	if eng == nil {
		return Result{}, errors.New("pipeline: no OCR engine")
	}
	mode := req.Mode
	if mode == "" {
		mode = ModeListing
	}

	if mode == ModeGrid {
		g := req.Grid
		if len(g.OCR.Languages) == 0 {
			g.OCR = req.OCR
		}
		res, err := ExtractGrid(ctx, img, eng, g)
		if err != nil || len(res.Events) > 0 {
			return res, err
		}
		appLog.Info("pipeline: grid produced no events, trying bulk text")
		mode = ModeBulk
	}

	text, err := ocr.MultiPass(ctx, eng, img, req.OCR, req.Passes)
	if err != nil {
		return Result{}, err
	}
	return ExtractText(text, mode, req)
}

// ExtractText runs the text-only paths over already recognized text.
func ExtractText(text string, mode Mode, req Request) (Result, error) {
	switch mode {
	case ModeListing, "":
		return Result{
			Mode:    ModeListing,
			Events:  ExtractListing(text, req.AcademicYearStart, req.Listing...),
			RawText: text,
		}, nil
	case ModeBulk:
		if req.Grid.Month < time.January || req.Grid.Month > time.December {
			return Result{}, fmt.Errorf("pipeline: bulk month %d out of range", req.Grid.Month)
		}
		return Result{
			Mode:    ModeBulk,
			Events:  extract.Normalize(extract.ParseBulk(text, req.Grid.Year, req.Grid.Month)),
			RawText: text,
		}, nil
	default:
		return Result{}, fmt.Errorf("pipeline: mode %q needs an image", mode)
	}
}

// ExtractPages runs ExtractImage over each page of a document and merges
// the events. A page with no recognizable text is skipped; ocr.ErrNoText
// is returned only when every page came back empty.
func ExtractPages(ctx context.Context, pages []image.Image, eng ocr.Engine, req Request) (Result, error) {
	if len(pages) == 1 {
		return ExtractImage(ctx, pages[0], eng, req)
	}
	var (
		merged Result
		texts  []string
		events []model.Event
	)
	for i, page := range pages {
		res, err := ExtractImage(ctx, page, eng, req)
		if errors.Is(err, ocr.ErrNoText) {
			appLog.Debug("pipeline: page has no text", "page", i+1)
			continue
		}
		if err != nil {
			return Result{}, fmt.Errorf("pipeline: page %d: %w", i+1, err)
		}
		if merged.Mode == "" {
			merged.Mode = res.Mode
		}
		if res.RawText != "" {
			texts = append(texts, res.RawText)
		}
		events = append(events, res.Events...)
		merged.Cells = append(merged.Cells, res.Cells...)
	}
	if len(texts) == 0 && len(events) == 0 {
		return Result{}, fmt.Errorf("%w (%d pages)", ocr.ErrNoText, len(pages))
	}
	merged.Events = extract.Normalize(events)
	merged.RawText = strings.Join(texts, "\n\n")
	appLog.Debug("pipeline: document read", "pages", len(pages), "events", len(merged.Events))
	return merged, nil
}
