package pipeline

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"sync/atomic"
	"testing"
	"time"

	"calscan/internal/model"
	"calscan/internal/ocr"
)

// shadedMonth is a 7×6 ruled grid of 100px cells. Cells listed in shades
// are filled with that gray level so a fake engine can tell them apart.
func shadedMonth(shades map[[2]int]uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, 720, 620))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	for rc, v := range shades {
		x, y := 10+100*rc[1]+2, 10+100*rc[0]+2
		draw.Draw(img, image.Rect(x, y, x+98, y+98), image.NewUniform(color.Gray{Y: v}), image.Point{}, draw.Src)
	}
	black := image.NewUniform(color.Black)
	for i := 0; i <= 7; i++ {
		x := 10 + 100*i
		draw.Draw(img, image.Rect(x, 10, x+2, 612), black, image.Point{}, draw.Src)
	}
	for j := 0; j <= 6; j++ {
		y := 10 + 100*j
		draw.Draw(img, image.Rect(10, y, 712, y+2), black, image.Point{}, draw.Src)
	}
	return img
}

// shadeEngine answers cell calls by the gray level at the image center and
// whole-page calls (PSMAuto) with a fixed page text.
type shadeEngine struct {
	cells map[uint8]ocr.Result
	page  string
	calls atomic.Int32
}

func (e *shadeEngine) Name() string { return "shade" }

func (e *shadeEngine) Recognize(_ context.Context, img image.Image, opts ocr.Options) (ocr.Result, error) {
	e.calls.Add(1)
	if opts.PSM == ocr.PSMAuto {
		return ocr.Result{Text: e.page}, nil
	}
	b := img.Bounds()
	v := color.GrayModel.Convert(img.At(b.Min.X+b.Dx()/2, b.Min.Y+b.Dy()/2)).(color.Gray).Y
	return e.cells[v], nil
}

var autoOnly = []ocr.Pass{{Name: "auto", PSM: ocr.PSMAuto}}

func TestExtractGrid(t *testing.T) {
	img := shadedMonth(map[[2]int]uint8{
		{0, 3}: 200,
		{2, 3}: 220,
	})
	eng := &shadeEngine{cells: map[uint8]ocr.Result{
		200: {Text: "Staff Meeting 9:00 AM - 10:00 AM", Confidence: 0.85},
		220: {Text: "• Book Fair", Confidence: 0.9},
	}}

	// March 2026 starts on a Sunday.
	res, err := ExtractGrid(context.Background(), img, eng, GridRequest{
		Year:    2026,
		Month:   time.March,
		Workers: 4,
	})
	if err != nil {
		t.Fatalf("ExtractGrid: %v", err)
	}
	if len(res.Cells) != 42 {
		t.Errorf("got %d cells, want 42", len(res.Cells))
	}
	if got := eng.calls.Load(); got != 31 {
		t.Errorf("OCR calls = %d, want 31 (one per day)", got)
	}
	if len(res.Events) != 2 {
		t.Fatalf("got %d events, want 2: %+v", len(res.Events), res.Events)
	}
	meeting := res.Events[0]
	if meeting.Date.String() != "2026-03-04" || meeting.Title != "Staff Meeting" {
		t.Errorf("events[0] = %s %q", meeting.Date, meeting.Title)
	}
	if meeting.Start == nil || *meeting.Start != (model.Clock{Hour: 9}) || meeting.Confidence != 0.85 {
		t.Errorf("events[0] = %+v", meeting)
	}
	fair := res.Events[1]
	if fair.Date.String() != "2026-03-18" || fair.Title != "Book Fair" || !fair.AllDay() {
		t.Errorf("events[1] = %+v", fair)
	}
	if res.Mode != ModeGrid || res.RawText == "" {
		t.Errorf("mode = %q, raw = %q", res.Mode, res.RawText)
	}
}

func TestExtractGridCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ExtractGrid(ctx, shadedMonth(nil), &shadeEngine{}, GridRequest{Year: 2026, Month: time.March})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestExtractGridRejectsBadMonth(t *testing.T) {
	if _, err := ExtractGrid(context.Background(), shadedMonth(nil), &shadeEngine{}, GridRequest{Year: 2026}); err == nil {
		t.Error("expected error for month 0")
	}
}

func TestExtractImageListing(t *testing.T) {
	eng := &shadeEngine{page: "August 20 Students Return\nSeptember 1: Labor Day"}
	res, err := ExtractImage(context.Background(), shadedMonth(nil), eng, Request{
		Mode:              ModeListing,
		AcademicYearStart: 2025,
		Passes:            autoOnly,
	})
	if err != nil {
		t.Fatalf("ExtractImage: %v", err)
	}
	if len(res.Events) != 2 || res.Events[1].Title != "Labor Day" {
		t.Fatalf("events = %+v", res.Events)
	}
	if res.RawText != eng.page {
		t.Errorf("raw = %q", res.RawText)
	}
}

func TestExtractImageGridFallsBackToBulk(t *testing.T) {
	eng := &shadeEngine{page: "3 - Staff Meeting 9:00 AM\n14: Pi Day"}
	res, err := ExtractImage(context.Background(), shadedMonth(nil), eng, Request{
		Mode:   ModeGrid,
		Grid:   GridRequest{Year: 2026, Month: time.March},
		Passes: autoOnly,
	})
	if err != nil {
		t.Fatalf("ExtractImage: %v", err)
	}
	if res.Mode != ModeBulk || len(res.Events) != 2 {
		t.Fatalf("result = %+v", res)
	}
	if res.Events[1].Date.String() != "2026-03-14" {
		t.Errorf("events[1] = %+v", res.Events[1])
	}
}

// widthEngine answers whole-page reads by image width.
type widthEngine map[int]string

func (e widthEngine) Name() string { return "width" }

func (e widthEngine) Recognize(_ context.Context, img image.Image, _ ocr.Options) (ocr.Result, error) {
	return ocr.Result{Text: e[img.Bounds().Dx()], Confidence: 0.9}, nil
}

func TestExtractPagesMergesDocument(t *testing.T) {
	eng := widthEngine{
		100: "August 20 Students Return\nSeptember 1: Labor Day",
		200: "",
		300: "September 1 Labor Day\nMay 25 Memorial Day",
	}
	pages := []image.Image{
		image.NewGray(image.Rect(0, 0, 100, 50)),
		image.NewGray(image.Rect(0, 0, 200, 50)),
		image.NewGray(image.Rect(0, 0, 300, 50)),
	}
	res, err := ExtractPages(context.Background(), pages, eng, Request{
		Mode:              ModeListing,
		AcademicYearStart: 2025,
		Passes:            autoOnly,
	})
	if err != nil {
		t.Fatalf("ExtractPages: %v", err)
	}
	var titles []string
	for _, ev := range res.Events {
		titles = append(titles, ev.Title)
	}
	want := []string{"Students Return", "Labor Day", "Memorial Day"}
	if len(titles) != len(want) {
		t.Fatalf("titles = %q, want %q", titles, want)
	}
	for i := range want {
		if titles[i] != want[i] {
			t.Errorf("titles[%d] = %q, want %q", i, titles[i], want[i])
		}
	}
	if res.Mode != ModeListing || res.RawText != eng[100]+"\n\n"+eng[300] {
		t.Errorf("mode = %s, raw = %q", res.Mode, res.RawText)
	}
}

func TestExtractPagesAllBlank(t *testing.T) {
	pages := []image.Image{
		image.NewGray(image.Rect(0, 0, 10, 10)),
		image.NewGray(image.Rect(0, 0, 20, 10)),
	}
	_, err := ExtractPages(context.Background(), pages, widthEngine{}, Request{Passes: autoOnly})
	if !errors.Is(err, ocr.ErrNoText) {
		t.Errorf("err = %v, want ErrNoText", err)
	}
}

func TestExtractImageNoEngine(t *testing.T) {
	if _, err := ExtractImage(context.Background(), shadedMonth(nil), nil, Request{}); err == nil {
		t.Error("expected error without an engine")
	}
}

func TestExtractText(t *testing.T) {
	res, err := ExtractText("May Memorial Day", ModeListing, Request{AcademicYearStart: 2025})
	if err != nil || len(res.Events) != 1 || res.Events[0].Date.String() != "2026-05-25" {
		t.Fatalf("listing = %+v, %v", res, err)
	}
	if _, err := ExtractText("3 - Event", ModeBulk, Request{}); err == nil {
		t.Error("bulk without a month should fail")
	}
	if _, err := ExtractText("x", ModeGrid, Request{}); err == nil {
		t.Error("grid over text should fail")
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeListing, "Grid": ModeGrid, " bulk ": ModeBulk} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseMode("pdf"); err == nil {
		t.Error("ParseMode(pdf) should fail")
	}
}
