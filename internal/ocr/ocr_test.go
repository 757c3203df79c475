package ocr

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"
)

// scripted returns canned results keyed by page segmentation mode and
// records the image size of each call.
type scripted struct {
	byPSM map[PageSegMode][]Result
	fail  map[int]error
	calls []image.Rectangle
}

func (s *scripted) Name() string { return "scripted" }

func (s *scripted) Recognize(_ context.Context, img image.Image, opts Options) (Result, error) {
	n := len(s.calls)
	s.calls = append(s.calls, img.Bounds())
	if err := s.fail[n]; err != nil {
		return Result{}, err
	}
	queue := s.byPSM[opts.PSM]
	if len(queue) == 0 {
		return Result{}, nil
	}
	res := queue[0]
	s.byPSM[opts.PSM] = queue[1:]
	return res, nil
}

func TestMergeLinesDropsNearDuplicates(t *testing.T) {
	got := MergeLines([]string{
		"August 20 Students Return\nLabor Day",
		"august 20 students return\nSeptember 1 Labor Day - No School\nlabor day",
		"Labor Day",
		"Sept 1 Labor Day - No School Today",
	})
	want := "August 20 Students Return\nLabor Day\nSeptember 1 Labor Day - No School\nSept 1 Labor Day - No School Today"
	if got != want {
		t.Errorf("MergeLines =\n%s\nwant\n%s", got, want)
	}
}

func TestMergeLinesShortContainmentKept(t *testing.T) {
	got := MergeLines([]string{"Break", "Fall Break"})
	if got != "Break\nFall Break" {
		t.Errorf("MergeLines = %q", got)
	}
}

func TestMultiPassSkipsFailedPasses(t *testing.T) {
	eng := &scripted{
		byPSM: map[PageSegMode][]Result{
			PSMAuto:        {{Text: "May 25 Memorial Day"}},
			PSMSingleBlock: {{Text: "may 25 memorial day\nJune 19 Juneteenth"}, {Text: ""}},
		},
		fail: map[int]error{2: errors.New("tesseract crashed")},
	}
	img := image.NewGray(image.Rect(0, 0, 10, 10))
	text, err := MultiPass(context.Background(), eng, img, Options{}, nil)
	if err != nil {
		t.Fatalf("MultiPass: %v", err)
	}
	if text != "May 25 Memorial Day\nJune 19 Juneteenth" {
		t.Errorf("text = %q", text)
	}
	if len(eng.calls) != len(DefaultPasses()) {
		t.Fatalf("calls = %d, want %d", len(eng.calls), len(DefaultPasses()))
	}
	if last := eng.calls[len(eng.calls)-1]; last.Dx() != 20 {
		t.Errorf("upscale pass width = %d, want 20", last.Dx())
	}
}

func TestMultiPassNoText(t *testing.T) {
	eng := &scripted{byPSM: map[PageSegMode][]Result{}}
	_, err := MultiPass(context.Background(), eng, image.NewGray(image.Rect(0, 0, 4, 4)), Options{}, nil)
	if !errors.Is(err, ErrNoText) {
		t.Fatalf("err = %v, want ErrNoText", err)
	}
}

func TestCellFiltersLowConfidenceWords(t *testing.T) {
	eng := &scripted{byPSM: map[PageSegMode][]Result{
		PSMSingleBlock: {{Words: []Word{
			{Text: "Pep", Confidence: 0.9},
			{Text: "~", Confidence: 0.1},
			{Text: "Rally", Confidence: 0.7},
		}}},
	}}
	text, conf, err := Cell(context.Background(), eng, image.NewGray(image.Rect(0, 0, 4, 4)), Options{}, DefaultMinConfidence)
	if err != nil {
		t.Fatalf("Cell: %v", err)
	}
	if text != "Pep Rally" {
		t.Errorf("text = %q, want Pep Rally", text)
	}
	if conf < 0.79 || conf > 0.81 {
		t.Errorf("confidence = %v, want 0.8", conf)
	}
}

func TestStretchExpandsRange(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 2, 1))
	img.SetGray(0, 0, color.Gray{Y: 100})
	img.SetGray(1, 0, color.Gray{Y: 150})
	g := Stretch(img).(*image.Gray)
	if g.Pix[0] != 0 || g.Pix[1] != 255 {
		t.Errorf("stretched = %v, want [0 255]", g.Pix)
	}
}
