// Package ocr defines the text-recognition collaborator used by the
// extraction pipeline and the multi-pass strategy run over whole pages.
package ocr

import (
	"context"
	"errors"
	"image"
	"strings"
)

// PageSegMode mirrors Tesseract's page segmentation modes.
type PageSegMode int

const (
	PSMAuto        PageSegMode = 3
	PSMSingleBlock PageSegMode = 6
)

// Options are per-call recognition hints.
type Options struct {
	Languages []string
	DPI       int
	PSM       PageSegMode
}

// Word is one recognized word with a confidence in [0,1].
type Word struct {
	Text       string
	Box        image.Rectangle
	Confidence float64
}

// Result is the output of a single recognition call.
type Result struct {
	Text       string
	Words      []Word
	Confidence float64
}

// Engine recognizes text in an image. Implementations own their native
// resources; callers may use one Engine from several goroutines.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, img image.Image, opts Options) (Result, error)
}

// ErrNoText is returned when every pass came back empty or failed.
var ErrNoText = errors.New("ocr: no text recognized")

// DefaultMinConfidence drops words OCR was less than 30% sure of.
const DefaultMinConfidence = 0.3

// Cell recognizes a single grid cell. Words below minConfidence are dropped;
// the returned confidence is the mean over the words kept, 0 when none are.
func Cell(ctx context.Context, eng Engine, img image.Image, opts Options, minConfidence float64) (string, float64, error) {
	opts.PSM = PSMSingleBlock
	res, err := eng.Recognize(ctx, Grayscale(img), opts)
	if err != nil {
		return "", 0, err
	}
	if len(res.Words) == 0 {
		// Engines that only return plain text are trusted as given.
		text := strings.TrimSpace(res.Text)
		if text == "" {
			return "", 0, nil
		}
		return text, res.Confidence, nil
	}

	var (
		kept []string
		sum  float64
	)
	for _, w := range res.Words {
		t := strings.TrimSpace(w.Text)
		if t == "" || w.Confidence < minConfidence {
			continue
		}
		kept = append(kept, t)
		sum += w.Confidence
	}
	if len(kept) == 0 {
		return "", 0, nil
	}
	return strings.Join(kept, " "), sum / float64(len(kept)), nil
}
