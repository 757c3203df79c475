package source

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"slices"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	appLog "calscan/internal/log"
)

// DefaultMaxPages bounds how many PDF pages DecodeDocument returns.
const DefaultMaxPages = 24

// ErrNoPageImages is returned for PDFs without embedded raster images,
// such as documents typeset as vector text.
var ErrNoPageImages = errors.New("source: PDF has no embedded page images")

func init() {
	// pdfcpu otherwise creates a config directory under the user's home.
	api.DisableConfigDir()
}

// IsPDF reports whether data starts with the PDF header.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, []byte("%PDF-"))
}

// DecodePages returns one image per PDF page that embeds one, in page
// order. When a page holds several images the largest is taken; on a
// scanned or photographed calendar that is the page itself. maxPages <= 0
// means no limit.
func DecodePages(data []byte, maxPages int) ([]image.Image, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	pages, err := api.ExtractImagesRaw(bytes.NewReader(data), nil, conf)
	if err != nil {
		return nil, fmt.Errorf("source: read PDF: %w", err)
	}

	largest := make(map[int]model.Image)
	for _, objs := range pages {
		for _, img := range objs {
			cur, ok := largest[img.PageNr]
			if !ok || img.Width*img.Height > cur.Width*cur.Height {
				largest[img.PageNr] = img
			}
		}
	}
	nrs := make([]int, 0, len(largest))
	for nr := range largest {
		nrs = append(nrs, nr)
	}
	slices.Sort(nrs)
	if maxPages > 0 && len(nrs) > maxPages {
		appLog.Info("source: PDF truncated", "pages", len(nrs), "max", maxPages)
		nrs = nrs[:maxPages]
	}

	out := make([]image.Image, 0, len(nrs))
	for _, nr := range nrs {
		img, format, err := image.Decode(largest[nr])
		if err != nil {
			appLog.Debug("source: skipped undecodable PDF image", "page", nr, "type", largest[nr].FileType, "err", err.Error())
			continue
		}
		if img.Bounds().Empty() {
			continue
		}
		appLog.Debug("source: PDF page image", "page", nr, "format", format, "size", img.Bounds().Size().String())
		out = append(out, img)
	}
	if len(out) == 0 {
		return nil, ErrNoPageImages
	}
	return out, nil
}

// DecodeDocument decodes an uploaded or fetched document into page images:
// a PDF yields its pages, any supported image yields itself.
func DecodeDocument(data []byte) ([]image.Image, error) {
	if IsPDF(data) {
		return DecodePages(data, DefaultMaxPages)
	}
	img, _, err := DecodeImage(data)
	if err != nil {
		return nil, err
	}
	return []image.Image{img}, nil
}
