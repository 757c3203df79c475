package source

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"net/http"
	"path/filepath"
	"slices"
	"strings"

	// Decoders registered with image.Decode.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// SupportedExtensions lists the file types DecodeDocument accepts.
var SupportedExtensions = []string{".png", ".jpg", ".jpeg", ".bmp", ".tiff", ".tif", ".webp", ".gif", ".pdf"}

var (
	ErrUnsupportedFormat = errors.New("source: unsupported file format")
	// ErrPDF is returned by DecodeImage for PDFs, which hold pages; use
	// DecodeDocument.
	ErrPDF = errors.New("source: PDF is a multi-page document, not a single image")
)

// CheckName rejects file names whose extension is not supported.
func CheckName(name string) error {
	ext := strings.ToLower(filepath.Ext(name))
	if !slices.Contains(SupportedExtensions, ext) {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return nil
}

// DecodeImage decodes an image of any supported format and returns the
// format name reported by the decoder.
func DecodeImage(data []byte) (image.Image, string, error) {
	if IsPDF(data) {
		return nil, "", ErrPDF
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if img.Bounds().Empty() {
		return nil, "", fmt.Errorf("source: %s image has no pixels", format)
	}
	return img, format, nil
}

// Kind is how a fetched document should be read.
type Kind string

const (
	KindImage Kind = "image"
	KindText  Kind = "text"
	KindPage  Kind = "page"
)

// SniffKind guesses the kind of body from its bytes and declared type.
// HTML is a page to render, text/* is already OCR-free text, anything
// else is treated as an image.
func SniffKind(body []byte, contentType string) Kind {
	ct := contentType
	if ct == "" {
		ct = http.DetectContentType(body)
	}
	ct = strings.ToLower(ct)
	switch {
	case strings.HasPrefix(ct, "text/html"), strings.HasPrefix(ct, "application/xhtml"):
		return KindPage
	case strings.HasPrefix(ct, "text/"):
		return KindText
	default:
		return KindImage
	}
}
