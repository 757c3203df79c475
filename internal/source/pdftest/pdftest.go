// Package pdftest builds small scanned-style PDFs for tests: one JPEG
// image drawn full-page on each page.
package pdftest

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
)

// Document returns a PDF with one page per image. Each page embeds its
// image as a DCTDecode XObject sized to the page. A nil image gives a page
// with no images.
func Document(pages ...image.Image) ([]byte, error) {
	var (
		buf     bytes.Buffer
		offsets []int
	)
	obj := func(body string, stream []byte) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s", len(offsets), body)
		if stream != nil {
			buf.WriteString("\nstream\n")
			buf.Write(stream)
			buf.WriteString("\nendstream")
		}
		buf.WriteString("\nendobj\n")
	}

	buf.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")

	kids := ""
	for i := range pages {
		kids += fmt.Sprintf("%d 0 R ", 3+3*i)
	}
	obj("<< /Type /Catalog /Pages 2 0 R >>", nil)
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, len(pages)), nil)

	for i, img := range pages {
		_, xobj, content := 3+3*i, 4+3*i, 5+3*i
		w, h := 612, 792
		resources := "<< >>"
		ops := []byte{}
		if img != nil {
			w, h = img.Bounds().Dx(), img.Bounds().Dy()
			resources = fmt.Sprintf("<< /XObject << /Im0 %d 0 R >> >>", xobj)
			ops = fmt.Appendf(nil, "q %d 0 0 %d 0 0 cm /Im0 Do Q", w, h)
		}
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d %d] /Resources %s /Contents %d 0 R >>",
			w, h, resources, content), nil)

		if img != nil {
			rgba := image.NewRGBA(img.Bounds())
			draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
			var jpg bytes.Buffer
			if err := jpeg.Encode(&jpg, rgba, &jpeg.Options{Quality: 90}); err != nil {
				return nil, err
			}
			obj(fmt.Sprintf("<< /Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceRGB /BitsPerComponent 8 /Filter /DCTDecode /Length %d >>",
				w, h, jpg.Len()), jpg.Bytes())
		} else {
			obj("null", nil)
		}
		obj(fmt.Sprintf("<< /Length %d >>", len(ops)), ops)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes(), nil
}
