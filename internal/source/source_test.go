package source

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"calscan/internal/source/pdftest"
)

func TestCheckName(t *testing.T) {
	for _, name := range []string{"march.PNG", "scan.jpeg", "cal.webp", "cal.tiff", "a.bmp", "district.PDF"} {
		if err := CheckName(name); err != nil {
			t.Errorf("CheckName(%q) = %v", name, err)
		}
	}
	if err := CheckName("notes.docx"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("docx err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestDecodeImage(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 3, 2))); err != nil {
		t.Fatal(err)
	}
	img, format, err := DecodeImage(buf.Bytes())
	if err != nil {
		t.Fatalf("DecodeImage: %v", err)
	}
	if format != "png" || img.Bounds().Dx() != 3 {
		t.Errorf("format = %s, bounds = %v", format, img.Bounds())
	}

	if _, _, err := DecodeImage([]byte("%PDF-1.7 ...")); !errors.Is(err, ErrPDF) {
		t.Errorf("pdf err = %v", err)
	}
	if _, _, err := DecodeImage([]byte("hello")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("text err = %v", err)
	}
}

func TestDecodeDocumentPDFPages(t *testing.T) {
	data, err := pdftest.Document(
		image.NewRGBA(image.Rect(0, 0, 120, 90)),
		nil,
		image.NewRGBA(image.Rect(0, 0, 64, 48)),
	)
	if err != nil {
		t.Fatal(err)
	}
	pages, err := DecodeDocument(data)
	if err != nil {
		t.Fatalf("DecodeDocument: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("got %d pages, want 2 (image-less page skipped)", len(pages))
	}
	if got := pages[0].Bounds().Size(); got != image.Pt(120, 90) {
		t.Errorf("page 1 size = %v, want 120x90", got)
	}
	if got := pages[1].Bounds().Size(); got != image.Pt(64, 48) {
		t.Errorf("page 2 size = %v, want 64x48", got)
	}
}

func TestDecodeDocumentPDFWithoutImages(t *testing.T) {
	data, err := pdftest.Document(nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecodeDocument(data); !errors.Is(err, ErrNoPageImages) {
		t.Errorf("err = %v, want ErrNoPageImages", err)
	}
	if _, err := DecodeDocument([]byte("%PDF-1.7 truncated")); err == nil {
		t.Error("expected error for truncated PDF")
	}
}

func TestDecodeDocumentImage(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 5, 4))); err != nil {
		t.Fatal(err)
	}
	pages, err := DecodeDocument(buf.Bytes())
	if err != nil || len(pages) != 1 {
		t.Fatalf("pages = %d, err = %v", len(pages), err)
	}
}

func TestSniffKind(t *testing.T) {
	if k := SniffKind([]byte("<html><body>"), ""); k != KindPage {
		t.Errorf("html = %s", k)
	}
	if k := SniffKind(nil, "text/plain; charset=utf-8"); k != KindText {
		t.Errorf("text = %s", k)
	}
	if k := SniffKind([]byte{0x89, 'P', 'N', 'G'}, "image/png"); k != KindImage {
		t.Errorf("png = %s", k)
	}
}

func TestFetchUsesETagCache(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("August 20 Students Return"))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	remote := Remote{ID: "district", URL: srv.URL + "/calendar.txt"}

	first, err := f.Fetch(context.Background(), remote)
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if first.FromCache || string(first.Body) != "August 20 Students Return" {
		t.Errorf("first = %+v", first)
	}

	second, err := f.Fetch(context.Background(), remote)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if !second.FromCache || string(second.Body) != string(first.Body) || second.ContentType != "text/plain" {
		t.Errorf("second = %+v", second)
	}
	if hits.Load() != 2 {
		t.Errorf("hits = %d, want 2", hits.Load())
	}
}

func TestFetchFallsBackToCacheOnError(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		w.Write([]byte("cached copy"))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	remote := Remote{ID: "x", URL: srv.URL}
	if _, err := f.Fetch(context.Background(), remote); err != nil {
		t.Fatal(err)
	}
	fail.Store(true)
	res, err := f.Fetch(context.Background(), remote)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !res.FromCache || string(res.Body) != "cached copy" {
		t.Errorf("res = %+v", res)
	}

	if _, err := NewFetcher(t.TempDir()).Fetch(context.Background(), remote); err == nil {
		t.Error("expected error without cache")
	}
}

func TestRedactURL(t *testing.T) {
	if got := redactURL("https://cal.example.org/private/abc.png?token=s3cret"); got != "https://cal.example.org/...(redacted)" {
		t.Errorf("redactURL = %q", got)
	}
}
