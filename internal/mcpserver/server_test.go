package mcpserver

import (
	"context"
	"encoding/json"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"calscan/internal/config"
	"calscan/internal/ocr"
	"calscan/internal/source/pdftest"
	"calscan/internal/store"
)

type textEngine struct{ text string }

func (e textEngine) Name() string { return "text" }

func (e textEngine) Recognize(context.Context, image.Image, ocr.Options) (ocr.Result, error) {
	return ocr.Result{Text: e.text}, nil
}

func newTools(t *testing.T) *Tools {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.AcademicYearStart = 2025
	st, err := store.Open(store.MemoryPath)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return &Tools{Config: cfg, Engine: textEngine{text: "May 25 Memorial Day"}, Store: st, Version: "test"}
}

func call(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{Params: mcp.CallToolParams{Arguments: args}}
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatal("empty result")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content = %T, want TextContent", res.Content[0])
	}
	return tc.Text
}

func TestExtractTextStoresRun(t *testing.T) {
	tools := newTools(t)
	ctx := context.Background()

	res, err := tools.extractText(ctx, call(map[string]any{"text": "August 20 Students Return\nSeptember 1: Labor Day"}))
	if err != nil || res.IsError {
		t.Fatalf("extract_text: %v %s", err, resultText(t, res))
	}
	var out extractResult
	if err := json.Unmarshal([]byte(resultText(t, res)), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Count != 2 || out.Events[0].Date != "2025-08-20" || out.RunID == "" {
		t.Fatalf("result = %+v", out)
	}

	res, _ = tools.getRunICS(ctx, call(map[string]any{"id": out.RunID}))
	if ics := resultText(t, res); !strings.Contains(ics, "SUMMARY:Labor Day") {
		t.Errorf("ics = %s", ics)
	}

	res, _ = tools.listRuns(ctx, call(map[string]any{"limit": float64(5)}))
	var runs []store.RunView
	if err := json.Unmarshal([]byte(resultText(t, res)), &runs); err != nil || len(runs) != 1 {
		t.Fatalf("runs = %+v, err = %v", runs, err)
	}
	if runs[0].Count != 2 || runs[0].Events != nil {
		t.Errorf("summary = %+v", runs[0])
	}
}

func TestExtractTextBulkNeedsMonth(t *testing.T) {
	res, err := newTools(t).extractText(context.Background(), call(map[string]any{"text": "3 - Meeting", "mode": "bulk"}))
	if err != nil || !res.IsError {
		t.Fatalf("want error result, got %+v, %v", res, err)
	}
}

func TestExtractImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calendar.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, image.NewGray(image.Rect(0, 0, 30, 20))); err != nil {
		t.Fatal(err)
	}
	f.Close()

	res, err := newTools(t).extractImage(context.Background(), call(map[string]any{"path": path}))
	if err != nil || res.IsError {
		t.Fatalf("extract_image: %v %s", err, resultText(t, res))
	}
	if !strings.Contains(resultText(t, res), `"date": "2026-05-25"`) {
		t.Errorf("result = %s", resultText(t, res))
	}

	res, _ = newTools(t).extractImage(context.Background(), call(map[string]any{"path": "notes.docx"}))
	if !res.IsError {
		t.Error("docx should be rejected")
	}
}

func TestExtractImagePDF(t *testing.T) {
	data, err := pdftest.Document(image.NewGray(image.Rect(0, 0, 30, 20)))
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "calendar.pdf")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	res, err := newTools(t).extractImage(context.Background(), call(map[string]any{"path": path}))
	if err != nil || res.IsError {
		t.Fatalf("extract_image: %v %s", err, resultText(t, res))
	}
	if !strings.Contains(resultText(t, res), `"date": "2026-05-25"`) {
		t.Errorf("result = %s", resultText(t, res))
	}

	missing := filepath.Join(t.TempDir(), "missing.pdf")
	if res, _ := newTools(t).extractImage(context.Background(), call(map[string]any{"path": missing})); !res.IsError {
		t.Error("missing file should be an error")
	}
}

func TestGetRunNotFound(t *testing.T) {
	res, err := newTools(t).getRun(context.Background(), call(map[string]any{"id": "nope"}))
	if err != nil || !res.IsError || !strings.Contains(resultText(t, res), "not found") {
		t.Fatalf("result = %+v, %v", res, err)
	}
}

func TestServerRegistersTools(t *testing.T) {
	s := newTools(t).Server()
	for _, name := range []string{"extract_text", "extract_image", "list_runs", "get_run", "get_run_ics"} {
		if s.GetTool(name) == nil {
			t.Errorf("tool %s not registered", name)
		}
	}
}
