package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"calscan/internal/model"
)

func runCLI(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	dir := t.TempDir()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", filepath.Join(dir, "config.yaml")}, args...))
	if err := cmd.Execute(); err != nil {
		t.Fatalf("calscan %v: %v", args, err)
	}
	return out.String()
}

func TestExtractTextFileJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calendar.txt")
	if err := os.WriteFile(path, []byte("August 20 Students Return\nJune 4 Last Day of School\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out := runCLI(t, "", "extract", "--academic-year-start", "2025", path)

	var recs []model.Record
	if err := json.Unmarshal([]byte(out), &recs); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(recs) != 2 || recs[0].Date != "2025-08-20" || recs[1].Date != "2026-06-04" {
		t.Errorf("records = %+v", recs)
	}
}

func TestExtractStdinICS(t *testing.T) {
	out := runCLI(t, "September 1 Labor Day\n", "extract", "--academic-year-start", "2025", "--format", "ics", "-")
	for _, want := range []string{"BEGIN:VCALENDAR", "SUMMARY:Labor Day", "DTSTART;VALUE=DATE:20250901"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteEventsUnknownFormat(t *testing.T) {
	if err := writeEvents(&bytes.Buffer{}, "csv", nil, nil); err == nil {
		t.Error("expected error for csv")
	}
}
