package ocr

import (
	"context"
	"fmt"
	"image"
	"strings"

	appLog "calscan/internal/log"
)

// Pass is one recognition attempt over a whole page.
type Pass struct {
	Name    string
	PSM     PageSegMode
	Prepare func(image.Image) image.Image
}

// DefaultPasses trades time for recall: each pass catches lines the
// others miss on some layouts.
func DefaultPasses() []Pass {
	return []Pass{
		{Name: "auto", PSM: PSMAuto},
		{Name: "block", PSM: PSMSingleBlock},
		{Name: "gray", PSM: PSMSingleBlock, Prepare: Grayscale},
		{Name: "stretch", PSM: PSMSingleBlock, Prepare: Stretch},
		{Name: "upscale", PSM: PSMSingleBlock, Prepare: func(img image.Image) image.Image { return Upscale(img, 2) }},
	}
}

// MultiPass runs every pass and merges their lines. A failed pass is logged
// and skipped; ErrNoText is returned only when no pass produced text.
func MultiPass(ctx context.Context, eng Engine, img image.Image, opts Options, passes []Pass) (string, error) {
	if len(passes) == 0 {
		passes = DefaultPasses()
	}
	var texts []string
	for _, p := range passes {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		in := img
		if p.Prepare != nil {
			in = p.Prepare(img)
		}
		o := opts
		o.PSM = p.PSM
		res, err := eng.Recognize(ctx, in, o)
		if err != nil {
			appLog.Error("ocr: pass failed", err, "engine", eng.Name(), "pass", p.Name)
			continue
		}
		if t := strings.TrimSpace(res.Text); t != "" {
			texts = append(texts, t)
		}
	}
	if len(texts) == 0 {
		return "", fmt.Errorf("%w (%d passes)", ErrNoText, len(passes))
	}
	return MergeLines(texts), nil
}

// MergeLines concatenates the lines of several OCR outputs in order,
// keeping the first of any near-duplicate lines.
func MergeLines(texts []string) string {
	var kept, keys []string
	for _, text := range texts {
		for _, line := range strings.Split(text, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			key := lineKey(line)
			dup := false
			for _, k := range keys {
				if similarKeys(key, k) {
					dup = true
					break
				}
			}
			if dup {
				continue
			}
			keys = append(keys, key)
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func lineKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), " ", "")
}

// similarKeys treats equal lines as duplicates, and also lines where one
// contains the other once both exceed ten characters.
func similarKeys(a, b string) bool {
	if a == b {
		return true
	}
	if len(a) > 10 && len(b) > 10 {
		return strings.Contains(a, b) || strings.Contains(b, a)
	}
	return false
}
