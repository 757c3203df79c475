package extract

import (
	"regexp"
	"strings"

	"calscan/internal/model"
)

// DefaultCellTitle names a timed entry whose cell held nothing but a time.
const DefaultCellTitle = "Event"

var (
	// A bullet or dash introducing a sub-item.
	cellItemRe = regexp.MustCompile(`(?:^|\s)[•·\-–]\s+`)
	// A dash between two clock times is a range, not an item break.
	clockTailRe = regexp.MustCompile(`(?i)\d{1,2}(?::\d{2})?\s*(?:am|pm)?\s*$`)
	clockHeadRe = regexp.MustCompile(`(?i)^\d{1,2}(?::\d{2}|\s*(?:am|pm)\b)`)
)

// ParseCell turns the OCR text of one day cell into events dated d. Each
// line or bulleted item becomes one event; items without a time are all-day.
func ParseCell(text string, d model.Date, confidence float64) []model.Event {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var events []model.Event
	for _, item := range splitCellItems(foldText(text)) {
		title := item
		ev := model.Event{Date: d, Confidence: confidence}
		if span, residual, ok := ExtractTime(item); ok {
			start := span.Start
			ev.Start = &start
			ev.End = span.End
			title = residual
			if strings.TrimSpace(title) == "" {
				title = DefaultCellTitle
			}
		}
		ev.Title = cleanCellTitle(title)
		if ev.Title == "" {
			continue
		}
		events = append(events, ev)
	}
	return events
}

func splitCellItems(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		prev := 0
		for _, loc := range cellItemRe.FindAllStringIndex(line, -1) {
			if clockTailRe.MatchString(line[:loc[0]]) && clockHeadRe.MatchString(line[loc[1]:]) {
				continue
			}
			out = appendItem(out, line[prev:loc[0]])
			prev = loc[1]
		}
		out = appendItem(out, line[prev:])
	}
	return out
}

func appendItem(items []string, s string) []string {
	if s = strings.TrimSpace(s); s != "" {
		items = append(items, s)
	}
	return items
}
