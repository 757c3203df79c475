package extract

import (
	"regexp"
	"strconv"
	"time"

	"calscan/internal/model"
)

var (
	dayMarkerRe = regexp.MustCompile(`\b(\d{1,2})\s*[-:]\s*`)
	digitHeadRe = regexp.MustCompile(`^\d`)
)

// ParseBulk reads a whole month's OCR text when no grid could be found. A
// day number followed by "-" or ":" starts that day's text, which runs to
// the next marker and is parsed like a cell. Clock times are not markers.
func ParseBulk(text string, year int, month time.Month) []model.Event {
	type marker struct {
		day        int
		start, end int
	}
	var markers []marker
	for _, loc := range dayMarkerRe.FindAllStringSubmatchIndex(text, -1) {
		if loc[0] > 0 && text[loc[0]-1] == ':' {
			continue
		}
		if digitHeadRe.MatchString(text[loc[1]:]) {
			continue
		}
		day, err := strconv.Atoi(text[loc[2]:loc[3]])
		if err != nil {
			continue
		}
		markers = append(markers, marker{day: day, start: loc[0], end: loc[1]})
	}

	var events []model.Event
	for i, m := range markers {
		stop := len(text)
		if i+1 < len(markers) {
			stop = markers[i+1].start
		}
		d, ok := model.NewDate(year, month, m.day)
		if !ok {
			continue
		}
		events = append(events, ParseCell(text[m.end:stop], d, 1.0)...)
	}
	return events
}
