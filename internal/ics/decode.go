package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "calscan/internal/log"
	"calscan/internal/model"
)

// maxAllDaySpan bounds how many days one all-day VEVENT may expand to.
const maxAllDaySpan = 366

// Decode reads every VEVENT of an iCalendar document. Multi-day all-day
// events become one event per day; timed events are placed on their start
// date in loc. Events that cannot be read are logged and skipped.
func Decode(body []byte, loc *time.Location) ([]model.Event, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("ics: empty body")
	}
	if loc == nil {
		loc = time.UTC
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ics: parse: %w", err)
	}

	var out []model.Event
	for _, ve := range cal.Events() {
		evs, err := decodeEvent(ve, loc)
		if err != nil {
			appLog.Error("ics vevent skipped", err, "uid", propValue(ve, ical.ComponentPropertyUniqueId))
			continue
		}
		out = append(out, evs...)
	}
	appLog.Debug("ics decode completed", "events", len(out))
	return out, nil
}

func decodeEvent(ve *ical.VEvent, loc *time.Location) ([]model.Event, error) {
	base := model.Event{
		Title:       strings.TrimSpace(propValue(ve, ical.ComponentPropertySummary)),
		Description: propValue(ve, ical.ComponentPropertyDescription),
		Location:    propValue(ve, ical.ComponentPropertyLocation),
		Confidence:  1,
	}
	if base.Title == "" {
		return nil, errors.New("missing SUMMARY")
	}
	if v := propValue(ve, confidenceProp); v != "" {
		if c, err := strconv.ParseFloat(v, 64); err == nil && c >= 0 && c <= 1 {
			base.Confidence = c
		}
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return nil, errors.New("missing DTSTART")
	}

	if isDateValue(dtStart) {
		start, err := ve.GetAllDayStartAt()
		if err != nil {
			return nil, fmt.Errorf("DTSTART: %w", err)
		}
		first := model.DateOf(start)
		days := 1
		if end, err := ve.GetAllDayEndAt(); err == nil {
			// DTEND is exclusive for all-day events.
			if n := int(model.DateOf(end).Time(time.UTC).Sub(first.Time(time.UTC)).Hours() / 24); n > 1 {
				days = min(n, maxAllDaySpan)
			}
		}
		out := make([]model.Event, 0, days)
		for i := 0; i < days; i++ {
			ev := base
			ev.Date = first.AddDays(i)
			out = append(out, ev)
		}
		return out, nil
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return nil, fmt.Errorf("DTSTART: %w", err)
	}
	start = start.In(loc)
	ev := base
	ev.Date = model.DateOf(start)
	ev.Start = &model.Clock{Hour: start.Hour(), Minute: start.Minute()}
	if end, err := ve.GetEndAt(); err == nil {
		end = end.In(loc)
		ev.End = &model.Clock{Hour: end.Hour(), Minute: end.Minute()}
	}
	return []model.Event{ev}, nil
}

func isDateValue(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

func propValue(ve *ical.VEvent, prop ical.ComponentProperty) string {
	if p := ve.GetProperty(prop); p != nil {
		return p.Value
	}
	return ""
}
