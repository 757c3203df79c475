// Package ics converts extracted events to and from iCalendar documents.
package ics

import (
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"calscan/internal/model"
)

// DefaultProductID identifies documents written by Encode.
const DefaultProductID = "-//calscan//calendar extraction//EN"

// confidenceProp carries the OCR confidence through an export/import cycle.
const confidenceProp = ical.ComponentProperty("X-CALSCAN-CONFIDENCE")

// uidSpace namespaces event UIDs so re-exports of the same run keep them.
var uidSpace = uuid.MustParse("6f1c1c8e-4a57-4b7e-9d59-2b0d6c3f4a10")

// EncodeOptions controls calendar-level properties.
type EncodeOptions struct {
	Name      string
	ProductID string
	// Location is the zone timed events are anchored in; nil means UTC.
	Location *time.Location
	// Now stamps DTSTAMP; zero means time.Now.
	Now time.Time
}

// Encode renders events as a PUBLISH calendar. All-day events become
// VALUE=DATE events ending the next day; timed events without an end last
// one hour.
func Encode(events []model.Event, opts EncodeOptions) string {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	pid := opts.ProductID
	if pid == "" {
		pid = DefaultProductID
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(pid)
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}
	cal.SetXWRTimezone(loc.String())

	for _, ev := range events {
		ve := cal.AddEvent(EventUID(ev))
		ve.SetDtStampTime(now.UTC())
		ve.SetSummary(ev.Title)
		if ev.Description != "" {
			ve.SetDescription(ev.Description)
		}
		if ev.Location != "" {
			ve.SetLocation(ev.Location)
		}
		if ev.AllDay() {
			ve.SetAllDayStartAt(ev.Date.Time(loc))
			ve.SetAllDayEndAt(ev.Date.AddDays(1).Time(loc))
		} else {
			start := ev.Start.On(ev.Date, loc)
			end := start.Add(time.Hour)
			if ev.End != nil {
				end = ev.End.On(ev.Date, loc)
			}
			ve.SetStartAt(start)
			ve.SetEndAt(end)
		}
		if ev.Confidence > 0 && ev.Confidence < 1 {
			ve.SetProperty(confidenceProp, strconv.FormatFloat(ev.Confidence, 'f', 3, 64))
		}
	}
	return cal.Serialize()
}

// EventID is stable for a given date, start time and title. Sync targets
// use it to recognise events they already hold.
func EventID(ev model.Event) uuid.UUID {
	key := ev.Date.String() + "|" + strings.ToLower(strings.Join(strings.Fields(ev.Title), " "))
	if ev.Start != nil {
		key += "|" + ev.Start.String()
	}
	return uuid.NewSHA1(uidSpace, []byte(key))
}

// EventUID is the iCalendar UID form of EventID.
func EventUID(ev model.Event) string {
	return EventID(ev).String() + "@calscan"
}
