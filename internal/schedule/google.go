// Package schedule pushes extracted events to Google Calendar.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"calscan/internal/ics"
	appLog "calscan/internal/log"
	"calscan/internal/model"
)

// DefaultCalendarID is the account's primary calendar.
const DefaultCalendarID = "primary"

// GoogleEvent converts an event to the Calendar API payload. All-day events
// use date-only bounds with an exclusive next-day end; timed events carry a
// dateTime and time zone and last one hour when End is unknown.
func GoogleEvent(ev model.Event, loc *time.Location) *calendar.Event {
	if loc == nil {
		loc = time.UTC
	}
	out := &calendar.Event{
		Id:          EventID(ev),
		Summary:     ev.Title,
		Description: ev.Description,
		Location:    ev.Location,
	}
	if ev.AllDay() {
		out.Start = &calendar.EventDateTime{Date: ev.Date.String()}
		out.End = &calendar.EventDateTime{Date: ev.Date.AddDays(1).String()}
		return out
	}

	start := ev.Start.On(ev.Date, loc)
	end := start.Add(time.Hour)
	if ev.End != nil {
		end = ev.End.On(ev.Date, loc)
	}
	tz := zoneName(loc)
	out.Start = &calendar.EventDateTime{DateTime: start.Format(time.RFC3339), TimeZone: tz}
	out.End = &calendar.EventDateTime{DateTime: end.Format(time.RFC3339), TimeZone: tz}
	return out
}

// EventID derives a Calendar event id from the event's stable identity so a
// repeated sync is rejected as a duplicate instead of inserting twice.
// Calendar ids allow lowercase hex digits.
func EventID(ev model.Event) string {
	return strings.ReplaceAll(ics.EventID(ev).String(), "-", "")
}

// zoneName returns an IANA name usable by the API, or "" when only the
// offset inside dateTime is meaningful.
func zoneName(loc *time.Location) string {
	if name := loc.String(); name != "Local" {
		return name
	}
	return ""
}

// Calendar is one entry of the account's calendar list.
type Calendar struct {
	ID         string `json:"id"`
	Summary    string `json:"summary"`
	Primary    bool   `json:"primary"`
	AccessRole string `json:"access_role"`
	TimeZone   string `json:"time_zone,omitempty"`
}

// Failure records one event the API rejected.
type Failure struct {
	Index int    `json:"index"`
	Title string `json:"title"`
	Error string `json:"error"`
}

// Result summarises a sync.
type Result struct {
	Created  int       `json:"created"`
	Existing int       `json:"existing"`
	Failed   []Failure `json:"failed,omitempty"`
}

// Syncer inserts events into one calendar.
type Syncer struct {
	svc        *calendar.Service
	calendarID string
	loc        *time.Location
}

// Options configures NewSyncer.
type Options struct {
	CredentialsFile string
	CalendarID      string
	Location        *time.Location
	// ClientOptions are appended after the credentials option.
	ClientOptions []option.ClientOption
}

// NewSyncer builds a Calendar API client from a service account or OAuth
// credentials file.
func NewSyncer(ctx context.Context, opts Options) (*Syncer, error) {
	var co []option.ClientOption
	if opts.CredentialsFile != "" {
		co = append(co,
			option.WithCredentialsFile(opts.CredentialsFile),
			option.WithScopes(calendar.CalendarScope),
		)
	}
	co = append(co, opts.ClientOptions...)
	if len(co) == 0 {
		return nil, errors.New("schedule: credentials file is required")
	}

	svc, err := calendar.NewService(ctx, co...)
	if err != nil {
		return nil, fmt.Errorf("schedule: calendar client: %w", err)
	}
	s := &Syncer{svc: svc, calendarID: opts.CalendarID, loc: opts.Location}
	if s.calendarID == "" {
		s.calendarID = DefaultCalendarID
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	return s, nil
}

// CalendarID is the target calendar.
func (s *Syncer) CalendarID() string { return s.calendarID }

// Sync inserts every event, anchoring timed events in loc (the syncer's
// zone when nil). Events the calendar already holds count as Existing;
// other API errors are collected per event and do not stop the sync. Only
// a cancelled context aborts early.
func (s *Syncer) Sync(ctx context.Context, events []model.Event, loc *time.Location) (Result, error) {
	if loc == nil {
		loc = s.loc
	}
	var res Result
	for i, ev := range events {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		_, err := s.svc.Events.Insert(s.calendarID, GoogleEvent(ev, loc)).Context(ctx).Do()
		switch {
		case err == nil:
			res.Created++
		case isConflict(err):
			res.Existing++
		default:
			appLog.Error("calendar insert failed", err, "calendar", s.calendarID, "title", ev.Title, "date", ev.Date.String())
			res.Failed = append(res.Failed, Failure{Index: i, Title: ev.Title, Error: err.Error()})
		}
	}
	appLog.Info("calendar sync done",
		"calendar", s.calendarID,
		"created", res.Created,
		"existing", res.Existing,
		"failed", len(res.Failed),
	)
	return res, nil
}

// Calendars lists every calendar the credentials can see, following pages.
func (s *Syncer) Calendars(ctx context.Context) ([]Calendar, error) {
	var out []Calendar
	token := ""
	for {
		call := s.svc.CalendarList.List().Context(ctx)
		if token != "" {
			call = call.PageToken(token)
		}
		page, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("schedule: list calendars: %w", err)
		}
		for _, item := range page.Items {
			out = append(out, Calendar{
				ID:         item.Id,
				Summary:    item.Summary,
				Primary:    item.Primary,
				AccessRole: item.AccessRole,
				TimeZone:   item.TimeZone,
			})
		}
		if page.NextPageToken == "" {
			return out, nil
		}
		token = page.NextPageToken
	}
}

func isConflict(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusConflict
}
