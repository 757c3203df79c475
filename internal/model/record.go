package model

import "fmt"

// Record is the JSON form of an Event used by the API, the store and the
// CLI. Times are ISO "HH:MM:SS" strings or null.
type Record struct {
	Title       string  `json:"title"`
	Date        string  `json:"date"`
	StartTime   *string `json:"start_time"`
	EndTime     *string `json:"end_time"`
	IsAllDay    bool    `json:"is_all_day"`
	Description string  `json:"description"`
	Location    string  `json:"location"`
	Confidence  float64 `json:"confidence"`
}

func (e Event) Record() Record {
	r := Record{
		Title:       e.Title,
		Date:        e.Date.String(),
		IsAllDay:    e.AllDay(),
		Description: e.Description,
		Location:    e.Location,
		Confidence:  e.Confidence,
	}
	if e.Start != nil {
		s := e.Start.String()
		r.StartTime = &s
	}
	if e.End != nil {
		s := e.End.String()
		r.EndTime = &s
	}
	return r
}

// Event converts a Record back into an Event. IsAllDay is ignored since
// it is derived from StartTime.
func (r Record) Event() (Event, error) {
	d, err := ParseDate(r.Date)
	if err != nil {
		return Event{}, fmt.Errorf("model: record date: %w", err)
	}
	ev := Event{
		Title:       r.Title,
		Date:        d,
		Description: r.Description,
		Location:    r.Location,
		Confidence:  r.Confidence,
	}
	if r.StartTime != nil && *r.StartTime != "" {
		c, err := ParseClock(*r.StartTime)
		if err != nil {
			return Event{}, err
		}
		ev.Start = &c
	}
	if r.EndTime != nil && *r.EndTime != "" {
		c, err := ParseClock(*r.EndTime)
		if err != nil {
			return Event{}, err
		}
		ev.End = &c
	}
	return ev, nil
}

// Records converts a slice of events.
func Records(events []Event) []Record {
	out := make([]Record, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Record())
	}
	return out
}
