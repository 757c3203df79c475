package extract

import (
	"reflect"
	"testing"
	"time"

	"calscan/internal/model"
)

func TestDatePatternOrder(t *testing.T) {
	want := []string{"cross-month-range", "same-month-range", "single-date", "month-only"}
	if got := DatePatternNames(); !reflect.DeepEqual(got, want) {
		t.Fatalf("DatePatternNames() = %v, want %v", got, want)
	}
}

func TestListingCrossMonthRange(t *testing.T) {
	events := NewListingParser(2025).Parse("December 21-January 1 Winter Break")
	// Eleven December days plus New Year's Day.
	if len(events) != 12 {
		t.Fatalf("got %d events, want 12", len(events))
	}
	if got := events[0].Date.String(); got != "2025-12-21" {
		t.Errorf("first date = %s, want 2025-12-21", got)
	}
	if got := events[len(events)-1].Date.String(); got != "2026-01-01" {
		t.Errorf("last date = %s, want 2026-01-01", got)
	}
	for i, ev := range events {
		if ev.Title != "Winter Break" {
			t.Errorf("events[%d].Title = %q, want %q", i, ev.Title, "Winter Break")
		}
		if ev.Description != ListingDescription {
			t.Errorf("events[%d].Description = %q", i, ev.Description)
		}
		if !ev.AllDay() {
			t.Errorf("events[%d] should be all-day", i)
		}
		if i > 0 && ev.Date != events[i-1].Date.AddDays(1) {
			t.Errorf("events[%d].Date = %s, not consecutive", i, ev.Date)
		}
	}
}

func TestListingInvertedRangeEmitsNothing(t *testing.T) {
	p := NewListingParser(2025)
	for _, line := range []string{
		"May 29-3 Graduation Week",
		"April 13-10 Spring Break",
		"June 5-May 30 Summer Session",
	} {
		if events := p.Parse(line); len(events) != 0 {
			t.Errorf("Parse(%q) = %+v, want no events", line, events)
		}
	}

	events := p.Parse("April 13-10 Spring Break\nApril 20 Classes Resume")
	if len(events) != 1 || events[0].Title != "Classes Resume" {
		t.Errorf("events = %+v, want only Classes Resume", events)
	}
}

func TestListingSingleDate(t *testing.T) {
	events := NewListingParser(2025).Parse("August 20 Students Return")
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Date.String() != "2025-08-20" || events[0].Title != "Students Return" {
		t.Errorf("event = %s %q", events[0].Date, events[0].Title)
	}
}

func TestListingColonSeparator(t *testing.T) {
	events := NewListingParser(2025).Parse("September 1: Labor Day - No School")
	if len(events) != 1 || events[0].Title != "Labor Day - No School" {
		t.Fatalf("events = %+v", events)
	}
}

func TestListingFullCalendar(t *testing.T) {
	text := `
	SEMESTER 1
	August 11-12 Leadership Time
	August 13-19 Staff Development Time
	August 20 Students Return
	November 24-28 Fall Break

	SEMESTER 2
	April 6-10 Spring Break
	May 25 Memorial Day
	`
	events := Normalize(NewListingParser(2025).Parse(text))
	if len(events) != 2+7+1+5+5+1 {
		t.Fatalf("got %d events", len(events))
	}
	if events[0].Title != "Leadership Time" || events[len(events)-1].Date.String() != "2026-05-25" {
		t.Errorf("first = %q, last = %s", events[0].Title, events[len(events)-1].Date)
	}
}

func TestListingMonthOnlyUsesHolidayRules(t *testing.T) {
	events := NewListingParser(2025).Parse("May Memorial Day")
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if got := events[0].Date.String(); got != "2026-05-25" {
		t.Errorf("date = %s, want 2026-05-25", got)
	}
	if events[0].Title != "Memorial Day" {
		t.Errorf("title = %q, want Memorial Day", events[0].Title)
	}
}

func TestListingSameMonthRangeWithSeparator(t *testing.T) {
	events := NewListingParser(2025).Parse("Teachers | August 17-18 | New Teacher Orientation")
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	for _, ev := range events {
		if ev.Title != "New Teacher Orientation" {
			t.Errorf("title = %q", ev.Title)
		}
	}
	if events[1].Date.String() != "2025-08-18" {
		t.Errorf("second date = %s", events[1].Date)
	}
}

func TestListingTitleContinuation(t *testing.T) {
	text := "October 13\n\nIndigenous Peoples' Day\nOctober 14 Teacher Work Day"
	events := NewListingParser(2025).Parse(text)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2: %+v", len(events), events)
	}
	if events[0].Title != "Indigenous Peoples' Day" || events[0].Date.String() != "2025-10-13" {
		t.Errorf("events[0] = %s %q", events[0].Date, events[0].Title)
	}
	if events[1].Title != "Teacher Work Day" {
		t.Errorf("events[1].Title = %q", events[1].Title)
	}
}

func TestListingStripsLeakedMonthHeaders(t *testing.T) {
	events := NewListingParser(2025).Parse("January 4 MAY Staff Development Time")
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Title != "Staff Development Time" || events[0].Date.String() != "2026-01-04" {
		t.Errorf("event = %s %q", events[0].Date, events[0].Title)
	}
}

func TestListingRejectsGarbageTitles(t *testing.T) {
	for _, line := range []string{
		"March 3 i",
		"March 4 12",
		"March 5 ---",
		"March 6 ab",
	} {
		if events := NewListingParser(2025).Parse(line); len(events) != 0 {
			t.Errorf("Parse(%q) = %+v, want none", line, events)
		}
	}
}

func TestListingSkipsImpossibleDates(t *testing.T) {
	if events := NewListingParser(2025).Parse("February 30 Pajama Day"); len(events) != 0 {
		t.Errorf("got %+v, want none", events)
	}
}

func TestListingAppliesSubstitutions(t *testing.T) {
	events := NewListingParser(2025).Parse("April z Students Retum")
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Date.String() != "2026-04-02" || events[0].Title != "Students Return" {
		t.Errorf("event = %s %q", events[0].Date, events[0].Title)
	}
}

func TestListingCustomHolidayRules(t *testing.T) {
	rules := []HolidayRule{{Name: "Spring Fling", Keywords: []string{"fling"}, Month: time.March, Day: 20}}
	p := NewListingParser(2025, WithHolidayRules(rules))
	events := p.Parse("March Spring Fling")
	if len(events) != 1 || events[0].Date != (model.Date{Year: 2026, Month: time.March, Day: 20}) {
		t.Fatalf("events = %+v", events)
	}
	if got := p.Parse("May Memorial Day"); len(got) != 0 {
		t.Errorf("default rules should be replaced, got %+v", got)
	}
}

func TestAcademicYear(t *testing.T) {
	if got := AcademicYear(2025, time.August); got != 2025 {
		t.Errorf("August = %d, want 2025", got)
	}
	if got := AcademicYear(2025, time.July); got != 2026 {
		t.Errorf("July = %d, want 2026", got)
	}
}
