package extract

import (
	"testing"
	"time"

	"calscan/internal/model"
)

func TestInferDay(t *testing.T) {
	tests := []struct {
		title string
		month time.Month
		year  int
		want  int
	}{
		{"Memorial Day", time.May, 2026, 25},
		{"Labor Day - No School", time.September, 2025, 1},
		{"Indigenous Peoples' Day", time.October, 2025, 13},
		{"Columbus Day", time.October, 2024, 14},
		{"MLK Day", time.January, 2026, 19},
		{"Dr. Martin Luther King Jr. Day", time.January, 2025, 20},
		{"Veterans Day", time.November, 2025, 11},
		{"Juneteenth", time.June, 2026, 19},
		{"Independence Day", time.July, 2026, 4},
		{"Last Day of School", time.June, 2026, 4},
		{"Students Return", time.February, 2026, 23},
		{"Staff Development Time", time.November, 2025, 30},
	}
	for _, tt := range tests {
		got, ok := InferDay(DefaultHolidayRules, tt.title, tt.month, tt.year)
		if !ok || got != tt.want {
			t.Errorf("InferDay(%q, %s %d) = %d %v, want %d", tt.title, tt.month, tt.year, got, ok, tt.want)
		}
	}
}

func TestInferDayRequiresMonthAndKeyword(t *testing.T) {
	cases := []struct {
		title string
		month time.Month
	}{
		{"Memorial Day", time.June},
		{"Students Return", time.March},
		{"Spring Concert", time.May},
	}
	for _, c := range cases {
		if day, ok := InferDay(DefaultHolidayRules, c.title, c.month, 2026); ok {
			t.Errorf("InferDay(%q, %s) = %d, want no match", c.title, c.month, day)
		}
	}
}

func TestInferDayMissingFifthWeekday(t *testing.T) {
	rules := []HolidayRule{{Keywords: []string{"fifth"}, Month: time.February, Weekday: "MO", Nth: 5}}
	if day, ok := InferDay(rules, "Fifth Monday", time.February, 2026); ok {
		t.Errorf("got day %d, February 2026 has four Mondays", day)
	}
}

func TestExpandRange(t *testing.T) {
	r := model.DateRange{
		Start: model.Date{Year: 2024, Month: time.February, Day: 27},
		End:   model.Date{Year: 2024, Month: time.March, Day: 1},
	}
	days := ExpandRange(r)
	want := []string{"2024-02-27", "2024-02-28", "2024-02-29", "2024-03-01"}
	if len(days) != len(want) {
		t.Fatalf("ExpandRange = %v, want %v", days, want)
	}
	for i, d := range days {
		if d.String() != want[i] {
			t.Errorf("days[%d] = %s, want %s", i, d, want[i])
		}
	}

	if got := ExpandRange(model.DateRange{Start: r.End, End: r.Start}); got != nil {
		t.Errorf("inverted range = %v, want nil", got)
	}
}
