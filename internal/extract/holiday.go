package extract

import (
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"calscan/internal/model"
)

// HolidayRule recovers the day of a named event when OCR dropped the day
// number. A rule applies when the listing line's month equals Month and
// the title contains any of Keywords (case-insensitive).
//
// Either Day is set (fixed date) or Weekday+Nth (e.g. "MO", -1 for the last
// Monday of the month).
type HolidayRule struct {
	Name     string     `yaml:"name" json:"name"`
	Keywords []string   `yaml:"keywords" json:"keywords"`
	Month    time.Month `yaml:"month" json:"month"`
	Day      int        `yaml:"day,omitempty" json:"day,omitempty"`
	Weekday  string     `yaml:"weekday,omitempty" json:"weekday,omitempty"`
	Nth      int        `yaml:"nth,omitempty" json:"nth,omitempty"`
}

// DefaultHolidayRules is evaluated top to bottom; the first match wins.
//
// The June "last day", "students return" and "staff development" entries
// are point estimates taken from known district calendars, not rules.
var DefaultHolidayRules = []HolidayRule{
	{Name: "Memorial Day", Keywords: []string{"memorial"}, Month: time.May, Weekday: "MO", Nth: -1},
	{Name: "Labor Day", Keywords: []string{"labor"}, Month: time.September, Weekday: "MO", Nth: 1},
	{Name: "Indigenous Peoples' Day", Keywords: []string{"indigenous", "columbus"}, Month: time.October, Weekday: "MO", Nth: 2},
	{Name: "Veterans Day", Keywords: []string{"veteran"}, Month: time.November, Day: 11},
	{Name: "Martin Luther King Jr. Day", Keywords: []string{"martin luther", "mlk"}, Month: time.January, Weekday: "MO", Nth: 3},
	{Name: "Juneteenth", Keywords: []string{"juneteenth"}, Month: time.June, Day: 19},
	{Name: "Independence Day", Keywords: []string{"independence"}, Month: time.July, Day: 4},
	{Name: "Last Day of School", Keywords: []string{"last day", "graduation"}, Month: time.June, Day: 4},
	{Name: "Students Return", Keywords: []string{"students return"}, Month: time.December, Day: 1},
	{Name: "Students Return", Keywords: []string{"students return"}, Month: time.January, Day: 5},
	{Name: "Students Return", Keywords: []string{"students return"}, Month: time.February, Day: 23},
	{Name: "Students Return", Keywords: []string{"students return"}, Month: time.April, Day: 13},
	{Name: "Staff Development", Keywords: []string{"staff development"}, Month: time.January, Day: 4},
	{Name: "Staff Development", Keywords: []string{"staff development"}, Month: time.November, Day: 30},
}

var rruleWeekdays = map[string]rrule.Weekday{
	"MO": rrule.MO,
	"TU": rrule.TU,
	"WE": rrule.WE,
	"TH": rrule.TH,
	"FR": rrule.FR,
	"SA": rrule.SA,
	"SU": rrule.SU,
}

// InferDay returns the day of month for title in month/year using the
// first matching rule, or false when nothing matches. Callers must drop
// the line on false rather than guess.
func InferDay(rules []HolidayRule, title string, month time.Month, year int) (int, bool) {
	lower := strings.ToLower(title)
	for _, r := range rules {
		if r.Month != month || !r.matches(lower) {
			continue
		}
		return r.dayIn(year)
	}
	return 0, false
}

func (r HolidayRule) matches(lowerTitle string) bool {
	for _, kw := range r.Keywords {
		if kw != "" && strings.Contains(lowerTitle, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func (r HolidayRule) dayIn(year int) (int, bool) {
	if r.Nth == 0 {
		if _, ok := model.NewDate(year, r.Month, r.Day); !ok {
			return 0, false
		}
		return r.Day, true
	}

	wd, ok := rruleWeekdays[strings.ToUpper(r.Weekday)]
	if !ok {
		return 0, false
	}
	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.MONTHLY,
		Dtstart:   time.Date(year, r.Month, 1, 0, 0, 0, 0, time.UTC),
		Bymonth:   []int{int(r.Month)},
		Byweekday: []rrule.Weekday{wd.Nth(r.Nth)},
		Until:     time.Date(year, r.Month+1, 0, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		return 0, false
	}
	occ := rule.All()
	// A fifth weekday may not exist this year.
	if len(occ) == 0 {
		return 0, false
	}
	return occ[0].Day(), true
}
