package extract

import (
	"regexp"
	"strings"
	"time"
)

// monthNames maps every spelling the listing parser accepts to a month.
var monthNames = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may": time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

// monthAlt lists full names before abbreviations so "june" wins over "jun".
const monthAlt = `(january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sep|sept|oct|nov|dec)`

// monthAltNC is monthAlt without a capture group, for substitution patterns.
const monthAltNC = `(?:january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sep|sept|oct|nov|dec)`

var hasDateRe = regexp.MustCompile(`(?i)` + monthAlt + `\s*\d{1,2}`)

func lookupMonth(s string) (time.Month, bool) {
	m, ok := monthNames[strings.ToLower(s)]
	return m, ok
}

// isMonthToken reports whether a title word is a bare month name, which
// happens when grid headers bleed into the listing column.
func isMonthToken(word string) bool {
	_, ok := monthNames[strings.TrimRight(strings.ToLower(word), ".,")]
	return ok
}

// AcademicYear resolves a month to a calendar year. Academic years start
// in August: August..December use the anchor, January..July anchor+1.
func AcademicYear(anchor int, m time.Month) int {
	if m >= time.August {
		return anchor
	}
	return anchor + 1
}
