package extract

import (
	"regexp"
	"strconv"
	"strings"

	"calscan/internal/model"
)

// TimeSpan is a start time with an optional end, as read from one
// fragment of cell text.
type TimeSpan struct {
	Start model.Clock
	End   *model.Clock
}

// timePattern pairs a regular expression with the handler that turns its
// submatches into a TimeSpan. A handler may decline a match, in which case
// the next pattern is tried.
type timePattern struct {
	name   string
	re     *regexp.Regexp
	handle func(g []string) (TimeSpan, bool)
	// rejectRangeTail drops matches immediately followed by a range dash.
	rejectRangeTail bool
}

// timePatterns is ordered most specific first. Range forms must precede
// single forms or a range's first half is consumed as a standalone time.
var timePatterns = []timePattern{
	{
		name:   "hm-meridiem-range",
		re:     regexp.MustCompile(`(?i)(\d{1,2}):(\d{2})(?:\s*(am|pm)\b)?\s*[-–]\s*(\d{1,2}):(\d{2})(?:\s*(am|pm)\b)?`),
		handle: handleMeridiemRange,
	},
	{
		name:   "hm-range",
		re:     regexp.MustCompile(`(\d{1,2}):(\d{2})\s*[-–]\s*(\d{1,2}):(\d{2})`),
		handle: handleBareRange,
	},
	{
		// Both ends carry AM/PM; minutes are optional on either end.
		name:   "meridiem-range",
		re:     regexp.MustCompile(`(?i)(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b\s*[-–]\s*(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b`),
		handle: handleMeridiemEndsRange,
	},
	{
		name:   "hm-meridiem",
		re:     regexp.MustCompile(`(?i)(\d{1,2}):(\d{2})\s*(am|pm)\b`),
		handle: handleMeridiemSingle,
	},
	{
		name:   "h-meridiem",
		re:     regexp.MustCompile(`(?i)(\d{1,2})\s*(am|pm)\b`),
		handle: handleHourSingle,
	},
	{
		name:            "hm-bare",
		re:              regexp.MustCompile(`(\d{1,2}):(\d{2})`),
		handle:          handleBareSingle,
		rejectRangeTail: true,
	},
}

var rangeTailRe = regexp.MustCompile(`^\s*[-–]`)

// TimePatternNames reports the dispatch order of the time patterns.
func TimePatternNames() []string {
	names := make([]string, len(timePatterns))
	for i, p := range timePatterns {
		names[i] = p.name
	}
	return names
}

// ExtractTime finds the first time expression in text. It returns the
// parsed span and text with the matched substring removed. ok is false
// when no pattern applies, which callers treat as an all-day entry.
func ExtractTime(text string) (span TimeSpan, residual string, ok bool) {
	for _, p := range timePatterns {
		loc := p.find(text)
		if loc == nil {
			continue
		}
		groups := submatches(text, loc)
		span, ok := p.handle(groups)
		if !ok {
			continue
		}
		residual = strings.TrimSpace(text[:loc[0]] + text[loc[1]:])
		return span, residual, true
	}
	return TimeSpan{}, "", false
}

// find returns the first match that starts a number. A match beginning
// right after a digit or ':' is the tail of a longer time, as in the "00"
// of "7:00".
func (p timePattern) find(text string) []int {
	for _, loc := range p.re.FindAllStringSubmatchIndex(text, -1) {
		if loc[0] > 0 && isClockByte(text[loc[0]-1]) {
			continue
		}
		if p.rejectRangeTail && rangeTailRe.MatchString(text[loc[1]:]) {
			continue
		}
		return loc
	}
	return nil
}

func isClockByte(b byte) bool {
	return b == ':' || (b >= '0' && b <= '9')
}

func submatches(text string, loc []int) []string {
	out := make([]string, len(loc)/2)
	for i := range out {
		if loc[2*i] >= 0 {
			out[i] = text[loc[2*i]:loc[2*i+1]]
		}
	}
	return out
}

func handleMeridiemRange(g []string) (TimeSpan, bool) {
	startMer, endMer := g[3], g[6]
	if startMer == "" && endMer == "" {
		// Leave meridiem-free ranges to the bare-range form.
		return TimeSpan{}, false
	}
	inherited := startMer == ""
	if inherited {
		startMer = endMer
	}
	start, ok := meridiemClock(g[1], g[2], startMer)
	if !ok {
		return TimeSpan{}, false
	}
	end, ok := meridiemClock(g[4], g[5], endMer)
	if !ok {
		return TimeSpan{}, false
	}
	// "11:00 - 1:00 PM": the borrowed PM would put the start after the end.
	if inherited && clockAfter(start, end) {
		if am, ok := meridiemClock(g[1], g[2], "am"); ok {
			start = am
		}
	}
	return TimeSpan{Start: start, End: &end}, true
}

func handleBareRange(g []string) (TimeSpan, bool) {
	start, ok := bareClock(g[1], g[2])
	if !ok {
		return TimeSpan{}, false
	}
	end, ok := bareClock(g[3], g[4])
	if !ok {
		return TimeSpan{}, false
	}
	return TimeSpan{Start: start, End: &end}, true
}

func handleMeridiemEndsRange(g []string) (TimeSpan, bool) {
	start, ok := meridiemClock(g[1], orZero(g[2]), g[3])
	if !ok {
		return TimeSpan{}, false
	}
	end, ok := meridiemClock(g[4], orZero(g[5]), g[6])
	if !ok {
		return TimeSpan{}, false
	}
	return TimeSpan{Start: start, End: &end}, true
}

func orZero(minute string) string {
	if minute == "" {
		return "0"
	}
	return minute
}

func handleMeridiemSingle(g []string) (TimeSpan, bool) {
	start, ok := meridiemClock(g[1], g[2], g[3])
	return TimeSpan{Start: start}, ok
}

func handleHourSingle(g []string) (TimeSpan, bool) {
	start, ok := meridiemClock(g[1], "0", g[2])
	return TimeSpan{Start: start}, ok
}

func handleBareSingle(g []string) (TimeSpan, bool) {
	start, ok := bareClock(g[1], g[2])
	return TimeSpan{Start: start}, ok
}

// meridiemClock applies 12-hour rules: PM adds 12 except at 12, 12 AM is
// midnight. An empty meridiem leaves the hour as written.
func meridiemClock(hourStr, minuteStr, meridiem string) (model.Clock, bool) {
	hour, minute, ok := atoiHM(hourStr, minuteStr)
	if !ok {
		return model.Clock{}, false
	}
	switch strings.ToUpper(meridiem) {
	case "PM":
		if hour != 12 {
			hour += 12
		}
	case "AM":
		if hour == 12 {
			hour = 0
		}
	}
	return model.Clock{Hour: hour % 24, Minute: minute}, true
}

// bareClock reads a time written without AM/PM. Hours 1 through 7 are
// taken as afternoon.
func bareClock(hourStr, minuteStr string) (model.Clock, bool) {
	hour, minute, ok := atoiHM(hourStr, minuteStr)
	if !ok {
		return model.Clock{}, false
	}
	if hour >= 1 && hour <= 7 {
		hour += 12
	}
	return model.Clock{Hour: hour % 24, Minute: minute}, true
}

func atoiHM(hourStr, minuteStr string) (int, int, bool) {
	hour, err := strconv.Atoi(hourStr)
	if err != nil {
		return 0, 0, false
	}
	minute, err := strconv.Atoi(minuteStr)
	if err != nil || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}

func clockAfter(a, b model.Clock) bool {
	if a.Hour != b.Hour {
		return a.Hour > b.Hour
	}
	return a.Minute > b.Minute
}
