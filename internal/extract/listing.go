package extract

import (
	"regexp"
	"strconv"
	"strings"

	appLog "calscan/internal/log"
	"calscan/internal/model"
)

// ListingDescription tags every event produced from a free-text listing.
const ListingDescription = "From academic calendar"

// ListingParser turns the OCR text of a dated event listing ("August 20
// Students Return", "December 21-January 1 Winter Break") into events.
type ListingParser struct {
	anchor int
	rules  []HolidayRule
	rw     *Rewriter
}

// ListingOption configures a ListingParser.
type ListingOption func(*ListingParser)

// WithHolidayRules replaces the holiday table used for lines without a day.
func WithHolidayRules(rules []HolidayRule) ListingOption {
	return func(p *ListingParser) { p.rules = rules }
}

// WithRewriter replaces the OCR substitution table.
func WithRewriter(rw *Rewriter) ListingOption {
	return func(p *ListingParser) { p.rw = rw }
}

// NewListingParser returns a parser resolving months against the academic
// year that starts in August of academicYearStart.
func NewListingParser(academicYearStart int, opts ...ListingOption) *ListingParser {
	p := &ListingParser{
		anchor: academicYearStart,
		rules:  DefaultHolidayRules,
		rw:     defaultRewriter,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// lineMatch is what a date pattern recovered from one line.
type lineMatch struct {
	span  model.DateRange
	title string
}

type datePattern struct {
	name   string
	re     *regexp.Regexp
	handle func(p *ListingParser, line string, loc []int) (lineMatch, bool)
}

// datePatterns is evaluated first-match-wins, most specific first.
var datePatterns = []datePattern{
	{
		name:   "cross-month-range",
		re:     regexp.MustCompile(`(?i)` + monthAlt + `\s*(\d{1,2})\s*[-–,]\s*` + monthAlt + `\s*(\d{1,2})`),
		handle: (*ListingParser).crossMonth,
	},
	{
		name:   "same-month-range",
		re:     regexp.MustCompile(`(?i)` + monthAlt + `\s*(\d{1,2})\s*[-–]\s*(\d{1,2})`),
		handle: (*ListingParser).sameMonth,
	},
	{
		name:   "single-date",
		re:     regexp.MustCompile(`(?i)` + monthAlt + `\s*(\d{1,2})`),
		handle: (*ListingParser).singleDate,
	},
	{
		name:   "month-only",
		re:     regexp.MustCompile(`(?i)` + monthAlt + `\s+(.*)`),
		handle: (*ListingParser).monthOnly,
	},
}

// DatePatternNames reports the dispatch order of the listing date patterns.
func DatePatternNames() []string {
	names := make([]string, len(datePatterns))
	for i, p := range datePatterns {
		names[i] = p.name
	}
	return names
}

// Parse extracts events from text. Lines that cannot be resolved to a real
// date with a usable title are skipped. Output is not deduplicated; run
// it through Normalize.
func (p *ListingParser) Parse(text string) []model.Event {
	text = p.rw.Apply(foldText(text))
	lines := strings.Split(text, "\n")

	var events []model.Event
	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		m, ok := p.parseLine(line)
		if !ok {
			continue
		}
		if !m.span.Valid() {
			appLog.Debug("listing: dropped inverted date range", "line", line)
			continue
		}
		if m.title == "" {
			var next int
			m.title, next = continuationTitle(lines, i)
			if next > i {
				i = next
			}
		}
		if !acceptTitle(m.title) {
			appLog.Debug("listing: dropped line without usable title", "line", line)
			continue
		}
		for _, d := range ExpandRange(m.span) {
			events = append(events, model.Event{
				Title:       m.title,
				Date:        d,
				Description: ListingDescription,
				Confidence:  1.0,
			})
		}
	}
	return events
}

func (p *ListingParser) parseLine(line string) (lineMatch, bool) {
	for _, dp := range datePatterns {
		loc := dp.re.FindStringSubmatchIndex(line)
		if loc == nil {
			continue
		}
		if m, ok := dp.handle(p, line, loc); ok {
			return m, true
		}
	}
	return lineMatch{}, false
}

// continuationTitle looks at the next two non-empty lines for one without
// a date and returns its cleaned text and index. The index is i when
// nothing qualified.
func continuationTitle(lines []string, i int) (string, int) {
	seen := 0
	for j := i + 1; j < len(lines) && seen < 2; j++ {
		next := strings.TrimSpace(lines[j])
		if next == "" {
			continue
		}
		seen++
		if hasDateRe.MatchString(next) {
			continue
		}
		if title := cleanListingTitle(next); title != "" {
			return title, j
		}
	}
	return "", i
}

func (p *ListingParser) date(monthName, dayStr string) (model.Date, bool) {
	m, ok := lookupMonth(monthName)
	if !ok {
		return model.Date{}, false
	}
	day, err := strconv.Atoi(dayStr)
	if err != nil {
		return model.Date{}, false
	}
	return model.NewDate(AcademicYear(p.anchor, m), m, day)
}

func (p *ListingParser) crossMonth(line string, loc []int) (lineMatch, bool) {
	g := submatches(line, loc)
	start, ok := p.date(g[1], g[2])
	if !ok {
		return lineMatch{}, false
	}
	end, ok := p.date(g[3], g[4])
	if !ok {
		return lineMatch{}, false
	}
	// An inverted range still claims the line; Parse emits nothing for it.
	return lineMatch{span: model.DateRange{Start: start, End: end}, title: titleAfter(line, loc[1])}, true
}

func (p *ListingParser) sameMonth(line string, loc []int) (lineMatch, bool) {
	g := submatches(line, loc)
	start, ok := p.date(g[1], g[2])
	if !ok {
		return lineMatch{}, false
	}
	end, ok := p.date(g[1], g[3])
	if !ok {
		return lineMatch{}, false
	}
	// An inverted range still claims the line; Parse emits nothing for it.
	return lineMatch{span: model.DateRange{Start: start, End: end}, title: titleAfter(line, loc[1])}, true
}

func (p *ListingParser) singleDate(line string, loc []int) (lineMatch, bool) {
	g := submatches(line, loc)
	d, ok := p.date(g[1], g[2])
	if !ok {
		return lineMatch{}, false
	}
	return lineMatch{
		span:  model.DateRange{Start: d, End: d},
		title: titleAfter(line, loc[1]),
	}, true
}

func (p *ListingParser) monthOnly(line string, loc []int) (lineMatch, bool) {
	g := submatches(line, loc)
	m, ok := lookupMonth(g[1])
	if !ok {
		return lineMatch{}, false
	}
	rest := strings.TrimSpace(g[2])
	if rest == "" {
		return lineMatch{}, false
	}
	year := AcademicYear(p.anchor, m)
	day, ok := InferDay(p.rules, rest, m, year)
	if !ok {
		appLog.Debug("listing: no day for month-only line", "month", m, "text", rest)
		return lineMatch{}, false
	}
	d, ok := model.NewDate(year, m, day)
	if !ok {
		return lineMatch{}, false
	}
	title := cleanListingTitle(rest)
	if !acceptTitle(title) {
		return lineMatch{}, false
	}
	return lineMatch{span: model.DateRange{Start: d, End: d}, title: title}, true
}

// titleAfter reads the title that follows the date span. Text before the
// date is never used since it is usually a leaked grid header.
func titleAfter(line string, end int) string {
	after := line[end:]
	if i := strings.Index(after, "|"); i >= 0 {
		return cleanListingTitle(after[i+1:])
	}
	if i := strings.Index(after, "["); i >= 0 {
		return cleanListingTitle(strings.TrimRight(after[i+1:], "]"))
	}
	return cleanListingTitle(after)
}
