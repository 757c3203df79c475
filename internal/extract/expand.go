package extract

import (
	"time"

	"github.com/teambition/rrule-go"

	appLog "calscan/internal/log"
	"calscan/internal/model"
)

// ExpandRange returns every day of r, inclusive of both ends. An inverted
// range yields nothing.
func ExpandRange(r model.DateRange) []model.Date {
	if !r.Valid() {
		return nil
	}
	start := r.Start.Time(time.UTC)
	days := int(r.End.Time(time.UTC).Sub(start).Hours()/24) + 1

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.DAILY,
		Dtstart: start,
		Count:   days,
	})
	if err != nil {
		appLog.Error("expand: failed to build daily rule", err, "start", r.Start, "end", r.End)
		return nil
	}

	occ := rule.All()
	out := make([]model.Date, 0, len(occ))
	for _, t := range occ {
		out = append(out, model.DateOf(t))
	}
	return out
}
