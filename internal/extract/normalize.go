package extract

import (
	"sort"
	"strings"

	"calscan/internal/model"
)

type dedupKey struct {
	date  model.Date
	title string
}

// Normalize drops repeated (date, title) pairs, comparing titles without
// regard to case or spacing, and orders the rest by date then title. The
// first occurrence of a duplicate is the one kept.
func Normalize(events []model.Event) []model.Event {
	seen := make(map[dedupKey]struct{}, len(events))
	out := make([]model.Event, 0, len(events))
	for _, ev := range events {
		k := dedupKey{date: ev.Date, title: strings.ToLower(collapseSpace(ev.Title))}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, ev)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Date.Compare(out[j].Date); c != 0 {
			return c < 0
		}
		return strings.ToLower(out[i].Title) < strings.ToLower(out[j].Title)
	})
	return out
}
