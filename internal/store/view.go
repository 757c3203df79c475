package store

import (
	"time"

	"calscan/internal/model"
)

// RunView is the JSON shape of a run served by the API and tool server.
type RunView struct {
	ID                string         `json:"id"`
	SourceID          string         `json:"source_id,omitempty"`
	Filename          string         `json:"filename,omitempty"`
	Mode              string         `json:"mode"`
	AcademicYearStart int            `json:"academic_year_start"`
	Timezone          string         `json:"timezone"`
	CreatedAt         time.Time      `json:"created_at"`
	Count             int            `json:"count"`
	RawText           string         `json:"raw_text,omitempty"`
	Events            []model.Record `json:"events,omitempty"`
}

// View converts run for serialization. Raw text and events are included
// only when withEvents is set.
func (r *Run) View(withEvents bool) RunView {
	v := RunView{
		ID:                r.ID,
		SourceID:          r.SourceID,
		Filename:          r.Filename,
		Mode:              r.Mode,
		AcademicYearStart: r.AcademicYearStart,
		Timezone:          r.Timezone,
		CreatedAt:         r.CreatedAt,
		Count:             r.EventCount,
	}
	if withEvents {
		v.RawText = r.RawText
		v.Events = model.Records(r.Events)
	}
	return v
}
