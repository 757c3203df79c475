package model

import "time"

// CalendarGrid describes a month laid out as week rows of day cells.
// FirstDayOffset is the column of the 1st of the month (0 = first column).
type CalendarGrid struct {
	Rows           int
	Cols           int
	FirstDayOffset int
}

// DateForCell maps a grid position to a day of the given month. Cells
// before the 1st or after the last day report false.
func (g CalendarGrid) DateForCell(row, col, year int, month time.Month) (Date, bool) {
	cols := g.Cols
	if cols <= 0 {
		cols = 7
	}
	day := row*cols + col - g.FirstDayOffset + 1
	return NewDate(year, month, day)
}

// FirstDayOffsetFor returns the column of the 1st of the month when the
// grid starts on startDay.
func FirstDayOffsetFor(year int, month time.Month, startDay time.Weekday) int {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Weekday()
	return (int(first) - int(startDay) + 7) % 7
}
