package services

import (
	"time"

	"budgetmail/internal/core"
)

// FireWindow is the hour on the last day of each month when monthly
// reports go out, evaluated in Location.
type FireWindow struct {
	Hour     int
	Location *time.Location
}

func (w FireWindow) loc() *time.Location {
	if w.Location == nil {
		return time.Local
	}
	return w.Location
}

// Contains reports whether now falls inside the window: the last calendar
// day of now's month, during Hour.
func (w FireWindow) Contains(now time.Time) bool {
	local := now.In(w.loc())
	return local.Day() == core.LastDayOfMonth(local) && local.Hour() == w.Hour
}

// Next returns the start of the first window strictly after now.
func (w FireWindow) Next(now time.Time) time.Time {
	local := now.In(w.loc())
	candidate := w.startIn(local.Year(), local.Month())
	if candidate.After(local) {
		return candidate
	}
	// time.Date normalizes month 13 into January of the following year.
	return w.startIn(local.Year(), local.Month()+1)
}

func (w FireWindow) startIn(year int, month time.Month) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, w.loc())
	return time.Date(first.Year(), first.Month(), core.LastDayOfMonth(first), w.Hour, 0, 0, 0, w.loc())
}

// StartOfNextDay returns local midnight following now.
func StartOfNextDay(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
}
