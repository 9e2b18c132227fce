// Package week resolves the reporting windows for a batch of transactions.
// Weeks are Monday through Sunday; the month window tracks the calendar
// month of the newest transaction in the batch.
package week

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoDates is returned when a batch has no usable transaction dates.
var ErrNoDates = errors.New("no transaction dates in batch")

// Window is an inclusive date range. Start and End are midnight UTC.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether d falls inside the window.
func (w Window) Contains(d time.Time) bool {
	d = truncate(d)
	return !d.Before(w.Start) && !d.After(w.End)
}

func (w Window) String() string {
	return fmt.Sprintf("%s..%s", w.Start.Format("2006-01-02"), w.End.Format("2006-01-02"))
}

// Resolve picks the Monday–Sunday reporting week for a batch of dates.
//
// When the batch spans at most seven days it is a single-week export: the
// week snaps to the Monday on or before the earliest date. Wider batches are
// multi-week exports, and the reporting week is the most recent complete
// Monday–Sunday window ending on or before the latest date.
func Resolve(dates []time.Time) (Window, error) {
	if len(dates) == 0 {
		return Window{}, ErrNoDates
	}

	min, max := truncate(dates[0]), truncate(dates[0])
	for _, d := range dates[1:] {
		d = truncate(d)
		if d.Before(min) {
			min = d
		}
		if d.After(max) {
			max = d
		}
	}

	span := int(max.Sub(min).Hours()/24) + 1

	var start time.Time
	if span <= 7 {
		start = mondayOnOrBefore(min)
	} else {
		// Last complete week: the Sunday on or before max closes it.
		sunday := sundayOnOrBefore(max)
		start = sunday.AddDate(0, 0, -6)
	}

	w := Window{Start: start, End: start.AddDate(0, 0, 6)}
	if err := check(w); err != nil {
		return Window{}, err
	}
	return w, nil
}

// MonthOf returns the calendar-month window containing the latest date in
// the batch.
func MonthOf(dates []time.Time) (Window, error) {
	if len(dates) == 0 {
		return Window{}, ErrNoDates
	}

	max := truncate(dates[0])
	for _, d := range dates[1:] {
		if d = truncate(d); d.After(max) {
			max = d
		}
	}

	start := time.Date(max.Year(), max.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)
	return Window{Start: start, End: end}, nil
}

// check enforces the week shape after resolution. A violation here is a
// programming error, not bad input, and must abort the run before anything
// is written keyed on the window.
func check(w Window) error {
	if w.Start.Weekday() != time.Monday {
		return fmt.Errorf("week start %s is not a Monday", w.Start.Format("2006-01-02"))
	}
	if w.End.Weekday() != time.Sunday {
		return fmt.Errorf("week end %s is not a Sunday", w.End.Format("2006-01-02"))
	}
	if !w.End.Equal(w.Start.AddDate(0, 0, 6)) {
		return fmt.Errorf("week %s does not span seven days", w)
	}
	return nil
}

func mondayOnOrBefore(d time.Time) time.Time {
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

func sundayOnOrBefore(d time.Time) time.Time {
	return d.AddDate(0, 0, -int(d.Weekday()))
}

func truncate(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

// IsWeekend reports whether d is a Saturday or Sunday, the split used by the
// visit counters.
func IsWeekend(d time.Time) bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
