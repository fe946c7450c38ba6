// Package period maps named time periods to concrete date windows.
package period

import "time"

// Window is an inclusive [Start, End] date range, midnight-normalized in UTC.
type Window struct {
	Start time.Time `json:"start_date"`
	End   time.Time `json:"end_date"`
}

// Recognized period names.
const (
	CurrentMonth = "current_month"
	LastMonth    = "last_month"
	Last3Months  = "last_3_months"
	Last6Months  = "last_6_months"
	CurrentYear  = "current_year"
)

// Resolve maps a period name to its window relative to now. An unknown name
// resolves to the current month; that is the documented default, not an
// error.
func Resolve(name string, now time.Time) Window {
	switch name {
	case LastMonth:
		first := monthStart(now).AddDate(0, -1, 0)
		return Window{Start: first, End: monthEnd(first)}
	case Last3Months:
		return Window{Start: monthStart(back(now, 2)), End: monthEnd(now)}
	case Last6Months:
		return Window{Start: monthStart(back(now, 5)), End: monthEnd(now)}
	case CurrentYear:
		return YearWindow(now.Year())
	case CurrentMonth:
		fallthrough
	default:
		return MonthWindow(now.Year(), int(now.Month()))
	}
}

// MonthWindow returns the window covering one calendar month.
func MonthWindow(year, month int) Window {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return Window{Start: start, End: monthEnd(start)}
}

// YearWindow returns Jan 1 through Dec 31 of the given year.
func YearWindow(year int) Window {
	return Window{
		Start: time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC),
	}
}

// Contains reports whether t falls inside the window. End is inclusive for
// the whole closing day.
func (w Window) Contains(t time.Time) bool {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return !day.Before(w.Start) && !day.After(w.End)
}

// back returns a time n months before now, pinned to the first of the month
// so that short months cannot skip (Mar 31 minus one month must land in Feb).
func back(now time.Time, n int) time.Time {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -n, 0)
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func monthEnd(t time.Time) time.Time {
	return monthStart(t).AddDate(0, 1, -1)
}
