package period

import (
	"testing"
	"time"
)

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func TestResolve(t *testing.T) {
	now := time.Date(2025, 9, 18, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		name      string
		period    string
		wantStart time.Time
		wantEnd   time.Time
	}{
		{"current month", CurrentMonth, date(2025, 9, 1), date(2025, 9, 30)},
		{"last month", LastMonth, date(2025, 8, 1), date(2025, 8, 31)},
		{"last 3 months", Last3Months, date(2025, 7, 1), date(2025, 9, 30)},
		{"last 6 months", Last6Months, date(2025, 4, 1), date(2025, 9, 30)},
		{"current year", CurrentYear, date(2025, 1, 1), date(2025, 12, 31)},
		{"unknown falls back to current month", "fortnight", date(2025, 9, 1), date(2025, 9, 30)},
		{"empty falls back to current month", "", date(2025, 9, 1), date(2025, 9, 30)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.period, now)
			if !got.Start.Equal(tt.wantStart) || !got.End.Equal(tt.wantEnd) {
				t.Errorf("Resolve(%q) = [%v, %v], want [%v, %v]",
					tt.period, got.Start, got.End, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestResolveAcrossYearBoundary(t *testing.T) {
	now := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	lastMonth := Resolve(LastMonth, now)
	if !lastMonth.Start.Equal(date(2024, 12, 1)) || !lastMonth.End.Equal(date(2024, 12, 31)) {
		t.Errorf("last_month across year = [%v, %v]", lastMonth.Start, lastMonth.End)
	}

	threeMonths := Resolve(Last3Months, now)
	if !threeMonths.Start.Equal(date(2024, 11, 1)) || !threeMonths.End.Equal(date(2025, 1, 31)) {
		t.Errorf("last_3_months across year = [%v, %v]", threeMonths.Start, threeMonths.End)
	}
}

func TestResolveShortMonthPinning(t *testing.T) {
	// From the 31st, stepping back months must not skip February.
	now := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	got := Resolve(Last3Months, now)
	if !got.Start.Equal(date(2025, 1, 1)) || !got.End.Equal(date(2025, 3, 31)) {
		t.Errorf("last_3_months from Mar 31 = [%v, %v]", got.Start, got.End)
	}
}

func TestWindowContains(t *testing.T) {
	w := MonthWindow(2025, 9)

	tests := []struct {
		name string
		t    time.Time
		want bool
	}{
		{"first day", date(2025, 9, 1), true},
		{"last day midnight", date(2025, 9, 30), true},
		{"last day evening", time.Date(2025, 9, 30, 23, 59, 0, 0, time.UTC), true},
		{"day before", date(2025, 8, 31), false},
		{"day after", date(2025, 10, 1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := w.Contains(tt.t); got != tt.want {
				t.Errorf("Contains(%v) = %v, want %v", tt.t, got, tt.want)
			}
		})
	}
}
