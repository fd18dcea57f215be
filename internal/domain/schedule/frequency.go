package schedule

import (
	"fmt"
	"time"
)

// Frequency is a supported payment cadence. Each frequency carries both the
// periods-per-year used for periodic-rate conversion and the date-stepping
// rule; the two must always come from the same entry or the payment amount
// and the schedule dates will silently disagree.
type Frequency string

const (
	FrequencyWeekly       Frequency = "WEEKLY"
	FrequencyBiWeekly     Frequency = "BI_WEEKLY"
	FrequencyTwiceMonthly Frequency = "TWICE_MONTHLY"
	FrequencyMonthly      Frequency = "MONTHLY"
)

func ParseFrequency(s string) (Frequency, error) {
	switch Frequency(s) {
	case FrequencyWeekly, FrequencyBiWeekly, FrequencyTwiceMonthly, FrequencyMonthly:
		return Frequency(s), nil
	}
	return "", fmt.Errorf("unknown payment frequency %q", s)
}

// PeriodsPerYear returns the number of payment periods per year for the
// cadence. Twice-monthly is 24 even though its stepping is a fixed 15-day
// offset rather than a calendar half-month.
func (f Frequency) PeriodsPerYear() int {
	switch f {
	case FrequencyWeekly:
		return 52
	case FrequencyBiWeekly:
		return 26
	case FrequencyTwiceMonthly:
		return 24
	case FrequencyMonthly:
		return 12
	}
	return 0
}

func (f Frequency) Valid() bool {
	return f.PeriodsPerYear() != 0
}

// Next returns the due date one period after d.
//
// Monthly stepping preserves the day-of-month where possible and clamps to
// the last day of shorter months: Jan 31 -> Feb 29 (leap) -> Mar 31 -> Apr 30.
// It never rolls into the following month.
func (f Frequency) Next(d time.Time) time.Time {
	switch f {
	case FrequencyWeekly:
		return d.AddDate(0, 0, 7)
	case FrequencyBiWeekly:
		return d.AddDate(0, 0, 14)
	case FrequencyTwiceMonthly:
		return d.AddDate(0, 0, 15)
	case FrequencyMonthly:
		return addMonthClamped(d, 1)
	}
	return d
}

// Step returns the due date n periods after d. The monthly case advances
// from the original anchor day rather than iterating Next, so a clamped
// February date does not permanently shorten the cadence.
func (f Frequency) Step(d time.Time, n int) time.Time {
	if n <= 0 {
		return d
	}
	if f == FrequencyMonthly {
		return addMonthClamped(d, n)
	}
	out := d
	for i := 0; i < n; i++ {
		out = f.Next(out)
	}
	return out
}

// addMonthClamped adds months to d keeping the day-of-month, clamped to the
// last valid day of the target month. time.AddDate would normalize Jan 31 + 1
// month to Mar 2/3, which is exactly the rollover we must avoid.
func addMonthClamped(d time.Time, months int) time.Time {
	year, month, day := d.Date()
	m := int(month) + months
	y := year + (m-1)/12
	m = (m-1)%12 + 1
	if m <= 0 {
		m += 12
		y--
	}
	last := daysInMonth(y, time.Month(m))
	if day > last {
		day = last
	}
	return time.Date(y, time.Month(m), day, d.Hour(), d.Minute(), d.Second(), d.Nanosecond(), d.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
