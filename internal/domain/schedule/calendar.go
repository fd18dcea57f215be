package schedule

import "time"

// HolidayCalendar is a set of statutory holidays supplied by an external
// date-utilities collaborator. The engine never fetches this itself; it is
// passed in as plain data. A nil or empty calendar simply disables holiday
// adjustment.
type HolidayCalendar map[string]struct{}

const calendarDateLayout = "2006-01-02"

// NewHolidayCalendar builds a calendar from YYYY-MM-DD strings, ignoring
// entries that do not parse.
func NewHolidayCalendar(dates []string) HolidayCalendar {
	cal := make(HolidayCalendar, len(dates))
	for _, s := range dates {
		if _, err := time.Parse(calendarDateLayout, s); err != nil {
			continue
		}
		cal[s] = struct{}{}
	}
	return cal
}

func (c HolidayCalendar) IsHoliday(d time.Time) bool {
	if len(c) == 0 {
		return false
	}
	_, ok := c[d.Format(calendarDateLayout)]
	return ok
}

// IsBusinessDay reports whether d is neither a weekend nor a holiday.
func (c HolidayCalendar) IsBusinessDay(d time.Time) bool {
	switch d.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !c.IsHoliday(d)
}

// NextBusinessDay shifts d forward to the next business day. Returns d
// unchanged when it already is one.
func (c HolidayCalendar) NextBusinessDay(d time.Time) time.Time {
	for !c.IsBusinessDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}
