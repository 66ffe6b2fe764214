package domain

import (
	"fmt"
	"time"
)

// DateLayout is the canonical text form of a CalendarDate.
const DateLayout = "2006-01-02"

// CalendarDate is a day in the proleptic Gregorian calendar without a time
// component. The zero value is not a meaningful date; missing dates are
// carried as null Values instead.
type CalendarDate struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
	Day   int        `json:"day"`
}

// NewCalendarDate builds a CalendarDate, normalizing out-of-range month and
// day values the same way time.Date does (e.g. day 0 is the last day of the
// previous month).
func NewCalendarDate(year int, month time.Month, day int) CalendarDate {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) CalendarDate {
	y, m, d := t.Date()
	return CalendarDate{Year: y, Month: m, Day: d}
}

// Time returns midnight UTC of the date.
func (d CalendarDate) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// Weekday returns the day of the week of d.
func (d CalendarDate) Weekday() time.Weekday {
	return d.Time().Weekday()
}

// DaysInMonth returns the length of d's month.
func (d CalendarDate) DaysInMonth() int {
	return time.Date(d.Year, d.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// IsLastDayOfMonth reports whether d is the final day of its month.
func (d CalendarDate) IsLastDayOfMonth() bool {
	return d.Day == d.DaysInMonth()
}

// IsValid reports whether the fields name a real calendar day.
func (d CalendarDate) IsValid() bool {
	if d.Month < time.January || d.Month > time.December || d.Day < 1 {
		return false
	}
	return d.Day <= d.DaysInMonth()
}

// Before reports whether d is earlier than other.
func (d CalendarDate) Before(other CalendarDate) bool {
	return d.Compare(other) < 0
}

// After reports whether d is later than other.
func (d CalendarDate) After(other CalendarDate) bool {
	return d.Compare(other) > 0
}

// Compare returns -1, 0 or +1 ordering d relative to other.
func (d CalendarDate) Compare(other CalendarDate) int {
	switch {
	case d.Year != other.Year:
		return cmpInt(d.Year, other.Year)
	case d.Month != other.Month:
		return cmpInt(int(d.Month), int(other.Month))
	default:
		return cmpInt(d.Day, other.Day)
	}
}

// String renders d as YYYY-MM-DD.
func (d CalendarDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// ParseCalendarDate parses the canonical YYYY-MM-DD form.
func ParseCalendarDate(s string) (CalendarDate, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return CalendarDate{}, fmt.Errorf("parse calendar date %q: %w", s, err)
	}
	return DateOf(t), nil
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
