package dates

import (
	"strings"
	"time"

	apperrors "dateresample/internal/errors"
	"dateresample/pkg/contracts/domain"
)

// TruncUnit is the granularity Truncate rounds down to.
type TruncUnit string

const (
	TruncYear    TruncUnit = "year"
	TruncQuarter TruncUnit = "quarter"
	TruncMonth   TruncUnit = "month"
	TruncWeek    TruncUnit = "week"
)

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday, "su": time.Sunday,
	"monday": time.Monday, "mon": time.Monday, "mo": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "tu": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday, "we": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "th": time.Thursday,
	"friday": time.Friday, "fri": time.Friday, "fr": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday, "sa": time.Saturday,
}

// ParseWeekday resolves a full, three-letter or two-letter weekday name,
// ignoring case.
func ParseWeekday(name string) (time.Weekday, error) {
	wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, apperrors.NewAppValidationError("unknown weekday " + strings.TrimSpace(name)).
			WithContext("weekday", name)
	}
	return wd, nil
}

// ParseTruncUnit resolves a truncation unit name.
func ParseTruncUnit(name string) (TruncUnit, error) {
	switch unit := TruncUnit(strings.ToLower(strings.TrimSpace(name))); unit {
	case TruncYear, TruncQuarter, TruncMonth, TruncWeek:
		return unit, nil
	case "yyyy", "yy":
		return TruncYear, nil
	case "mon", "mm":
		return TruncMonth, nil
	}
	return "", apperrors.NewAppValidationError("unknown truncation unit " + name).WithContext("unit", name)
}

// EndOfMonth returns the last day of d's month.
func EndOfMonth(d domain.CalendarDate) domain.CalendarDate {
	return domain.CalendarDate{Year: d.Year, Month: d.Month, Day: d.DaysInMonth()}
}

// NextWeekday returns the first date strictly after d that falls on wd.
// When d is already a wd, the result is one week later.
func NextWeekday(d domain.CalendarDate, wd time.Weekday) domain.CalendarDate {
	delta := (int(wd) - int(d.Weekday()) + 7) % 7
	if delta == 0 {
		delta = 7
	}
	return AddDays(d, delta)
}

// PreviousWeekday returns the last date strictly before d that falls on wd.
func PreviousWeekday(d domain.CalendarDate, wd time.Weekday) domain.CalendarDate {
	delta := (int(d.Weekday()) - int(wd) + 7) % 7
	if delta == 0 {
		delta = 7
	}
	return SubDays(d, delta)
}

// AddMonths shifts d by n calendar months. The day is clamped to the
// length of the target month; a month-end input is not snapped to the
// target month's end.
func AddMonths(d domain.CalendarDate, n int) domain.CalendarDate {
	total := d.Year*12 + int(d.Month) - 1 + n
	year, month := floorDiv(total, 12), time.Month(floorMod(total, 12)+1)
	target := domain.CalendarDate{Year: year, Month: month, Day: 1}
	day := d.Day
	if last := target.DaysInMonth(); day > last {
		day = last
	}
	target.Day = day
	return target
}

// AddDays shifts d forward by n days; negative n moves backward.
func AddDays(d domain.CalendarDate, n int) domain.CalendarDate {
	return domain.NewCalendarDate(d.Year, d.Month, d.Day+n)
}

// SubDays shifts d backward by n days; negative n moves forward.
func SubDays(d domain.CalendarDate, n int) domain.CalendarDate {
	return AddDays(d, -n)
}

// Truncate rounds d down to the start of its year, quarter, month or
// ISO week (Monday).
func Truncate(d domain.CalendarDate, unit TruncUnit) (domain.CalendarDate, error) {
	switch unit {
	case TruncYear:
		return domain.CalendarDate{Year: d.Year, Month: time.January, Day: 1}, nil
	case TruncQuarter:
		first := time.Month((int(d.Month)-1)/3*3 + 1)
		return domain.CalendarDate{Year: d.Year, Month: first, Day: 1}, nil
	case TruncMonth:
		return domain.CalendarDate{Year: d.Year, Month: d.Month, Day: 1}, nil
	case TruncWeek:
		sinceMonday := (int(d.Weekday()) + 6) % 7
		return SubDays(d, sinceMonday), nil
	}
	return domain.CalendarDate{}, apperrors.NewAppValidationError("unknown truncation unit " + string(unit))
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	return a - floorDiv(a, b)*b
}
