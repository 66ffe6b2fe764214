package dates

import (
	"math"
	"time"

	"dateresample/pkg/contracts/domain"
)

const (
	secondsPerDay = 24 * 60 * 60
	// monthsBetween measures partial months against a fixed 31-day month.
	daysPerMonth = 31
)

// Interval is a signed span between two dates. Start and End are named
// roles: swapping them flips the sign of every measurement and is never
// corrected.
type Interval struct {
	Start domain.CalendarDate
	End   domain.CalendarDate
}

// Days returns End - Start in days.
func (iv Interval) Days() int {
	return int((iv.End.Time().Unix() - iv.Start.Time().Unix()) / secondsPerDay)
}

// Months returns End - Start in fractional months. Whole months count
// exactly when the two days of month match or both are month ends;
// otherwise the day difference is prorated over 31 days.
func (iv Interval) Months() float64 {
	return monthsBetween(iv.Start.Time(), iv.End.Time())
}

// DaysBetween is Interval{Start: start, End: end}.Days().
func DaysBetween(start, end domain.CalendarDate) int {
	return Interval{Start: start, End: end}.Days()
}

// MonthsBetween is Interval{Start: start, End: end}.Months().
func MonthsBetween(start, end domain.CalendarDate) float64 {
	return Interval{Start: start, End: end}.Months()
}

// MonthsBetweenTime is MonthsBetween for instants; the time-of-day
// difference also counts toward the partial month.
func MonthsBetweenTime(start, end time.Time) float64 {
	return monthsBetween(start.UTC(), end.UTC())
}

func monthsBetween(start, end time.Time) float64 {
	sd, ed := domain.DateOf(start), domain.DateOf(end)
	whole := float64((ed.Year-sd.Year)*12 + int(ed.Month) - int(sd.Month))
	if sd.Day == ed.Day || (sd.IsLastDayOfMonth() && ed.IsLastDayOfMonth()) {
		return whole
	}
	secs := float64(ed.Day-sd.Day)*secondsPerDay + float64(secondOfDay(end)-secondOfDay(start))
	return round8(whole + secs/(daysPerMonth*secondsPerDay))
}

func secondOfDay(t time.Time) int {
	return t.Hour()*3600 + t.Minute()*60 + t.Second()
}

func round8(f float64) float64 {
	return math.Round(f*1e8) / 1e8
}

// DaysBetweenValues applies DaysBetween to date or timestamp values,
// propagating null.
func DaysBetweenValues(start, end domain.Value) domain.Value {
	if start.IsNull() || end.IsNull() {
		return domain.Null(domain.DtypeInt)
	}
	return domain.IntValue(int64(DaysBetween(start.Date(), end.Date())))
}

// MonthsBetweenValues applies MonthsBetween to date or timestamp values,
// propagating null.
func MonthsBetweenValues(start, end domain.Value) domain.Value {
	if start.IsNull() || end.IsNull() {
		return domain.Null(domain.DtypeFloat)
	}
	return domain.FloatValue(MonthsBetweenTime(start.Timestamp(), end.Timestamp()))
}
