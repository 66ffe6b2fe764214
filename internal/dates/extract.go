package dates

import (
	"strings"
	"time"

	apperrors "dateresample/internal/errors"
	"dateresample/pkg/contracts/domain"
)

// Field names a calendar component that Extract can read.
type Field string

const (
	FieldYear       Field = "year"
	FieldQuarter    Field = "quarter"
	FieldMonth      Field = "month"
	FieldDay        Field = "day"
	FieldDayOfMonth Field = "dayofmonth"
	FieldDayOfYear  Field = "dayofyear"
	FieldDayOfWeek  Field = "dayofweek"
	FieldWeekOfYear Field = "weekofyear"
	FieldHour       Field = "hour"
	FieldMinute     Field = "minute"
	FieldSecond     Field = "second"
)

var knownFields = map[Field]bool{
	FieldYear: true, FieldQuarter: true, FieldMonth: true, FieldDay: true,
	FieldDayOfMonth: true, FieldDayOfYear: true, FieldDayOfWeek: true,
	FieldWeekOfYear: true, FieldHour: true, FieldMinute: true, FieldSecond: true,
}

// ParseField resolves a field name. Matching ignores case and underscores,
// so "dayOfYear", "day_of_year" and "DAYOFYEAR" are the same field.
func ParseField(name string) (Field, error) {
	f := Field(strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "_", "")))
	if !knownFields[f] {
		return "", apperrors.NewAppValidationError("unknown calendar field " + name).WithContext("field", name)
	}
	return f, nil
}

// IsSubDay reports whether f reads the time of day.
func (f Field) IsSubDay() bool {
	return f == FieldHour || f == FieldMinute || f == FieldSecond
}

// Extract reads f from a date. Sub-day fields of a date-only value are 0.
func Extract(d domain.CalendarDate, f Field) int {
	return ExtractTime(d.Time(), f)
}

// ExtractTime reads f from an instant, in UTC.
func ExtractTime(t time.Time, f Field) int {
	t = t.UTC()
	switch f {
	case FieldYear:
		return t.Year()
	case FieldQuarter:
		return (int(t.Month())-1)/3 + 1
	case FieldMonth:
		return int(t.Month())
	case FieldDay, FieldDayOfMonth:
		return t.Day()
	case FieldDayOfYear:
		return t.YearDay()
	case FieldDayOfWeek:
		return int(t.Weekday()) + 1
	case FieldWeekOfYear:
		_, week := t.ISOWeek()
		return week
	case FieldHour:
		return t.Hour()
	case FieldMinute:
		return t.Minute()
	case FieldSecond:
		return t.Second()
	}
	return 0
}

// ExtractValue applies Extract to a date or timestamp value. Null input
// yields a null int.
func ExtractValue(v domain.Value, f Field) domain.Value {
	if v.IsNull() {
		return domain.Null(domain.DtypeInt)
	}
	if v.Dtype() == domain.DtypeTimestamp {
		return domain.IntValue(int64(ExtractTime(v.Timestamp(), f)))
	}
	return domain.IntValue(int64(Extract(v.Date(), f)))
}
