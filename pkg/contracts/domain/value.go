package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Dtype is the declared type of a column's values.
type Dtype string

const (
	DtypeString    Dtype = "string"
	DtypeInt       Dtype = "int"
	DtypeFloat     Dtype = "float"
	DtypeDate      Dtype = "date"
	DtypeTimestamp Dtype = "timestamp"
)

// IsValid reports whether dt is one of the supported dtypes.
func (dt Dtype) IsValid() bool {
	switch dt {
	case DtypeString, DtypeInt, DtypeFloat, DtypeDate, DtypeTimestamp:
		return true
	}
	return false
}

// IsNumeric reports whether dt holds int or float values.
func (dt Dtype) IsNumeric() bool {
	return dt == DtypeInt || dt == DtypeFloat
}

// IsTemporal reports whether dt holds date or timestamp values.
func (dt Dtype) IsTemporal() bool {
	return dt == DtypeDate || dt == DtypeTimestamp
}

// ParseDtype resolves a dtype name, accepting a few common aliases.
func ParseDtype(name string) (Dtype, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "string", "str", "text":
		return DtypeString, nil
	case "int", "integer", "int64", "long":
		return DtypeInt, nil
	case "float", "double", "float64", "real":
		return DtypeFloat, nil
	case "date":
		return DtypeDate, nil
	case "timestamp", "datetime":
		return DtypeTimestamp, nil
	}
	return "", fmt.Errorf("unknown dtype %q", name)
}

// Value is a typed scalar that may be null. Values are comparable with ==,
// which makes them usable directly as map keys; two nulls of the same
// dtype compare equal. Timestamps are held as UTC Unix seconds in num
// plus the nanosecond remainder in nsec, which covers every year time.Time
// can represent.
type Value struct {
	dtype Dtype
	valid bool
	str   string
	num   int64
	nsec  int32
	flt   float64
	date  CalendarDate
}

// Null returns the null value of the given dtype.
func Null(dt Dtype) Value {
	return Value{dtype: dt}
}

// StringValue wraps s.
func StringValue(s string) Value {
	return Value{dtype: DtypeString, valid: true, str: s}
}

// IntValue wraps i.
func IntValue(i int64) Value {
	return Value{dtype: DtypeInt, valid: true, num: i}
}

// FloatValue wraps f.
func FloatValue(f float64) Value {
	return Value{dtype: DtypeFloat, valid: true, flt: f}
}

// DateValue wraps d.
func DateValue(d CalendarDate) Value {
	return Value{dtype: DtypeDate, valid: true, date: d}
}

// TimestampValue wraps t, normalized to UTC.
func TimestampValue(t time.Time) Value {
	t = t.UTC()
	return Value{dtype: DtypeTimestamp, valid: true, num: t.Unix(), nsec: int32(t.Nanosecond())}
}

// Dtype returns the declared type of v.
func (v Value) Dtype() Dtype { return v.dtype }

// IsNull reports whether v carries no value.
func (v Value) IsNull() bool { return !v.valid }

// Str returns the string payload.
func (v Value) Str() string { return v.str }

// Int returns the integer payload.
func (v Value) Int() int64 { return v.num }

// Float returns the numeric payload as float64 for int and float values.
func (v Value) Float() float64 {
	if v.dtype == DtypeInt {
		return float64(v.num)
	}
	return v.flt
}

// Date returns the calendar day for date and timestamp values.
func (v Value) Date() CalendarDate {
	if v.dtype == DtypeTimestamp {
		return DateOf(v.Timestamp())
	}
	return v.date
}

// Timestamp returns the instant for timestamp values and midnight UTC for
// date values.
func (v Value) Timestamp() time.Time {
	if v.dtype == DtypeDate {
		return v.date.Time()
	}
	return time.Unix(v.num, int64(v.nsec)).UTC()
}

// Compare orders two values of the same dtype. Nulls sort first.
func (v Value) Compare(other Value) int {
	switch {
	case !v.valid && !other.valid:
		return 0
	case !v.valid:
		return -1
	case !other.valid:
		return 1
	}
	switch v.dtype {
	case DtypeString:
		return strings.Compare(v.str, other.str)
	case DtypeInt, DtypeTimestamp:
		switch {
		case v.num < other.num:
			return -1
		case v.num > other.num:
			return 1
		case v.nsec < other.nsec:
			return -1
		case v.nsec > other.nsec:
			return 1
		}
		return 0
	case DtypeFloat:
		switch {
		case v.flt < other.flt:
			return -1
		case v.flt > other.flt:
			return 1
		}
		return 0
	case DtypeDate:
		return v.date.Compare(other.date)
	}
	return 0
}

// String renders v for text output; null renders as the empty string.
func (v Value) String() string {
	if !v.valid {
		return ""
	}
	switch v.dtype {
	case DtypeString:
		return v.str
	case DtypeInt:
		return strconv.FormatInt(v.num, 10)
	case DtypeFloat:
		return strconv.FormatFloat(v.flt, 'f', -1, 64)
	case DtypeDate:
		return v.date.String()
	case DtypeTimestamp:
		return v.Timestamp().Format(time.RFC3339Nano)
	}
	return ""
}

// Any returns v as a plain Go value (nil for null).
func (v Value) Any() any {
	if !v.valid {
		return nil
	}
	switch v.dtype {
	case DtypeString:
		return v.str
	case DtypeInt:
		return v.num
	case DtypeFloat:
		return v.flt
	case DtypeDate:
		return v.date
	case DtypeTimestamp:
		return v.Timestamp()
	}
	return nil
}

// MarshalJSON encodes v without its dtype; the table schema carries that.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.valid {
		return []byte("null"), nil
	}
	switch v.dtype {
	case DtypeInt:
		return []byte(strconv.FormatInt(v.num, 10)), nil
	case DtypeFloat:
		if math.IsNaN(v.flt) || math.IsInf(v.flt, 0) {
			return []byte("null"), nil
		}
		return json.Marshal(v.flt)
	default:
		return json.Marshal(v.String())
	}
}

// DecodeValue decodes a JSON scalar into a value of dtype dt.
func DecodeValue(dt Dtype, raw json.RawMessage) (Value, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return Null(dt), nil
	}
	switch dt {
	case DtypeString:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Value{}, fmt.Errorf("decode string: %w", err)
		}
		return StringValue(s), nil
	case DtypeInt:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return Value{}, fmt.Errorf("decode int: %w", err)
		}
		i, err := n.Int64()
		if err != nil {
			return Value{}, fmt.Errorf("decode int: %w", err)
		}
		return IntValue(i), nil
	case DtypeFloat:
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return Value{}, fmt.Errorf("decode float: %w", err)
		}
		return FloatValue(f), nil
	case DtypeDate:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Value{}, fmt.Errorf("decode date: %w", err)
		}
		d, err := ParseCalendarDate(s)
		if err != nil {
			return Value{}, err
		}
		return DateValue(d), nil
	case DtypeTimestamp:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Value{}, fmt.Errorf("decode timestamp: %w", err)
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return Value{}, fmt.Errorf("decode timestamp: %w", err)
		}
		return TimestampValue(t), nil
	}
	return Value{}, fmt.Errorf("unknown dtype %q", dt)
}

// GroupKey encodes a tuple of values into a string usable as a map key.
// Distinct tuples always encode differently; nulls encode distinctly from
// every non-null value, including the empty string. Values that Compare
// as equal encode identically, so 0.0 and -0.0 share a key.
func GroupKey(values []Value) string {
	var b strings.Builder
	for _, v := range values {
		if !v.valid {
			b.WriteString("\x00N")
			continue
		}
		b.WriteString("\x00V")
		switch v.dtype {
		case DtypeString:
			b.WriteString(strconv.Itoa(len(v.str)))
			b.WriteByte(':')
			b.WriteString(v.str)
		case DtypeFloat:
			f := v.flt
			if f == 0 {
				f = 0 // drop the sign of -0.0
			}
			b.WriteString(strconv.FormatUint(math.Float64bits(f), 16))
		case DtypeTimestamp:
			b.WriteString(strconv.FormatInt(v.num, 10))
			b.WriteByte('.')
			b.WriteString(strconv.Itoa(int(v.nsec)))
		default:
			b.WriteString(v.String())
		}
	}
	return b.String()
}
