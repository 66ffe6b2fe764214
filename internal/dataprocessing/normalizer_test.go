package dataprocessing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dateresample/internal/dates"
	apperrors "dateresample/internal/errors"
	"dateresample/internal/shared/testutil"
	"dateresample/pkg/contracts/domain"
)

func rawRates(t *testing.T) *domain.Table {
	t.Helper()
	table, err := domain.NewTable(domain.Schema{
		{Name: "date", Dtype: domain.DtypeString},
		{Name: "rate", Dtype: domain.DtypeFloat},
	}, []domain.Row{
		{domain.StringValue("07/12/2016"), domain.FloatValue(1.5)},
		{domain.StringValue("07/27/2013"), domain.FloatValue(2.5)},
		{domain.StringValue(""), domain.FloatValue(3)},
		{domain.StringValue("not a date"), domain.FloatValue(4)},
		{domain.Null(domain.DtypeString), domain.FloatValue(5)},
	})
	require.NoError(t, err)
	return table
}

func dateAt(t *testing.T, table *domain.Table, row int, col string) domain.Value {
	t.Helper()
	v, err := table.Value(row, col)
	require.NoError(t, err)
	return v
}

func TestNormalizer_ParseDates(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	n := NewNormalizer(logger)
	raw := rawRates(t)

	out, unparseable, err := n.ParseDates(raw, "date", "parsed", "MM/dd/yyyy")
	require.NoError(t, err)
	assert.Equal(t, 1, unparseable)

	assert.Equal(t, domain.DateValue(domain.NewCalendarDate(2016, 7, 12)), dateAt(t, out, 0, "parsed"))
	assert.Equal(t, domain.DateValue(domain.NewCalendarDate(2013, 7, 27)), dateAt(t, out, 1, "parsed"))
	for i := 2; i < 5; i++ {
		v := dateAt(t, out, i, "parsed")
		assert.True(t, v.IsNull(), "row %d", i)
		assert.Equal(t, domain.DtypeDate, v.Dtype())
	}

	// the input table is untouched
	assert.Equal(t, 2, raw.NumCols())
	assert.Equal(t, domain.StringValue("07/12/2016"), dateAt(t, raw, 0, "date"))
}

func TestNormalizer_ParseDatesErrors(t *testing.T) {
	n := NewNormalizer(nil)
	raw := rawRates(t)

	_, _, err := n.ParseDates(raw, "missing", "x", "MM/dd/yyyy")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))

	_, _, err = n.ParseDates(raw, "rate", "x", "MM/dd/yyyy")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))

	_, _, err = n.ParseDates(raw, "date", "x", "MM/dd/qqqq")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
}

func TestNormalizer_Apply(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	n := NewNormalizer(logger)

	plan := []Derivation{
		{Op: OpParseDate, Source: "date", Format: "MM/dd/yyyy"},
		{Op: OpExtract, Source: "date", Field: "year"},
		{Op: OpExtract, Source: "date", Field: "dayOfYear", Target: "doy"},
		{Op: OpEndOfMonth, Source: "date", Target: "eom"},
		{Op: OpNextWeekday, Source: "date", Target: "next_sun", Weekday: "Sun"},
		{Op: OpPreviousWeekday, Source: "date", Target: "prev_mon", Weekday: "monday"},
		{Op: OpAddMonths, Source: "date", Target: "plus_month", N: 1},
		{Op: OpAddDays, Source: "date", Target: "plus_days", N: 3},
		{Op: OpSubDays, Source: "date", Target: "minus_days", N: 3},
		{Op: OpTruncate, Source: "date", Target: "quarter_start", Unit: "quarter"},
		{Op: OpDaysBetween, Start: "date", End: "eom", Target: "to_eom"},
		{Op: OpMonthsBetween, Start: "date", End: "plus_month", Target: "months"},
	}

	out, stats, err := n.Apply(context.Background(), rawRates(t), plan)
	require.NoError(t, err)
	assert.Equal(t, len(plan), stats.Steps)
	assert.Equal(t, 1, stats.Unparseable)
	assert.True(t, logs.ContainsMessage("unparseable date values"))

	date := func(y int, m time.Month, d int) domain.Value {
		return domain.DateValue(domain.CalendarDate{Year: y, Month: m, Day: d})
	}

	// 2013-07-27 is a Saturday
	assert.Equal(t, domain.IntValue(2013), dateAt(t, out, 1, "year"))
	assert.Equal(t, domain.IntValue(208), dateAt(t, out, 1, "doy"))
	assert.Equal(t, date(2013, 7, 31), dateAt(t, out, 1, "eom"))
	assert.Equal(t, date(2013, 7, 28), dateAt(t, out, 1, "next_sun"))
	assert.Equal(t, date(2013, 7, 22), dateAt(t, out, 1, "prev_mon"))
	assert.Equal(t, date(2013, 8, 27), dateAt(t, out, 1, "plus_month"))
	assert.Equal(t, date(2013, 7, 30), dateAt(t, out, 1, "plus_days"))
	assert.Equal(t, date(2013, 7, 24), dateAt(t, out, 1, "minus_days"))
	assert.Equal(t, date(2013, 7, 1), dateAt(t, out, 1, "quarter_start"))
	assert.Equal(t, domain.IntValue(4), dateAt(t, out, 1, "to_eom"))
	assert.Equal(t, domain.FloatValue(1), dateAt(t, out, 1, "months"))

	// every derived column is null where the parsed date is null
	for _, col := range []string{"year", "doy", "eom", "next_sun", "prev_mon", "plus_month",
		"plus_days", "minus_days", "quarter_start", "to_eom", "months"} {
		for row := 2; row < 5; row++ {
			assert.True(t, dateAt(t, out, row, col).IsNull(), "%s row %d", col, row)
		}
	}
}

func TestNormalizer_ApplyTimestamps(t *testing.T) {
	n := NewNormalizer(nil)
	table, err := domain.NewTable(domain.Schema{{Name: "ts", Dtype: domain.DtypeString}}, []domain.Row{
		{domain.StringValue("2016-07-12 08:15:30")},
		{domain.StringValue("")},
	})
	require.NoError(t, err)

	out, _, err := n.Apply(context.Background(), table, []Derivation{
		{Op: OpUnixTimestamp, Source: "ts", Target: "epoch", Format: "yyyy-MM-dd HH:mm:ss"},
		{Op: OpParseTimestamp, Source: "ts", Format: "yyyy-MM-dd HH:mm:ss"},
		{Op: OpExtract, Source: "ts", Field: "hour"},
		{Op: OpParseDate, Source: "ts", Target: "day"},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.IntValue(1468311330), dateAt(t, out, 0, "epoch"))
	assert.Equal(t, domain.IntValue(8), dateAt(t, out, 0, "hour"))
	assert.Equal(t, domain.DateValue(domain.NewCalendarDate(2016, 7, 12)), dateAt(t, out, 0, "day"))
	assert.True(t, dateAt(t, out, 1, "epoch").IsNull())
	assert.True(t, dateAt(t, out, 1, "day").IsNull())
}

func TestNormalizer_ApplyTimestampsWideYearRange(t *testing.T) {
	n := NewNormalizer(nil)
	table, err := domain.NewTable(domain.Schema{{Name: "ts", Dtype: domain.DtypeString}}, []domain.Row{
		{domain.StringValue("2300-01-15 10:00:00")},
		{domain.StringValue("1600-03-01 00:00:00")},
	})
	require.NoError(t, err)

	out, _, err := n.Apply(context.Background(), table, []Derivation{
		{Op: OpParseTimestamp, Source: "ts", Format: "yyyy-MM-dd HH:mm:ss"},
		{Op: OpExtract, Source: "ts", Target: "year", Field: "year"},
	})
	require.NoError(t, err)

	assert.Equal(t, time.Date(2300, 1, 15, 10, 0, 0, 0, time.UTC), dateAt(t, out, 0, "ts").Timestamp())
	assert.Equal(t, domain.IntValue(2300), dateAt(t, out, 0, "year"))
	assert.Equal(t, time.Date(1600, 3, 1, 0, 0, 0, 0, time.UTC), dateAt(t, out, 1, "ts").Timestamp())
	assert.Equal(t, domain.IntValue(1600), dateAt(t, out, 1, "year"))
}

func TestNormalizer_ApplyErrors(t *testing.T) {
	n := NewNormalizer(nil)

	tests := []struct {
		name    string
		step    Derivation
		errType apperrors.ErrorType
	}{
		{name: "unknown op", step: Derivation{Op: "shift", Source: "date"}, errType: apperrors.ErrTypeUnsupported},
		{name: "missing source", step: Derivation{Op: OpEndOfMonth}, errType: apperrors.ErrTypeValidation},
		{name: "string is not a date", step: Derivation{Op: OpEndOfMonth, Source: "date"}, errType: apperrors.ErrTypeValidation},
		{name: "unknown weekday", step: Derivation{Op: OpNextWeekday, Source: "date", Weekday: "Funday"}, errType: apperrors.ErrTypeValidation},
		{name: "unknown field", step: Derivation{Op: OpExtract, Source: "date", Field: "fortnight"}, errType: apperrors.ErrTypeValidation},
		{name: "unknown unit", step: Derivation{Op: OpTruncate, Source: "date", Unit: "decade"}, errType: apperrors.ErrTypeValidation},
		{name: "interval needs roles", step: Derivation{Op: OpDaysBetween, Start: "date"}, errType: apperrors.ErrTypeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := n.Apply(context.Background(), rawRates(t), []Derivation{tt.step})
			require.Error(t, err)
			assert.Equal(t, tt.errType, apperrors.TypeOf(err))
		})
	}
}

func TestNormalizer_ApplyHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := NewNormalizer(nil).Apply(ctx, rawRates(t), []Derivation{
		{Op: OpParseDate, Source: "date", Format: "MM/dd/yyyy"},
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNormalizer_DirectOperations(t *testing.T) {
	n := NewNormalizer(nil)
	parsed, _, err := n.ParseDates(rawRates(t), "date", "date", "MM/dd/yyyy")
	require.NoError(t, err)

	out, err := n.Truncate(parsed, "date", "week", dates.TruncWeek)
	require.NoError(t, err)
	assert.Equal(t, domain.DateValue(domain.NewCalendarDate(2016, 7, 11)), dateAt(t, out, 0, "week"))

	_, err = n.Truncate(parsed, "date", "x", dates.TruncUnit("decade"))
	assert.Error(t, err)
}
