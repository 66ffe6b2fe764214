package dataprocessing

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "dateresample/internal/errors"
	"dateresample/internal/shared/testutil"
	"dateresample/pkg/contracts/domain"
)

func yearlyRates(t *testing.T) *domain.Table {
	t.Helper()
	table, err := domain.NewTable(domain.Schema{
		{Name: "year", Dtype: domain.DtypeInt},
		{Name: "ticker", Dtype: domain.DtypeString},
		{Name: "rate", Dtype: domain.DtypeFloat},
		{Name: "volume", Dtype: domain.DtypeInt},
		{Name: "day", Dtype: domain.DtypeDate},
	}, []domain.Row{
		{domain.IntValue(2016), domain.StringValue("A"), domain.FloatValue(0.1), domain.IntValue(10), domain.DateValue(domain.NewCalendarDate(2016, 3, 1))},
		{domain.IntValue(2015), domain.StringValue("A"), domain.FloatValue(1.0), domain.IntValue(5), domain.DateValue(domain.NewCalendarDate(2015, 1, 9))},
		{domain.IntValue(2016), domain.StringValue("B"), domain.FloatValue(0.2), domain.Null(domain.DtypeInt), domain.DateValue(domain.NewCalendarDate(2016, 1, 2))},
		{domain.Null(domain.DtypeInt), domain.StringValue("B"), domain.FloatValue(7), domain.IntValue(1), domain.Null(domain.DtypeDate)},
		{domain.IntValue(2016), domain.StringValue("A"), domain.Null(domain.DtypeFloat), domain.IntValue(2), domain.DateValue(domain.NewCalendarDate(2016, 12, 31))},
		{domain.IntValue(2014), domain.StringValue("C"), domain.Null(domain.DtypeFloat), domain.Null(domain.DtypeInt), domain.Null(domain.DtypeDate)},
	})
	require.NoError(t, err)
	return table
}

func groupByYear(t *testing.T, out *domain.Table) map[string]domain.Row {
	t.Helper()
	rows := make(map[string]domain.Row, out.NumRows())
	for _, row := range out.Rows() {
		rows[row[0].String()] = row
	}
	require.Len(t, rows, out.NumRows())
	return rows
}

func TestResampler_MeanByYear(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	r := NewResampler(logger)
	in := yearlyRates(t)

	out, err := r.Resample(context.Background(), in, []string{"year"}, Aggregations{
		"avgRate": {Source: "rate", Func: "mean"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"year", "avgRate"}, out.Schema().Names())
	assert.Equal(t, 4, out.NumRows())

	byYear := groupByYear(t, out)
	assert.InDelta(t, 0.15, byYear["2016"][1].Float(), 1e-12)
	assert.Equal(t, domain.FloatValue(1.0), byYear["2015"][1])
	assert.Equal(t, domain.FloatValue(7), byYear[""][1])
	assert.True(t, byYear["2014"][1].IsNull())
	assert.True(t, byYear[""][0].IsNull(), "null key forms its own group")

	// first-appearance order
	years, err := out.Column("year")
	require.NoError(t, err)
	assert.Equal(t, domain.IntValue(2016), years[0])
	assert.Equal(t, domain.IntValue(2015), years[1])

	// input untouched
	assert.Equal(t, 6, in.NumRows())
	assert.Equal(t, 5, in.NumCols())
}

func TestResampler_AllFunctions(t *testing.T) {
	out, err := NewResampler(nil).Resample(context.Background(), yearlyRates(t), []string{"ticker"}, Aggregations{
		"rate_mean":  {Source: "rate"},
		"rate_avg":   {Source: "rate", Func: "avg"},
		"vol_sum":    {Source: "volume", Func: "sum"},
		"rate_sum":   {Source: "rate", Func: "SUM"},
		"first_day":  {Source: "day", Func: "min"},
		"last_day":   {Source: "day", Func: "max"},
		"max_ticker": {Source: "ticker", Func: "max"},
		"n":          {Source: "volume", Func: "count"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"ticker", "first_day", "last_day", "max_ticker", "n", "rate_avg", "rate_mean", "rate_sum", "vol_sum"},
		out.Schema().Names())

	dtypes := map[string]domain.Dtype{}
	for _, c := range out.Schema() {
		dtypes[c.Name] = c.Dtype
	}
	assert.Equal(t, domain.DtypeInt, dtypes["vol_sum"])
	assert.Equal(t, domain.DtypeFloat, dtypes["rate_sum"])
	assert.Equal(t, domain.DtypeDate, dtypes["first_day"])
	assert.Equal(t, domain.DtypeInt, dtypes["n"])

	value := func(row int, col string) domain.Value {
		v, err := out.Value(row, col)
		require.NoError(t, err)
		return v
	}

	// ticker A: rows 0, 1, 4
	assert.Equal(t, domain.StringValue("A"), value(0, "ticker"))
	assert.InDelta(t, 0.55, value(0, "rate_mean").Float(), 1e-12)
	assert.Equal(t, value(0, "rate_mean"), value(0, "rate_avg"))
	assert.Equal(t, domain.FloatValue(1.1), value(0, "rate_sum"))
	assert.Equal(t, domain.IntValue(17), value(0, "vol_sum"))
	assert.Equal(t, domain.DateValue(domain.NewCalendarDate(2015, 1, 9)), value(0, "first_day"))
	assert.Equal(t, domain.DateValue(domain.NewCalendarDate(2016, 12, 31)), value(0, "last_day"))
	assert.Equal(t, domain.IntValue(3), value(0, "n"))

	// ticker C: every source value null
	for _, col := range []string{"rate_mean", "rate_sum", "vol_sum", "first_day", "n"} {
		v := value(2, col)
		assert.True(t, v.IsNull(), col)
	}
	assert.Equal(t, domain.StringValue("C"), value(2, "max_ticker"))
}

func TestResampler_DecimalSumIsExact(t *testing.T) {
	rows := make([]domain.Row, 10)
	for i := range rows {
		rows[i] = domain.Row{domain.FloatValue(0.1)}
	}
	table, err := domain.NewTable(domain.Schema{{Name: "x", Dtype: domain.DtypeFloat}}, rows)
	require.NoError(t, err)

	out, err := NewResampler(nil).Resample(context.Background(), table, nil, Aggregations{
		"total": {Source: "x", Func: "sum"},
		"avg":   {Source: "x", Func: "mean"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.FloatValue(1), out.Row(0)[1])
	assert.Equal(t, domain.FloatValue(0.1), out.Row(0)[0])
}

func TestResampler_IntSumOverflow(t *testing.T) {
	big := domain.IntValue(1 << 62)
	table, err := domain.NewTable(domain.Schema{
		{Name: "k", Dtype: domain.DtypeString},
		{Name: "n", Dtype: domain.DtypeInt},
	}, []domain.Row{
		{domain.StringValue("a"), big},
		{domain.StringValue("a"), big},
		{domain.StringValue("b"), domain.IntValue(math.MaxInt64)},
		{domain.StringValue("b"), domain.IntValue(-1)},
	})
	require.NoError(t, err)
	r := NewResampler(nil)

	out, err := r.Resample(context.Background(), table, []string{"k"}, Aggregations{"total": {Source: "n", Func: "sum"}})
	require.Error(t, err)
	assert.Nil(t, out)
	assert.Equal(t, apperrors.ErrTypeValidation, apperrors.TypeOf(err))
	assert.Contains(t, err.Error(), "overflows int64")

	onlyB, err := domain.NewTable(table.Schema(), table.Rows()[2:])
	require.NoError(t, err)
	out, err = r.Resample(context.Background(), onlyB, nil, Aggregations{
		"total": {Source: "n", Func: "sum"},
		"avg":   {Source: "n", Func: "mean"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.IntValue(math.MaxInt64-1), out.Row(0)[1])
}

func TestResampler_NoGroupKeys(t *testing.T) {
	r := NewResampler(nil)

	out, err := r.Resample(context.Background(), yearlyRates(t), nil, Aggregations{"n": {Source: "rate", Func: "count"}})
	require.NoError(t, err)
	require.Equal(t, 1, out.NumRows())
	assert.Equal(t, domain.IntValue(4), out.Row(0)[0])

	empty, err := domain.EmptyTable(domain.Schema{{Name: "rate", Dtype: domain.DtypeFloat}})
	require.NoError(t, err)
	out, err = r.Resample(context.Background(), empty, []string{}, Aggregations{"avg": {Source: "rate"}})
	require.NoError(t, err)
	require.Equal(t, 1, out.NumRows())
	assert.True(t, out.Row(0)[0].IsNull())

	out, err = r.Resample(context.Background(), empty, []string{"rate"}, Aggregations{})
	require.NoError(t, err)
	assert.Equal(t, 0, out.NumRows())
}

func TestResampler_GroupCountMatchesDistinctKeys(t *testing.T) {
	in := yearlyRates(t)
	out, err := NewResampler(nil).Resample(context.Background(), in, []string{"year", "ticker"}, nil)
	require.NoError(t, err)

	distinct := map[string]bool{}
	for _, row := range in.Rows() {
		distinct[domain.GroupKey(domain.Row{row[0], row[1]})] = true
	}
	assert.Equal(t, len(distinct), out.NumRows())
	assert.Equal(t, []string{"year", "ticker"}, out.Schema().Names())
}

func TestResampler_Errors(t *testing.T) {
	tests := []struct {
		name    string
		keys    []string
		aggs    Aggregations
		errType apperrors.ErrorType
	}{
		{name: "unknown function", keys: []string{"year"}, aggs: Aggregations{"m": {Source: "rate", Func: "median"}}, errType: apperrors.ErrTypeUnsupported},
		{name: "unknown function wins over missing column", keys: []string{"year"},
			aggs: Aggregations{"a": {Source: "nope"}, "b": {Source: "rate", Func: "mode"}}, errType: apperrors.ErrTypeUnsupported},
		{name: "missing key", keys: []string{"decade"}, aggs: Aggregations{"m": {Source: "rate"}}, errType: apperrors.ErrTypeValidation},
		{name: "missing source", keys: []string{"year"}, aggs: Aggregations{"m": {Source: "price"}}, errType: apperrors.ErrTypeValidation},
		{name: "mean of strings", keys: []string{"year"}, aggs: Aggregations{"m": {Source: "ticker"}}, errType: apperrors.ErrTypeValidation},
		{name: "output collides with key", keys: []string{"year"}, aggs: Aggregations{"year": {Source: "rate"}}, errType: apperrors.ErrTypeValidation},
		{name: "duplicate key", keys: []string{"year", "year"}, errType: apperrors.ErrTypeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := NewResampler(nil).Resample(context.Background(), yearlyRates(t), tt.keys, tt.aggs)
			require.Error(t, err)
			assert.Nil(t, out)
			assert.Equal(t, tt.errType, apperrors.TypeOf(err))
		})
	}
}

func TestResampler_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewResampler(nil).Resample(ctx, yearlyRates(t), []string{"year"}, nil)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestParseAggFunc(t *testing.T) {
	for name, want := range map[string]AggFunc{"": AggMean, "avg": AggMean, "Mean": AggMean, "sum": AggSum, "min": AggMin, "max": AggMax, "count": AggCount} {
		got, err := ParseAggFunc(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got)
	}
	_, err := ParseAggFunc("median")
	assert.True(t, errors.Is(err, &apperrors.AppError{Type: apperrors.ErrTypeUnsupported}))
}
