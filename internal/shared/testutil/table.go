package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dateresample/pkg/contracts/domain"
)

// MustTable builds a table from plain Go values, failing the test on error.
// Each cell is converted to the dtype of its column: nil is null, and
// strings, ints, float64s, CalendarDates and time.Times are accepted for
// the matching dtype.
func MustTable(t testing.TB, schema domain.Schema, rows ...[]any) *domain.Table {
	t.Helper()

	out := make([]domain.Row, len(rows))
	for i, cells := range rows {
		require.Len(t, cells, len(schema), "row %d width", i)
		row := make(domain.Row, len(schema))
		for c, cell := range cells {
			row[c] = Cell(t, schema[c].Dtype, cell)
		}
		out[i] = row
	}

	tbl, err := domain.NewTable(schema, out)
	require.NoError(t, err)
	return tbl
}

// Cell converts a plain Go value into a domain value of dtype dt.
func Cell(t testing.TB, dt domain.Dtype, cell any) domain.Value {
	t.Helper()

	if cell == nil {
		return domain.Null(dt)
	}
	switch v := cell.(type) {
	case string:
		if dt == domain.DtypeDate {
			d, err := domain.ParseCalendarDate(v)
			require.NoError(t, err)
			return domain.DateValue(d)
		}
		return domain.StringValue(v)
	case int:
		if dt == domain.DtypeFloat {
			return domain.FloatValue(float64(v))
		}
		return domain.IntValue(int64(v))
	case int64:
		return domain.IntValue(v)
	case float64:
		return domain.FloatValue(v)
	case domain.CalendarDate:
		return domain.DateValue(v)
	case time.Time:
		return domain.TimestampValue(v)
	case domain.Value:
		return v
	}
	require.Failf(t, "unsupported cell", "%T for dtype %s", cell, dt)
	return domain.Value{}
}
