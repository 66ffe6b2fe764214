package dates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dateresample/pkg/contracts/domain"
)

func TestExtract(t *testing.T) {
	d := date(2016, 7, 12)

	tests := []struct {
		field Field
		want  int
	}{
		{FieldYear, 2016},
		{FieldQuarter, 3},
		{FieldMonth, 7},
		{FieldDay, 12},
		{FieldDayOfMonth, 12},
		{FieldDayOfYear, 194},
		{FieldDayOfWeek, 3},
		{FieldWeekOfYear, 28},
		{FieldHour, 0},
		{FieldMinute, 0},
		{FieldSecond, 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.field), func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(d, tt.field))
		})
	}
}

func TestExtract_ISOWeekAtYearBoundary(t *testing.T) {
	assert.Equal(t, 53, Extract(date(2016, 1, 1), FieldWeekOfYear))
	assert.Equal(t, 1, Extract(date(2014, 12, 29), FieldWeekOfYear))
}

func TestParseField(t *testing.T) {
	for _, name := range []string{"dayOfYear", "day_of_year", "DAYOFYEAR"} {
		f, err := ParseField(name)
		require.NoError(t, err)
		assert.Equal(t, FieldDayOfYear, f)
	}
	_, err := ParseField("fortnight")
	assert.Error(t, err)

	assert.True(t, FieldHour.IsSubDay())
	assert.False(t, FieldWeekOfYear.IsSubDay())
}

func TestExtractValue(t *testing.T) {
	ts := domain.TimestampValue(time.Date(2016, 7, 12, 8, 15, 30, 0, time.UTC))
	assert.Equal(t, domain.IntValue(8), ExtractValue(ts, FieldHour))
	assert.Equal(t, domain.IntValue(15), ExtractValue(ts, FieldMinute))
	assert.Equal(t, domain.IntValue(30), ExtractValue(ts, FieldSecond))

	assert.Equal(t, domain.IntValue(0), ExtractValue(domain.DateValue(date(2016, 7, 12)), FieldHour))

	out := ExtractValue(domain.Null(domain.DtypeDate), FieldYear)
	assert.True(t, out.IsNull())
	assert.Equal(t, domain.DtypeInt, out.Dtype())
}
