package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dateresample/internal/dataprocessing"
	apperrors "dateresample/internal/errors"
	"dateresample/pkg/contracts/domain"
)

const yamlJob = `
source:
  types:
    value: double
  sheet: prices
derive:
  - op: parse_date
    source: date
    format: MM/dd/yyyy
  - op: extract
    source: date
    field: year
group_by: [year]
aggregate:
  mean_value:
    source: value
    func: mean
  rows:
    source: value
    func: count
sort_by: [year]
output:
  path: yearly.csv
`

const tomlJob = `
name = "yearly"
group_by = ["year"]
sort_by = ["year"]

[source.types]
value = "float"

[[derive]]
op = "parse_date"
source = "date"
format = "MM/dd/yyyy"

[[derive]]
op = "extract"
source = "date"
field = "year"

[aggregate.mean_value]
source = "value"

[output]
path = "yearly.parquet"
format = "parquet"
`

func TestParseJob(t *testing.T) {
	t.Run("yaml", func(t *testing.T) {
		job, err := ParseJob([]byte(yamlJob), ".yaml")
		require.NoError(t, err)

		assert.Equal(t, map[string]domain.Dtype{"value": domain.DtypeFloat}, job.Source.Types)
		assert.Equal(t, "prices", job.Source.Sheet)
		require.Len(t, job.Derive, 2)
		assert.Equal(t, dataprocessing.Derivation{Op: dataprocessing.OpParseDate, Source: "date", Format: "MM/dd/yyyy"}, job.Derive[0])
		assert.Equal(t, []string{"year"}, job.GroupBy)
		assert.Equal(t, dataprocessing.Aggregation{Source: "value", Func: "count"}, job.Aggregate["rows"])
		assert.Equal(t, "yearly.csv", job.Output.Path)
	})

	t.Run("toml", func(t *testing.T) {
		job, err := ParseJob([]byte(tomlJob), "toml")
		require.NoError(t, err)

		assert.Equal(t, "yearly", job.Name)
		assert.Equal(t, domain.DtypeFloat, job.Source.Types["value"])
		require.Len(t, job.Derive, 2)
		assert.Equal(t, "year", job.Derive[1].Field)
		assert.Equal(t, "", job.Aggregate["mean_value"].Func)
		assert.Equal(t, "parquet", job.Output.Format)
	})

	invalid := []struct {
		name   string
		data   string
		format string
		want   string
	}{
		{"unknown yaml key", "group_by: [a]\ngroupby: [b]\n", "yaml", "invalid job yaml"},
		{"unknown toml key", "group_by = [\"a\"]\nsortby = [\"b\"]\n", "toml", "unknown job keys: sortby"},
		{"unsupported format", "{}", "json", "unsupported job format"},
		{"missing derivation op", "derive:\n  - source: date\n", "yaml", "derive[0].op"},
		{"duplicate group key", "group_by: [a, a]\n", "yaml", "group_by: failed unique"},
		{"empty group key", "group_by: ['']\n", "yaml", "group_by[0]"},
		{"aggregation without source", "aggregate:\n  x: {func: sum}\n", "yaml", "source: failed required"},
		{"bad output format", "output: {format: xls}\n", "yaml", "output.format: failed oneof"},
		{"bad dtype", "source:\n  types: {a: decimal}\n", "yaml", "unknown dtype"},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseJob([]byte(tt.data), tt.format)
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadJob(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "monthly-means.yml")
	require.NoError(t, os.WriteFile(path, []byte(yamlJob), 0644))

	job, err := LoadJob(path)
	require.NoError(t, err)
	assert.Equal(t, "monthly-means", job.Name, "name defaults to the file name")

	_, err = LoadJob(filepath.Join(dir, "missing.yaml"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))
}

func TestJobSpec_ApplyDefaultAggregation(t *testing.T) {
	job := &JobSpec{Aggregate: dataprocessing.Aggregations{
		"a": {Source: "x"},
		"b": {Source: "x", Func: "max"},
	}}
	job.ApplyDefaultAggregation("sum")

	assert.Equal(t, "sum", job.Aggregate["a"].Func)
	assert.Equal(t, "max", job.Aggregate["b"].Func)
}
