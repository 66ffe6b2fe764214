package dataprocessing

import (
	"strings"

	apperrors "dateresample/internal/errors"
)

// AggFunc names a reduction applied to the values of one group.
type AggFunc string

const (
	AggMean  AggFunc = "mean"
	AggSum   AggFunc = "sum"
	AggMin   AggFunc = "min"
	AggMax   AggFunc = "max"
	AggCount AggFunc = "count"
)

// ParseAggFunc resolves an aggregation name. The empty name is mean and
// "avg" is accepted as an alias for it.
func ParseAggFunc(name string) (AggFunc, error) {
	switch fn := AggFunc(strings.ToLower(strings.TrimSpace(name))); fn {
	case "", "avg", AggMean:
		return AggMean, nil
	case AggSum, AggMin, AggMax, AggCount:
		return fn, nil
	}
	return "", apperrors.NewUnsupportedOperationError("aggregation", name)
}

// Aggregation reduces Source within each group using Func.
type Aggregation struct {
	Source string `json:"source" yaml:"source" toml:"source" validate:"required"`
	Func   string `json:"func,omitempty" yaml:"func,omitempty" toml:"func"`
}

// Aggregations maps output column names to their aggregation.
type Aggregations map[string]Aggregation

// DerivationOp names one column derivation step.
type DerivationOp string

const (
	OpParseDate       DerivationOp = "parse_date"
	OpParseTimestamp  DerivationOp = "parse_timestamp"
	OpUnixTimestamp   DerivationOp = "unix_timestamp"
	OpExtract         DerivationOp = "extract"
	OpEndOfMonth      DerivationOp = "end_of_month"
	OpNextWeekday     DerivationOp = "next_weekday"
	OpPreviousWeekday DerivationOp = "previous_weekday"
	OpAddMonths       DerivationOp = "add_months"
	OpAddDays         DerivationOp = "add_days"
	OpSubDays         DerivationOp = "sub_days"
	OpTruncate        DerivationOp = "truncate"
	OpDaysBetween     DerivationOp = "days_between"
	OpMonthsBetween   DerivationOp = "months_between"
)

// Derivation is one declarative step of a derivation plan. Which of the
// parameter fields apply depends on Op; Target defaults to Source.
type Derivation struct {
	Op      DerivationOp `json:"op" yaml:"op" toml:"op" validate:"required"`
	Source  string       `json:"source,omitempty" yaml:"source,omitempty" toml:"source"`
	Target  string       `json:"target,omitempty" yaml:"target,omitempty" toml:"target"`
	Format  string       `json:"format,omitempty" yaml:"format,omitempty" toml:"format"`
	Field   string       `json:"field,omitempty" yaml:"field,omitempty" toml:"field"`
	Weekday string       `json:"weekday,omitempty" yaml:"weekday,omitempty" toml:"weekday"`
	N       int          `json:"n,omitempty" yaml:"n,omitempty" toml:"n"`
	Unit    string       `json:"unit,omitempty" yaml:"unit,omitempty" toml:"unit"`
	Start   string       `json:"start,omitempty" yaml:"start,omitempty" toml:"start"`
	End     string       `json:"end,omitempty" yaml:"end,omitempty" toml:"end"`
}

// target returns the output column name of the step.
func (d Derivation) target() string {
	if d.Target != "" {
		return d.Target
	}
	return d.Source
}

// NormalizeStats counts what a derivation plan did to the data.
type NormalizeStats struct {
	Steps int
	// Unparseable counts non-empty cells that did not match their format
	// and were turned into nulls.
	Unparseable int
}
