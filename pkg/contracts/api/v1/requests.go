// Package api contains the wire contracts of the resample HTTP API.
// Version v1 is the current stable API version.
package api

import (
	"dateresample/pkg/contracts/domain"
)

// DerivationStep is one column derivation applied before grouping. The
// parameters that apply depend on Op; Target defaults to Source.
type DerivationStep struct {
	Op      string `json:"op" validate:"required"`
	Source  string `json:"source,omitempty" validate:"omitempty,colname"`
	Target  string `json:"target,omitempty" validate:"omitempty,colname"`
	Format  string `json:"format,omitempty"`
	Field   string `json:"field,omitempty"`
	Weekday string `json:"weekday,omitempty"`
	N       int    `json:"n,omitempty"`
	Unit    string `json:"unit,omitempty"`
	Start   string `json:"start,omitempty" validate:"omitempty,colname"`
	End     string `json:"end,omitempty" validate:"omitempty,colname"`
}

// AggregationSpec reduces Source within each group. An empty Func means
// the server's default aggregation.
type AggregationSpec struct {
	Source string `json:"source" validate:"required,colname"`
	Func   string `json:"func,omitempty"`
}

// ResampleRequest is the body of POST /api/v1/resample.
type ResampleRequest struct {
	Table     *domain.Table              `json:"table" validate:"required"`
	Derive    []DerivationStep           `json:"derive,omitempty" validate:"dive"`
	GroupBy   []string                   `json:"group_by,omitempty" validate:"unique,dive,colname"`
	Aggregate map[string]AggregationSpec `json:"aggregate,omitempty" validate:"dive,keys,colname,endkeys"`
	SortBy    []string                   `json:"sort_by,omitempty" validate:"dive,colname"`
}
