package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	apperrors "dateresample/internal/errors"
	"dateresample/pkg/contracts/domain"
)

// ctxCheckInterval is how many rows are folded between cancellation checks.
const ctxCheckInterval = 4096

// Resampler groups table rows by key columns and reduces the remaining
// columns per group.
type Resampler struct {
	logger *slog.Logger
}

// NewResampler creates a resampler.
func NewResampler(logger *slog.Logger) *Resampler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resampler{logger: logger.With(slog.String("component", "resampler"))}
}

// resolvedAgg is an Aggregation checked against the input schema.
type resolvedAgg struct {
	name   string
	fn     AggFunc
	srcIdx int
	srcDt  domain.Dtype
}

type group struct {
	key      domain.Row
	reducers []reducer
}

// Resample partitions t by the values of groupKeys and emits one row per
// distinct key tuple. Null is an ordinary key value. The output schema is
// the key columns followed by the aggregation outputs sorted by name;
// rows come out in order of each group's first appearance.
//
// With no group keys the whole table is one group, so the result has
// exactly one row even when t is empty.
//
// Every aggregation is validated before any row is read; an unknown
// function name fails with UNSUPPORTED_OPERATION and no result.
func (r *Resampler) Resample(ctx context.Context, t *domain.Table, groupKeys []string, aggs Aggregations) (*domain.Table, error) {
	schema := t.Schema()

	keyIdx := make([]int, len(groupKeys))
	outSchema := make(domain.Schema, 0, len(groupKeys)+len(aggs))
	seenKey := make(map[string]bool, len(groupKeys))
	for i, name := range groupKeys {
		keyIdx[i] = schema.Index(name)
		if keyIdx[i] < 0 {
			return nil, apperrors.NewAppValidationError(fmt.Sprintf("group key column %q not found", name)).
				WithContext("column", name)
		}
		if seenKey[name] {
			return nil, apperrors.NewAppValidationError(fmt.Sprintf("group key column %q listed twice", name))
		}
		seenKey[name] = true
		outSchema = append(outSchema, schema[keyIdx[i]])
	}

	resolved, err := r.resolve(schema, seenKey, aggs)
	if err != nil {
		return nil, err
	}
	for _, agg := range resolved {
		outSchema = append(outSchema, domain.Column{Name: agg.name, Dtype: outputDtype(agg.fn, agg.srcDt)})
	}

	newGroup := func(key domain.Row) *group {
		g := &group{key: key, reducers: make([]reducer, len(resolved))}
		for i, agg := range resolved {
			g.reducers[i] = newReducer(agg.fn, agg.srcDt)
		}
		return g
	}

	index := make(map[string]*group)
	var order []*group
	if len(groupKeys) == 0 {
		g := newGroup(domain.Row{})
		index[""] = g
		order = append(order, g)
	}

	key := make([]domain.Value, len(keyIdx))
	for i := 0; i < t.NumRows(); i++ {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		row := t.Row(i)
		for k, idx := range keyIdx {
			key[k] = row[idx]
		}
		encoded := domain.GroupKey(key)
		g, ok := index[encoded]
		if !ok {
			g = newGroup(append(domain.Row(nil), key...))
			index[encoded] = g
			order = append(order, g)
		}
		for a, agg := range resolved {
			g.reducers[a].add(row[agg.srcIdx])
		}
	}

	rows := make([]domain.Row, len(order))
	for i, g := range order {
		out := make(domain.Row, 0, len(outSchema))
		out = append(out, g.key...)
		for a, red := range g.reducers {
			v, err := red.result()
			if err != nil {
				return nil, apperrors.NewAppError(apperrors.ErrTypeValidation,
					fmt.Sprintf("aggregation %q", resolved[a].name), err).
					WithContext("column", schema[resolved[a].srcIdx].Name)
			}
			out = append(out, v)
		}
		rows[i] = out
	}

	result, err := domain.NewTable(outSchema, rows)
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrTypeValidation, "build resampled table", err)
	}

	r.logger.DebugContext(ctx, "table resampled",
		slog.Int("rows_in", t.NumRows()),
		slog.Int("groups", result.NumRows()),
		slog.Any("group_keys", groupKeys),
		slog.Int("aggregations", len(resolved)))
	return result, nil
}

// resolve validates aggregations against the input schema and returns
// them ordered by output name. Function names are checked first so an
// unsupported function is reported ahead of any schema problem.
func (r *Resampler) resolve(schema domain.Schema, keys map[string]bool, aggs Aggregations) ([]resolvedAgg, error) {
	names := make([]string, 0, len(aggs))
	for name := range aggs {
		names = append(names, name)
	}
	sort.Strings(names)

	resolved := make([]resolvedAgg, len(names))
	for i, name := range names {
		fn, err := ParseAggFunc(aggs[name].Func)
		if err != nil {
			return nil, err
		}
		resolved[i] = resolvedAgg{name: name, fn: fn}
	}

	for i, name := range names {
		agg := aggs[name]
		if name == "" {
			return nil, apperrors.NewAppValidationError("aggregation output name is required")
		}
		if keys[name] {
			return nil, apperrors.NewAppValidationError(fmt.Sprintf("aggregation output %q collides with a group key", name))
		}
		idx := schema.Index(agg.Source)
		if idx < 0 {
			return nil, apperrors.NewAppValidationError(fmt.Sprintf("aggregation %q: source column %q not found", name, agg.Source)).
				WithContext("column", agg.Source)
		}
		dt := schema[idx].Dtype
		if (resolved[i].fn == AggMean || resolved[i].fn == AggSum) && !dt.IsNumeric() {
			return nil, apperrors.NewAppValidationError(fmt.Sprintf("aggregation %q: %s needs a numeric column, %q is %s",
				name, resolved[i].fn, agg.Source, dt))
		}
		resolved[i].srcIdx = idx
		resolved[i].srcDt = dt
	}
	return resolved, nil
}
