package dataprocessing

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"

	"dateresample/pkg/contracts/domain"
)

// reducer folds the non-null values of one group into a single value.
// result is null when add was never called with a non-null value.
type reducer interface {
	add(v domain.Value)
	result() (domain.Value, error)
}

// errIntOverflow is returned by an int sum whose exact total does not fit
// in int64.
var errIntOverflow = errors.New("integer sum overflows int64")

var (
	minInt64 = decimal.NewFromInt(math.MinInt64)
	maxInt64 = decimal.NewFromInt(math.MaxInt64)
)

// outputDtype is the dtype fn produces for a source column of dtype src.
func outputDtype(fn AggFunc, src domain.Dtype) domain.Dtype {
	switch fn {
	case AggMean:
		return domain.DtypeFloat
	case AggSum:
		if src == domain.DtypeInt {
			return domain.DtypeInt
		}
		return domain.DtypeFloat
	case AggCount:
		return domain.DtypeInt
	}
	return src
}

func newReducer(fn AggFunc, src domain.Dtype) reducer {
	switch fn {
	case AggMean:
		return &sumReducer{mean: true}
	case AggSum:
		return &sumReducer{intResult: src == domain.DtypeInt}
	case AggMin:
		return &extremeReducer{dtype: src}
	case AggMax:
		return &extremeReducer{dtype: src, max: true}
	case AggCount:
		return &countReducer{}
	}
	return nil
}

// sumReducer accumulates in decimal so that sums of short decimal
// fractions (prices, rates) come out exact. Non-finite inputs fall back to
// float arithmetic, which decimal cannot represent.
type sumReducer struct {
	mean      bool
	intResult bool
	n         int64
	sum       decimal.Decimal
	fsum      float64
	nonFinite bool
}

func (r *sumReducer) add(v domain.Value) {
	if v.IsNull() {
		return
	}
	r.n++
	if v.Dtype() == domain.DtypeInt {
		r.sum = r.sum.Add(decimal.NewFromInt(v.Int()))
		r.fsum += float64(v.Int())
		return
	}
	f := v.Float()
	r.fsum += f
	if math.IsNaN(f) || math.IsInf(f, 0) {
		r.nonFinite = true
		return
	}
	r.sum = r.sum.Add(decimal.NewFromFloat(f))
}

func (r *sumReducer) result() (domain.Value, error) {
	switch {
	case r.n == 0 && r.intResult:
		return domain.Null(domain.DtypeInt), nil
	case r.n == 0:
		return domain.Null(domain.DtypeFloat), nil
	case r.intResult:
		if r.sum.LessThan(minInt64) || r.sum.GreaterThan(maxInt64) {
			return domain.Value{}, errIntOverflow
		}
		return domain.IntValue(r.sum.IntPart()), nil
	case r.nonFinite && r.mean:
		return domain.FloatValue(r.fsum / float64(r.n)), nil
	case r.nonFinite:
		return domain.FloatValue(r.fsum), nil
	case r.mean:
		return domain.FloatValue(r.sum.Div(decimal.NewFromInt(r.n)).InexactFloat64()), nil
	}
	return domain.FloatValue(r.sum.InexactFloat64()), nil
}

// extremeReducer keeps the smallest or largest value under Value.Compare,
// so it works for every dtype.
type extremeReducer struct {
	dtype domain.Dtype
	max   bool
	best  domain.Value
	seen  bool
}

func (r *extremeReducer) add(v domain.Value) {
	if v.IsNull() {
		return
	}
	if !r.seen {
		r.best, r.seen = v, true
		return
	}
	c := v.Compare(r.best)
	if (r.max && c > 0) || (!r.max && c < 0) {
		r.best = v
	}
}

func (r *extremeReducer) result() (domain.Value, error) {
	if !r.seen {
		return domain.Null(r.dtype), nil
	}
	return r.best, nil
}

type countReducer struct {
	n int64
}

func (r *countReducer) add(v domain.Value) {
	if !v.IsNull() {
		r.n++
	}
}

// result is null rather than 0 for a group without any non-null value.
func (r *countReducer) result() (domain.Value, error) {
	if r.n == 0 {
		return domain.Null(domain.DtypeInt), nil
	}
	return domain.IntValue(r.n), nil
}
