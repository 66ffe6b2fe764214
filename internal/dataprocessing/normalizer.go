package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"dateresample/internal/dates"
	apperrors "dateresample/internal/errors"
	"dateresample/pkg/contracts/domain"
)

// Normalizer turns textual date columns into typed dates and derives
// calendar fields and relative dates from them. Every method returns a
// new table; inputs are never modified.
type Normalizer struct {
	logger *slog.Logger
}

// NewNormalizer creates a normalizer.
func NewNormalizer(logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{logger: logger.With(slog.String("component", "normalizer"))}
}

// ParseDates parses the string column source under spec into a date
// column named target. Empty and non-conforming cells become null; the
// second result counts the non-empty cells that failed to parse.
func (n *Normalizer) ParseDates(t *domain.Table, source, target string, spec dates.DateFormatSpec) (*domain.Table, int, error) {
	return n.parseColumn(t, source, target, domain.DtypeDate, spec,
		func(layout *dates.Layout, text string) domain.Value {
			d, ok := layout.Parse(text)
			if !ok {
				return domain.Null(domain.DtypeDate)
			}
			return domain.DateValue(d)
		},
		func(v domain.Value) domain.Value {
			return domain.DateValue(v.Date())
		})
}

// ParseTimestamps is ParseDates for time-bearing text; the result keeps
// the time of day.
func (n *Normalizer) ParseTimestamps(t *domain.Table, source, target string, spec dates.DateFormatSpec) (*domain.Table, int, error) {
	return n.parseColumn(t, source, target, domain.DtypeTimestamp, spec,
		func(layout *dates.Layout, text string) domain.Value {
			ts, ok := layout.ParseTime(text)
			if !ok {
				return domain.Null(domain.DtypeTimestamp)
			}
			return domain.TimestampValue(ts)
		},
		func(v domain.Value) domain.Value {
			return domain.TimestampValue(v.Timestamp())
		})
}

// UnixTimestamps parses source under spec into seconds since the epoch.
func (n *Normalizer) UnixTimestamps(t *domain.Table, source, target string, spec dates.DateFormatSpec) (*domain.Table, int, error) {
	return n.parseColumn(t, source, target, domain.DtypeInt, spec,
		func(layout *dates.Layout, text string) domain.Value {
			ts, ok := layout.ParseTime(text)
			if !ok {
				return domain.Null(domain.DtypeInt)
			}
			return domain.IntValue(ts.Unix())
		},
		func(v domain.Value) domain.Value {
			return domain.IntValue(v.Timestamp().Unix())
		})
}

// ExtractField derives an int column holding field of each source date.
func (n *Normalizer) ExtractField(t *domain.Table, source, target string, field dates.Field) (*domain.Table, error) {
	return n.mapTemporal(t, source, target, domain.DtypeInt, func(v domain.Value) domain.Value {
		return dates.ExtractValue(v, field)
	})
}

// EndOfMonth derives the last day of each source date's month.
func (n *Normalizer) EndOfMonth(t *domain.Table, source, target string) (*domain.Table, error) {
	return n.mapDates(t, source, target, dates.EndOfMonth)
}

// NextWeekday derives the first date strictly after each source date
// that falls on wd.
func (n *Normalizer) NextWeekday(t *domain.Table, source, target string, wd time.Weekday) (*domain.Table, error) {
	return n.mapDates(t, source, target, func(d domain.CalendarDate) domain.CalendarDate {
		return dates.NextWeekday(d, wd)
	})
}

// PreviousWeekday derives the last date strictly before each source date
// that falls on wd.
func (n *Normalizer) PreviousWeekday(t *domain.Table, source, target string, wd time.Weekday) (*domain.Table, error) {
	return n.mapDates(t, source, target, func(d domain.CalendarDate) domain.CalendarDate {
		return dates.PreviousWeekday(d, wd)
	})
}

// AddMonths shifts each source date by months calendar months.
func (n *Normalizer) AddMonths(t *domain.Table, source, target string, months int) (*domain.Table, error) {
	return n.mapDates(t, source, target, func(d domain.CalendarDate) domain.CalendarDate {
		return dates.AddMonths(d, months)
	})
}

// AddDays shifts each source date forward by days.
func (n *Normalizer) AddDays(t *domain.Table, source, target string, days int) (*domain.Table, error) {
	return n.mapDates(t, source, target, func(d domain.CalendarDate) domain.CalendarDate {
		return dates.AddDays(d, days)
	})
}

// SubDays shifts each source date backward by days.
func (n *Normalizer) SubDays(t *domain.Table, source, target string, days int) (*domain.Table, error) {
	return n.mapDates(t, source, target, func(d domain.CalendarDate) domain.CalendarDate {
		return dates.SubDays(d, days)
	})
}

// Truncate rounds each source date down to the start of unit.
func (n *Normalizer) Truncate(t *domain.Table, source, target string, unit dates.TruncUnit) (*domain.Table, error) {
	if _, err := dates.Truncate(domain.CalendarDate{Year: 2000, Month: time.January, Day: 1}, unit); err != nil {
		return nil, err
	}
	return n.mapDates(t, source, target, func(d domain.CalendarDate) domain.CalendarDate {
		out, _ := dates.Truncate(d, unit)
		return out
	})
}

// DaysBetween derives end - start in days. The roles are not
// interchangeable: swapping them negates the result.
func (n *Normalizer) DaysBetween(t *domain.Table, start, end, target string) (*domain.Table, error) {
	return n.mapInterval(t, start, end, target, domain.DtypeInt, dates.DaysBetweenValues)
}

// MonthsBetween derives end - start in fractional months.
func (n *Normalizer) MonthsBetween(t *domain.Table, start, end, target string) (*domain.Table, error) {
	return n.mapInterval(t, start, end, target, domain.DtypeFloat, dates.MonthsBetweenValues)
}

// Apply runs a derivation plan in order. Each step sees the columns added
// by the steps before it.
func (n *Normalizer) Apply(ctx context.Context, t *domain.Table, plan []Derivation) (*domain.Table, NormalizeStats, error) {
	var stats NormalizeStats
	for i, step := range plan {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		next, unparseable, err := n.applyStep(t, step)
		if err != nil {
			return nil, stats, fmt.Errorf("derivation %d (%s): %w", i+1, step.Op, err)
		}
		t = next
		stats.Steps++
		stats.Unparseable += unparseable
	}

	if stats.Unparseable > 0 {
		n.logger.WarnContext(ctx, "unparseable date values replaced with null",
			slog.Int("count", stats.Unparseable))
	}
	n.logger.DebugContext(ctx, "derivation plan applied",
		slog.Int("steps", stats.Steps),
		slog.Int("columns", t.NumCols()))
	return t, stats, nil
}

func (n *Normalizer) applyStep(t *domain.Table, step Derivation) (*domain.Table, int, error) {
	if !knownOps[step.Op] {
		return nil, 0, apperrors.NewUnsupportedOperationError("derivation", string(step.Op))
	}
	if step.Op != OpDaysBetween && step.Op != OpMonthsBetween && step.Source == "" {
		return nil, 0, apperrors.NewAppValidationError("source column is required")
	}

	var (
		out *domain.Table
		err error
	)
	switch step.Op {
	case OpParseDate:
		return n.ParseDates(t, step.Source, step.target(), dates.DateFormatSpec(step.Format))
	case OpParseTimestamp:
		return n.ParseTimestamps(t, step.Source, step.target(), dates.DateFormatSpec(step.Format))
	case OpUnixTimestamp:
		return n.UnixTimestamps(t, step.Source, step.target(), dates.DateFormatSpec(step.Format))
	case OpExtract:
		field, ferr := dates.ParseField(step.Field)
		if ferr != nil {
			return nil, 0, ferr
		}
		target := step.Target
		if target == "" {
			target = string(field)
		}
		out, err = n.ExtractField(t, step.Source, target, field)
	case OpEndOfMonth:
		out, err = n.EndOfMonth(t, step.Source, step.target())
	case OpNextWeekday, OpPreviousWeekday:
		wd, werr := dates.ParseWeekday(step.Weekday)
		if werr != nil {
			return nil, 0, werr
		}
		if step.Op == OpNextWeekday {
			out, err = n.NextWeekday(t, step.Source, step.target(), wd)
		} else {
			out, err = n.PreviousWeekday(t, step.Source, step.target(), wd)
		}
	case OpAddMonths:
		out, err = n.AddMonths(t, step.Source, step.target(), step.N)
	case OpAddDays:
		out, err = n.AddDays(t, step.Source, step.target(), step.N)
	case OpSubDays:
		out, err = n.SubDays(t, step.Source, step.target(), step.N)
	case OpTruncate:
		unit, uerr := dates.ParseTruncUnit(step.Unit)
		if uerr != nil {
			return nil, 0, uerr
		}
		out, err = n.Truncate(t, step.Source, step.target(), unit)
	case OpDaysBetween, OpMonthsBetween:
		if step.Start == "" || step.End == "" || step.Target == "" {
			return nil, 0, apperrors.NewAppValidationError("start, end and target columns are required")
		}
		if step.Op == OpDaysBetween {
			out, err = n.DaysBetween(t, step.Start, step.End, step.Target)
		} else {
			out, err = n.MonthsBetween(t, step.Start, step.End, step.Target)
		}
	default:
		return nil, 0, apperrors.NewUnsupportedOperationError("derivation", string(step.Op))
	}
	return out, 0, err
}

var knownOps = map[DerivationOp]bool{
	OpParseDate: true, OpParseTimestamp: true, OpUnixTimestamp: true, OpExtract: true,
	OpEndOfMonth: true, OpNextWeekday: true, OpPreviousWeekday: true, OpAddMonths: true,
	OpAddDays: true, OpSubDays: true, OpTruncate: true, OpDaysBetween: true, OpMonthsBetween: true,
}

func compileSpec(spec dates.DateFormatSpec) (*dates.Layout, error) {
	layout, err := spec.Compile()
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrTypeValidation, "invalid date format", err).
			WithContext("format", string(spec))
	}
	return layout, nil
}

// parseColumn maps a string column through parse. Columns that are
// already temporal are converted with convert and spec is not consulted.
func (n *Normalizer) parseColumn(t *domain.Table, source, target string, out domain.Dtype, spec dates.DateFormatSpec,
	parse func(*dates.Layout, string) domain.Value, convert func(domain.Value) domain.Value) (*domain.Table, int, error) {
	values, dt, err := column(t, source)
	if err != nil {
		return nil, 0, err
	}
	if dt != domain.DtypeString && !dt.IsTemporal() {
		return nil, 0, dtypeError(source, dt, "string")
	}

	var layout *dates.Layout
	if dt == domain.DtypeString {
		if layout, err = compileSpec(spec); err != nil {
			return nil, 0, err
		}
	}

	unparseable := 0
	derived := make([]domain.Value, len(values))
	for i, v := range values {
		switch {
		case v.IsNull():
			derived[i] = domain.Null(out)
		case layout == nil:
			derived[i] = convert(v)
		default:
			derived[i] = parse(layout, v.Str())
			if derived[i].IsNull() && strings.TrimSpace(v.Str()) != "" {
				unparseable++
			}
		}
	}

	next, err := t.WithColumn(domain.Column{Name: target, Dtype: out}, derived)
	if err != nil {
		return nil, 0, apperrors.NewAppError(apperrors.ErrTypeValidation, "derive column", err)
	}
	return next, unparseable, nil
}

func (n *Normalizer) mapDates(t *domain.Table, source, target string, fn func(domain.CalendarDate) domain.CalendarDate) (*domain.Table, error) {
	return n.mapTemporal(t, source, target, domain.DtypeDate, func(v domain.Value) domain.Value {
		if v.IsNull() {
			return domain.Null(domain.DtypeDate)
		}
		return domain.DateValue(fn(v.Date()))
	})
}

func (n *Normalizer) mapTemporal(t *domain.Table, source, target string, out domain.Dtype, fn func(domain.Value) domain.Value) (*domain.Table, error) {
	values, dt, err := column(t, source)
	if err != nil {
		return nil, err
	}
	if !dt.IsTemporal() {
		return nil, dtypeError(source, dt, "date or timestamp")
	}
	derived := make([]domain.Value, len(values))
	for i, v := range values {
		if v.IsNull() {
			derived[i] = domain.Null(out)
			continue
		}
		derived[i] = fn(v)
	}
	next, err := t.WithColumn(domain.Column{Name: target, Dtype: out}, derived)
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrTypeValidation, "derive column", err)
	}
	return next, nil
}

func (n *Normalizer) mapInterval(t *domain.Table, start, end, target string, out domain.Dtype, fn func(start, end domain.Value) domain.Value) (*domain.Table, error) {
	starts, sdt, err := column(t, start)
	if err != nil {
		return nil, err
	}
	ends, edt, err := column(t, end)
	if err != nil {
		return nil, err
	}
	if !sdt.IsTemporal() {
		return nil, dtypeError(start, sdt, "date or timestamp")
	}
	if !edt.IsTemporal() {
		return nil, dtypeError(end, edt, "date or timestamp")
	}
	derived := make([]domain.Value, len(starts))
	for i := range starts {
		derived[i] = fn(starts[i], ends[i])
	}
	next, err := t.WithColumn(domain.Column{Name: target, Dtype: out}, derived)
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrTypeValidation, "derive column", err)
	}
	return next, nil
}

func column(t *domain.Table, name string) ([]domain.Value, domain.Dtype, error) {
	values, err := t.Column(name)
	if err != nil {
		return nil, "", apperrors.NewAppError(apperrors.ErrTypeValidation, "unknown column", err).
			WithContext("column", name)
	}
	dt, _ := t.ColumnDtype(name)
	return values, dt, nil
}

func dtypeError(name string, got domain.Dtype, want string) error {
	return apperrors.NewAppValidationError(fmt.Sprintf("column %q has dtype %s, want %s", name, got, want)).
		WithContext("column", name)
}
