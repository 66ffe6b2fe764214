package source

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "dateresample/internal/errors"
	"dateresample/pkg/contracts/domain"
)

// ctxCheckInterval is how many rows are read between cancellation checks.
const ctxCheckInterval = 4096

// timestampLayouts are tried in order when a cell is read as a timestamp.
// Layouts without a zone are UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ConvertCell turns the text of one cell into a value of dt. Blank text is
// null. Dates are ISO (2006-01-02); timestamps are RFC 3339 or
// ISO without a zone.
func ConvertCell(text string, dt domain.Dtype) (domain.Value, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Null(dt), nil
	}

	switch dt {
	case domain.DtypeString:
		return domain.StringValue(text), nil
	case domain.DtypeInt:
		i, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return domain.Value{}, fmt.Errorf("invalid int %q", text)
		}
		return domain.IntValue(i), nil
	case domain.DtypeFloat:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return domain.Value{}, fmt.Errorf("invalid float %q", text)
		}
		return domain.FloatValue(f), nil
	case domain.DtypeDate:
		d, err := domain.ParseCalendarDate(text)
		if err != nil {
			return domain.Value{}, fmt.Errorf("invalid date %q", text)
		}
		return domain.DateValue(d), nil
	case domain.DtypeTimestamp:
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, text); err == nil {
				return domain.TimestampValue(ts.UTC()), nil
			}
		}
		return domain.Value{}, fmt.Errorf("invalid timestamp %q", text)
	}
	return domain.Value{}, fmt.Errorf("unknown dtype %q", dt)
}

// textTable builds a table from a header and string records, converting
// the columns named in types. Records shorter than the header are padded
// with blank cells.
func textTable(ctx context.Context, header []string, records [][]string, types map[string]domain.Dtype) (*domain.Table, error) {
	schema := make(domain.Schema, len(header))
	for i, name := range header {
		schema[i] = domain.Column{Name: strings.TrimSpace(name), Dtype: domain.DtypeString}
	}
	if err := schema.Validate(); err != nil {
		return nil, apperrors.NewAppValidationError(fmt.Sprintf("invalid header: %v", err))
	}
	if err := applyDeclaredTypes(schema, types); err != nil {
		return nil, err
	}

	rows := make([]domain.Row, 0, len(records))
	for r, record := range records {
		if r%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if len(record) > len(schema) {
			return nil, apperrors.NewParsingError(
				fmt.Sprintf("row %d has %d cells, header has %d", r+1, len(record), len(schema)), nil)
		}
		row := make(domain.Row, len(schema))
		for c, col := range schema {
			cell := ""
			if c < len(record) {
				cell = record[c]
			}
			v, err := ConvertCell(cell, col.Dtype)
			if err != nil {
				return nil, apperrors.NewParsingError(fmt.Sprintf("column %q row %d", col.Name, r+1), err).
					WithContext("column", col.Name).
					WithContext("row", r+1)
			}
			row[c] = v
		}
		rows = append(rows, row)
	}

	t, err := domain.NewTable(schema, rows)
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrTypeValidation, "build table", err)
	}
	return t, nil
}

// applyDeclaredTypes sets the dtype of every column named in types. A
// declared column missing from the schema is a validation error.
func applyDeclaredTypes(schema domain.Schema, types map[string]domain.Dtype) error {
	for name, dt := range types {
		idx := schema.Index(name)
		if idx < 0 {
			return apperrors.NewAppValidationError(fmt.Sprintf("declared column %q not found in input", name)).
				WithContext("column", name)
		}
		if !dt.IsValid() {
			return apperrors.NewAppValidationError(fmt.Sprintf("column %q: unknown dtype %q", name, dt))
		}
		schema[idx].Dtype = dt
	}
	return nil
}

// castTable converts the columns of a typed table named in types. String
// columns are parsed like text cells, int columns widen to float and
// anything renders to string; other changes are validation errors.
func castTable(t *domain.Table, types map[string]domain.Dtype) (*domain.Table, error) {
	for name, dt := range types {
		src, err := t.ColumnDtype(name)
		if err != nil {
			return nil, apperrors.NewAppValidationError(fmt.Sprintf("declared column %q not found in input", name)).
				WithContext("column", name)
		}
		if src == dt {
			continue
		}
		values, _ := t.Column(name)
		out := make([]domain.Value, len(values))
		for i, v := range values {
			switch {
			case v.IsNull():
				out[i] = domain.Null(dt)
			case dt == domain.DtypeString:
				out[i] = domain.StringValue(v.String())
			case src == domain.DtypeString:
				cv, err := ConvertCell(v.Str(), dt)
				if err != nil {
					return nil, apperrors.NewParsingError(fmt.Sprintf("column %q row %d", name, i+1), err).
						WithContext("column", name).
						WithContext("row", i+1)
				}
				out[i] = cv
			case src == domain.DtypeInt && dt == domain.DtypeFloat:
				out[i] = domain.FloatValue(float64(v.Int()))
			default:
				return nil, apperrors.NewAppValidationError(
					fmt.Sprintf("column %q: cannot convert %s to %s", name, src, dt))
			}
		}
		t, err = t.WithColumn(domain.Column{Name: name, Dtype: dt}, out)
		if err != nil {
			return nil, apperrors.NewAppError(apperrors.ErrTypeValidation, "convert column", err)
		}
	}
	return t, nil
}
