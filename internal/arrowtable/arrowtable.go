// Package arrowtable converts between domain tables and Apache Arrow
// tables, which is the in-memory form the Parquet reader and writer use.
package arrowtable

import (
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"dateresample/pkg/contracts/domain"
)

// ArrowType returns the Arrow type used to store dt.
func ArrowType(dt domain.Dtype) (arrow.DataType, error) {
	switch dt {
	case domain.DtypeString:
		return arrow.BinaryTypes.String, nil
	case domain.DtypeInt:
		return arrow.PrimitiveTypes.Int64, nil
	case domain.DtypeFloat:
		return arrow.PrimitiveTypes.Float64, nil
	case domain.DtypeDate:
		return arrow.FixedWidthTypes.Date32, nil
	case domain.DtypeTimestamp:
		return arrow.FixedWidthTypes.Timestamp_us, nil
	}
	return nil, fmt.Errorf("no arrow type for dtype %q", dt)
}

// DtypeOf maps an Arrow type onto the closest dtype.
func DtypeOf(t arrow.DataType) (domain.Dtype, error) {
	switch t.ID() {
	case arrow.STRING, arrow.LARGE_STRING:
		return domain.DtypeString, nil
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.BOOL:
		return domain.DtypeInt, nil
	case arrow.FLOAT32, arrow.FLOAT64:
		return domain.DtypeFloat, nil
	case arrow.DATE32, arrow.DATE64:
		return domain.DtypeDate, nil
	case arrow.TIMESTAMP:
		return domain.DtypeTimestamp, nil
	}
	return "", fmt.Errorf("unsupported arrow type %s", t)
}

// Schema builds the Arrow schema for s. Every field is nullable.
func Schema(s domain.Schema) (*arrow.Schema, error) {
	fields := make([]arrow.Field, len(s))
	for i, col := range s {
		at, err := ArrowType(col.Dtype)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col.Name, err)
		}
		fields[i] = arrow.Field{Name: col.Name, Type: at, Nullable: true}
	}
	return arrow.NewSchema(fields, nil), nil
}

// ToRecord copies t into a single Arrow record. The caller releases it.
func ToRecord(mem memory.Allocator, t *domain.Table) (arrow.Record, error) {
	schema, err := Schema(t.Schema())
	if err != nil {
		return nil, err
	}

	rb := array.NewRecordBuilder(mem, schema)
	defer rb.Release()

	for c, col := range t.Schema() {
		values, _ := t.Column(col.Name)
		appendValues(rb.Field(c), values)
	}
	return rb.NewRecord(), nil
}

// ToArrow copies t into an Arrow table. The caller releases it.
func ToArrow(mem memory.Allocator, t *domain.Table) (arrow.Table, error) {
	rec, err := ToRecord(mem, t)
	if err != nil {
		return nil, err
	}
	defer rec.Release()
	return array.NewTableFromRecords(rec.Schema(), []arrow.Record{rec}), nil
}

func appendValues(b array.Builder, values []domain.Value) {
	b.Reserve(len(values))
	for _, v := range values {
		if v.IsNull() {
			b.AppendNull()
			continue
		}
		switch bb := b.(type) {
		case *array.StringBuilder:
			bb.Append(v.Str())
		case *array.Int64Builder:
			bb.Append(v.Int())
		case *array.Float64Builder:
			bb.Append(v.Float())
		case *array.Date32Builder:
			bb.Append(arrow.Date32FromTime(v.Date().Time()))
		case *array.TimestampBuilder:
			bb.Append(arrow.Timestamp(v.Timestamp().UnixMicro()))
		}
	}
}

// FromArrow copies an Arrow table into a domain table. Columns of types
// without a dtype mapping are rejected.
func FromArrow(tbl arrow.Table) (*domain.Table, error) {
	schema := make(domain.Schema, tbl.NumCols())
	for i, f := range tbl.Schema().Fields() {
		dt, err := DtypeOf(f.Type)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", f.Name, err)
		}
		schema[i] = domain.Column{Name: f.Name, Dtype: dt}
	}

	rows := make([]domain.Row, 0, tbl.NumRows())
	tr := array.NewTableReader(tbl, 64*1024)
	defer tr.Release()

	for tr.Next() {
		rec := tr.Record()
		n := int(rec.NumRows())
		base := len(rows)
		for i := 0; i < n; i++ {
			rows = append(rows, make(domain.Row, len(schema)))
		}
		for c, col := range rec.Columns() {
			for i := 0; i < n; i++ {
				v, err := valueAt(col, i)
				if err != nil {
					return nil, fmt.Errorf("column %q: %w", schema[c].Name, err)
				}
				rows[base+i][c] = v
			}
		}
	}
	if err := tr.Err(); err != nil {
		return nil, fmt.Errorf("read arrow table: %w", err)
	}
	return domain.NewTable(schema, rows)
}

func valueAt(col arrow.Array, pos int) (domain.Value, error) {
	dt, err := DtypeOf(col.DataType())
	if err != nil {
		return domain.Value{}, err
	}
	if col.IsNull(pos) {
		return domain.Null(dt), nil
	}

	switch a := col.(type) {
	case *array.String:
		return domain.StringValue(a.Value(pos)), nil
	case *array.LargeString:
		return domain.StringValue(a.Value(pos)), nil
	case *array.Boolean:
		if a.Value(pos) {
			return domain.IntValue(1), nil
		}
		return domain.IntValue(0), nil
	case *array.Int8:
		return domain.IntValue(int64(a.Value(pos))), nil
	case *array.Int16:
		return domain.IntValue(int64(a.Value(pos))), nil
	case *array.Int32:
		return domain.IntValue(int64(a.Value(pos))), nil
	case *array.Int64:
		return domain.IntValue(a.Value(pos)), nil
	case *array.Uint8:
		return domain.IntValue(int64(a.Value(pos))), nil
	case *array.Uint16:
		return domain.IntValue(int64(a.Value(pos))), nil
	case *array.Uint32:
		return domain.IntValue(int64(a.Value(pos))), nil
	case *array.Float32:
		return domain.FloatValue(float64(a.Value(pos))), nil
	case *array.Float64:
		return domain.FloatValue(a.Value(pos)), nil
	case *array.Date32:
		return domain.DateValue(domain.DateOf(a.Value(pos).ToTime())), nil
	case *array.Date64:
		return domain.DateValue(domain.DateOf(a.Value(pos).ToTime())), nil
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		return domain.TimestampValue(a.Value(pos).ToTime(unit).In(time.UTC)), nil
	}
	return domain.Value{}, fmt.Errorf("unsupported arrow array %T", col)
}
