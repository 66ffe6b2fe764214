package domain

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Column describes one named, typed column of a Table.
type Column struct {
	Name  string `json:"name" yaml:"name" validate:"required"`
	Dtype Dtype  `json:"dtype" yaml:"dtype" validate:"required"`
}

// Schema is the ordered column list of a Table.
type Schema []Column

// Index returns the position of the named column, or -1.
func (s Schema) Index(name string) int {
	for i, c := range s {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Names returns the column names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}

// Validate checks that every column has a name, a known dtype, and that
// names are unique.
func (s Schema) Validate() error {
	seen := make(map[string]bool, len(s))
	for i, c := range s {
		if c.Name == "" {
			return fmt.Errorf("column %d has no name", i)
		}
		if !c.Dtype.IsValid() {
			return fmt.Errorf("column %q has unknown dtype %q", c.Name, c.Dtype)
		}
		if seen[c.Name] {
			return fmt.Errorf("duplicate column %q", c.Name)
		}
		seen[c.Name] = true
	}
	return nil
}

// Row holds one value per schema column, in schema order.
type Row []Value

// Table is an immutable snapshot of rows sharing a schema. Every
// transformation returns a new Table and leaves the receiver untouched.
type Table struct {
	schema Schema
	rows   []Row
}

// NewTable validates rows against schema and returns a Table owning
// copies of both.
func NewTable(schema Schema, rows []Row) (*Table, error) {
	if err := schema.Validate(); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	owned := make([]Row, len(rows))
	for i, row := range rows {
		if len(row) != len(schema) {
			return nil, fmt.Errorf("row %d has %d values, schema has %d columns", i, len(row), len(schema))
		}
		owned[i] = append(Row(nil), row...)
		for j, v := range owned[i] {
			if v.dtype == schema[j].Dtype {
				continue
			}
			// The zero Value is accepted as a null of the column dtype.
			if !v.valid && v.dtype == "" {
				owned[i][j] = Null(schema[j].Dtype)
				continue
			}
			return nil, fmt.Errorf("row %d column %q: value dtype %q does not match %q",
				i, schema[j].Name, v.dtype, schema[j].Dtype)
		}
	}
	return &Table{schema: append(Schema(nil), schema...), rows: owned}, nil
}

// EmptyTable returns a table with the given schema and no rows.
func EmptyTable(schema Schema) (*Table, error) {
	return NewTable(schema, nil)
}

// Schema returns a copy of the table schema.
func (t *Table) Schema() Schema {
	return append(Schema(nil), t.schema...)
}

// NumRows returns the row count.
func (t *Table) NumRows() int { return len(t.rows) }

// NumCols returns the column count.
func (t *Table) NumCols() int { return len(t.schema) }

// Row returns a copy of row i.
func (t *Table) Row(i int) Row {
	return append(Row(nil), t.rows[i]...)
}

// Rows returns copies of all rows.
func (t *Table) Rows() []Row {
	out := make([]Row, len(t.rows))
	for i := range t.rows {
		out[i] = t.Row(i)
	}
	return out
}

// Value returns the value at row i of the named column.
func (t *Table) Value(i int, name string) (Value, error) {
	idx := t.schema.Index(name)
	if idx < 0 {
		return Value{}, &ColumnNotFoundError{Name: name}
	}
	return t.rows[i][idx], nil
}

// ColumnDtype returns the dtype of the named column.
func (t *Table) ColumnDtype(name string) (Dtype, error) {
	idx := t.schema.Index(name)
	if idx < 0 {
		return "", &ColumnNotFoundError{Name: name}
	}
	return t.schema[idx].Dtype, nil
}

// Column returns the values of the named column in row order.
func (t *Table) Column(name string) ([]Value, error) {
	idx := t.schema.Index(name)
	if idx < 0 {
		return nil, &ColumnNotFoundError{Name: name}
	}
	values := make([]Value, len(t.rows))
	for i, row := range t.rows {
		values[i] = row[idx]
	}
	return values, nil
}

// WithColumn returns a new table with col added at the end, or replacing
// an existing column of the same name in place.
func (t *Table) WithColumn(col Column, values []Value) (*Table, error) {
	if len(values) != len(t.rows) {
		return nil, fmt.Errorf("column %q has %d values, table has %d rows", col.Name, len(values), len(t.rows))
	}
	schema := t.Schema()
	idx := schema.Index(col.Name)
	if idx < 0 {
		schema = append(schema, col)
	} else {
		schema[idx] = col
	}
	rows := make([]Row, len(t.rows))
	for i, row := range t.rows {
		next := make(Row, len(schema))
		copy(next, row)
		if idx < 0 {
			next[len(schema)-1] = values[i]
		} else {
			next[idx] = values[i]
		}
		rows[i] = next
	}
	return NewTable(schema, rows)
}

// Select returns a new table holding only the named columns, in the
// given order.
func (t *Table) Select(names ...string) (*Table, error) {
	idx := make([]int, len(names))
	schema := make(Schema, len(names))
	for i, name := range names {
		idx[i] = t.schema.Index(name)
		if idx[i] < 0 {
			return nil, &ColumnNotFoundError{Name: name}
		}
		schema[i] = t.schema[idx[i]]
	}
	rows := make([]Row, len(t.rows))
	for r, row := range t.rows {
		next := make(Row, len(idx))
		for i, j := range idx {
			next[i] = row[j]
		}
		rows[r] = next
	}
	return NewTable(schema, rows)
}

// SortBy returns a new table ordered ascending by the named columns.
// Nulls sort first; ties keep their input order.
func (t *Table) SortBy(names ...string) (*Table, error) {
	idx := make([]int, len(names))
	for i, name := range names {
		idx[i] = t.schema.Index(name)
		if idx[i] < 0 {
			return nil, &ColumnNotFoundError{Name: name}
		}
	}
	rows := t.Rows()
	sort.SliceStable(rows, func(a, b int) bool {
		for _, j := range idx {
			if c := rows[a][j].Compare(rows[b][j]); c != 0 {
				return c < 0
			}
		}
		return false
	})
	return NewTable(t.schema, rows)
}

// Concat appends the rows of others to t. All tables must share t's schema.
func (t *Table) Concat(others ...*Table) (*Table, error) {
	rows := t.Rows()
	for n, other := range others {
		if !sameSchema(t.schema, other.schema) {
			return nil, fmt.Errorf("table %d schema %v does not match %v", n+1, other.schema, t.schema)
		}
		rows = append(rows, other.Rows()...)
	}
	return NewTable(t.schema, rows)
}

func sameSchema(a, b Schema) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ColumnNotFoundError reports a reference to a column the table lacks.
type ColumnNotFoundError struct {
	Name string
}

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("column %q not found", e.Name)
}

type tableJSON struct {
	Schema Schema              `json:"schema"`
	Rows   [][]json.RawMessage `json:"rows"`
}

// MarshalJSON encodes the table as {"schema": [...], "rows": [[...]]}.
func (t *Table) MarshalJSON() ([]byte, error) {
	rows := make([][]Value, len(t.rows))
	for i, row := range t.rows {
		rows[i] = row
	}
	return json.Marshal(struct {
		Schema Schema    `json:"schema"`
		Rows   [][]Value `json:"rows"`
	}{Schema: t.schema, Rows: rows})
}

// UnmarshalJSON decodes the wire form produced by MarshalJSON, typing
// each cell by its column's dtype.
func (t *Table) UnmarshalJSON(data []byte) error {
	var wire tableJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	rows := make([]Row, len(wire.Rows))
	for i, raw := range wire.Rows {
		if len(raw) != len(wire.Schema) {
			return fmt.Errorf("row %d has %d values, schema has %d columns", i, len(raw), len(wire.Schema))
		}
		row := make(Row, len(raw))
		for j, cell := range raw {
			v, err := DecodeValue(wire.Schema[j].Dtype, cell)
			if err != nil {
				return fmt.Errorf("row %d column %q: %w", i, wire.Schema[j].Name, err)
			}
			row[j] = v
		}
		rows[i] = row
	}
	decoded, err := NewTable(wire.Schema, rows)
	if err != nil {
		return err
	}
	*t = *decoded
	return nil
}
