package source

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	_ "modernc.org/sqlite"

	apperrors "dateresample/internal/errors"
	"dateresample/pkg/contracts/domain"
)

// sqliteDriver is the database/sql name registered by modernc.org/sqlite.
const sqliteDriver = "sqlite"

var sqliteDialect = goqu.Dialect("sqlite3")

// SQLiteLoader reads one table of a SQLite database, opened read-only.
// Column types follow the declared column types: INT affinity maps to
// int, REAL affinity to float, DATE to date, DATETIME and TIMESTAMP to
// timestamp and everything else to string.
type SQLiteLoader struct{}

// NewSQLiteLoader creates a SQLite loader.
func NewSQLiteLoader() *SQLiteLoader {
	return &SQLiteLoader{}
}

// Load reads opts.Table of the database at path. Without a table name the
// database must contain exactly one user table.
func (l *SQLiteLoader) Load(ctx context.Context, path string, opts Options) (*domain.Table, error) {
	db, err := sql.Open(sqliteDriver, path+"?mode=ro")
	if err != nil {
		return nil, storageError("open database", path, err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return nil, storageError("open database", path, err)
	}

	table := opts.Table
	if table == "" {
		if table, err = l.soleTable(ctx, db); err != nil {
			return nil, err
		}
	}

	query, _, err := sqliteDialect.From(table).ToSQL()
	if err != nil {
		return nil, apperrors.NewAppValidationError(fmt.Sprintf("invalid table name %q", table))
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		if strings.Contains(err.Error(), "no such table") {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("table %q", table)).WithContext("path", path)
		}
		return nil, storageError("query", path, err)
	}
	defer rows.Close()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, storageError("read columns of", path, err)
	}
	schema := make(domain.Schema, len(colTypes))
	for i, ct := range colTypes {
		schema[i] = domain.Column{Name: ct.Name(), Dtype: sqliteDtype(ct.DatabaseTypeName())}
	}
	if err := applyDeclaredTypes(schema, opts.Types); err != nil {
		return nil, err
	}

	raw := make([]any, len(schema))
	dest := make([]any, len(schema))
	for i := range raw {
		dest[i] = &raw[i]
	}

	var out []domain.Row
	for rows.Next() {
		if len(out)%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, storageError("scan", path, err)
		}
		row := make(domain.Row, len(schema))
		for c, col := range schema {
			v, err := sqliteValue(raw[c], col.Dtype)
			if err != nil {
				return nil, apperrors.NewParsingError(fmt.Sprintf("column %q row %d", col.Name, len(out)+1), err).
					WithContext("column", col.Name).
					WithContext("row", len(out)+1)
			}
			row[c] = v
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("read", path, err)
	}

	t, err := domain.NewTable(schema, out)
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrTypeValidation, "build table", err)
	}
	return t, nil
}

func (l *SQLiteLoader) soleTable(ctx context.Context, db *sql.DB) (string, error) {
	query, _, err := sqliteDialect.From("sqlite_master").
		Select("name").
		Where(goqu.C("type").Eq("table"), goqu.C("name").NotLike("sqlite_%")).
		Order(goqu.C("name").Asc()).
		ToSQL()
	if err != nil {
		return "", apperrors.NewStorageError("build table listing query", err)
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return "", apperrors.NewStorageError("list tables", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return "", apperrors.NewStorageError("list tables", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return "", apperrors.NewStorageError("list tables", err)
	}

	switch len(names) {
	case 0:
		return "", apperrors.NewAppValidationError("database has no tables")
	case 1:
		return names[0], nil
	}
	return "", apperrors.NewAppValidationError(
		fmt.Sprintf("database has %d tables (%s); choose one with the table option", len(names), strings.Join(names, ", ")))
}

// sqliteDtype maps a declared column type using SQLite's affinity rules.
func sqliteDtype(decl string) domain.Dtype {
	decl = strings.ToUpper(decl)
	switch {
	case strings.Contains(decl, "INT"):
		return domain.DtypeInt
	case strings.Contains(decl, "DATETIME"), strings.Contains(decl, "TIMESTAMP"):
		return domain.DtypeTimestamp
	case strings.Contains(decl, "DATE"):
		return domain.DtypeDate
	case strings.Contains(decl, "REAL"), strings.Contains(decl, "FLOA"),
		strings.Contains(decl, "DOUB"), strings.Contains(decl, "NUMERIC"), strings.Contains(decl, "DECIMAL"):
		return domain.DtypeFloat
	}
	return domain.DtypeString
}

// sqliteValue converts a scanned cell into a value of dt. SQLite stores
// any value in any column, so every storage class is accepted for every
// dtype where a lossless reading exists.
func sqliteValue(raw any, dt domain.Dtype) (domain.Value, error) {
	switch v := raw.(type) {
	case nil:
		return domain.Null(dt), nil
	case []byte:
		return ConvertCell(string(v), dt)
	case string:
		return ConvertCell(v, dt)
	case int64:
		switch dt {
		case domain.DtypeInt:
			return domain.IntValue(v), nil
		case domain.DtypeFloat:
			return domain.FloatValue(float64(v)), nil
		case domain.DtypeTimestamp:
			return domain.TimestampValue(time.Unix(v, 0).UTC()), nil
		}
		return ConvertCell(strconv.FormatInt(v, 10), dt)
	case float64:
		switch dt {
		case domain.DtypeFloat:
			return domain.FloatValue(v), nil
		case domain.DtypeInt:
			if v == float64(int64(v)) {
				return domain.IntValue(int64(v)), nil
			}
			return domain.Value{}, fmt.Errorf("non-integral value %v", v)
		}
		return ConvertCell(strconv.FormatFloat(v, 'f', -1, 64), dt)
	case bool:
		if dt == domain.DtypeInt {
			if v {
				return domain.IntValue(1), nil
			}
			return domain.IntValue(0), nil
		}
		return ConvertCell(strconv.FormatBool(v), dt)
	case time.Time:
		switch dt {
		case domain.DtypeDate:
			return domain.DateValue(domain.DateOf(v)), nil
		case domain.DtypeTimestamp:
			return domain.TimestampValue(v.UTC()), nil
		case domain.DtypeString:
			return domain.StringValue(v.UTC().Format(time.RFC3339Nano)), nil
		}
		return domain.Value{}, fmt.Errorf("cannot read time %s as %s", v.Format(time.RFC3339), dt)
	}
	return domain.Value{}, fmt.Errorf("unsupported sqlite value of type %T", raw)
}
