// Package source loads tables from data files.
//
// Supported inputs are CSV, Excel workbooks (.xlsx), Parquet files and
// SQLite databases. Text sources (CSV and Excel) produce string columns;
// Options.Types converts named columns to int, float, date or timestamp
// as they are read, and an empty cell becomes null. Typed sources keep
// the column types stored in the file.
//
// Loaders never guess types. Date strings stay strings until a
// derivation parses them under an explicit format.
//
// Failures to open or read a file are STORAGE errors. A cell that does
// not convert to its declared type is a PARSING error naming the column
// and row.
package source
