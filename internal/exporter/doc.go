// Package exporter writes tables to files.
//
// This package contains one writer per output format:
//
// CSVWriter: header row from the schema, one record per row, optional
// UTF-8 BOM for Excel compatibility (on by default).
//
// JSONWriter: the table wire form {"schema": [...], "rows": [[...]]}.
//
// XLSXWriter: a single worksheet written with excelize, dates and
// timestamps stored as Excel dates.
//
// ParquetWriter: Snappy-compressed Parquet through Arrow.
//
// Exporter chooses a writer by explicit format or by file extension and
// writes through files.Manager, so a failed export leaves any previous
// file in place.
//
// Example usage:
//
//	exp := exporter.NewExporter(files.NewManager(outDir, logger), logger)
//	err := exp.Export(ctx, table, "yearly.parquet", "")
package exporter
