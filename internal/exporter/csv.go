package exporter

import (
	"encoding/csv"
	"fmt"
	"io"

	"dateresample/pkg/contracts/domain"
)

// utf8BOM helps Excel recognize UTF-8.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
	// FloatDecimals fixes the number of decimals of float cells; negative
	// keeps the shortest exact form.
	FloatDecimals int
	// NoHeader omits the header row.
	NoHeader bool
}

// CSVWriter provides CSV export functionality
type CSVWriter struct {
	options WriteOptions
}

// NewCSVWriter creates a new CSV writer instance with a BOM and shortest
// float formatting.
func NewCSVWriter() *CSVWriter {
	return &CSVWriter{options: WriteOptions{BOMPrefix: true, FloatDecimals: -1}}
}

// NewCSVWriterWithOptions creates a CSV writer with explicit options.
func NewCSVWriterWithOptions(options WriteOptions) *CSVWriter {
	return &CSVWriter{options: options}
}

// Write encodes t as CSV to w.
func (cw *CSVWriter) Write(w io.Writer, t *domain.Table) error {
	if cw.options.BOMPrefix {
		if _, err := w.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(w)

	if !cw.options.NoHeader {
		if err := writer.Write(t.Schema().Names()); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
	}

	record := make([]string, t.NumCols())
	for i, row := range t.Rows() {
		for c, v := range row {
			record[c] = formatCell(v, cw.options.FloatDecimals)
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}
