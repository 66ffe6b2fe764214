package exporter

import (
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"dateresample/internal/arrowtable"
	"dateresample/pkg/contracts/domain"
)

// ParquetWriter writes Snappy-compressed Parquet. The Arrow schema is
// stored in the file metadata so dtypes read back unchanged.
type ParquetWriter struct {
	mem memory.Allocator
}

// NewParquetWriter creates a Parquet writer. A nil allocator uses the Go
// heap.
func NewParquetWriter(mem memory.Allocator) *ParquetWriter {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	return &ParquetWriter{mem: mem}
}

// Write encodes t as Parquet to w. w is not closed.
func (p *ParquetWriter) Write(w io.Writer, t *domain.Table) error {
	tbl, err := arrowtable.ToArrow(p.mem, t)
	if err != nil {
		return fmt.Errorf("failed to convert table: %w", err)
	}
	defer tbl.Release()

	props := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Snappy),
		parquet.WithAllocator(p.mem),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())

	// The parquet writer closes a sink that is an io.Closer.
	sink := struct{ io.Writer }{w}
	fw, err := pqarrow.NewFileWriter(tbl.Schema(), sink, props, arrowProps)
	if err != nil {
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}
	if err := fw.WriteTable(tbl, max(tbl.NumRows(), 1)); err != nil {
		fw.Close()
		return fmt.Errorf("failed to write parquet: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("failed to finish parquet: %w", err)
	}
	return nil
}
