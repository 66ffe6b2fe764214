package source

import (
	"context"
	"os"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"dateresample/internal/arrowtable"
	apperrors "dateresample/internal/errors"
	"dateresample/pkg/contracts/domain"
)

// ParquetLoader reads Parquet files through Arrow. Column types come from
// the file; Options.Types can still convert columns.
type ParquetLoader struct {
	mem memory.Allocator
}

// NewParquetLoader creates a Parquet loader. A nil allocator uses the Go
// heap.
func NewParquetLoader(mem memory.Allocator) *ParquetLoader {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	return &ParquetLoader{mem: mem}
}

// Load reads every row group of path into a table.
func (l *ParquetLoader) Load(ctx context.Context, path string, opts Options) (*domain.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, storageError("open parquet", path, err)
	}
	defer f.Close()

	pf, err := file.NewParquetReader(f, file.WithReadProps(parquet.NewReaderProperties(l.mem)))
	if err != nil {
		return nil, storageError("open parquet", path, err)
	}
	defer pf.Close()

	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{BatchSize: 64 * 1024}, l.mem)
	if err != nil {
		return nil, storageError("read parquet schema of", path, err)
	}

	tbl, err := fr.ReadTable(ctx)
	if err != nil {
		return nil, storageError("read parquet", path, err)
	}
	defer tbl.Release()

	t, err := arrowtable.FromArrow(tbl)
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrTypeUnsupported, "parquet column type", err).
			WithContext("path", path)
	}
	return castTable(t, opts.Types)
}
