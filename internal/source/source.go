package source

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	apperrors "dateresample/internal/errors"
	"dateresample/pkg/contracts/domain"
)

// Options controls how a file is read.
type Options struct {
	// Types declares the dtype of named columns. Undeclared columns keep
	// their stored type, which is string for text sources.
	Types map[string]domain.Dtype `json:"types,omitempty" yaml:"types" toml:"types"`
	// Sheet selects the worksheet of an .xlsx file. Defaults to the first.
	Sheet string `json:"sheet,omitempty" yaml:"sheet" toml:"sheet"`
	// Table selects the table of a SQLite database. Optional when the
	// database holds exactly one table.
	Table string `json:"table,omitempty" yaml:"table" toml:"table"`
}

// Loader reads one file into a table.
type Loader interface {
	Load(ctx context.Context, path string, opts Options) (*domain.Table, error)
}

// Reader picks a Loader by file extension.
type Reader struct {
	logger  *slog.Logger
	loaders map[string]Loader
}

// NewReader creates a reader with a loader for every supported format.
func NewReader(logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	sqlite := NewSQLiteLoader()
	return &Reader{
		logger: logger.With(slog.String("component", "source_reader")),
		loaders: map[string]Loader{
			".csv":     NewCSVLoader(),
			".xlsx":    NewXLSXLoader(),
			".parquet": NewParquetLoader(nil),
			".db":      sqlite,
			".sqlite":  sqlite,
			".sqlite3": sqlite,
		},
	}
}

// LoaderFor returns the loader registered for path's extension.
func (r *Reader) LoaderFor(path string) (Loader, error) {
	ext := strings.ToLower(filepath.Ext(path))
	loader, ok := r.loaders[ext]
	if !ok {
		return nil, apperrors.NewUnsupportedOperationError("input format", ext).
			WithContext("path", path)
	}
	return loader, nil
}

// Load reads path with the loader for its extension.
func (r *Reader) Load(ctx context.Context, path string, opts Options) (*domain.Table, error) {
	loader, err := r.LoaderFor(path)
	if err != nil {
		return nil, err
	}

	t, err := loader.Load(ctx, path, opts)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to load input",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return nil, err
	}

	r.logger.InfoContext(ctx, "input loaded",
		slog.String("path", path),
		slog.Int("rows", t.NumRows()),
		slog.Int("columns", t.NumCols()))
	return t, nil
}

// Open loads path with a default Reader.
func Open(ctx context.Context, path string, opts Options) (*domain.Table, error) {
	return NewReader(nil).Load(ctx, path, opts)
}

func storageError(op, path string, err error) error {
	return apperrors.NewStorageError(fmt.Sprintf("%s %s", op, filepath.Base(path)), err).
		WithContext("path", path)
}
