package exporter

import (
	"context"
	"io"
	"log/slog"

	apperrors "dateresample/internal/errors"
	"dateresample/internal/files"
	"dateresample/pkg/contracts/domain"
)

// Writer encodes a table to a stream.
type Writer interface {
	Write(w io.Writer, t *domain.Table) error
}

// Exporter writes tables to files in any supported format.
type Exporter struct {
	manager *files.Manager
	logger  *slog.Logger
	writers map[Format]Writer
}

// NewExporter creates an exporter that writes through manager.
func NewExporter(manager *files.Manager, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		manager: manager,
		logger:  logger.With(slog.String("component", "exporter")),
		writers: map[Format]Writer{
			FormatCSV:     NewCSVWriter(),
			FormatJSON:    NewJSONWriter(),
			FormatXLSX:    NewXLSXWriter(),
			FormatParquet: NewParquetWriter(nil),
		},
	}
}

// SetWriter replaces the writer used for format.
func (e *Exporter) SetWriter(format Format, w Writer) {
	e.writers[format] = w
}

// WriterFor returns the writer for format.
func (e *Exporter) WriterFor(format Format) (Writer, error) {
	w, ok := e.writers[format]
	if !ok {
		return nil, apperrors.NewUnsupportedOperationError("output format", string(format))
	}
	return w, nil
}

// Export writes t to path. An empty format is taken from the extension.
// It returns the resolved path of the written file.
func (e *Exporter) Export(ctx context.Context, t *domain.Table, path string, format string) (string, error) {
	var f Format
	var err error
	if format == "" {
		f, err = FormatFromPath(path)
	} else {
		f, err = ParseFormat(format)
	}
	if err != nil {
		return "", err
	}

	writer, err := e.WriterFor(f)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	fullPath := e.manager.Resolve(path)
	e.logger.InfoContext(ctx, "Writing table",
		slog.String("file_path", path),
		slog.String("full_path", fullPath),
		slog.String("format", string(f)),
		slog.Int("record_count", t.NumRows()))

	if err := e.manager.WriteAtomic(path, func(w io.Writer) error {
		return writer.Write(w, t)
	}); err != nil {
		return "", apperrors.NewStorageError("export "+string(f), err).WithContext("path", fullPath)
	}
	return fullPath, nil
}
