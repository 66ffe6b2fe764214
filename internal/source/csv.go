package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	apperrors "dateresample/internal/errors"
	"dateresample/pkg/contracts/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVLoader reads comma-separated files whose first record is the header.
// A leading UTF-8 BOM, as written by Excel and by exporter.CSVWriter, is
// skipped.
type CSVLoader struct {
	Comma rune
}

// NewCSVLoader creates a loader for comma-separated files.
func NewCSVLoader() *CSVLoader {
	return &CSVLoader{Comma: ','}
}

// Load reads path into a table.
func (l *CSVLoader) Load(ctx context.Context, path string, opts Options) (*domain.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, storageError("open", path, err)
	}
	defer f.Close()

	return l.Read(ctx, f, opts)
}

// Read parses CSV from r.
func (l *CSVLoader) Read(ctx context.Context, r io.Reader, opts Options) (*domain.Table, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		if _, err := br.Discard(len(utf8BOM)); err != nil {
			return nil, apperrors.NewStorageError("skip byte order mark", err)
		}
	}

	reader := csv.NewReader(br)
	if l.Comma != 0 {
		reader.Comma = l.Comma
	}
	// Short rows are padded later; long rows are rejected there.
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, apperrors.NewAppValidationError("csv input has no header row")
	}
	if err != nil {
		return nil, csvError(err)
	}

	var records [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, csvError(err)
		}
		records = append(records, record)
		if len(records)%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
	}

	return textTable(ctx, header, records, opts.Types)
}

func csvError(err error) error {
	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) {
		return apperrors.NewParsingError(fmt.Sprintf("malformed csv at line %d", parseErr.Line), err).
			WithContext("line", parseErr.Line)
	}
	return apperrors.NewStorageError("read csv", err)
}
