package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	apperrors "dateresample/internal/errors"
	"dateresample/pkg/contracts/domain"
)

// XLSXLoader reads one worksheet of an Excel workbook. The first non-empty
// row is the header; blank rows are skipped. Cells are read as they are
// displayed, so date cells arrive in the number format of the workbook.
type XLSXLoader struct{}

// NewXLSXLoader creates an Excel loader.
func NewXLSXLoader() *XLSXLoader {
	return &XLSXLoader{}
}

// Load reads opts.Sheet (or the first sheet) of path into a table.
func (l *XLSXLoader) Load(ctx context.Context, path string, opts Options) (*domain.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, storageError("open workbook", path, err)
	}
	defer f.Close()

	sheet := opts.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, apperrors.NewAppValidationError("workbook has no sheets").WithContext("path", path)
		}
		sheet = sheets[0]
	} else if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("sheet %q", sheet)).WithContext("path", path)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, storageError("read sheet "+sheet+" of", path, err)
	}

	var header []string
	var records [][]string
	for _, row := range rows {
		if blankRow(row) {
			continue
		}
		if header == nil {
			header = row
			continue
		}
		records = append(records, row)
	}
	if header == nil {
		return nil, apperrors.NewAppValidationError(fmt.Sprintf("sheet %q has no header row", sheet)).
			WithContext("path", path)
	}

	return textTable(ctx, header, records, opts.Types)
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
