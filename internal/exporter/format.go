package exporter

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	apperrors "dateresample/internal/errors"
	"dateresample/pkg/contracts/domain"
)

// Format names an output file format.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatJSON    Format = "json"
	FormatXLSX    Format = "xlsx"
	FormatParquet Format = "parquet"
)

// ParseFormat resolves a format name, ignoring case and a leading dot.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(name)), ".")); f {
	case FormatCSV, FormatJSON, FormatXLSX, FormatParquet:
		return f, nil
	}
	return "", apperrors.NewUnsupportedOperationError("output format", name)
}

// FormatFromPath derives the format from path's extension.
func FormatFromPath(path string) (Format, error) {
	ext := filepath.Ext(path)
	if ext == "" {
		return "", apperrors.NewAppValidationError(fmt.Sprintf("cannot tell output format of %q; give a format", path))
	}
	return ParseFormat(ext)
}

// formatFloat formats a float64 value for CSV output. decimals < 0 gives
// the shortest representation that reads back exactly.
func formatFloat(f float64, decimals int) string {
	if decimals < 0 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', decimals, 64)
}

// formatCell renders v as CSV text; null is the empty string.
func formatCell(v domain.Value, decimals int) string {
	if !v.IsNull() && v.Dtype() == domain.DtypeFloat {
		return formatFloat(v.Float(), decimals)
	}
	return v.String()
}
