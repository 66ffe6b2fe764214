package exporter

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"dateresample/pkg/contracts/domain"
)

// XLSXWriter writes a table to one worksheet.
type XLSXWriter struct {
	Sheet string
}

// NewXLSXWriter creates a writer for the default "Sheet1" worksheet.
func NewXLSXWriter() *XLSXWriter {
	return &XLSXWriter{Sheet: "Sheet1"}
}

// Write encodes t as an .xlsx workbook to w.
func (x *XLSXWriter) Write(w io.Writer, t *domain.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := x.Sheet
	if sheet == "" {
		sheet = "Sheet1"
	}
	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			return fmt.Errorf("failed to name sheet: %w", err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	dateFmt, tsFmt := "yyyy-mm-dd", "yyyy-mm-dd hh:mm:ss"
	dateStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &dateFmt})
	if err != nil {
		return fmt.Errorf("failed to create date style: %w", err)
	}
	tsStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &tsFmt})
	if err != nil {
		return fmt.Errorf("failed to create timestamp style: %w", err)
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("failed to open sheet writer: %w", err)
	}

	header := make([]interface{}, t.NumCols())
	for i, name := range t.Schema().Names() {
		header[i] = excelize.Cell{StyleID: headerStyle, Value: name}
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	for i, row := range t.Rows() {
		cells := make([]interface{}, len(row))
		for c, v := range row {
			cells[c] = xlsxCell(v, dateStyle, tsStyle)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, cells); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func xlsxCell(v domain.Value, dateStyle, tsStyle int) interface{} {
	if v.IsNull() {
		return nil
	}
	switch v.Dtype() {
	case domain.DtypeInt:
		return v.Int()
	case domain.DtypeFloat:
		return v.Float()
	case domain.DtypeDate:
		return excelize.Cell{StyleID: dateStyle, Value: v.Date().Time()}
	case domain.DtypeTimestamp:
		return excelize.Cell{StyleID: tsStyle, Value: v.Timestamp()}
	}
	return v.Str()
}
