package reporter

import (
	"fmt"
	"io"

	"gst-reconciliation-service/internal/reconciler"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// headerFill is the background colour of header cells.
const headerFill = "D7E4BC"

func (rg *ReportGenerator) generateXLSXReport(result *reconciler.ReconciliationResult, writer io.Writer) error {
	f, err := rg.buildWorkbook(result)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(writer); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// buildWorkbook lays out the reconciliation and pivot sheets.
func (rg *ReportGenerator) buildWorkbook(result *reconciler.ReconciliationResult) (*excelize.File, error) {
	f := excelize.NewFile()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{headerFill}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	var sheets []string

	if rg.config.IncludeRows {
		rows := rg.rows(result)
		data := make([][]interface{}, 0, len(rows))
		for _, row := range rows {
			data = append(data, sheetValues(reconciliationCells(row)))
		}
		if err := writeSheet(f, SheetReconciliation, ReconciliationHeaders, data, headerStyle); err != nil {
			f.Close()
			return nil, err
		}
		sheets = append(sheets, SheetReconciliation)
	}

	if rg.config.IncludePivot {
		aggs := rg.aggregates(result)
		data := make([][]interface{}, 0, len(aggs))
		for _, agg := range aggs {
			data = append(data, sheetValues(pivotCells(agg)))
		}
		if err := writeSheet(f, SheetPivot, PivotHeaders, data, headerStyle); err != nil {
			f.Close()
			return nil, err
		}
		sheets = append(sheets, SheetPivot)
	}

	// NewFile starts with a default sheet that is not part of the report.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to remove default sheet: %w", err)
	}
	if index, err := f.GetSheetIndex(sheets[0]); err == nil && index >= 0 {
		f.SetActiveSheet(index)
	}

	return f, nil
}

func writeSheet(f *excelize.File, sheet string, headers []string, rows [][]interface{}, headerStyle int) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
	}

	headerRow := make([]interface{}, len(headers))
	for i, h := range headers {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &headerRow); err != nil {
		return fmt.Errorf("failed to write headers of %s: %w", sheet, err)
	}

	lastCol, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", lastCol+"1", headerStyle); err != nil {
		return fmt.Errorf("failed to style headers of %s: %w", sheet, err)
	}

	for i, h := range headers {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, col, col, float64(len(h)+2)); err != nil {
			return fmt.Errorf("failed to set width of %s!%s: %w", sheet, col, err)
		}
	}

	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+2, err)
		}
	}

	return nil
}

// sheetValues converts decimals to numbers so spreadsheet formulas work on
// them. Absent values stay empty.
func sheetValues(cells []interface{}) []interface{} {
	out := make([]interface{}, len(cells))
	for i, c := range cells {
		switch v := c.(type) {
		case decimal.Decimal:
			out[i] = v.InexactFloat64()
		default:
			out[i] = v
		}
	}
	return out
}
