package export

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/KaramelBytes/datalens/internal/table"
)

const (
	dataSheet    = "Data"
	summarySheet = "Summary"
)

// XLSX writes a workbook with the table on the Data sheet and a per-column
// summary on the Summary sheet.
func (w *Writer) XLSX(t *table.Table) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", dataSheet); err != nil {
		return nil, err
	}
	if err := writeRows(f, dataSheet, dataRows(t)); err != nil {
		return nil, fmt.Errorf("data sheet: %w", err)
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, err
	}
	if err := writeRows(f, summarySheet, w.summaryRows(t)); err != nil {
		return nil, fmt.Errorf("summary sheet: %w", err)
	}
	idx, err := f.GetSheetIndex(dataSheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(idx)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func dataRows(t *table.Table) [][]any {
	header := make([]any, t.Width())
	for i, name := range t.Names() {
		header[i] = name
	}
	rows := [][]any{header}
	for i := 0; i < t.Len(); i++ {
		row := t.Row(i)
		for j, v := range row {
			// Timestamps are written as text so they read back unchanged
			// regardless of the viewer's date format.
			if ts, ok := v.(time.Time); ok {
				row[j] = ts.Format(table.TimeLayout)
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func (w *Writer) summaryRows(t *table.Table) [][]any {
	rows := [][]any{
		{"Metric", "Value"},
		{"Total Rows", t.Len()},
		{"Total Columns", t.Width()},
		{"Export Date", w.now().Format(table.TimeLayout)},
		{},
		{"Column Analysis"},
		{"Column Name", "Data Type", "Non-Null Count", "Null Count", "Null %"},
	}
	for _, c := range t.Columns {
		nulls := c.NullCount()
		pct := 0.0
		if t.Len() > 0 {
			pct = float64(nulls) * 100 / float64(t.Len())
		}
		rows = append(rows, []any{c.Name, string(c.Type), c.NonNull(), nulls, fmt.Sprintf("%.1f%%", pct)})
	}
	return rows
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		r := row
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			return err
		}
	}
	return nil
}
