// Package export converts sheets to and from interchange formats: xlsx
// workbooks for the back office and CSV for bulk import.
package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/orimhanre/distrinaranjos-sub001/internal/sheet"
)

// WriteXLSX renders the sheet as a one-worksheet workbook at path. Hidden
// columns are skipped; image cells export as their URL list.
func WriteXLSX(s *sheet.Sheet, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	const ws = "Sheet1"
	f.SetSheetName(ws, s.Name)

	cols := s.VisibleColumns()
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDDDDD"}},
	})
	if err != nil {
		return err
	}

	for i, c := range cols {
		cellName, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(s.Name, cellName, c.Label); err != nil {
			return err
		}
		colName, _ := excelize.ColumnNumberToName(i + 1)
		if c.Width > 0 {
			f.SetColWidth(s.Name, colName, colName, float64(c.Width)/7)
		}
	}
	if len(cols) > 0 {
		first, _ := excelize.CoordinatesToCellName(1, 1)
		last, _ := excelize.CoordinatesToCellName(len(cols), 1)
		f.SetCellStyle(s.Name, first, last, headerStyle)
	}

	for ri, row := range s.Rows {
		for ci, c := range cols {
			cellName, err := excelize.CoordinatesToCellName(ci+1, ri+2)
			if err != nil {
				return err
			}
			cell := row.Cells[c.Key]
			if cell == nil {
				continue
			}
			if err := f.SetCellValue(s.Name, cellName, exportValue(cell.Value, c)); err != nil {
				return err
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// exportValue picks the native xlsx representation per column type.
func exportValue(v sheet.CellValue, c *sheet.Column) any {
	switch c.Type {
	case sheet.TypeNumber:
		if v.Kind == sheet.KindNumber {
			return v.Number
		}
	case sheet.TypeBoolean:
		if v.Kind == sheet.KindBool {
			return v.Bool
		}
	}
	return sheet.Stringify(v)
}
