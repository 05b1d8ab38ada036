package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/orimhanre/distrinaranjos-sub001/internal/sheet"
)

// WriteCSV emits the sheet with one header row of labels, cells stringified
// in column order.
func WriteCSV(s *sheet.Sheet, w io.Writer) error {
	cw := csv.NewWriter(w)
	cols := s.VisibleColumns()

	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = c.Label
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	record := make([]string, len(cols))
	for _, row := range s.Rows {
		for i, c := range cols {
			record[i] = ""
			if cell := row.Cells[c.Key]; cell != nil {
				record[i] = sheet.Stringify(cell.Value)
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV builds a new sheet from CSV input: the first record becomes text
// columns, every following record a row.
func ReadCSV(r io.Reader, name string) (*sheet.Sheet, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	s := sheet.New(name)
	eng := sheet.NewEngine(s, sheet.Options{})
	keys := make([]string, len(header))
	for i, label := range header {
		col, err := eng.AddColumn(label, sheet.TypeText)
		if err != nil {
			return nil, err
		}
		keys[i] = col.Key
	}

	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv record: %w", err)
		}
		row, err := eng.AddRow()
		if err != nil {
			return nil, err
		}
		for i, field := range record {
			if i >= len(keys) {
				break
			}
			eng.SetCell(row.ID, keys[i], sheet.Text(field))
		}
	}
	return s, nil
}
