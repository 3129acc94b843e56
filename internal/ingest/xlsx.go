package ingest

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ReadXLSX loads the first worksheet of a workbook as a Table. Leading blank
// rows are skipped so the first populated row is treated as the header.
func ReadXLSX(data []byte) (Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return Table{}, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Table{}, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return Table{}, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}

	t := Table{Delimiter: ','}
	for _, row := range rows {
		if blankRow(row) {
			continue
		}
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = strings.TrimSpace(c)
		}
		if t.Header == nil {
			t.Header = cells
			continue
		}
		t.Records = append(t.Records, cells)
	}
	return t, nil
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
