package fileloader

import (
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// decodeXLSX reads the first worksheet. Its first row is the header.
func decodeXLSX(r io.Reader) ([]string, [][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, nil, errors.New("workbook has no sheets")
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("sheet %q is empty", sheet)
	}

	var records [][]string
	for _, rec := range rows[1:] {
		if isBlankRecord(rec) {
			continue
		}
		records = append(records, rec)
	}
	return rows[0], records, nil
}
