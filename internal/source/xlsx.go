package source

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// readXLSX reads the first sheet of an Excel workbook: header row
// first, then data rows. Trailing empty cells are absent from the rows
// excelize returns; cell access treats them as empty.
func readXLSX(path string) ([]string, [][]string, []int64, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, nil, nil, fmt.Errorf("%s: workbook has no sheets", path)
	}

	all, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read sheet %q of %s: %w", sheet, path, err)
	}
	if len(all) == 0 {
		return nil, nil, nil, fmt.Errorf("%s: sheet %q has no header row", path, sheet)
	}

	header := all[0]
	var (
		rows    [][]string
		rowNums []int64
	)
	for i, rec := range all[1:] {
		if isEmptyRow(rec) {
			continue
		}
		rows = append(rows, rec)
		rowNums = append(rowNums, int64(i+2))
	}
	return header, rows, rowNums, nil
}
