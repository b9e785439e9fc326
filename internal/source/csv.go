package source

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// readCSV reads a whole CSV file: header row first, then data rows.
// Tolerates a UTF-8 BOM and skips blank lines.
func readCSV(path string) ([]string, [][]string, []int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	buf := bufio.NewReaderSize(f, 256*1024)

	// Skip UTF-8 BOM if present
	bom, err := buf.Peek(3)
	if err == nil && len(bom) >= 3 && bom[0] == 0xEF && bom[1] == 0xBB && bom[2] == 0xBF {
		buf.Discard(3)
	}

	r := csv.NewReader(buf)
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "﻿")
	}

	var (
		rows    [][]string
		rowNums []int64
		rowNum  int64 = 1
	)
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, nil, fmt.Errorf("read %s: %w", path, err)
		}
		rowNum++
		if isEmptyRow(rec) {
			continue
		}
		rows = append(rows, rec)
		rowNums = append(rowNums, rowNum)
	}
	return header, rows, rowNums, nil
}
