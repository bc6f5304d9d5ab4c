package decoder

import (
	"fmt"
	"os"
	"strings"

	"github.com/shakinm/xlsReader/xls"
)

// decodeXLS reads the first sheet of a legacy BIFF workbook. The reader only
// opens files, so the bytes are spooled to a temp file first.
func decodeXLS(data []byte) ([][]Cell, error) {
	tmp, err := os.CreateTemp("", "cashlens-*.xls")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}

	book, err := xls.OpenFile(tmp.Name())
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	sheet, err := book.GetSheet(0)
	if err != nil || sheet == nil {
		return nil, ErrEmptyFile
	}

	var rows [][]Cell
	for _, xlsRow := range sheet.GetRows() {
		cols := xlsRow.GetCols()
		row := make([]Cell, len(cols))
		for j, col := range cols {
			row[j] = xlsCell(col.GetString())
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// xlsCell types a cell rendered as a string. Numeric strings become Number
// cells; the date parser treats a number in the date column as a serial.
func xlsCell(value string) Cell {
	value = strings.TrimSpace(value)
	if value == "" {
		return Cell{}
	}
	if f, ok := parseNumber(value); ok {
		return NumberCell(f)
	}
	return TextCell(value)
}
