package decoder

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

func decodeXLSX(data []byte) ([][]Cell, error) {
	xl, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer xl.Close()

	sheet := xl.GetSheetName(0)
	if sheet == "" {
		return nil, ErrEmptyFile
	}
	rawRows, err := xl.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	styles := map[int]bool{}
	rows := make([][]Cell, len(rawRows))
	for i, rawRow := range rawRows {
		rows[i] = make([]Cell, len(rawRow))
		for j, value := range rawRow {
			ref, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return nil, err
			}
			rows[i][j] = xlsxCell(xl, sheet, ref, value, styles)
		}
	}
	return rows, nil
}

// xlsxCell types a raw cell value. Strings stay text; numeric cells become
// DateSerial when their number format is a date format.
func xlsxCell(xl *excelize.File, sheet, ref, value string, dateStyles map[int]bool) Cell {
	if strings.TrimSpace(value) == "" {
		return Cell{}
	}

	cellType, err := xl.GetCellType(sheet, ref)
	if err == nil {
		switch cellType {
		case excelize.CellTypeSharedString, excelize.CellTypeInlineString,
			excelize.CellTypeBool, excelize.CellTypeError, excelize.CellTypeDate:
			return TextCell(value)
		}
	}

	f, ok := parseNumber(value)
	if !ok {
		return TextCell(value)
	}

	styleID, err := xl.GetCellStyle(sheet, ref)
	if err != nil {
		return NumberCell(f)
	}
	isDate, ok := dateStyles[styleID]
	if !ok {
		isDate = isDateStyle(xl, styleID)
		dateStyles[styleID] = isDate
	}
	if isDate {
		return DateSerialCell(f)
	}
	return NumberCell(f)
}

func isDateStyle(xl *excelize.File, styleID int) bool {
	style, err := xl.GetStyle(styleID)
	if err != nil || style == nil {
		return false
	}
	if style.CustomNumFmt != nil {
		return isDateFormatCode(*style.CustomNumFmt)
	}
	return isBuiltinDateFormat(style.NumFmt)
}

// builtin number formats 14-22 and 45-47 are dates and times
func isBuiltinDateFormat(id int) bool {
	return (id >= 14 && id <= 22) || (id >= 45 && id <= 47)
}

// isDateFormatCode reports whether a custom format code renders a date,
// ignoring quoted literals and bracketed sections such as colors.
func isDateFormatCode(code string) bool {
	var b strings.Builder
	quoted, bracket := false, false
	for _, r := range strings.ToLower(code) {
		switch {
		case r == '"':
			quoted = !quoted
		case quoted:
		case r == '[':
			bracket = true
		case r == ']':
			bracket = false
		case bracket:
		default:
			b.WriteRune(r)
		}
	}
	plain := b.String()
	return strings.ContainsAny(plain, "yd")
}
