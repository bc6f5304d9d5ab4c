// Package decoder turns uploaded statement files (CSV, XLSX, XLS) into a
// header row plus rows of typed cells.
package decoder

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrEmptyFile         = errors.New("file is empty")
)

// Format is a supported statement file format
type Format string

const (
	CSV  Format = "csv"
	XLSX Format = "xlsx"
	XLS  Format = "xls"
)

// FormatFromFilename picks the format from the file extension
func FormatFromFilename(name string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(name), ".")) {
	case "csv", "txt":
		return CSV, nil
	case "xlsx", "xlsm":
		return XLSX, nil
	case "xls":
		return XLS, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(name))
}

// CellKind tags the value held by a Cell
type CellKind int

const (
	Empty CellKind = iota
	Text
	Number
	DateSerial // spreadsheet day count from 1899-12-30
)

// Cell is one decoded value. Only the field matching Kind is meaningful.
type Cell struct {
	Kind CellKind
	Str  string
	Num  float64
}

// TextCell builds a text cell; blank text is an empty cell
func TextCell(s string) Cell {
	if strings.TrimSpace(s) == "" {
		return Cell{}
	}
	return Cell{Kind: Text, Str: s}
}

func NumberCell(f float64) Cell     { return Cell{Kind: Number, Num: f} }
func DateSerialCell(f float64) Cell { return Cell{Kind: DateSerial, Num: f} }

func (c Cell) IsEmpty() bool { return c.Kind == Empty }

// String renders the cell as text. Numbers use the shortest representation.
func (c Cell) String() string {
	switch c.Kind {
	case Text:
		return c.Str
	case Number, DateSerial:
		return strconv.FormatFloat(c.Num, 'f', -1, 64)
	}
	return ""
}

// Table is a decoded sheet: the first row as headers, then data rows
type Table struct {
	Headers []string
	Rows    [][]Cell
}

// At returns the cell of row at column col, Empty when the row is short
func (t *Table) At(row []Cell, col int) Cell {
	if col < 0 || col >= len(row) {
		return Cell{}
	}
	return row[col]
}

// Decode reads a whole file of the given format
func Decode(r io.Reader, format Format) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}

	var raw [][]Cell
	switch format {
	case CSV:
		raw, err = decodeCSV(data)
	case XLSX:
		raw, err = decodeXLSX(data)
	case XLS:
		raw, err = decodeXLS(data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", format, err)
	}
	return buildTable(raw)
}

// buildTable promotes the first non-blank row to headers and drops blank rows
func buildTable(raw [][]Cell) (*Table, error) {
	start := -1
	for i, row := range raw {
		if !blankRow(row) {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, ErrEmptyFile
	}

	t := &Table{Headers: headerNames(raw[start])}
	for _, row := range raw[start+1:] {
		if blankRow(row) {
			continue
		}
		if len(row) > len(t.Headers) {
			row = row[:len(t.Headers)]
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// headerNames names blank headers "unnamed: N" and suffixes repeats ".1", ".2"
func headerNames(row []Cell) []string {
	names := make([]string, len(row))
	seen := make(map[string]int, len(row))
	for i, c := range row {
		name := strings.TrimSpace(c.String())
		if name == "" {
			name = fmt.Sprintf("unnamed: %d", i)
		}
		base := name
		for seen[name] > 0 {
			name = fmt.Sprintf("%s.%d", base, seen[base])
			seen[base]++
		}
		seen[name]++
		names[i] = name
	}
	return names
}

// parseNumber accepts plain finite numbers only
func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func blankRow(row []Cell) bool {
	for _, c := range row {
		if !c.IsEmpty() {
			return false
		}
	}
	return true
}
