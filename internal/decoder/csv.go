package decoder

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// candidate delimiters, in tie-break order
var delimiters = []rune{';', '\t', ',', '|'}

const sniffLines = 10

func decodeCSV(data []byte) ([][]Cell, error) {
	data, err := normalizeCSVBytes(data)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sniffDelimiter(string(data))
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	var rows [][]Cell
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		row := make([]Cell, len(record))
		for i, v := range record {
			row[i] = TextCell(strings.TrimSpace(v))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// normalizeCSVBytes strips a UTF-8 BOM and re-decodes Windows-1252 input
func normalizeCSVBytes(data []byte) ([]byte, error) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	if utf8.Valid(data) {
		return data, nil
	}
	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), charmap.Windows1252.NewDecoder()))
	if err != nil {
		return nil, fmt.Errorf("decode windows-1252: %w", err)
	}
	return decoded, nil
}

// sniffDelimiter picks the first candidate that splits every sampled line
// into the same number of fields (more than one). Falls back to ','.
func sniffDelimiter(text string) rune {
	var sample []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		sample = append(sample, line)
		if len(sample) == sniffLines {
			break
		}
	}
	if len(sample) == 0 {
		return ','
	}

	best, bestCount := ',', 0
	for _, d := range delimiters {
		first := countOutsideQuotes(sample[0], d)
		if first == 0 {
			continue
		}
		consistent := true
		for _, line := range sample[1:] {
			if countOutsideQuotes(line, d) != first {
				consistent = false
				break
			}
		}
		if consistent {
			return d
		}
		if first > bestCount {
			best, bestCount = d, first
		}
	}
	return best
}

func countOutsideQuotes(line string, d rune) int {
	n, quoted := 0, false
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
		case r == d && !quoted:
			n++
		}
	}
	return n
}
