package ingest

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"cashlens/internal/decoder"
)

// spreadsheet serial day 0
var serialEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// serials past 9999-12-31 are not dates
const maxSerial = 2958465

var (
	isoPrefix = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
	bareYear  = regexp.MustCompile(`^\d{4}$`)
)

var dayFirstLayouts = []string{
	"2/1/2006", "2-1-2006", "2.1.2006",
	"2006/1/2", "20060102",
	"2 Jan 2006", "2 January 2006", "2-Jan-2006", "2-Jan-06",
	"2/1/06", "2-1-06", "2.1.06",
}

var monthFirstLayouts = []string{
	"1/2/2006", "1-2-2006", "1.2.2006",
	"Jan 2 2006", "Jan 2, 2006", "January 2 2006", "January 2, 2006",
	"1/2/06", "1-2-06",
}

// ParseDate reads a transaction day from a cell. Numbers (and numeric text)
// are spreadsheet serials, except four-digit text which is January 1 of that
// year; ISO text is read as-is; other text is read day-first, then
// month-first when day-first is impossible.
func ParseDate(c decoder.Cell) (time.Time, bool) {
	switch c.Kind {
	case decoder.Number, decoder.DateSerial:
		return fromSerial(c.Num)
	case decoder.Text:
		return parseDateText(strings.TrimSpace(c.Str))
	}
	return time.Time{}, false
}

func fromSerial(serial float64) (time.Time, bool) {
	if math.IsNaN(serial) || math.Abs(serial) > maxSerial {
		return time.Time{}, false
	}
	return serialEpoch.AddDate(0, 0, int(math.Floor(serial))), true
}

func parseDateText(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if bareYear.MatchString(s) {
		y, _ := strconv.Atoi(s)
		return time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC), true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && math.Abs(f) <= maxSerial {
		return fromSerial(f)
	}
	if isoPrefix.MatchString(s) {
		d, err := time.Parse("2006-01-02", s[:10])
		return d, err == nil
	}

	// "05/01/2024 14:30" and "05/01/2024T14:30" keep only the day part
	candidates := []string{s}
	if i := strings.IndexAny(s, " T"); i > 0 {
		candidates = append(candidates, s[:i])
	}
	for _, layouts := range [][]string{dayFirstLayouts, monthFirstLayouts} {
		for _, cand := range candidates {
			for _, layout := range layouts {
				if d, err := time.Parse(layout, cand); err == nil {
					return d, true
				}
			}
		}
	}
	return time.Time{}, false
}
