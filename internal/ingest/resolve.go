package ingest

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"cashlens/internal/decoder"
	"cashlens/internal/normalize"
)

// AmountSource tells which columns produced a resolved amount
type AmountSource int

const (
	SourceNone AmountSource = iota
	SourceDebitCredit
	SourceAmount
)

var amountStripper = strings.NewReplacer("€", "", "$", "", " ", "", "\u00a0", "", "\u202f", "")

// ResolveAmount derives the signed amount of a row. Credit is inflow and
// debit is outflow; a single amount column is taken as signed. Unparseable
// values count as zero. The result is rounded to cents.
func ResolveAmount(t *decoder.Table, row []decoder.Cell, roles normalize.RoleMap) (decimal.Decimal, AmountSource) {
	switch {
	case roles.Has(normalize.Debit) && roles.Has(normalize.Credit):
		debit := strictNumber(t.At(row, roles.Index(normalize.Debit)))
		credit := strictNumber(t.At(row, roles.Index(normalize.Credit)))
		return credit.Sub(debit).Round(2), SourceDebitCredit
	case roles.Has(normalize.Amount):
		return lenientAmount(t.At(row, roles.Index(normalize.Amount))).Round(2), SourceAmount
	}
	return decimal.Zero, SourceNone
}

// strictNumber accepts numeric cells and text that is a plain number
func strictNumber(c decoder.Cell) decimal.Decimal {
	switch c.Kind {
	case decoder.Number, decoder.DateSerial:
		return fromFloat(c.Num)
	case decoder.Text:
		d, err := decimal.NewFromString(strings.TrimSpace(c.Str))
		if err != nil {
			return decimal.Zero
		}
		return d
	}
	return decimal.Zero
}

// lenientAmount strips currency symbols and spaces and reads ',' as the decimal separator
func lenientAmount(c decoder.Cell) decimal.Decimal {
	d, _ := ParseAmount(c)
	return d
}

// ParseAmount reads a money cell the lenient way. ok is false for empty or
// unparseable cells.
func ParseAmount(c decoder.Cell) (d decimal.Decimal, ok bool) {
	switch c.Kind {
	case decoder.Number, decoder.DateSerial:
		if math.IsNaN(c.Num) || math.IsInf(c.Num, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(c.Num), true
	case decoder.Text:
		s := strings.ReplaceAll(amountStripper.Replace(c.Str), ",", ".")
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	}
	return decimal.Zero, false
}

func fromFloat(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}
