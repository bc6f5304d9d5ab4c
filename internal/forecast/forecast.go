// Package forecast projects monthly income and expense forward from
// month-of-year averages, carrying a running balance.
package forecast

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"cashlens/internal/models"
)

const (
	// DefaultMonths is the horizon used when the caller does not name one
	DefaultMonths = 6
	// MaxMonths bounds the horizon of a single projection
	MaxMonths = 60
)

// ErrHorizonTooLong is returned for horizons above MaxMonths
var ErrHorizonTooLong = errors.New("forecast horizon too long")

// Store supplies the monthly history and the current balance of a scope
type Store interface {
	IncomeExpenseByPeriod(scope models.Scope, r models.DateRange, g models.Granularity) ([]models.PeriodTotals, error)
	Balance(scope models.Scope, before time.Time) (decimal.Decimal, error)
}

// Point is one projected month
type Point struct {
	Period           string          `json:"period"`
	PredictedIncome  decimal.Decimal `json:"predicted_income"`
	PredictedExpense decimal.Decimal `json:"predicted_expense"`
	PredictedNet     decimal.Decimal `json:"predicted_net"`
	PredictedBalance decimal.Decimal `json:"predicted_balance"`
}

// Engine projects cash flow for a scope from its stored history
type Engine struct {
	store Store
}

// NewEngine creates a forecast engine over store
func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// Forecast projects monthsAhead months past the last month with data
func (e *Engine) Forecast(scope models.Scope, monthsAhead int) ([]Point, error) {
	if !scope.Valid() {
		return nil, models.ErrInvalidScope
	}
	if monthsAhead > MaxMonths {
		return nil, ErrHorizonTooLong
	}
	history, err := e.store.IncomeExpenseByPeriod(scope, models.DateRange{}, models.Month)
	if err != nil {
		return nil, fmt.Errorf("monthly history: %w", err)
	}
	if len(history) == 0 {
		return []Point{}, nil
	}
	balance, err := e.store.Balance(scope, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("current balance: %w", err)
	}
	return Project(history, balance, monthsAhead)
}

type average struct {
	income, expense decimal.Decimal
}

// Project runs the seasonal projection over a month-ordered history.
// Months of the year never observed fall back to the mean of all observed months.
// A non-positive horizon projects nothing.
func Project(history []models.PeriodTotals, balance decimal.Decimal, monthsAhead int) ([]Point, error) {
	if monthsAhead > MaxMonths {
		return nil, ErrHorizonTooLong
	}
	if len(history) == 0 || monthsAhead <= 0 {
		return []Point{}, nil
	}

	sums := make(map[time.Month]average)
	counts := make(map[time.Month]int64)
	var total average
	var last time.Time
	for _, h := range history {
		month, err := time.Parse("2006-01", h.Period)
		if err != nil {
			return nil, fmt.Errorf("history period %q: %w", h.Period, err)
		}
		s := sums[month.Month()]
		s.income = s.income.Add(h.Income)
		s.expense = s.expense.Add(h.Expense)
		sums[month.Month()] = s
		counts[month.Month()]++

		total.income = total.income.Add(h.Income)
		total.expense = total.expense.Add(h.Expense)
		if month.After(last) {
			last = month
		}
	}

	n := decimal.NewFromInt(int64(len(history)))
	global := average{income: total.income.Div(n), expense: total.expense.Div(n)}

	points := make([]Point, 0, monthsAhead)
	running := balance.Round(2)
	for i := 1; i <= monthsAhead; i++ {
		target := last.AddDate(0, i, 0)
		avg := global
		if s, ok := sums[target.Month()]; ok {
			c := decimal.NewFromInt(counts[target.Month()])
			avg = average{income: s.income.Div(c), expense: s.expense.Div(c)}
		}

		net := avg.income.Add(avg.expense).Round(2)
		running = running.Add(net)
		points = append(points, Point{
			Period:           target.Format("2006-01"),
			PredictedIncome:  avg.income.Round(2),
			PredictedExpense: avg.expense.Round(2),
			PredictedNet:     net,
			PredictedBalance: running,
		})
	}
	return points, nil
}
