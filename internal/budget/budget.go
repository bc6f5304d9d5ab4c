// Package budget imports monthly budget sheets and compares them with
// actual sales.
package budget

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"cashlens/internal/decoder"
	"cashlens/internal/ingest"
	"cashlens/internal/models"
)

var (
	ErrMissingPeriodColumn = errors.New("budget file has no period column")
	ErrMissingAmountColumn = errors.New("budget file has no amount column")
	ErrInvalidMonth        = errors.New("month must be between 1 and 12")
)

const defaultCategory = "General"

var monthLayouts = []string{"2006-01", "2006/01", "01/2006", "1/2006", "01-2006", "Jan 2006", "January 2006"}

// Store persists budgets and answers the totals a comparison needs
type Store interface {
	InsertBudgets(ownerID int64, budgets []models.Budget) (int, error)
	BudgetTotal(ownerID int64, period time.Time) (decimal.Decimal, error)
	TypeTotals(scope models.Scope, r models.DateRange) (models.TypeTotals, error)
}

// Comparison is actual sales against the budget for one month
type Comparison struct {
	Period          string          `json:"period"`
	ActualSales     decimal.Decimal `json:"actual_sales"`
	BudgetedAmount  decimal.Decimal `json:"budgeted_amount"`
	Variance        decimal.Decimal `json:"variance"`
	AchievementRate decimal.Decimal `json:"achievement_rate"`
}

// Service imports budget sheets and compares them with actual sales
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates a budget service over store
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// WithClock replaces the clock used when no month is given
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Import reads period, category and amount columns and stores one budget
// line per usable row. Rows with an unreadable period or amount are skipped.
func (s *Service) Import(ownerID int64, r io.Reader, format decoder.Format) (int, error) {
	table, err := decoder.Decode(r, format)
	if err != nil {
		return 0, err
	}
	budgets, skipped, err := Parse(table)
	if err != nil {
		return 0, err
	}

	n, err := s.store.InsertBudgets(ownerID, budgets)
	if err != nil {
		return 0, fmt.Errorf("store budgets: %w", err)
	}
	slog.Info("budget_imported", "owner_id", ownerID, "rows", n, "skipped", skipped)
	return n, nil
}

// Parse turns a decoded sheet into budget lines
func Parse(t *decoder.Table) (budgets []models.Budget, skipped int, err error) {
	cols := map[string]int{"period": -1, "category": -1, "amount": -1}
	for i, h := range t.Headers {
		name := strings.ToLower(strings.TrimSpace(h))
		if idx, ok := cols[name]; ok && idx < 0 {
			cols[name] = i
		}
	}
	if cols["period"] < 0 {
		return nil, 0, ErrMissingPeriodColumn
	}
	if cols["amount"] < 0 {
		return nil, 0, ErrMissingAmountColumn
	}

	for _, row := range t.Rows {
		period, ok := parsePeriod(t.At(row, cols["period"]))
		if !ok {
			skipped++
			continue
		}
		amount, ok := ingest.ParseAmount(t.At(row, cols["amount"]))
		if !ok {
			skipped++
			continue
		}
		category := defaultCategory
		if cols["category"] >= 0 {
			if c := strings.TrimSpace(t.At(row, cols["category"]).String()); c != "" {
				category = c
			}
		}
		budgets = append(budgets, models.Budget{Period: period, Category: category, Amount: amount.Round(2)})
	}
	return budgets, skipped, nil
}

// parsePeriod reads a month and returns its first day
func parsePeriod(c decoder.Cell) (time.Time, bool) {
	if c.Kind == decoder.Text {
		s := strings.TrimSpace(c.Str)
		for _, layout := range monthLayouts {
			if m, err := time.Parse(layout, s); err == nil {
				return m, true
			}
		}
	}
	d, ok := ingest.ParseDate(c)
	if !ok {
		return time.Time{}, false
	}
	return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC), true
}

// Comparison reports actual sales against the owner's budget for one month.
// A zero year or month means the current one.
func (s *Service) Comparison(ownerID int64, year, month int) (Comparison, error) {
	now := s.now().UTC()
	if year == 0 || month == 0 {
		year, month = now.Year(), int(now.Month())
	}
	if month < 1 || month > 12 {
		return Comparison{}, ErrInvalidMonth
	}
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)

	totals, err := s.store.TypeTotals(models.ForOwner(ownerID), models.DateRange{Start: start, End: end})
	if err != nil {
		return Comparison{}, fmt.Errorf("actual sales: %w", err)
	}
	budgeted, err := s.store.BudgetTotal(ownerID, start)
	if err != nil {
		return Comparison{}, err
	}

	out := Comparison{
		Period:          start.Format("2006-01"),
		ActualSales:     totals.Sales.Round(2),
		BudgetedAmount:  budgeted.Round(2),
		Variance:        totals.Sales.Sub(budgeted).Round(2),
		AchievementRate: decimal.Zero,
	}
	if !budgeted.IsZero() {
		out.AchievementRate = totals.Sales.Div(budgeted).Mul(decimal.NewFromInt(100)).Round(2)
	}
	return out, nil
}
