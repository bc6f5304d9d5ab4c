// Package kpi computes dashboard aggregates over persisted transactions.
// Every read is scoped to one owner, optionally one upload, and never writes.
package kpi

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"cashlens/internal/models"
)

// Store is the read side of the transaction database
type Store interface {
	TypeTotals(scope models.Scope, r models.DateRange) (models.TypeTotals, error)
	Balance(scope models.Scope, before time.Time) (decimal.Decimal, error)
	LatestDate(scope models.Scope) (time.Time, bool, error)
	NetFlowByPeriod(scope models.Scope, r models.DateRange, g models.Granularity) ([]models.PeriodAmount, error)
	IncomeExpenseByPeriod(scope models.Scope, r models.DateRange, g models.Granularity) ([]models.PeriodTotals, error)
	CategoryTotals(scope models.Scope, typ models.TransactionType, limit int) ([]models.CategoryAmount, error)
	LargestTransaction(scope models.Scope, typ models.TransactionType, r models.DateRange) (*models.Transaction, error)
	ListTransactions(scope models.Scope, f models.TransactionFilter) ([]models.Transaction, error)
}

const uncategorized = "Uncategorized"

var hundred = decimal.NewFromInt(100)

// Engine computes dashboard KPIs for a scope
type Engine struct {
	store Store
	now   func() time.Time
}

// NewEngine creates a KPI engine over store
func NewEngine(store Store) *Engine {
	return &Engine{store: store, now: time.Now}
}

// WithClock replaces the clock used for trailing windows and year defaults
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Stats is the dashboard headline: totals, margin and current balance
type Stats struct {
	TotalSales     decimal.Decimal `json:"total_sales"`
	TotalPurchases decimal.Decimal `json:"total_purchases"`
	Margin         decimal.Decimal `json:"margin"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
}

// DashboardStats sums sales and purchases within r. The balance covers the
// whole scope regardless of r.
func (e *Engine) DashboardStats(scope models.Scope, r models.DateRange) (Stats, error) {
	if !scope.Valid() {
		return Stats{}, models.ErrInvalidScope
	}
	totals, err := e.store.TypeTotals(scope, r)
	if err != nil {
		return Stats{}, fmt.Errorf("dashboard totals: %w", err)
	}
	balance, err := e.store.Balance(scope, time.Time{})
	if err != nil {
		return Stats{}, fmt.Errorf("dashboard balance: %w", err)
	}
	return Stats{
		TotalSales:     totals.Sales.Round(2),
		TotalPurchases: totals.Purchases.Round(2),
		Margin:         totals.Sales.Add(totals.Purchases).Round(2),
		CurrentBalance: balance.Round(2),
	}, nil
}

// CashFlowPoint is the net flow and running balance of one period
type CashFlowPoint struct {
	Date    string          `json:"date"`
	NetFlow decimal.Decimal `json:"net_flow"`
	Balance decimal.Decimal `json:"balance"`
}

// CashFlowHistory returns net flow per day or month of one year with a
// running balance seeded by everything before that year. Year 0 picks the
// latest year with data.
func (e *Engine) CashFlowHistory(scope models.Scope, year int, g models.Granularity) ([]CashFlowPoint, error) {
	if !scope.Valid() {
		return nil, models.ErrInvalidScope
	}
	if g != models.Day {
		g = models.Month
	}
	year, err := e.resolveYear(scope, year)
	if err != nil {
		return nil, err
	}
	r := yearRange(year)

	flows, err := e.store.NetFlowByPeriod(scope, r, g)
	if err != nil {
		return nil, fmt.Errorf("cash flow: %w", err)
	}
	balance, err := e.store.Balance(scope, r.Start)
	if err != nil {
		return nil, fmt.Errorf("opening balance: %w", err)
	}

	history := make([]CashFlowPoint, 0, len(flows))
	for _, f := range flows {
		balance = balance.Add(f.Amount)
		history = append(history, CashFlowPoint{
			Date:    f.Period,
			NetFlow: f.Amount.Round(2),
			Balance: balance.Round(2),
		})
	}
	return history, nil
}

// MonthBreakdown is income and expense for one month
type MonthBreakdown struct {
	Month     string          `json:"month"`
	Income    decimal.Decimal `json:"income"`
	Expense   decimal.Decimal `json:"expense"`
	Margin    decimal.Decimal `json:"margin"`
	MarginPct decimal.Decimal `json:"margin_pct"`
}

// MonthlyBreakdown splits one year into monthly income, expense and margin.
// Year 0 picks the latest year with data.
func (e *Engine) MonthlyBreakdown(scope models.Scope, year int) ([]MonthBreakdown, error) {
	if !scope.Valid() {
		return nil, models.ErrInvalidScope
	}
	year, err := e.resolveYear(scope, year)
	if err != nil {
		return nil, err
	}
	periods, err := e.store.IncomeExpenseByPeriod(scope, yearRange(year), models.Month)
	if err != nil {
		return nil, fmt.Errorf("monthly breakdown: %w", err)
	}

	out := make([]MonthBreakdown, 0, len(periods))
	for _, p := range periods {
		margin := p.Income.Add(p.Expense)
		out = append(out, MonthBreakdown{
			Month:     p.Period,
			Income:    p.Income.Round(2),
			Expense:   p.Expense.Round(2),
			Margin:    margin.Round(2),
			MarginPct: percent(margin, p.Income),
		})
	}
	return out, nil
}

// YearBreakdown is income and expense for one year
type YearBreakdown struct {
	Year    string          `json:"year"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Margin  decimal.Decimal `json:"margin"`
}

// AnnualBreakdown returns income, expense and margin per calendar year
func (e *Engine) AnnualBreakdown(scope models.Scope) ([]YearBreakdown, error) {
	if !scope.Valid() {
		return nil, models.ErrInvalidScope
	}
	periods, err := e.store.IncomeExpenseByPeriod(scope, models.DateRange{}, models.Year)
	if err != nil {
		return nil, fmt.Errorf("annual breakdown: %w", err)
	}

	out := make([]YearBreakdown, 0, len(periods))
	for _, p := range periods {
		out = append(out, YearBreakdown{
			Year:    p.Period,
			Income:  p.Income.Round(2),
			Expense: p.Expense.Round(2),
			Margin:  p.Income.Add(p.Expense).Round(2),
		})
	}
	return out, nil
}

// CategoryTotal is a top-list entry
type CategoryTotal struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}

// TopExpenses lists purchase categories by spend, largest first, as
// positive amounts. limit <= 0 returns every category.
func (e *Engine) TopExpenses(scope models.Scope, limit int) ([]CategoryTotal, error) {
	return e.topCategories(scope, models.Purchase, limit)
}

// TopIncome lists sale categories by amount, largest first
func (e *Engine) TopIncome(scope models.Scope, limit int) ([]CategoryTotal, error) {
	return e.topCategories(scope, models.Sale, limit)
}

func (e *Engine) topCategories(scope models.Scope, typ models.TransactionType, limit int) ([]CategoryTotal, error) {
	if !scope.Valid() {
		return nil, models.ErrInvalidScope
	}
	cats, err := e.store.CategoryTotals(scope, typ, limit)
	if err != nil {
		return nil, fmt.Errorf("top %s categories: %w", typ, err)
	}

	out := make([]CategoryTotal, 0, len(cats))
	for _, c := range cats {
		out = append(out, CategoryTotal{
			Category: categoryLabel(c.Category),
			Amount:   c.Amount.Abs().Round(2),
		})
	}
	return out, nil
}

type TransactionDetail struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Date        string          `json:"date"`
	Category    string          `json:"category"`
}

// AdvancedKPIs holds the ratio KPIs and the largest transactions
type AdvancedKPIs struct {
	SavingsRate       decimal.Decimal    `json:"savings_rate"`
	MaxExpense        decimal.Decimal    `json:"max_expense"`
	MaxExpenseDetails *TransactionDetail `json:"max_expense_details"`
	MaxIncome         decimal.Decimal    `json:"max_income"`
	MaxIncomeDetails  *TransactionDetail `json:"max_income_details"`
	ExpenseCoverage   decimal.Decimal    `json:"expense_coverage"`
}

// AdvancedKPIs computes the savings rate and coverage over rows dated in the
// last 365 days or later. The largest expense and income span all dates.
func (e *Engine) AdvancedKPIs(scope models.Scope) (AdvancedKPIs, error) {
	if !scope.Valid() {
		return AdvancedKPIs{}, models.ErrInvalidScope
	}
	since := models.DateRange{Start: e.now().UTC().AddDate(0, 0, -365)}

	totals, err := e.store.TypeTotals(scope, since)
	if err != nil {
		return AdvancedKPIs{}, fmt.Errorf("trailing totals: %w", err)
	}
	maxExpense, err := e.store.LargestTransaction(scope, models.Purchase, models.DateRange{})
	if err != nil {
		return AdvancedKPIs{}, fmt.Errorf("largest expense: %w", err)
	}
	maxIncome, err := e.store.LargestTransaction(scope, models.Sale, models.DateRange{})
	if err != nil {
		return AdvancedKPIs{}, fmt.Errorf("largest income: %w", err)
	}

	income, expense := totals.Sales, totals.Purchases
	out := AdvancedKPIs{
		SavingsRate:     percent(income.Add(expense), income),
		MaxExpense:      decimal.Zero,
		MaxIncome:       decimal.Zero,
		ExpenseCoverage: decimal.Zero,
	}
	if !expense.IsZero() {
		out.ExpenseCoverage = income.Div(expense).Abs().Round(2)
	}
	if maxExpense != nil {
		out.MaxExpenseDetails = detail(maxExpense)
		out.MaxExpense = out.MaxExpenseDetails.Amount
	}
	if maxIncome != nil {
		out.MaxIncomeDetails = detail(maxIncome)
		out.MaxIncome = out.MaxIncomeDetails.Amount
	}
	return out, nil
}

// DetailKind selects the side of the monthly chart to drill into
type DetailKind string

const (
	IncomeDetails  DetailKind = "income"
	ExpenseDetails DetailKind = "expense"
)

// DetailRow is one transaction behind a chart bar
type DetailRow struct {
	ID          int64           `json:"id"`
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	ThirdParty  string          `json:"third_party"`
	Amount      decimal.Decimal `json:"amount"`
}

// Details lists the transactions behind one month of the income or expense
// series, newest first. month is YYYY-MM. A non-empty category narrows the
// rows to one entry of the top lists, "Uncategorized" included.
func (e *Engine) Details(scope models.Scope, month string, kind DetailKind, category string) ([]DetailRow, error) {
	if !scope.Valid() {
		return nil, models.ErrInvalidScope
	}
	start, err := time.Parse("2006-01", month)
	if err != nil {
		return nil, fmt.Errorf("invalid month %q: %w", month, err)
	}
	f := models.TransactionFilter{
		Range: models.DateRange{Start: start, End: start.AddDate(0, 1, -1)},
		Type:  models.Purchase,
	}
	if kind == IncomeDetails {
		f.Type = models.Sale
	}
	switch category {
	case "":
	case uncategorized:
		f.Categories = []string{"", "nan"}
	default:
		f.Categories = []string{category}
	}

	txns, err := e.store.ListTransactions(scope, f)
	if err != nil {
		return nil, fmt.Errorf("details: %w", err)
	}
	out := make([]DetailRow, 0, len(txns))
	for _, t := range txns {
		out = append(out, DetailRow{
			ID:          t.ID,
			Date:        t.DateString(),
			Description: t.Description,
			Category:    t.Category,
			ThirdParty:  t.ThirdParty,
			Amount:      t.Amount.Round(2),
		})
	}
	return out, nil
}

// resolveYear maps year 0 to the latest year in scope, or the current year when empty
func (e *Engine) resolveYear(scope models.Scope, year int) (int, error) {
	if year != 0 {
		return year, nil
	}
	latest, ok, err := e.store.LatestDate(scope)
	if err != nil {
		return 0, fmt.Errorf("latest date: %w", err)
	}
	if !ok {
		return e.now().Year(), nil
	}
	return latest.Year(), nil
}

func yearRange(year int) models.DateRange {
	return models.DateRange{
		Start: time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(year, 12, 31, 0, 0, 0, 0, time.UTC),
	}
}

// percent returns part/whole*100 rounded to 2 decimals, or 0 when whole <= 0
func percent(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred).Round(2)
}

func detail(t *models.Transaction) *TransactionDetail {
	return &TransactionDetail{
		Amount:      t.Amount.Abs().Round(2),
		Description: t.Description,
		Date:        t.DateString(),
		Category:    t.Category,
	}
}

func categoryLabel(c string) string {
	if c == "" || c == "nan" {
		return uncategorized
	}
	return c
}
