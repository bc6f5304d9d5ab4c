package kpi

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"cashlens/internal/database"
	"cashlens/internal/models"
)

var fixedNow = time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func tx(date, desc, amount string, typ models.TransactionType, category string) models.Transaction {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return models.Transaction{Date: day, Description: desc, Amount: d(amount), Type: typ, Category: category}
}

// seeded returns an engine over one owner (id 1) with two uploads, plus a
// second owner whose data must never leak.
func seeded(t *testing.T) (*Engine, int64) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "kpi.db"))
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Init(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	add := func(owner int64, name string, txns ...models.Transaction) int64 {
		id, err := db.CreateUpload(&models.Upload{OwnerID: owner, Filename: name})
		if err != nil {
			t.Fatal(err)
		}
		if err := db.CompleteUpload(context.Background(), id, txns); err != nil {
			t.Fatal(err)
		}
		return id
	}

	first := add(1, "2023.csv",
		tx("2023-03-10", "Vente", "1000", models.Sale, "Ventes"),
		tx("2023-03-15", "Loyer", "-400", models.Purchase, "Housing"),
		tx("2023-06-01", "Ancienne grosse vente", "9000", models.Sale, "Ventes"),
	)
	add(1, "2024.csv",
		tx("2024-01-05", "Vente", "2000", models.Sale, "Ventes"),
		tx("2024-01-20", "Loyer", "-400", models.Purchase, "Housing"),
		tx("2024-02-03", "Courses", "-150.50", models.Purchase, "Food"),
		tx("2024-02-10", "Prestation", "500", models.Sale, ""),
		tx("2024-02-11", "Matériel", "-1200", models.Purchase, "nan"),
	)
	add(2, "other.csv", tx("2024-01-01", "Autre client", "99999", models.Sale, "Ventes"))

	return NewEngine(db).WithClock(func() time.Time { return fixedNow }), first
}

func TestDashboardStats(t *testing.T) {
	e, first := seeded(t)

	tests := []struct {
		name      string
		scope     models.Scope
		r         models.DateRange
		sales     string
		purchases string
		balance   string
	}{
		{"owner, unbounded", models.ForOwner(1), models.DateRange{}, "12500", "-2150.5", "10349.5"},
		{"owner, 2024 only", models.ForOwner(1), models.DateRange{Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}, "2500", "-1750.5", "10349.5"},
		{"single upload", models.ForUpload(1, first), models.DateRange{}, "10000", "-400", "9600"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.DashboardStats(tt.scope, tt.r)
			if err != nil {
				t.Fatal(err)
			}
			if !got.TotalSales.Equal(d(tt.sales)) || !got.TotalPurchases.Equal(d(tt.purchases)) {
				t.Errorf("totals = %s / %s, want %s / %s", got.TotalSales, got.TotalPurchases, tt.sales, tt.purchases)
			}
			if !got.Margin.Equal(got.TotalSales.Add(got.TotalPurchases)) {
				t.Errorf("margin %s != sales + purchases", got.Margin)
			}
			if !got.CurrentBalance.Equal(d(tt.balance)) {
				t.Errorf("balance = %s, want %s", got.CurrentBalance, tt.balance)
			}
		})
	}
}

func TestCashFlowEndsAtCurrentBalance(t *testing.T) {
	e, _ := seeded(t)
	scope := models.ForOwner(1)

	for _, g := range []models.Granularity{models.Month, models.Day} {
		t.Run(string(g), func(t *testing.T) {
			history, err := e.CashFlowHistory(scope, 0, g)
			if err != nil {
				t.Fatal(err)
			}
			if len(history) == 0 {
				t.Fatal("empty history")
			}
			// year 0 resolves to 2024, seeded by the 2023 net of 9600
			if g == models.Month && (history[0].Date != "2024-01" || !history[0].Balance.Equal(d("11200"))) {
				t.Errorf("first point = %+v, want 2024-01 balance 11200", history[0])
			}
			stats, err := e.DashboardStats(scope, models.DateRange{})
			if err != nil {
				t.Fatal(err)
			}
			last := history[len(history)-1]
			if !last.Balance.Equal(stats.CurrentBalance) {
				t.Errorf("final balance %s != current balance %s", last.Balance, stats.CurrentBalance)
			}
		})
	}
}

func TestMonthlyAndAnnualBreakdown(t *testing.T) {
	e, _ := seeded(t)
	scope := models.ForOwner(1)

	months, err := e.MonthlyBreakdown(scope, 2023)
	if err != nil {
		t.Fatal(err)
	}
	if len(months) != 2 || months[0].Month != "2023-03" {
		t.Fatalf("2023 months = %+v", months)
	}
	if !months[0].Margin.Equal(d("600")) || !months[0].MarginPct.Equal(d("60")) {
		t.Errorf("2023-03 = %+v, want margin 600 (60%%)", months[0])
	}

	latest, err := e.MonthlyBreakdown(scope, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(latest) != 2 || latest[1].Month != "2024-02" {
		t.Fatalf("default year months = %+v", latest)
	}
	// Feb 2024: income 500, expense -1350.5
	if !latest[1].MarginPct.Equal(d("-170.1")) {
		t.Errorf("2024-02 margin_pct = %s, want -170.1", latest[1].MarginPct)
	}

	years, err := e.AnnualBreakdown(scope)
	if err != nil {
		t.Fatal(err)
	}
	if len(years) != 2 || years[0].Year != "2023" || !years[1].Margin.Equal(d("749.5")) {
		t.Errorf("years = %+v", years)
	}
}

func TestTopCategories(t *testing.T) {
	e, _ := seeded(t)
	scope := models.ForOwner(1)

	expenses, err := e.TopExpenses(scope, 0)
	if err != nil {
		t.Fatal(err)
	}
	want := []CategoryTotal{
		{uncategorized, d("1200")},
		{"Housing", d("800")},
		{"Food", d("150.5")},
	}
	if len(expenses) != len(want) {
		t.Fatalf("expenses = %+v", expenses)
	}
	for i := range want {
		if expenses[i].Category != want[i].Category || !expenses[i].Amount.Equal(want[i].Amount) {
			t.Errorf("expenses[%d] = %+v, want %+v", i, expenses[i], want[i])
		}
		if expenses[i].Amount.IsNegative() {
			t.Errorf("negative expense amount %s", expenses[i].Amount)
		}
	}

	limited, err := e.TopIncome(scope, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 || limited[0].Category != "Ventes" || !limited[0].Amount.Equal(d("12000")) {
		t.Errorf("top income = %+v", limited)
	}
}

func TestAdvancedKPIsTrailingYear(t *testing.T) {
	e, _ := seeded(t)

	got, err := e.AdvancedKPIs(models.ForOwner(1))
	if err != nil {
		t.Fatal(err)
	}
	// largest rows span all dates
	if !got.MaxIncome.Equal(d("9000")) || got.MaxIncomeDetails == nil || got.MaxIncomeDetails.Date != "2023-06-01" {
		t.Errorf("max income = %s %+v", got.MaxIncome, got.MaxIncomeDetails)
	}
	if !got.MaxExpense.Equal(d("1200")) || got.MaxExpenseDetails.Category != "nan" {
		t.Errorf("max expense = %s %+v", got.MaxExpense, got.MaxExpenseDetails)
	}
	// window from 2023-07-01 excludes every 2023 row: income 2500, expense -1750.5
	if !got.SavingsRate.Equal(d("29.98")) {
		t.Errorf("savings rate = %s, want 29.98", got.SavingsRate)
	}
	if !got.ExpenseCoverage.Equal(d("1.43")) {
		t.Errorf("expense coverage = %s, want 1.43", got.ExpenseCoverage)
	}
}

func TestAdvancedKPIsStaleAndFutureRows(t *testing.T) {
	e, _ := seeded(t)

	stale, err := e.WithClock(func() time.Time { return fixedNow.AddDate(5, 0, 0) }).AdvancedKPIs(models.ForOwner(1))
	if err != nil {
		t.Fatal(err)
	}
	if !stale.SavingsRate.IsZero() || !stale.ExpenseCoverage.IsZero() {
		t.Errorf("stale ratios = %s, %s", stale.SavingsRate, stale.ExpenseCoverage)
	}
	if !stale.MaxExpense.Equal(d("1200")) || !stale.MaxIncome.Equal(d("9000")) {
		t.Errorf("stale max = %s, %s", stale.MaxExpense, stale.MaxIncome)
	}

	// rows after the clock still count toward the window
	early, err := e.WithClock(func() time.Time { return time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC) }).AdvancedKPIs(models.ForOwner(1))
	if err != nil {
		t.Fatal(err)
	}
	// income 12500, expense -2150.5
	if !early.ExpenseCoverage.Equal(d("5.81")) {
		t.Errorf("coverage = %s, want 5.81", early.ExpenseCoverage)
	}
}

func TestDetails(t *testing.T) {
	e, _ := seeded(t)

	rows, err := e.Details(models.ForOwner(1), "2024-02", ExpenseDetails, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0].Date != "2024-02-11" || rows[1].Description != "Courses" {
		t.Errorf("details = %+v", rows)
	}
	if _, err := e.Details(models.ForOwner(1), "Feb", IncomeDetails, ""); err == nil {
		t.Error("expected error for malformed month")
	}

	tests := []struct {
		name     string
		month    string
		kind     DetailKind
		category string
		want     []string
	}{
		{"named category", "2024-02", ExpenseDetails, "Food", []string{"Courses"}},
		{"uncategorized expense", "2024-02", ExpenseDetails, "Uncategorized", []string{"Matériel"}},
		{"uncategorized income", "2024-02", IncomeDetails, "Uncategorized", []string{"Prestation"}},
		{"category outside month", "2024-02", ExpenseDetails, "Housing", nil},
		{"month bounds", "2024-01", ExpenseDetails, "Housing", []string{"Loyer"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := e.Details(models.ForOwner(1), tt.month, tt.kind, tt.category)
			if err != nil {
				t.Fatal(err)
			}
			var got []string
			for _, r := range rows {
				got = append(got, r.Description)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("descriptions = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEmptyAndInvalidScopes(t *testing.T) {
	e, _ := seeded(t)

	if _, err := e.DashboardStats(models.Scope{}, models.DateRange{}); !errors.Is(err, models.ErrInvalidScope) {
		t.Errorf("zero scope err = %v", err)
	}

	empty := models.ForOwner(77)
	stats, err := e.DashboardStats(empty, models.DateRange{})
	if err != nil || !stats.CurrentBalance.IsZero() || !stats.Margin.IsZero() {
		t.Errorf("empty stats = %+v, %v", stats, err)
	}
	history, err := e.CashFlowHistory(empty, 0, models.Month)
	if err != nil || len(history) != 0 {
		t.Errorf("empty cash flow = %+v, %v", history, err)
	}
	kpis, err := e.AdvancedKPIs(empty)
	if err != nil || kpis.MaxExpenseDetails != nil || !kpis.SavingsRate.IsZero() || !kpis.ExpenseCoverage.IsZero() {
		t.Errorf("empty kpis = %+v, %v", kpis, err)
	}
}
