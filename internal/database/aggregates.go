package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"cashlens/internal/models"
)

// TypeTotals sums SALE and PURCHASE amounts of the scope within r
func (db *DB) TypeTotals(scope models.Scope, r models.DateRange) (models.TypeTotals, error) {
	from, args, err := scopeQuery(scope)
	if err != nil {
		return models.TypeTotals{}, err
	}
	where, args := rangeClause(r, args)

	var sales, purchases sql.NullFloat64
	err = db.QueryRow(`
		SELECT
			SUM(CASE WHEN t.type = 'SALE' THEN t.amount END),
			SUM(CASE WHEN t.type = 'PURCHASE' THEN t.amount END)
		`+from+where, args...).Scan(&sales, &purchases)
	if err != nil {
		return models.TypeTotals{}, fmt.Errorf("sum by type: %w", err)
	}
	return models.TypeTotals{Sales: nullMoney(sales), Purchases: nullMoney(purchases)}, nil
}

// Balance sums every amount in scope dated strictly before the given day.
// A zero before sums everything.
func (db *DB) Balance(scope models.Scope, before time.Time) (decimal.Decimal, error) {
	from, args, err := scopeQuery(scope)
	if err != nil {
		return decimal.Zero, err
	}
	q := `SELECT SUM(t.amount) ` + from
	if !before.IsZero() {
		q += ` AND t.date < ?`
		args = append(args, before.Format(dateLayout))
	}

	var sum sql.NullFloat64
	if err := db.QueryRow(q, args...).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("sum balance: %w", err)
	}
	return nullMoney(sum), nil
}

// LatestDate returns the most recent transaction day in scope. ok is false when the scope is empty.
func (db *DB) LatestDate(scope models.Scope) (latest time.Time, ok bool, err error) {
	from, args, err := scopeQuery(scope)
	if err != nil {
		return time.Time{}, false, err
	}
	var maxDate sql.NullString
	if err := db.QueryRow(`SELECT MAX(t.date) `+from, args...).Scan(&maxDate); err != nil {
		return time.Time{}, false, fmt.Errorf("max date: %w", err)
	}
	if !maxDate.Valid {
		return time.Time{}, false, nil
	}
	latest, err = time.Parse(dateLayout, maxDate.String)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse max date %q: %w", maxDate.String, err)
	}
	return latest, true, nil
}

func periodExpr(g models.Granularity) string {
	switch g {
	case models.Day:
		return `t.date`
	case models.Year:
		return `substr(t.date, 1, 4)`
	default:
		return `substr(t.date, 1, 7)`
	}
}

// NetFlowByPeriod sums all amounts per period key, in period order
func (db *DB) NetFlowByPeriod(scope models.Scope, r models.DateRange, g models.Granularity) ([]models.PeriodAmount, error) {
	from, args, err := scopeQuery(scope)
	if err != nil {
		return nil, err
	}
	where, args := rangeClause(r, args)
	period := periodExpr(g)

	rows, err := db.Query(`
		SELECT `+period+` AS period, SUM(t.amount)
		`+from+where+`
		GROUP BY period
		ORDER BY period
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query net flow: %w", err)
	}
	defer rows.Close()

	var out []models.PeriodAmount
	for rows.Next() {
		var p models.PeriodAmount
		var sum sql.NullFloat64
		if err := rows.Scan(&p.Period, &sum); err != nil {
			return nil, fmt.Errorf("scan net flow: %w", err)
		}
		p.Amount = nullMoney(sum)
		out = append(out, p)
	}
	return out, rows.Err()
}

// IncomeExpenseByPeriod splits each period into SALE income and PURCHASE expense
func (db *DB) IncomeExpenseByPeriod(scope models.Scope, r models.DateRange, g models.Granularity) ([]models.PeriodTotals, error) {
	from, args, err := scopeQuery(scope)
	if err != nil {
		return nil, err
	}
	where, args := rangeClause(r, args)
	period := periodExpr(g)

	rows, err := db.Query(`
		SELECT `+period+` AS period,
			SUM(CASE WHEN t.type = 'SALE' THEN t.amount ELSE 0 END),
			SUM(CASE WHEN t.type = 'PURCHASE' THEN t.amount ELSE 0 END)
		`+from+where+`
		GROUP BY period
		ORDER BY period
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query income/expense: %w", err)
	}
	defer rows.Close()

	var out []models.PeriodTotals
	for rows.Next() {
		var p models.PeriodTotals
		var income, expense sql.NullFloat64
		if err := rows.Scan(&p.Period, &income, &expense); err != nil {
			return nil, fmt.Errorf("scan income/expense: %w", err)
		}
		p.Income = nullMoney(income)
		p.Expense = nullMoney(expense)
		out = append(out, p)
	}
	return out, rows.Err()
}

// CategoryTotals sums amounts of one type per category. PURCHASE categories
// come most negative first, SALE categories largest first. limit <= 0 returns all.
func (db *DB) CategoryTotals(scope models.Scope, typ models.TransactionType, limit int) ([]models.CategoryAmount, error) {
	from, args, err := scopeQuery(scope)
	if err != nil {
		return nil, err
	}
	order := `DESC`
	if typ == models.Purchase {
		order = `ASC`
	}
	q := `SELECT t.category, SUM(t.amount) AS total ` + from + ` AND t.type = ?
		GROUP BY t.category
		ORDER BY total ` + order + `, t.category`
	args = append(args, string(typ))
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query category totals: %w", err)
	}
	defer rows.Close()

	var out []models.CategoryAmount
	for rows.Next() {
		var c models.CategoryAmount
		var total sql.NullFloat64
		if err := rows.Scan(&c.Category, &total); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		c.Amount = nullMoney(total)
		out = append(out, c)
	}
	return out, rows.Err()
}

// LargestTransaction returns the transaction of the given type with the
// largest magnitude within r, or nil when there is none.
func (db *DB) LargestTransaction(scope models.Scope, typ models.TransactionType, r models.DateRange) (*models.Transaction, error) {
	from, args, err := scopeQuery(scope)
	if err != nil {
		return nil, err
	}
	where, args := rangeClause(r, args)
	order := `DESC`
	if typ == models.Purchase {
		order = `ASC`
	}
	args = append(args, string(typ))

	t, err := scanTransaction(db.QueryRow(`
		SELECT `+transactionColumns+` `+from+where+` AND t.type = ?
		ORDER BY t.amount `+order+`, t.date DESC, t.id DESC
		LIMIT 1
	`, args...))
	if err == ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("largest transaction: %w", err)
	}
	return t, nil
}
