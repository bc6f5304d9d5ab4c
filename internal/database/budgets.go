package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"cashlens/internal/models"
)

// InsertBudgets stores budget lines for an owner in one transaction
func (db *DB) InsertBudgets(ownerID int64, budgets []models.Budget) (int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO budgets (owner_id, period, category, amount)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, b := range budgets {
		if _, err := stmt.Exec(ownerID, b.Period.Format(dateLayout), b.Category, b.Amount.InexactFloat64()); err != nil {
			return 0, fmt.Errorf("insert budget %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(budgets), nil
}

// BudgetTotal sums the owner's budget lines for the month starting at period
func (db *DB) BudgetTotal(ownerID int64, period time.Time) (decimal.Decimal, error) {
	var sum sql.NullFloat64
	err := db.QueryRow(`
		SELECT SUM(amount) FROM budgets WHERE owner_id = ? AND period = ?
	`, ownerID, period.Format(dateLayout)).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum budget: %w", err)
	}
	return nullMoney(sum), nil
}
