package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"cashlens/internal/models"
)

const dateLayout = "2006-01-02"

// scopeQuery is the FROM/WHERE prefix shared by every scoped read. Upload
// scopes still join on the owner so another owner's upload id yields no rows.
func scopeQuery(scope models.Scope) (string, []any, error) {
	if !scope.Valid() {
		return "", nil, models.ErrInvalidScope
	}
	q := `FROM transactions t JOIN uploads u ON u.id = t.source_file_id WHERE u.owner_id = ?`
	args := []any{scope.OwnerID}
	if scope.IsUpload() {
		q += ` AND t.source_file_id = ?`
		args = append(args, scope.UploadID)
	}
	return q, args, nil
}

// rangeClause appends inclusive bounds for the non-zero ends of r
func rangeClause(r models.DateRange, args []any) (string, []any) {
	var b strings.Builder
	if !r.Start.IsZero() {
		b.WriteString(` AND t.date >= ?`)
		args = append(args, r.Start.Format(dateLayout))
	}
	if !r.End.IsZero() {
		b.WriteString(` AND t.date <= ?`)
		args = append(args, r.End.Format(dateLayout))
	}
	return b.String(), args
}

const transactionColumns = `t.id, t.date, t.description, t.amount, t.type, t.category, t.third_party, t.source_file_id, t.created_at`

// ListTransactions returns scoped transactions, newest first
func (db *DB) ListTransactions(scope models.Scope, f models.TransactionFilter) ([]models.Transaction, error) {
	from, args, err := scopeQuery(scope)
	if err != nil {
		return nil, err
	}
	where, args := rangeClause(f.Range, args)
	if f.Type != "" {
		where += ` AND t.type = ?`
		args = append(args, string(f.Type))
	}
	if len(f.Categories) > 0 {
		where += ` AND t.category IN (?` + strings.Repeat(`, ?`, len(f.Categories)-1) + `)`
		for _, c := range f.Categories {
			args = append(args, c)
		}
	}

	rows, err := db.Query(`SELECT `+transactionColumns+` `+from+where+` ORDER BY t.date DESC, t.id DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var txns []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, *t)
	}
	return txns, rows.Err()
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var t models.Transaction
	var date, typ string
	var amount float64
	err := row.Scan(&t.ID, &date, &t.Description, &amount, &typ, &t.Category, &t.ThirdParty, &t.SourceFileID, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	t.Date, err = time.Parse(dateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("parse transaction date %q: %w", date, err)
	}
	t.Amount = money(amount)
	t.Type = models.TransactionType(typ)
	return &t, nil
}

// money converts a stored REAL to a 2-decimal amount
func money(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f).Round(2)
}

func nullMoney(f sql.NullFloat64) decimal.Decimal {
	if !f.Valid {
		return decimal.Zero
	}
	return money(f.Float64)
}
