// Package classifier assigns a transaction type and category from the signed
// amount and the description.
package classifier

import (
	"strings"

	"github.com/shopspring/decimal"

	"cashlens/internal/lexicon"
	"cashlens/internal/models"
)

// Classifier types and categorizes transactions from the lexicon tables
type Classifier struct {
	expenseKeywords []string
	categories      []lexicon.Category
	defaultCategory string
}

// New builds a classifier over the given keyword tables
func New(lex *lexicon.Lexicon) *Classifier {
	return &Classifier{
		expenseKeywords: lex.ExpenseKeywords,
		categories:      lex.Categories,
		defaultCategory: lex.DefaultCategory,
	}
}

// Classify types a single-amount row. Positive amounts whose description
// names an expense keyword are flipped to negative purchases.
func (c *Classifier) Classify(amount decimal.Decimal, description string) (models.TransactionType, decimal.Decimal) {
	switch amount.Sign() {
	case -1:
		return models.Purchase, amount
	case 1:
		if containsAny(strings.ToLower(description), c.expenseKeywords) {
			return models.Purchase, amount.Neg()
		}
		return models.Sale, amount
	}
	return models.Other, amount
}

// ClassifySigned types a row whose sign is already explicit (debit/credit
// columns). The description is not consulted.
func (c *Classifier) ClassifySigned(amount decimal.Decimal) (models.TransactionType, decimal.Decimal) {
	switch amount.Sign() {
	case -1:
		return models.Purchase, amount
	case 1:
		return models.Sale, amount
	}
	return models.Other, amount
}

// Categorize returns the first category whose keywords appear in the description
func (c *Classifier) Categorize(description string) string {
	desc := strings.ToLower(description)
	for _, cat := range c.categories {
		if containsAny(desc, cat.Keywords) {
			return cat.Name
		}
	}
	return c.defaultCategory
}

// Category keeps a usable category cell and falls back to Categorize for
// blank cells and the literal "nan".
func (c *Classifier) Category(cell, description string) string {
	cell = strings.TrimSpace(cell)
	if cell == "" || strings.EqualFold(cell, "nan") {
		return c.Categorize(description)
	}
	return cell
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
