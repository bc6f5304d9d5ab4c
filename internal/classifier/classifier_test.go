package classifier

import (
	"testing"

	"github.com/shopspring/decimal"

	"cashlens/internal/lexicon"
	"cashlens/internal/models"
)

func TestClassify(t *testing.T) {
	c := New(lexicon.Default())

	tests := []struct {
		name       string
		amount     string
		desc       string
		wantType   models.TransactionType
		wantAmount string
	}{
		{"negative is purchase", "-42.10", "Vente comptoir", models.Purchase, "-42.1"},
		{"expense keyword flips sign", "200", "Paiement carte Amazon", models.Purchase, "-200"},
		{"keyword match is case insensitive", "15", "PRELEVEMENT EDF", models.Purchase, "-15"},
		{"plain income", "1500", "Encaissement client Dupont", models.Sale, "1500"},
		{"zero is other", "0", "Paiement", models.Other, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			typ, amt := c.Classify(decimal.RequireFromString(tt.amount), tt.desc)
			if typ != tt.wantType {
				t.Errorf("type = %s, want %s", typ, tt.wantType)
			}
			if !amt.Equal(decimal.RequireFromString(tt.wantAmount)) {
				t.Errorf("amount = %s, want %s", amt, tt.wantAmount)
			}
			// sign agreement
			if (typ == models.Purchase && amt.IsPositive()) || (typ == models.Sale && amt.IsNegative()) {
				t.Errorf("type %s disagrees with amount %s", typ, amt)
			}
		})
	}
}

func TestClassifySignedIgnoresDescription(t *testing.T) {
	c := New(lexicon.Default())

	typ, amt := c.ClassifySigned(decimal.NewFromInt(5000))
	if typ != models.Sale || !amt.Equal(decimal.NewFromInt(5000)) {
		t.Errorf("credit = (%s, %s), want SALE 5000", typ, amt)
	}
	typ, amt = c.ClassifySigned(decimal.NewFromInt(-100))
	if typ != models.Purchase || !amt.Equal(decimal.NewFromInt(-100)) {
		t.Errorf("debit = (%s, %s), want PURCHASE -100", typ, amt)
	}
}

func TestCategorize(t *testing.T) {
	c := New(lexicon.Default())

	tests := []struct {
		desc string
		want string
	}{
		{"Loyer janvier", "Housing"},
		{"CARREFOUR MARKET", "Food"},
		{"Plein essence Total", "Transport"},
		{"Pharmacie du centre", "Health"},
		{"Abonnement Netflix", "Leisure"},
		{"Virement salaire", "Payroll"},
		{"Facture EDF", "Utilities"},
		{"Restaurant hotel", "Food"},
		{"Encaissement divers", "Other"},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			if got := c.Categorize(tt.desc); got != tt.want {
				t.Errorf("Categorize(%q) = %q, want %q", tt.desc, got, tt.want)
			}
		})
	}
}

func TestCategoryFallback(t *testing.T) {
	c := New(lexicon.Default())

	if got := c.Category("Fournitures", "Loyer"); got != "Fournitures" {
		t.Errorf("explicit category = %q", got)
	}
	if got := c.Category("nan", "Loyer"); got != "Housing" {
		t.Errorf("nan category = %q, want Housing", got)
	}
	if got := c.Category("  ", "Uber"); got != "Transport" {
		t.Errorf("blank category = %q, want Transport", got)
	}
}
