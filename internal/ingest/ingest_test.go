package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"cashlens/internal/classifier"
	"cashlens/internal/database"
	"cashlens/internal/decoder"
	"cashlens/internal/lexicon"
	"cashlens/internal/models"
	"cashlens/internal/normalize"
)

func newTestPipeline(t *testing.T) (*Pipeline, *database.DB) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Init(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPipeline(db, classifier.New(lexicon.Default())), db
}

func newUpload(t *testing.T, db *database.DB, name string) int64 {
	t.Helper()
	id, err := db.CreateUpload(&models.Upload{OwnerID: 1, Filename: name, Format: "csv"})
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func TestIngestDebitCreditStatement(t *testing.T) {
	p, db := newTestPipeline(t)
	id := newUpload(t, db, "releve.csv")

	csv := "Date;Libellé;Débit;Crédit\n01/02/2024;Loyer;100;0\n02/02/2024;Facture Client;0;5000\n"
	n, err := p.Ingest(context.Background(), strings.NewReader(csv), decoder.CSV, id)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if n != 2 {
		t.Fatalf("inserted %d, want 2", n)
	}

	txns, err := db.ListTransactions(models.ForUpload(1, id), models.TransactionFilter{})
	if err != nil {
		t.Fatal(err)
	}
	byDesc := map[string]models.Transaction{}
	for _, tx := range txns {
		byDesc[tx.Description] = tx
	}

	loyer := byDesc["Loyer"]
	if loyer.Type != models.Purchase || !loyer.Amount.Equal(decimal.NewFromInt(-100)) || loyer.Category != "Housing" {
		t.Errorf("Loyer = %+v, want PURCHASE -100 Housing", loyer)
	}
	if !loyer.Date.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Loyer date = %s, want day-first 2024-02-01", loyer.DateString())
	}
	facture := byDesc["Facture Client"]
	if facture.Type != models.Sale || !facture.Amount.Equal(decimal.NewFromInt(5000)) {
		t.Errorf("Facture Client = %+v, want SALE 5000", facture)
	}

	u, err := db.GetUpload(1, id)
	if err != nil {
		t.Fatal(err)
	}
	if u.Status != models.UploadCompleted || u.TransactionCount != 2 {
		t.Errorf("upload = %+v", u)
	}
}

func TestIngestSingleAmountReclassifies(t *testing.T) {
	p, db := newTestPipeline(t)
	id := newUpload(t, db, "export.csv")

	csv := "Date,Description,Amount,Category\n" +
		"2024-01-05,Paiement carte Amazon,200,\n" +
		"2024-01-06,Encaissement Dupont,\"1 234,56 €\",Ventes\n" +
		"not a date,Ignored,10,\n" +
		"2024-01-07,Zero line,0,\n"
	n, err := p.Ingest(context.Background(), strings.NewReader(csv), decoder.CSV, id)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if n != 2 {
		t.Fatalf("inserted %d, want 2", n)
	}

	txns, err := db.ListTransactions(models.ForOwner(1), models.TransactionFilter{})
	if err != nil {
		t.Fatal(err)
	}
	// newest first
	if txns[0].Type != models.Sale || !txns[0].Amount.Equal(decimal.RequireFromString("1234.56")) || txns[0].Category != "Ventes" {
		t.Errorf("income row = %+v", txns[0])
	}
	if txns[1].Type != models.Purchase || !txns[1].Amount.Equal(decimal.NewFromInt(-200)) {
		t.Errorf("amazon row = %+v, want PURCHASE -200", txns[1])
	}
}

func TestIngestFailuresMarkUploadError(t *testing.T) {
	tests := []struct {
		name    string
		csv     string
		wantErr error
	}{
		{"header only", "Date;Libellé;Montant\n", ErrNoValidTransactions},
		{"no date column", "Libellé;Montant\nCafé;3\n", ErrMissingDateColumn},
		{"only zero amounts", "Date;Montant\n01/01/2024;0\n", ErrNoValidTransactions},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, db := newTestPipeline(t)
			id := newUpload(t, db, "bad.csv")

			_, err := p.Ingest(context.Background(), strings.NewReader(tt.csv), decoder.CSV, id)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			u, err := db.GetUpload(1, id)
			if err != nil {
				t.Fatal(err)
			}
			if u.Status != models.UploadError || !strings.Contains(u.ErrorMessage, tt.wantErr.Error()) {
				t.Errorf("upload = %s %q", u.Status, u.ErrorMessage)
			}
		})
	}
}

func TestIngestExactlyOnce(t *testing.T) {
	p, db := newTestPipeline(t)
	id := newUpload(t, db, "once.csv")
	csv := "Date;Montant\n01/01/2024;10\n"

	if _, err := p.Ingest(context.Background(), strings.NewReader(csv), decoder.CSV, id); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Ingest(context.Background(), strings.NewReader(csv), decoder.CSV, id); !errors.Is(err, database.ErrUploadNotProcessing) {
		t.Fatalf("second ingest err = %v, want ErrUploadNotProcessing", err)
	}
	u, err := db.GetUpload(1, id)
	if err != nil {
		t.Fatal(err)
	}
	if u.Status != models.UploadCompleted || u.TransactionCount != 1 {
		t.Errorf("upload after retry = %+v", u)
	}

	// an attempt already running in this process wins
	other := newUpload(t, db, "busy.csv")
	p.claim(other)
	defer p.release(other)
	if _, err := p.Ingest(context.Background(), strings.NewReader(csv), decoder.CSV, other); !errors.Is(err, ErrIngestionInProgress) {
		t.Fatalf("concurrent ingest err = %v, want ErrIngestionInProgress", err)
	}
}

func TestResolveAmount(t *testing.T) {
	tests := []struct {
		name    string
		headers []string
		row     []decoder.Cell
		want    string
		source  AmountSource
	}{
		{"french formatted amount", []string{"date", "montant"},
			[]decoder.Cell{{}, decoder.TextCell("1 234,56 €")}, "1234.56", SourceAmount},
		{"nbsp thousands", []string{"date", "montant"},
			[]decoder.Cell{{}, decoder.TextCell("-2 500,10")}, "-2500.1", SourceAmount},
		{"number cell rounded", []string{"date", "amount"},
			[]decoder.Cell{{}, decoder.NumberCell(10.005)}, "10.01", SourceAmount},
		{"garbage amount", []string{"date", "amount"},
			[]decoder.Cell{{}, decoder.TextCell("n/a")}, "0", SourceAmount},
		{"credit minus debit", []string{"date", "debit", "credit"},
			[]decoder.Cell{{}, decoder.NumberCell(100), decoder.TextCell("30")}, "-70", SourceDebitCredit},
		{"debit credit strict coercion", []string{"date", "debit", "credit"},
			[]decoder.Cell{{}, decoder.TextCell("100,50"), decoder.NumberCell(20)}, "20", SourceDebitCredit},
		{"debit without credit uses amount", []string{"date", "debit", "montant"},
			[]decoder.Cell{{}, decoder.NumberCell(5), decoder.NumberCell(-8)}, "-8", SourceAmount},
		{"nothing resolved", []string{"date", "libellé"},
			[]decoder.Cell{{}, decoder.TextCell("x")}, "0", SourceNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			roles, err := normalize.Normalize(tt.headers)
			if err != nil {
				t.Fatal(err)
			}
			table := &decoder.Table{Headers: tt.headers}
			got, source := ResolveAmount(table, tt.row, roles)
			if !got.Equal(decimal.RequireFromString(tt.want)) || source != tt.source {
				t.Errorf("ResolveAmount = %s (%d), want %s (%d)", got, source, tt.want, tt.source)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		name string
		cell decoder.Cell
		want string // empty means unparseable
	}{
		{"excel serial", decoder.DateSerialCell(45323), "2024-02-01"},
		{"serial with time fraction", decoder.NumberCell(45323.75), "2024-02-01"},
		{"serial epoch", decoder.NumberCell(1), "1899-12-31"},
		{"iso", decoder.TextCell("2024-03-04"), "2024-03-04"},
		{"iso with time", decoder.TextCell("2024-03-04 10:11:12"), "2024-03-04"},
		{"day first", decoder.TextCell("04/03/2024"), "2024-03-04"},
		{"day first unpadded", decoder.TextCell("4/3/2024"), "2024-03-04"},
		{"day first dotted", decoder.TextCell("04.03.2024"), "2024-03-04"},
		{"day first with time", decoder.TextCell("04/03/2024 08:15"), "2024-03-04"},
		{"month first fallback", decoder.TextCell("12/31/2024"), "2024-12-31"},
		{"two digit year", decoder.TextCell("04/03/24"), "2024-03-04"},
		{"month name", decoder.TextCell("4 Mar 2024"), "2024-03-04"},
		{"serial text", decoder.TextCell("45323"), "2024-02-01"},
		{"year text", decoder.TextCell("2024"), "2024-01-01"},
		{"year number stays serial", decoder.NumberCell(2024), "1905-07-16"},
		{"bad iso", decoder.TextCell("2024-13-45"), ""},
		{"garbage", decoder.TextCell("hier"), ""},
		{"empty", decoder.Cell{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDate(tt.cell)
			if tt.want == "" {
				if ok {
					t.Errorf("ParseDate = %s, want failure", got.Format("2006-01-02"))
				}
				return
			}
			if !ok || got.Format("2006-01-02") != tt.want {
				t.Errorf("ParseDate = %s %v, want %s", got.Format("2006-01-02"), ok, tt.want)
			}
		})
	}
}
