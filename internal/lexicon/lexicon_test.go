package lexicon

import (
	"testing"
	"testing/fstest"
)

func TestDefaultTables(t *testing.T) {
	lex := Default()

	if got := len(lex.ExpenseKeywords); got != 75 {
		t.Errorf("expense keywords = %d, want 75", got)
	}
	if lex.ExpenseKeywords[0] != "achat" || lex.ExpenseKeywords[74] != "virement" {
		t.Errorf("expense keyword order changed: first %q last %q", lex.ExpenseKeywords[0], lex.ExpenseKeywords[74])
	}

	var names []string
	for _, c := range lex.Categories {
		names = append(names, c.Name)
	}
	want := []string{"Housing", "Food", "Transport", "Health", "Leisure", "Payroll", "Utilities"}
	if len(names) != len(want) {
		t.Fatalf("categories = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("category %d = %q, want %q", i, names[i], want[i])
		}
	}
	if lex.DefaultCategory != "Other" {
		t.Errorf("default category = %q", lex.DefaultCategory)
	}

	bakery, ok := lex.Sector("BAKERY")
	if !ok {
		t.Fatal("BAKERY missing")
	}
	if bakery.TargetMargin != 12 || bakery.MinMargin != 5 || bakery.MaxMaterialCost != 32 || bakery.MaxStaffCost != 35 {
		t.Errorf("BAKERY = %+v", bakery)
	}
	if lex.Sectors[len(lex.Sectors)-1].ID != "GENERAL" {
		t.Errorf("GENERAL should close the sector table")
	}
}

func TestLoadRejectsMissingDefaultSector(t *testing.T) {
	fsys := fstest.MapFS{
		"data/expense_keywords.v1.json": {Data: []byte(`{"keywords":["achat"]}`)},
		"data/categories.v1.json":       {Data: []byte(`{"default":"Other","categories":[]}`)},
		"data/sectors.v1.json":          {Data: []byte(`{"default":"GENERAL","sectors":[]}`)},
		"data/cost_buckets.v1.json":     {Data: []byte(`{"material":[],"staff":[]}`)},
	}
	if _, err := Load(fsys); err == nil {
		t.Fatal("expected error for unknown default sector")
	}

	delete(fsys, "data/cost_buckets.v1.json")
	if _, err := Load(fsys); err == nil {
		t.Fatal("expected error for missing table")
	}
}
