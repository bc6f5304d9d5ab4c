// Package lexicon holds the versioned keyword tables used to classify,
// categorize and benchmark transactions. The tables ship as embedded JSON.
package lexicon

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
)

//go:embed data/*.json
var embedded embed.FS

// Category is a named keyword group; first match in table order wins
type Category struct {
	Name     string   `json:"name"`
	Keywords []string `json:"keywords"`
}

// Sector is a static industry benchmark. Percentages are of total sales.
type Sector struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	TargetMargin    float64  `json:"target_margin"`
	MinMargin       float64  `json:"min_margin"`
	MaxMaterialCost float64  `json:"max_material_cost"`
	MaxStaffCost    float64  `json:"max_staff_cost"`
	Keywords        []string `json:"keywords"`
}

// Lexicon is the loaded set of keyword and benchmark tables
type Lexicon struct {
	ExpenseKeywords  []string
	Categories       []Category
	DefaultCategory  string
	Sectors          []Sector
	DefaultSector    string
	MaterialKeywords []string
	StaffKeywords    []string
}

const version = "v1"

var (
	defaultOnce sync.Once
	defaultLex  *Lexicon
)

// Default returns the embedded tables. It panics if they fail to parse,
// which only a broken build can cause.
func Default() *Lexicon {
	defaultOnce.Do(func() {
		lex, err := Load(embedded)
		if err != nil {
			panic(fmt.Sprintf("lexicon: embedded tables: %v", err))
		}
		defaultLex = lex
	})
	return defaultLex
}

// Load reads the versioned tables from fsys (laid out as data/<name>.v1.json)
func Load(fsys fs.FS) (*Lexicon, error) {
	var expense struct {
		Keywords []string `json:"keywords"`
	}
	var categories struct {
		Default    string     `json:"default"`
		Categories []Category `json:"categories"`
	}
	var sectors struct {
		Default string   `json:"default"`
		Sectors []Sector `json:"sectors"`
	}
	var buckets struct {
		Material []string `json:"material"`
		Staff    []string `json:"staff"`
	}

	for name, dst := range map[string]any{
		"expense_keywords": &expense,
		"categories":       &categories,
		"sectors":          &sectors,
		"cost_buckets":     &buckets,
	} {
		if err := readTable(fsys, name, dst); err != nil {
			return nil, err
		}
	}

	lex := &Lexicon{
		ExpenseKeywords:  lower(expense.Keywords),
		DefaultCategory:  categories.Default,
		DefaultSector:    sectors.Default,
		MaterialKeywords: lower(buckets.Material),
		StaffKeywords:    lower(buckets.Staff),
	}
	for _, c := range categories.Categories {
		lex.Categories = append(lex.Categories, Category{Name: c.Name, Keywords: lower(c.Keywords)})
	}
	for _, s := range sectors.Sectors {
		s.Keywords = lower(s.Keywords)
		lex.Sectors = append(lex.Sectors, s)
	}

	if len(lex.ExpenseKeywords) == 0 {
		return nil, errors.New("expense keyword table is empty")
	}
	if _, ok := lex.Sector(lex.DefaultSector); !ok {
		return nil, fmt.Errorf("default sector %q not in sector table", lex.DefaultSector)
	}
	return lex, nil
}

// Sector looks up a benchmark by id
func (l *Lexicon) Sector(id string) (Sector, bool) {
	for _, s := range l.Sectors {
		if s.ID == id {
			return s, true
		}
	}
	return Sector{}, false
}

func readTable(fsys fs.FS, name string, dst any) error {
	path := fmt.Sprintf("data/%s.%s.json", name, version)
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func lower(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
