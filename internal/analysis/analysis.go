// Package analysis produces rule-based commentary comparing an owner's
// figures with static sector benchmarks.
package analysis

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"cashlens/internal/database"
	"cashlens/internal/kpi"
	"cashlens/internal/lexicon"
	"cashlens/internal/models"
)

const (
	fillerStrength       = "Analyse en cours d'affinement."
	fillerWeakness       = "Indicateurs alignés avec le secteur."
	fillerRecommendation = "Maintenez le cap actuel."
)

// UploadStore resolves the filename used for sector detection
type UploadStore interface {
	GetUpload(ownerID, id int64) (*models.Upload, error)
}

// Report is the tagged findings for one scope
type Report struct {
	Strengths       []string `json:"strengths"`
	Weaknesses      []string `json:"weaknesses"`
	Recommendations []string `json:"recommendations"`
	GeneratedAt     string   `json:"generated_at"`
	Sector          string   `json:"sector"`
}

// Engine turns scope KPIs into sector findings
type Engine struct {
	kpi     *kpi.Engine
	uploads UploadStore
	lex     *lexicon.Lexicon
	rules   []Rule
	now     func() time.Time
}

// NewEngine creates an analysis engine
func NewEngine(k *kpi.Engine, uploads UploadStore, lex *lexicon.Lexicon) *Engine {
	return &Engine{kpi: k, uploads: uploads, lex: lex, rules: DefaultRules, now: time.Now}
}

// WithClock replaces the clock used for generated_at
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// DetectSector matches filename keywords against the sector table in order.
// No match yields the default sector.
func (e *Engine) DetectSector(filename string) lexicon.Sector {
	name := strings.ToLower(filename)
	for _, s := range e.lex.Sectors {
		for _, kw := range s.Keywords {
			if strings.Contains(name, kw) {
				return s
			}
		}
	}
	s, _ := e.lex.Sector(e.lex.DefaultSector)
	return s
}

// GenerateAnalysis evaluates every rule over the scope's figures
func (e *Engine) GenerateAnalysis(scope models.Scope) (*Report, error) {
	if !scope.Valid() {
		return nil, models.ErrInvalidScope
	}
	sector, err := e.sectorFor(scope)
	if err != nil {
		return nil, err
	}

	stats, err := e.kpi.DashboardStats(scope, models.DateRange{})
	if err != nil {
		return nil, err
	}
	kpis, err := e.kpi.AdvancedKPIs(scope)
	if err != nil {
		return nil, err
	}
	expenses, err := e.kpi.TopExpenses(scope, 0)
	if err != nil {
		return nil, err
	}

	facts := &Facts{
		Sector:  sector,
		General: sector.ID == e.lex.DefaultSector,
		Stats:   stats,
		KPIs:    kpis,
	}
	facts.MaterialCost, facts.StaffCost = e.costBuckets(expenses)

	report := Evaluate(facts, e.rules)
	report.GeneratedAt = e.now().Format("2006-01-02 15:04:05")
	return report, nil
}

// Evaluate runs rules in order and fills empty lists with neutral messages
func Evaluate(facts *Facts, rules []Rule) *Report {
	r := &Report{Sector: facts.Sector.Name}
	for _, rule := range rules {
		for _, f := range rule.Evaluate(facts) {
			switch f.Tag {
			case Strength:
				r.Strengths = append(r.Strengths, f.Text)
			case Weakness:
				r.Weaknesses = append(r.Weaknesses, f.Text)
			case Recommendation:
				r.Recommendations = append(r.Recommendations, f.Text)
			}
		}
	}
	if len(r.Strengths) == 0 {
		r.Strengths = []string{fillerStrength}
	}
	if len(r.Weaknesses) == 0 {
		r.Weaknesses = []string{fillerWeakness}
	}
	if len(r.Recommendations) == 0 {
		r.Recommendations = []string{fillerRecommendation}
	}
	return r
}

func (e *Engine) sectorFor(scope models.Scope) (lexicon.Sector, error) {
	if !scope.IsUpload() {
		s, _ := e.lex.Sector(e.lex.DefaultSector)
		return s, nil
	}
	u, err := e.uploads.GetUpload(scope.OwnerID, scope.UploadID)
	if errors.Is(err, database.ErrNotFound) {
		s, _ := e.lex.Sector(e.lex.DefaultSector)
		return s, nil
	}
	if err != nil {
		return lexicon.Sector{}, fmt.Errorf("sector upload: %w", err)
	}
	return e.DetectSector(u.Filename), nil
}

// costBuckets sums expense categories into material and staff costs. A
// category counts toward material first.
func (e *Engine) costBuckets(expenses []kpi.CategoryTotal) (material, staff decimal.Decimal) {
	for _, exp := range expenses {
		cat := strings.ToLower(exp.Category)
		switch {
		case containsAny(cat, e.lex.MaterialKeywords):
			material = material.Add(exp.Amount)
		case containsAny(cat, e.lex.StaffKeywords):
			staff = staff.Add(exp.Amount)
		}
	}
	return material, staff
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
