package analysis

import (
	"fmt"

	"github.com/shopspring/decimal"

	"cashlens/internal/kpi"
	"cashlens/internal/lexicon"
)

// Tag sorts a finding into one of the report lists
type Tag int

const (
	Strength Tag = iota
	Weakness
	Recommendation
)

// Finding is one tagged sentence of a report
type Finding struct {
	Tag  Tag
	Text string
}

// Facts is everything the rules look at
type Facts struct {
	Sector       lexicon.Sector
	General      bool // no specific sector detected
	Stats        kpi.Stats
	KPIs         kpi.AdvancedKPIs
	MaterialCost decimal.Decimal // positive
	StaffCost    decimal.Decimal // positive
}

// Rule emits zero or more findings for a set of facts
type Rule interface {
	Evaluate(f *Facts) []Finding
}

// RuleFunc adapts a function to Rule
type RuleFunc func(f *Facts) []Finding

func (fn RuleFunc) Evaluate(f *Facts) []Finding { return fn(f) }

// DefaultRules in evaluation order; output lists keep this order
var DefaultRules = []Rule{
	RuleFunc(sectorIntro),
	RuleFunc(marginVsBenchmark),
	RuleFunc(materialCost),
	RuleFunc(staffCost),
	RuleFunc(cashBurn),
	RuleFunc(expenseConcentration),
}

var (
	hundred           = decimal.NewFromInt(100)
	concentrationRate = decimal.RequireFromString("0.15")
)

func sectorIntro(f *Facts) []Finding {
	if f.General {
		return nil
	}
	return []Finding{{Strength, fmt.Sprintf(
		"Analyse Sectorielle : Profil identifié comme '%s'. Comparaison avec les standards du marché.", f.Sector.Name)}}
}

func marginVsBenchmark(f *Facts) []Finding {
	sales := f.Stats.TotalSales
	if !sales.IsPositive() {
		return nil
	}
	pct := f.Stats.Margin.Div(sales).Mul(hundred)
	target, minimum := decimal.NewFromFloat(f.Sector.TargetMargin), decimal.NewFromFloat(f.Sector.MinMargin)

	switch {
	case pct.GreaterThanOrEqual(target):
		return []Finding{{Strength, fmt.Sprintf(
			"Performance Excellente : Votre marge nette (%s%%) est supérieure à la moyenne du secteur %s (%s%%).",
			oneDecimal(pct), f.Sector.Name, oneDecimal(target))}}
	case pct.GreaterThanOrEqual(minimum):
		return []Finding{
			{Strength, fmt.Sprintf(
				"Performance Correcte : Votre marge (%s%%) est dans la moyenne basse du secteur (Cible : %s%%).",
				oneDecimal(pct), oneDecimal(target))},
			{Recommendation, fmt.Sprintf(
				"Pour atteindre les leaders du secteur %s, visez une marge de %s%%.", f.Sector.Name, oneDecimal(target))},
		}
	default:
		return []Finding{
			{Weakness, fmt.Sprintf(
				"Rentabilité Critique : Votre marge (%s%%) est dangereusement inférieure aux standards du secteur (%s%% min).",
				oneDecimal(pct), oneDecimal(minimum))},
			{Recommendation, "Action Urgente : Audit complet des coûts nécessaire. Votre modèle économique actuel n'est pas viable à long terme par rapport à la concurrence."},
		}
	}
}

func materialCost(f *Facts) []Finding {
	sales := f.Stats.TotalSales
	if !sales.IsPositive() {
		return nil
	}
	pct := f.MaterialCost.Div(sales).Mul(hundred)
	limit := decimal.NewFromFloat(f.Sector.MaxMaterialCost)

	if !f.General && pct.GreaterThan(limit) {
		return []Finding{
			{Weakness, fmt.Sprintf("Coût Matières Trop Élevé : %s%% du CA (Standard %s : max %s%%).",
				oneDecimal(pct), f.Sector.Name, oneDecimal(limit))},
			{Recommendation, "Renégociez avec vos fournisseurs ou revoyez vos fiches techniques/prix de vente. Vous perdez trop de marge sur les achats."},
		}
	}
	if pct.IsPositive() {
		return []Finding{{Strength, fmt.Sprintf("Maîtrise des Coûts Matières : %s%% du CA.", oneDecimal(pct))}}
	}
	return nil
}

func staffCost(f *Facts) []Finding {
	sales := f.Stats.TotalSales
	if f.General || !sales.IsPositive() {
		return nil
	}
	pct := f.StaffCost.Div(sales).Mul(hundred)
	limit := decimal.NewFromFloat(f.Sector.MaxStaffCost)
	if !pct.GreaterThan(limit) {
		return nil
	}
	return []Finding{
		{Weakness, fmt.Sprintf("Masse Salariale Trop Lourde : %s%% du CA (Standard %s : max %s%%).",
			oneDecimal(pct), f.Sector.Name, oneDecimal(limit))},
		{Recommendation, "Optimisez les plannings ou augmentez la productivité par employé. Le ratio masse salariale/CA est critique."},
	}
}

func cashBurn(f *Facts) []Finding {
	if !f.KPIs.SavingsRate.IsNegative() {
		return nil
	}
	return []Finding{
		{Weakness, "Trésorerie : Vous brûlez du cash chaque mois."},
		{Recommendation, "Arrêtez tout investissement non essentiel immédiatement."},
	}
}

func expenseConcentration(f *Facts) []Finding {
	sales := f.Stats.TotalSales
	if !sales.IsPositive() || !f.KPIs.MaxExpense.GreaterThan(sales.Mul(concentrationRate)) {
		return nil
	}
	return []Finding{{Weakness, "Risque de Concentration : Une seule dépense représente plus de 15% de votre CA."}}
}

func oneDecimal(d decimal.Decimal) string {
	return d.Round(1).StringFixed(1)
}
