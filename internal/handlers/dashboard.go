package handlers

import (
	"net/http"
	"time"

	"cashlens/internal/forecast"
	"cashlens/internal/kpi"
	"cashlens/internal/models"
)

// DashboardStats accepts optional start_date and end_date (YYYY-MM-DD)
func (h *Handler) DashboardStats(w http.ResponseWriter, r *http.Request) {
	scope, err := h.scopeFrom(r)
	if err != nil {
		h.fail(w, r, "dashboard_stats_error", err)
		return
	}
	var dr models.DateRange
	for name, dst := range map[string]*time.Time{"start_date": &dr.Start, "end_date": &dr.End} {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			continue
		}
		d, err := time.Parse("2006-01-02", raw)
		if err != nil {
			h.fail(w, r, "dashboard_stats_error", errBadRequest)
			return
		}
		*dst = d
	}
	stats, err := h.reports.DashboardStats(scope, dr)
	if err != nil {
		h.fail(w, r, "dashboard_stats_error", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) CashFlow(w http.ResponseWriter, r *http.Request) {
	scope, err := h.scopeFrom(r)
	if err != nil {
		h.fail(w, r, "cashflow_error", err)
		return
	}
	year, err := queryInt(r, "year", 0)
	if err != nil {
		h.fail(w, r, "cashflow_error", err)
		return
	}
	g := models.Month
	if r.URL.Query().Get("granularity") == string(models.Day) {
		g = models.Day
	}
	history, err := h.reports.CashFlowHistory(scope, year, g)
	if err != nil {
		h.fail(w, r, "cashflow_error", err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *Handler) MonthlyBreakdown(w http.ResponseWriter, r *http.Request) {
	scope, err := h.scopeFrom(r)
	if err != nil {
		h.fail(w, r, "monthly_breakdown_error", err)
		return
	}
	year, err := queryInt(r, "year", 0)
	if err != nil {
		h.fail(w, r, "monthly_breakdown_error", err)
		return
	}
	months, err := h.reports.MonthlyBreakdown(scope, year)
	if err != nil {
		h.fail(w, r, "monthly_breakdown_error", err)
		return
	}
	writeJSON(w, http.StatusOK, months)
}

func (h *Handler) AnnualBreakdown(w http.ResponseWriter, r *http.Request) {
	scope, err := h.scopeFrom(r)
	if err != nil {
		h.fail(w, r, "annual_breakdown_error", err)
		return
	}
	years, err := h.reports.AnnualBreakdown(scope)
	if err != nil {
		h.fail(w, r, "annual_breakdown_error", err)
		return
	}
	writeJSON(w, http.StatusOK, years)
}

func (h *Handler) TopExpenses(w http.ResponseWriter, r *http.Request) {
	h.topCategories(w, r, "top_expenses_error", h.reports.TopExpenses)
}

func (h *Handler) TopIncome(w http.ResponseWriter, r *http.Request) {
	h.topCategories(w, r, "top_income_error", h.reports.TopIncome)
}

func (h *Handler) topCategories(w http.ResponseWriter, r *http.Request, event string,
	get func(models.Scope, int) ([]kpi.CategoryTotal, error)) {
	scope, err := h.scopeFrom(r)
	if err != nil {
		h.fail(w, r, event, err)
		return
	}
	limit, err := queryInt(r, "limit", 5)
	if err != nil {
		h.fail(w, r, event, err)
		return
	}
	totals, err := get(scope, limit)
	if err != nil {
		h.fail(w, r, event, err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

func (h *Handler) AdvancedKPIs(w http.ResponseWriter, r *http.Request) {
	scope, err := h.scopeFrom(r)
	if err != nil {
		h.fail(w, r, "advanced_kpis_error", err)
		return
	}
	kpis, err := h.reports.AdvancedKPIs(scope)
	if err != nil {
		h.fail(w, r, "advanced_kpis_error", err)
		return
	}
	writeJSON(w, http.StatusOK, kpis)
}

// Details takes month=YYYY-MM, type=income|expense and an optional category
func (h *Handler) Details(w http.ResponseWriter, r *http.Request) {
	scope, err := h.scopeFrom(r)
	if err != nil {
		h.fail(w, r, "details_error", err)
		return
	}
	month := r.URL.Query().Get("month")
	if _, err := time.Parse("2006-01", month); err != nil {
		h.fail(w, r, "details_error", errBadRequest)
		return
	}
	kind := kpi.DetailKind(r.URL.Query().Get("type"))
	if kind != kpi.IncomeDetails && kind != kpi.ExpenseDetails {
		h.fail(w, r, "details_error", errBadRequest)
		return
	}
	rows, err := h.reports.Details(scope, month, kind, r.URL.Query().Get("category"))
	if err != nil {
		h.fail(w, r, "details_error", err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *Handler) Analysis(w http.ResponseWriter, r *http.Request) {
	scope, err := h.scopeFrom(r)
	if err != nil {
		h.fail(w, r, "analysis_error", err)
		return
	}
	report, err := h.reports.Analysis(scope)
	if err != nil {
		h.fail(w, r, "analysis_error", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) Forecast(w http.ResponseWriter, r *http.Request) {
	scope, err := h.scopeFrom(r)
	if err != nil {
		h.fail(w, r, "forecast_error", err)
		return
	}
	months, err := queryInt(r, "months", forecast.DefaultMonths)
	if err != nil || months < 0 || months > forecast.MaxMonths {
		h.fail(w, r, "forecast_error", errBadRequest)
		return
	}
	points, err := h.reports.Forecast(scope, months)
	if err != nil {
		h.fail(w, r, "forecast_error", err)
		return
	}
	writeJSON(w, http.StatusOK, points)
}
