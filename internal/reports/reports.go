// Package reports caches analytics results per owner. Any write to an
// owner's data must call Invalidate.
package reports

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"cashlens/internal/analysis"
	"cashlens/internal/forecast"
	"cashlens/internal/kpi"
	"cashlens/internal/models"
)

// Reports caches KPI, forecast and analysis results per owner and scope.
// Each method mirrors the engine method of the same name.
type Reports struct {
	kpi      *kpi.Engine
	forecast *forecast.Engine
	analysis *analysis.Engine
	cache    *cache.Cache
}

// New creates a report cache whose entries expire after ttl
func New(k *kpi.Engine, f *forecast.Engine, a *analysis.Engine, ttl time.Duration) *Reports {
	return &Reports{kpi: k, forecast: f, analysis: a, cache: cache.New(ttl, 2*ttl)}
}

func ownerPrefix(ownerID int64) string {
	return fmt.Sprintf("owner:%d:", ownerID)
}

func key(scope models.Scope, name string, args ...any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%supload:%d:%s", ownerPrefix(scope.OwnerID), scope.UploadID, name)
	for _, a := range args {
		fmt.Fprintf(&b, ":%v", a)
	}
	return b.String()
}

func cached[T any](r *Reports, scope models.Scope, k string, compute func() (T, error)) (T, error) {
	if !scope.Valid() {
		var zero T
		return zero, models.ErrInvalidScope
	}
	if v, ok := r.cache.Get(k); ok {
		return v.(T), nil
	}
	v, err := compute()
	if err != nil {
		return v, err
	}
	r.cache.SetDefault(k, v)
	return v, nil
}

// Invalidate drops every cached report of the owner
func (r *Reports) Invalidate(ownerID int64) {
	prefix := ownerPrefix(ownerID)
	n := 0
	for k := range r.cache.Items() {
		if strings.HasPrefix(k, prefix) {
			r.cache.Delete(k)
			n++
		}
	}
	slog.Debug("report_cache_invalidated", "owner_id", ownerID, "keys", n)
}

func dayKey(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}

func (r *Reports) DashboardStats(scope models.Scope, dr models.DateRange) (kpi.Stats, error) {
	return cached(r, scope, key(scope, "stats", dayKey(dr.Start), dayKey(dr.End)), func() (kpi.Stats, error) {
		return r.kpi.DashboardStats(scope, dr)
	})
}

func (r *Reports) CashFlowHistory(scope models.Scope, year int, g models.Granularity) ([]kpi.CashFlowPoint, error) {
	return cached(r, scope, key(scope, "cashflow", year, g), func() ([]kpi.CashFlowPoint, error) {
		return r.kpi.CashFlowHistory(scope, year, g)
	})
}

func (r *Reports) MonthlyBreakdown(scope models.Scope, year int) ([]kpi.MonthBreakdown, error) {
	return cached(r, scope, key(scope, "monthly", year), func() ([]kpi.MonthBreakdown, error) {
		return r.kpi.MonthlyBreakdown(scope, year)
	})
}

func (r *Reports) AnnualBreakdown(scope models.Scope) ([]kpi.YearBreakdown, error) {
	return cached(r, scope, key(scope, "annual"), func() ([]kpi.YearBreakdown, error) {
		return r.kpi.AnnualBreakdown(scope)
	})
}

func (r *Reports) TopExpenses(scope models.Scope, limit int) ([]kpi.CategoryTotal, error) {
	return cached(r, scope, key(scope, "top_expenses", limit), func() ([]kpi.CategoryTotal, error) {
		return r.kpi.TopExpenses(scope, limit)
	})
}

func (r *Reports) TopIncome(scope models.Scope, limit int) ([]kpi.CategoryTotal, error) {
	return cached(r, scope, key(scope, "top_income", limit), func() ([]kpi.CategoryTotal, error) {
		return r.kpi.TopIncome(scope, limit)
	})
}

func (r *Reports) AdvancedKPIs(scope models.Scope) (kpi.AdvancedKPIs, error) {
	return cached(r, scope, key(scope, "advanced"), func() (kpi.AdvancedKPIs, error) {
		return r.kpi.AdvancedKPIs(scope)
	})
}

func (r *Reports) Details(scope models.Scope, month string, kind kpi.DetailKind, category string) ([]kpi.DetailRow, error) {
	return cached(r, scope, key(scope, "details", month, kind, category), func() ([]kpi.DetailRow, error) {
		return r.kpi.Details(scope, month, kind, category)
	})
}

func (r *Reports) Forecast(scope models.Scope, monthsAhead int) ([]forecast.Point, error) {
	return cached(r, scope, key(scope, "forecast", monthsAhead), func() ([]forecast.Point, error) {
		return r.forecast.Forecast(scope, monthsAhead)
	})
}

// Analysis is cached too, so generated_at reflects when it was computed
func (r *Reports) Analysis(scope models.Scope) (*analysis.Report, error) {
	return cached(r, scope, key(scope, "analysis"), func() (*analysis.Report, error) {
		return r.analysis.GenerateAnalysis(scope)
	})
}
