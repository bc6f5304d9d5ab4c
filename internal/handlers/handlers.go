package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"cashlens/internal/budget"
	"cashlens/internal/database"
	"cashlens/internal/decoder"
	"cashlens/internal/filestore"
	"cashlens/internal/forecast"
	"cashlens/internal/ingest"
	"cashlens/internal/logger"
	"cashlens/internal/models"
	"cashlens/internal/reports"
	"cashlens/internal/version"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

var errBadRequest = errors.New("bad request")

type ownerKey struct{}

// Handler serves the JSON API
type Handler struct {
	db            *database.DB
	files         *filestore.Store
	reports       *reports.Reports
	budgets       *budget.Service
	maxUploadSize int64
}

// New creates the API handler
func New(db *database.DB, files *filestore.Store, r *reports.Reports, b *budget.Service, maxUploadSize int64) *Handler {
	if maxUploadSize <= 0 {
		maxUploadSize = 10 << 20
	}
	return &Handler{
		db:            db,
		files:         files,
		reports:       r,
		budgets:       b,
		maxUploadSize: maxUploadSize,
	}
}

// Routes builds the API router. limiter may be nil.
func (h *Handler) Routes(limiter *rate.Limiter) http.Handler {
	r := chi.NewRouter()
	r.Use(logger.HTTPMiddleware)
	r.Use(middleware.Recoverer)
	if limiter != nil {
		r.Use(rateLimit(limiter))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/api/version", h.APIVersion)

	r.Group(func(r chi.Router) {
		r.Use(requireOwner)

		r.Post("/api/uploads", h.UploadCreate)
		r.Get("/api/uploads", h.UploadsList)
		r.Get("/api/uploads/{id}", h.UploadShow)
		r.Delete("/api/uploads/{id}", h.UploadDelete)
		r.Get("/api/jobs/{id}", h.JobStatus)

		r.Route("/api/dashboard", func(r chi.Router) {
			r.Get("/stats", h.DashboardStats)
			r.Get("/cashflow", h.CashFlow)
			r.Get("/monthly", h.MonthlyBreakdown)
			r.Get("/annual", h.AnnualBreakdown)
			r.Get("/top-expenses", h.TopExpenses)
			r.Get("/top-income", h.TopIncome)
			r.Get("/advanced-kpis", h.AdvancedKPIs)
			r.Get("/details", h.Details)
			r.Get("/analysis", h.Analysis)
		})
		r.Get("/api/forecast", h.Forecast)

		r.Post("/api/budgets", h.BudgetImport)
		r.Get("/api/budgets/comparison", h.BudgetComparison)
	})
	return r
}

// APIVersion returns build information
func (h *Handler) APIVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"build_time": version.BuildTime,
		"git_commit": version.GitCommit,
	})
}

// requireOwner reads the owner id set by the upstream auth gateway
func requireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner, err := strconv.ParseInt(r.Header.Get("X-User-ID"), 10, 64)
		if err != nil || owner <= 0 {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing or invalid X-User-ID"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerKey{}, owner)))
	})
}

func ownerFrom(ctx context.Context) int64 {
	owner, _ := ctx.Value(ownerKey{}).(int64)
	return owner
}

func rateLimit(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				logger.FromContext(r.Context()).Warn("rate_limit_exceeded", "method", r.Method, "path", r.URL.Path)
				writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": http.StatusText(http.StatusTooManyRequests)})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// scopeFrom builds the request scope. An upload_id the owner does not own
// is reported as not found.
func (h *Handler) scopeFrom(r *http.Request) (models.Scope, error) {
	owner := ownerFrom(r.Context())
	raw := r.URL.Query().Get("upload_id")
	if raw == "" {
		return models.ForOwner(owner), nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return models.Scope{}, errBadRequest
	}
	if _, err := h.db.GetUpload(owner, id); err != nil {
		return models.Scope{}, err
	}
	return models.ForUpload(owner, id), nil
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errBadRequest
	}
	return v, nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, errBadRequest
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ingest.ErrDuplicateUpload),
		errors.Is(err, ingest.ErrIngestionInProgress),
		errors.Is(err, database.ErrUploadNotProcessing):
		return http.StatusConflict
	case errors.Is(err, ingest.ErrMissingDateColumn),
		errors.Is(err, ingest.ErrNoValidTransactions),
		errors.Is(err, decoder.ErrEmptyFile),
		errors.Is(err, budget.ErrMissingPeriodColumn),
		errors.Is(err, budget.ErrMissingAmountColumn):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errBadRequest),
		errors.Is(err, decoder.ErrUnsupportedFormat),
		errors.Is(err, models.ErrInvalidScope),
		errors.Is(err, budget.ErrInvalidMonth),
		errors.Is(err, forecast.ErrHorizonTooLong):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, event string, err error) {
	status := statusFor(err)
	msg := err.Error()
	switch status {
	case http.StatusInternalServerError:
		logger.FromContext(r.Context()).Error(event, "error", err.Error())
		msg = "internal error"
	case http.StatusNotFound:
		msg = "not found"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}
