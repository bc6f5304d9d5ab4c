package handlers

import (
	"fmt"
	"net/http"

	"cashlens/internal/decoder"
	"cashlens/internal/logger"
)

// BudgetImport reads a period/category/amount sheet from the "file" form field
func (h *Handler) BudgetImport(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		logger.FromContext(r.Context()).Warn("budget_parse_error", "error", err.Error())
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to parse form"})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no file part"})
		return
	}
	defer file.Close()

	format, err := decoder.FormatFromFilename(header.Filename)
	if err != nil {
		h.fail(w, r, "budget_import_error", err)
		return
	}
	n, err := h.budgets.Import(owner, file, format)
	if err != nil {
		h.fail(w, r, "budget_import_error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("Budget imported successfully. %d entries.", n),
		"count":   n,
	})
}

// BudgetComparison takes optional year and month; both default to now
func (h *Handler) BudgetComparison(w http.ResponseWriter, r *http.Request) {
	year, err := queryInt(r, "year", 0)
	if err != nil {
		h.fail(w, r, "budget_comparison_error", err)
		return
	}
	month, err := queryInt(r, "month", 0)
	if err != nil {
		h.fail(w, r, "budget_comparison_error", err)
		return
	}
	c, err := h.budgets.Comparison(ownerFrom(r.Context()), year, month)
	if err != nil {
		h.fail(w, r, "budget_comparison_error", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
