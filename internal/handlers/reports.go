package handlers

import (
	"log/slog"
	"net/http"

	"fleet-expenses/internal/reports"
)

// MonthlyTrend returns twelve monthly totals for ?year= (default current).
func (h *Handlers) MonthlyTrend(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("op", "handlers.MonthlyTrend"))

	company, err := queryCompany(r)
	if err != nil {
		h.fail(w, log, err)
		return
	}
	year, err := queryInt(r, "year", 0)
	if err != nil {
		h.fail(w, log, err)
		return
	}
	trend, err := h.reports.MonthlyTrend(r.Context(), company, year)
	if err != nil {
		h.fail(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, trend)
}

// CategoryBreakdown returns per-category totals for ?period=month|year|total.
func (h *Handlers) CategoryBreakdown(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("op", "handlers.CategoryBreakdown"))

	company, err := queryCompany(r)
	if err != nil {
		h.fail(w, log, err)
		return
	}
	period := reports.Period(r.URL.Query().Get("period"))
	if period == "" {
		period = reports.PeriodMonth
	}
	year, err := queryInt(r, "year", 0)
	if err != nil {
		h.fail(w, log, err)
		return
	}
	month, err := queryInt(r, "month", 0)
	if err != nil {
		h.fail(w, log, err)
		return
	}

	rows, err := h.reports.CategoryBreakdown(r.Context(), company, period, year, month)
	if err != nil {
		h.fail(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}
