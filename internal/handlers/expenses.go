package handlers

import (
	"bytes"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fleet-expenses/internal/models"
	"fleet-expenses/internal/reports"
	"fleet-expenses/internal/validation"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"}

type expenseRequest struct {
	Company        string   `json:"company" validate:"required,oneof=Swatch SWS"`
	Category       string   `json:"category" validate:"required,oneof=truck trailer dmv parts phone-tracker other-expenses toll office-supplies fuel-diesel def"`
	Date           string   `json:"date" validate:"required"`
	Price          float64  `json:"price" validate:"gt=0"`
	Description    *string  `json:"description" validate:"omitempty,max=500"`
	Gallons        *float64 `json:"gallons" validate:"omitempty,gt=0"`
	BusinessUnitID *int64   `json:"business_unit_id"`
	TruckID        *int64   `json:"truck_id"`
	TrailerID      *int64   `json:"trailer_id"`
	FuelStationID  *int64   `json:"fuel_station_id"`
}

// expensePatch only carries the fields present in the request body.
type expensePatch struct {
	Company        *string  `json:"company" validate:"omitempty,oneof=Swatch SWS"`
	Category       *string  `json:"category" validate:"omitempty,oneof=truck trailer dmv parts phone-tracker other-expenses toll office-supplies fuel-diesel def"`
	Date           *string  `json:"date"`
	Price          *float64 `json:"price" validate:"omitempty,gt=0"`
	Description    *string  `json:"description" validate:"omitempty,max=500"`
	Gallons        *float64 `json:"gallons" validate:"omitempty,gt=0"`
	BusinessUnitID *int64   `json:"business_unit_id"`
	TruckID        *int64   `json:"truck_id"`
	TrailerID      *int64   `json:"trailer_id"`
	FuelStationID  *int64   `json:"fuel_station_id"`
}

func parseDate(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, validation.Field(field, "invalid date format")
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

func roundOptional(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := roundCents(*v)
	return &r
}

// CreateExpense adds an expense.
func (h *Handlers) CreateExpense(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("op", "handlers.CreateExpense"))
	if user, ok := GetUserFromContext(r); ok {
		log = log.With(slog.Int64("user_id", user.ID))
	}

	var in expenseRequest
	if err := decodeJSON(w, r, &in); err != nil {
		h.fail(w, log, err)
		return
	}
	if err := validation.Struct(in); err != nil {
		h.fail(w, log, err)
		return
	}
	date, err := parseDate("date", in.Date)
	if err != nil {
		h.fail(w, log, err)
		return
	}

	expense, err := h.db.CreateExpense(r.Context(), models.Expense{
		Company:        models.Company(in.Company),
		Category:       models.Category(in.Category),
		Date:           date,
		Price:          roundCents(in.Price),
		Description:    in.Description,
		Gallons:        roundOptional(in.Gallons),
		BusinessUnitID: in.BusinessUnitID,
		TruckID:        in.TruckID,
		TrailerID:      in.TrailerID,
		FuelStationID:  in.FuelStationID,
	})
	if err != nil {
		h.fail(w, log, err)
		return
	}
	log.Info("expense created", slog.Int64("id", expense.ID), slog.String("company", string(expense.Company)))
	writeJSON(w, http.StatusCreated, expense)
}

// ListExpenses lists expenses matching the query filters.
func (h *Handlers) ListExpenses(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("op", "handlers.ListExpenses"))

	filter, err := expenseFilter(r, true)
	if err != nil {
		h.fail(w, log, err)
		return
	}
	expenses, err := h.db.ListExpenses(r.Context(), filter)
	if err != nil {
		h.fail(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, expenses)
}

// ExportExpenses streams the filtered expenses as an .xlsx workbook.
func (h *Handlers) ExportExpenses(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("op", "handlers.ExportExpenses"))

	filter, err := expenseFilter(r, false)
	if err != nil {
		h.fail(w, log, err)
		return
	}
	expenses, err := h.db.ListExpenses(r.Context(), filter)
	if err != nil {
		h.fail(w, log, err)
		return
	}

	var buf bytes.Buffer
	if err := reports.WriteWorkbook(&buf, expenses); err != nil {
		h.fail(w, log, err)
		return
	}
	name := fmt.Sprintf("expenses_%s.xlsx", time.Now().UTC().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// GetExpense returns one expense.
func (h *Handlers) GetExpense(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("op", "handlers.GetExpense"))

	id, err := pathID(r)
	if err != nil {
		h.fail(w, log, err)
		return
	}
	expense, err := h.db.GetExpense(r.Context(), id)
	if err != nil {
		h.fail(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, expense)
}

// UpdateExpense applies a partial update.
func (h *Handlers) UpdateExpense(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("op", "handlers.UpdateExpense"))

	id, err := pathID(r)
	if err != nil {
		h.fail(w, log, err)
		return
	}
	var patch expensePatch
	if err := decodeJSON(w, r, &patch); err != nil {
		h.fail(w, log, err)
		return
	}
	if err := validation.Struct(patch); err != nil {
		h.fail(w, log, err)
		return
	}

	expense, err := h.db.GetExpense(r.Context(), id)
	if err != nil {
		h.fail(w, log, err)
		return
	}
	if err := patch.apply(&expense); err != nil {
		h.fail(w, log, err)
		return
	}
	updated, err := h.db.UpdateExpense(r.Context(), expense)
	if err != nil {
		h.fail(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (p expensePatch) apply(e *models.Expense) error {
	if p.Company != nil {
		e.Company = models.Company(*p.Company)
	}
	if p.Category != nil {
		e.Category = models.Category(*p.Category)
	}
	if p.Date != nil {
		date, err := parseDate("date", *p.Date)
		if err != nil {
			return err
		}
		e.Date = date
	}
	if p.Price != nil {
		e.Price = roundCents(*p.Price)
	}
	if p.Description != nil {
		e.Description = p.Description
	}
	if p.Gallons != nil {
		e.Gallons = roundOptional(p.Gallons)
	}
	if p.BusinessUnitID != nil {
		e.BusinessUnitID = p.BusinessUnitID
	}
	if p.TruckID != nil {
		e.TruckID = p.TruckID
	}
	if p.TrailerID != nil {
		e.TrailerID = p.TrailerID
	}
	if p.FuelStationID != nil {
		e.FuelStationID = p.FuelStationID
	}
	return nil
}

// DeleteExpense removes an expense and its attachment file.
func (h *Handlers) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("op", "handlers.DeleteExpense"))
	if user, ok := GetUserFromContext(r); ok {
		log = log.With(slog.Int64("user_id", user.ID))
	}

	id, err := pathID(r)
	if err != nil {
		h.fail(w, log, err)
		return
	}
	deleted, err := h.db.DeleteExpense(r.Context(), id)
	if err != nil {
		h.fail(w, log, err)
		return
	}
	log.Info("expense deleted", slog.Int64("id", id))
	if deleted.AttachmentPath != nil {
		if err := h.files.Delete(*deleted.AttachmentPath); err != nil {
			log.Warn("attachment not removed", slog.String("name", *deleted.AttachmentPath), slog.String("error", err.Error()))
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// expenseFilter reads the list filters. Paging is only read when paged is
// set; exports always cover every match.
func expenseFilter(r *http.Request, paged bool) (models.ExpenseFilter, error) {
	q := r.URL.Query()
	var f models.ExpenseFilter

	company, err := queryCompany(r)
	if err != nil {
		return f, err
	}
	f.Company = company

	if c := q.Get("category"); c != "" {
		f.Category = models.Category(c)
		if !f.Category.Valid() {
			return f, validation.Field("category", "unknown category")
		}
	}

	ids := []struct {
		name string
		dst  *int64
	}{
		{"business_unit_id", &f.BusinessUnitID},
		{"truck_id", &f.TruckID},
		{"trailer_id", &f.TrailerID},
		{"fuel_station_id", &f.FuelStationID},
	}
	for _, id := range ids {
		n, err := queryInt(r, id.name, 0)
		if err != nil {
			return f, err
		}
		*id.dst = int64(n)
	}

	if raw := q.Get("start_date"); raw != "" {
		if f.StartDate, err = parseDate("start_date", raw); err != nil {
			return f, err
		}
	}
	if raw := q.Get("end_date"); raw != "" {
		if f.EndDate, err = parseDate("end_date", raw); err != nil {
			return f, err
		}
	}
	f.Keyword = strings.TrimSpace(q.Get("keyword"))

	if !paged {
		return f, nil
	}
	if f.Skip, err = queryInt(r, "skip", 0); err != nil {
		return f, err
	}
	if f.Skip < 0 {
		return f, validation.Field("skip", "must be greater than or equal to 0")
	}
	if f.Limit, err = queryInt(r, "limit", defaultListLimit); err != nil {
		return f, err
	}
	if f.Limit < 1 || f.Limit > maxListLimit {
		return f, validation.Field("limit", fmt.Sprintf("must be between 1 and %d", maxListLimit))
	}
	return f, nil
}
