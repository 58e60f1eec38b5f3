// Package reports turns stored expenses into the aggregates the dashboard
// charts and the spreadsheet export.
package reports

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"fleet-expenses/internal/apperr"
	"fleet-expenses/internal/models"
)

// Source supplies raw aggregates. storage.DB implements it.
type Source interface {
	MonthlyTotals(ctx context.Context, company models.Company, year int) ([]models.MonthlyTotal, error)
	CategoryTotals(ctx context.Context, company models.Company, from, to time.Time) ([]models.CategoryTotal, error)
}

// Period selects the date window of a category breakdown.
type Period string

const (
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
	PeriodTotal Period = "total"
)

// Service computes reports from a Source.
type Service struct {
	src Source
	now func() time.Time
}

// NewService returns a Service reading from src.
func NewService(src Source) *Service {
	return &Service{src: src, now: time.Now}
}

// MonthlyTrend returns twelve rows, January to December, for year. Months
// without expenses have zero totals.
func (s *Service) MonthlyTrend(ctx context.Context, company models.Company, year int) ([]models.MonthlyTotal, error) {
	const op = "reports.MonthlyTrend"

	if year == 0 {
		year = s.now().Year()
	}
	rows, err := s.src.MonthlyTotals(ctx, company, year)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	trend := make([]models.MonthlyTotal, 12)
	for i := range trend {
		trend[i].Month = i + 1
	}
	for _, r := range rows {
		if r.Month >= 1 && r.Month <= 12 {
			trend[r.Month-1] = models.MonthlyTotal{Month: r.Month, Total: round2(r.Total), Count: r.Count}
		}
	}
	return trend, nil
}

// CategoryBreakdown returns per-category totals for the period, largest
// first, with each category's share of the period total in percent. For
// PeriodMonth and PeriodYear a zero year or month means the current one.
func (s *Service) CategoryBreakdown(ctx context.Context, company models.Company, period Period, year, month int) ([]models.CategoryTotal, error) {
	const op = "reports.CategoryBreakdown"

	from, to, err := s.window(period, year, month)
	if err != nil {
		return nil, err
	}
	rows, err := s.src.CategoryTotals(ctx, company, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return withPercentages(rows), nil
}

func (s *Service) window(period Period, year, month int) (from, to time.Time, err error) {
	now := s.now().UTC()
	if year == 0 {
		year = now.Year()
	}
	switch period {
	case PeriodTotal, "":
		return time.Time{}, time.Time{}, nil
	case PeriodYear:
		from = time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		return from, from.AddDate(1, 0, 0), nil
	case PeriodMonth:
		if month == 0 {
			month = int(now.Month())
		}
		if month < 1 || month > 12 {
			return time.Time{}, time.Time{}, apperr.New(apperr.Invalid, "month must be between 1 and 12")
		}
		from = time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
		return from, from.AddDate(0, 1, 0), nil
	}
	return time.Time{}, time.Time{}, apperr.New(apperr.Invalid, "period must be one of: month, year, total")
}

func withPercentages(rows []models.CategoryTotal) []models.CategoryTotal {
	var total float64
	for _, r := range rows {
		total += r.Total
	}

	out := make([]models.CategoryTotal, 0, len(rows))
	for _, r := range rows {
		pct := 0.0
		if total > 0 {
			pct = r.Total / total * 100
		}
		out = append(out, models.CategoryTotal{
			Category:   r.Category,
			Total:      round2(r.Total),
			Count:      r.Count,
			Percentage: round2(pct),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Category < out[j].Category
	})
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
