package storage

import (
	"context"
	"fmt"
	"time"

	"fleet-expenses/internal/models"
)

// MonthlyTotals sums expenses per calendar month of year. Months without
// expenses are absent from the result. An empty company means all companies.
func (db *DB) MonthlyTotals(ctx context.Context, company models.Company, year int) ([]models.MonthlyTotal, error) {
	const op = "storage.MonthlyTotals"

	query := `
		SELECT CAST(strftime('%m', date) AS INTEGER) AS month, SUM(price), COUNT(*)
		FROM expenses
		WHERE strftime('%Y', date) = ?`
	args := []any{fmt.Sprintf("%04d", year)}
	if company != "" {
		query += " AND company = ?"
		args = append(args, string(company))
	}
	query += " GROUP BY month ORDER BY month"

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var totals []models.MonthlyTotal
	for rows.Next() {
		var t models.MonthlyTotal
		if err := rows.Scan(&t.Month, &t.Total, &t.Count); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// CategoryTotals sums expenses per category with dates in [from, to). Zero
// bounds are open.
func (db *DB) CategoryTotals(ctx context.Context, company models.Company, from, to time.Time) ([]models.CategoryTotal, error) {
	const op = "storage.CategoryTotals"

	query := "SELECT category, SUM(price), COUNT(*) FROM expenses WHERE 1 = 1"
	var args []any
	if company != "" {
		query += " AND company = ?"
		args = append(args, string(company))
	}
	if !from.IsZero() {
		query += " AND date >= ?"
		args = append(args, formatTime(from))
	}
	if !to.IsZero() {
		query += " AND date < ?"
		args = append(args, formatTime(to))
	}
	query += " GROUP BY category"

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var totals []models.CategoryTotal
	for rows.Next() {
		var t models.CategoryTotal
		if err := rows.Scan(&t.Category, &t.Total, &t.Count); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}
