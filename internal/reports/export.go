package reports

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"fleet-expenses/internal/models"
)

const (
	expensesSheet = "Expenses"
	summarySheet  = "Summary"
)

var expenseHeader = []any{
	"ID", "Date", "Company", "Category", "Description", "Price", "Gallons",
	"Business Unit", "Truck", "Trailer", "Fuel Station", "Attachment",
}

// WriteWorkbook writes expenses as an .xlsx workbook with an "Expenses"
// sheet listing every row and a "Summary" sheet with per-category totals.
func WriteWorkbook(w io.Writer, expenses []models.Expense) error {
	const op = "reports.WriteWorkbook"

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", expensesSheet); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := writeExpenses(f, bold, expenses); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := writeSummary(f, bold, expenses); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func writeExpenses(f *excelize.File, bold int, expenses []models.Expense) error {
	if err := f.SetSheetRow(expensesSheet, "A1", &expenseHeader); err != nil {
		return err
	}
	if err := f.SetCellStyle(expensesSheet, "A1", "L1", bold); err != nil {
		return err
	}
	for i, e := range expenses {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{
			e.ID,
			e.Date.Format("2006-01-02"),
			string(e.Company),
			string(e.Category),
			deref(e.Description),
			e.Price,
			derefFloat(e.Gallons),
			identifier(e.BusinessUnit),
			identifier(e.Truck),
			identifier(e.Trailer),
			identifier(e.FuelStation),
			deref(e.AttachmentPath),
		}
		if err := f.SetSheetRow(expensesSheet, cell, &row); err != nil {
			return err
		}
	}
	return f.SetColWidth(expensesSheet, "A", "L", 16)
}

func writeSummary(f *excelize.File, bold int, expenses []models.Expense) error {
	totals := map[models.Category]*models.CategoryTotal{}
	var grand float64
	for _, e := range expenses {
		t, ok := totals[e.Category]
		if !ok {
			t = &models.CategoryTotal{Category: e.Category}
			totals[e.Category] = t
		}
		t.Total += e.Price
		t.Count++
		grand += e.Price
	}

	rows := make([]models.CategoryTotal, 0, len(totals))
	for _, t := range totals {
		rows = append(rows, *t)
	}
	rows = withPercentages(rows)

	header := []any{"Category", "Count", "Total", "Percentage"}
	if err := f.SetSheetRow(summarySheet, "A1", &header); err != nil {
		return err
	}
	if err := f.SetCellStyle(summarySheet, "A1", "D1", bold); err != nil {
		return err
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{string(r.Category), r.Count, r.Total, r.Percentage}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return err
		}
	}

	cell, err := excelize.CoordinatesToCellName(1, len(rows)+2)
	if err != nil {
		return err
	}
	footer := []any{"Total", len(expenses), round2(grand)}
	if err := f.SetSheetRow(summarySheet, cell, &footer); err != nil {
		return err
	}
	return f.SetColWidth(summarySheet, "A", "D", 16)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefFloat(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}

func identifier(r *models.Reference) string {
	if r == nil {
		return ""
	}
	return r.Identifier
}
