package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"fleet-expenses/internal/apperr"
	"fleet-expenses/internal/models"
)

const expenseSelect = `
	SELECT e.id, e.company, e.category, e.date, e.price, e.description, e.gallons,
		e.business_unit_id, e.truck_id, e.trailer_id, e.fuel_station_id,
		e.attachment_path, e.created_at, e.updated_at,
		bu.name, bu.created_at, bu.updated_at,
		t.number, t.created_at, t.updated_at,
		tr.number, tr.created_at, tr.updated_at,
		fs.name, fs.created_at, fs.updated_at
	FROM expenses e
	LEFT JOIN business_units bu ON bu.id = e.business_unit_id
	LEFT JOIN trucks t ON t.id = e.truck_id
	LEFT JOIN trailers tr ON tr.id = e.trailer_id
	LEFT JOIN fuel_stations fs ON fs.id = e.fuel_station_id`

// CreateExpense inserts a new expense and returns it with its references
// resolved. Every referenced entity must exist.
func (db *DB) CreateExpense(ctx context.Context, e models.Expense) (models.Expense, error) {
	const op = "storage.CreateExpense"

	if err := db.checkReferences(ctx, e); err != nil {
		return models.Expense{}, err
	}
	result, err := db.conn.ExecContext(ctx, `
		INSERT INTO expenses (company, category, date, price, description, gallons,
			business_unit_id, truck_id, trailer_id, fuel_station_id, attachment_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(e.Company), string(e.Category), formatTime(e.Date), e.Price, nullString(e.Description), nullFloat64(e.Gallons),
		nullInt64(e.BusinessUnitID), nullInt64(e.TruckID), nullInt64(e.TrailerID), nullInt64(e.FuelStationID),
		nullString(e.AttachmentPath), db.timestamp(),
	)
	if err != nil {
		return models.Expense{}, fmt.Errorf("%s: %w", op, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return models.Expense{}, fmt.Errorf("%s: %w", op, err)
	}
	return db.GetExpense(ctx, id)
}

// GetExpense retrieves a single expense by ID.
func (db *DB) GetExpense(ctx context.Context, id int64) (models.Expense, error) {
	const op = "storage.GetExpense"

	row := db.conn.QueryRowContext(ctx, expenseSelect+" WHERE e.id = ?", id)
	e, err := scanExpense(row)
	if err != nil {
		return models.Expense{}, fmt.Errorf("%s: %w", op, notFound(err, "Expense not found"))
	}
	return e, nil
}

// UpdateExpense overwrites every column of an existing expense.
func (db *DB) UpdateExpense(ctx context.Context, e models.Expense) (models.Expense, error) {
	const op = "storage.UpdateExpense"

	if err := db.checkReferences(ctx, e); err != nil {
		return models.Expense{}, err
	}
	result, err := db.conn.ExecContext(ctx, `
		UPDATE expenses SET company = ?, category = ?, date = ?, price = ?, description = ?, gallons = ?,
			business_unit_id = ?, truck_id = ?, trailer_id = ?, fuel_station_id = ?,
			attachment_path = ?, updated_at = ?
		WHERE id = ?`,
		string(e.Company), string(e.Category), formatTime(e.Date), e.Price, nullString(e.Description), nullFloat64(e.Gallons),
		nullInt64(e.BusinessUnitID), nullInt64(e.TruckID), nullInt64(e.TrailerID), nullInt64(e.FuelStationID),
		nullString(e.AttachmentPath), db.timestamp(),
		e.ID,
	)
	if err != nil {
		return models.Expense{}, fmt.Errorf("%s: %w", op, err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return models.Expense{}, fmt.Errorf("%s: %w", op, err)
	} else if n == 0 {
		return models.Expense{}, apperr.New(apperr.NotFound, "Expense not found")
	}
	return db.GetExpense(ctx, e.ID)
}

// SetAttachment records or clears the stored attachment of an expense.
func (db *DB) SetAttachment(ctx context.Context, id int64, path *string) error {
	const op = "storage.SetAttachment"

	result, err := db.conn.ExecContext(ctx,
		"UPDATE expenses SET attachment_path = ?, updated_at = ? WHERE id = ?",
		nullString(path), db.timestamp(), id,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	} else if n == 0 {
		return apperr.New(apperr.NotFound, "Expense not found")
	}
	return nil
}

// DeleteExpense removes an expense and returns what was deleted so the
// caller can clean up its attachment.
func (db *DB) DeleteExpense(ctx context.Context, id int64) (models.Expense, error) {
	const op = "storage.DeleteExpense"

	e, err := db.GetExpense(ctx, id)
	if err != nil {
		return models.Expense{}, err
	}
	if _, err := db.conn.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", id); err != nil {
		return models.Expense{}, fmt.Errorf("%s: %w", op, err)
	}
	return e, nil
}

// ListExpenses returns the expenses matching f, newest first. A zero Limit
// returns every match.
func (db *DB) ListExpenses(ctx context.Context, f models.ExpenseFilter) ([]models.Expense, error) {
	const op = "storage.ListExpenses"

	where, args := expenseWhere(f)
	query := expenseSelect + where + " ORDER BY e.date DESC, e.id DESC LIMIT ? OFFSET ?"
	args = append(args, sqlLimit(f.Limit), f.Skip)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	expenses := []models.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

func expenseWhere(f models.ExpenseFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		conds = append(conds, cond)
		args = append(args, arg)
	}

	if f.Company != "" {
		add("e.company = ?", string(f.Company))
	}
	if f.Category != "" {
		add("e.category = ?", string(f.Category))
	}
	if f.BusinessUnitID != 0 {
		add("e.business_unit_id = ?", f.BusinessUnitID)
	}
	if f.TruckID != 0 {
		add("e.truck_id = ?", f.TruckID)
	}
	if f.TrailerID != 0 {
		add("e.trailer_id = ?", f.TrailerID)
	}
	if f.FuelStationID != 0 {
		add("e.fuel_station_id = ?", f.FuelStationID)
	}
	if !f.StartDate.IsZero() {
		add("e.date >= ?", formatTime(startOfDay(f.StartDate)))
	}
	if !f.EndDate.IsZero() {
		add("e.date < ?", formatTime(startOfDay(f.EndDate).AddDate(0, 0, 1)))
	}
	if kw := strings.TrimSpace(f.Keyword); kw != "" {
		add(`LOWER(COALESCE(e.description, '')) LIKE ? ESCAPE '\'`, "%"+escapeLike(strings.ToLower(kw))+"%")
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func (db *DB) checkReferences(ctx context.Context, e models.Expense) error {
	ids := []struct {
		kind models.ReferenceKind
		id   *int64
	}{
		{models.KindBusinessUnit, e.BusinessUnitID},
		{models.KindTruck, e.TruckID},
		{models.KindTrailer, e.TrailerID},
		{models.KindFuelStation, e.FuelStationID},
	}
	for _, ref := range ids {
		if ref.id == nil {
			continue
		}
		ok, err := db.ReferenceExists(ctx, ref.kind, *ref.id)
		if err != nil {
			return fmt.Errorf("storage.checkReferences: %w", err)
		}
		if !ok {
			return apperr.New(apperr.Invalid, "%s %d does not exist", ref.kind.Label(), *ref.id)
		}
	}
	return nil
}

type nullReference struct {
	identifier sql.NullString
	created    sql.NullString
	updated    sql.NullString
}

func (r *nullReference) resolve(kind models.ReferenceKind, id *int64) (*models.Reference, error) {
	if id == nil || !r.identifier.Valid {
		return nil, nil
	}
	ref := &models.Reference{ID: *id, Kind: kind, Identifier: r.identifier.String}
	var err error
	if r.created.Valid {
		if ref.CreatedAt, err = parseTime(r.created.String); err != nil {
			return nil, err
		}
	}
	if ref.UpdatedAt, err = parseNullTime(r.updated); err != nil {
		return nil, err
	}
	return ref, nil
}

func scanExpense(row scanner) (models.Expense, error) {
	var (
		e                              models.Expense
		date, created                  string
		updated, description, attached sql.NullString
		gallons                        sql.NullFloat64
		buID, truckID, trailerID, fsID sql.NullInt64
		bu, truck, trailer, station    nullReference
	)
	err := row.Scan(&e.ID, &e.Company, &e.Category, &date, &e.Price, &description, &gallons,
		&buID, &truckID, &trailerID, &fsID,
		&attached, &created, &updated,
		&bu.identifier, &bu.created, &bu.updated,
		&truck.identifier, &truck.created, &truck.updated,
		&trailer.identifier, &trailer.created, &trailer.updated,
		&station.identifier, &station.created, &station.updated,
	)
	if err != nil {
		return models.Expense{}, err
	}

	if e.Date, err = parseTime(date); err != nil {
		return models.Expense{}, err
	}
	if e.CreatedAt, err = parseTime(created); err != nil {
		return models.Expense{}, err
	}
	if e.UpdatedAt, err = parseNullTime(updated); err != nil {
		return models.Expense{}, err
	}
	e.Description = stringPtr(description)
	e.Gallons = float64Ptr(gallons)
	e.AttachmentPath = stringPtr(attached)
	e.BusinessUnitID = int64Ptr(buID)
	e.TruckID = int64Ptr(truckID)
	e.TrailerID = int64Ptr(trailerID)
	e.FuelStationID = int64Ptr(fsID)

	if e.BusinessUnit, err = bu.resolve(models.KindBusinessUnit, e.BusinessUnitID); err != nil {
		return models.Expense{}, err
	}
	if e.Truck, err = truck.resolve(models.KindTruck, e.TruckID); err != nil {
		return models.Expense{}, err
	}
	if e.Trailer, err = trailer.resolve(models.KindTrailer, e.TrailerID); err != nil {
		return models.Expense{}, err
	}
	if e.FuelStation, err = station.resolve(models.KindFuelStation, e.FuelStationID); err != nil {
		return models.Expense{}, err
	}
	return e, nil
}
