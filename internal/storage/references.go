package storage

import (
	"context"
	"database/sql"
	"fmt"

	"fleet-expenses/internal/apperr"
	"fleet-expenses/internal/models"
)

type referenceTable struct {
	table     string
	column    string
	expenseFK string
}

var referenceTables = map[models.ReferenceKind]referenceTable{
	models.KindBusinessUnit: {table: "business_units", column: "name", expenseFK: "business_unit_id"},
	models.KindTruck:        {table: "trucks", column: "number", expenseFK: "truck_id"},
	models.KindTrailer:      {table: "trailers", column: "number", expenseFK: "trailer_id"},
	models.KindFuelStation:  {table: "fuel_stations", column: "name", expenseFK: "fuel_station_id"},
}

func tableFor(kind models.ReferenceKind) (referenceTable, error) {
	t, ok := referenceTables[kind]
	if !ok {
		return referenceTable{}, fmt.Errorf("unknown reference kind %q", kind)
	}
	return t, nil
}

// CreateReference inserts a reference entity. A duplicate identifier yields
// an apperr.Conflict error.
func (db *DB) CreateReference(ctx context.Context, kind models.ReferenceKind, identifier string) (models.Reference, error) {
	const op = "storage.CreateReference"

	t, err := tableFor(kind)
	if err != nil {
		return models.Reference{}, fmt.Errorf("%s: %w", op, err)
	}
	result, err := db.conn.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (%s, created_at) VALUES (?, ?)", t.table, t.column),
		identifier, db.timestamp(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Reference{}, duplicateReference(kind)
		}
		return models.Reference{}, fmt.Errorf("%s: %w", op, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return models.Reference{}, fmt.Errorf("%s: %w", op, err)
	}
	return db.GetReference(ctx, kind, id)
}

// GetReference retrieves one reference entity by ID.
func (db *DB) GetReference(ctx context.Context, kind models.ReferenceKind, id int64) (models.Reference, error) {
	const op = "storage.GetReference"

	t, err := tableFor(kind)
	if err != nil {
		return models.Reference{}, fmt.Errorf("%s: %w", op, err)
	}
	row := db.conn.QueryRowContext(ctx,
		fmt.Sprintf("SELECT id, %s, created_at, updated_at FROM %s WHERE id = ?", t.column, t.table), id)
	ref, err := scanReference(kind, row)
	if err != nil {
		return models.Reference{}, fmt.Errorf("%s: %w", op, notFound(err, "%s not found", kind.Label()))
	}
	return ref, nil
}

// ListReferences returns reference entities ordered by identifier.
func (db *DB) ListReferences(ctx context.Context, kind models.ReferenceKind, skip, limit int) ([]models.Reference, error) {
	const op = "storage.ListReferences"

	t, err := tableFor(kind)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	rows, err := db.conn.QueryContext(ctx,
		fmt.Sprintf("SELECT id, %s, created_at, updated_at FROM %s ORDER BY %s LIMIT ? OFFSET ?", t.column, t.table, t.column),
		sqlLimit(limit), skip,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	refs := []models.Reference{}
	for rows.Next() {
		ref, err := scanReference(kind, rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// UpdateReference renames a reference entity.
func (db *DB) UpdateReference(ctx context.Context, kind models.ReferenceKind, id int64, identifier string) (models.Reference, error) {
	const op = "storage.UpdateReference"

	t, err := tableFor(kind)
	if err != nil {
		return models.Reference{}, fmt.Errorf("%s: %w", op, err)
	}
	result, err := db.conn.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET %s = ?, updated_at = ? WHERE id = ?", t.table, t.column),
		identifier, db.timestamp(), id,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Reference{}, duplicateReference(kind)
		}
		return models.Reference{}, fmt.Errorf("%s: %w", op, err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return models.Reference{}, fmt.Errorf("%s: %w", op, err)
	} else if n == 0 {
		return models.Reference{}, apperr.New(apperr.NotFound, "%s not found", kind.Label())
	}
	return db.GetReference(ctx, kind, id)
}

// DeleteReference removes a reference entity. It refuses while any expense
// still points at it.
func (db *DB) DeleteReference(ctx context.Context, kind models.ReferenceKind, id int64) error {
	const op = "storage.DeleteReference"

	t, err := tableFor(kind)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE id = ?", t.table), id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if exists == 0 {
		return apperr.New(apperr.NotFound, "%s not found", kind.Label())
	}

	var refs int
	err = tx.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM expenses WHERE %s = ?", t.expenseFK), id).Scan(&refs)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if refs > 0 {
		return apperr.New(apperr.Invalid, "cannot delete %s: %d expense(s) reference it", kind.Label(), refs)
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", t.table), id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return tx.Commit()
}

// ReferenceExists reports whether a reference entity with id exists.
func (db *DB) ReferenceExists(ctx context.Context, kind models.ReferenceKind, id int64) (bool, error) {
	t, err := tableFor(kind)
	if err != nil {
		return false, err
	}
	var n int
	err = db.conn.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE id = ?", t.table), id).Scan(&n)
	return n > 0, err
}

func duplicateReference(kind models.ReferenceKind) error {
	return apperr.New(apperr.Conflict, "%s with this %s already exists", kind.Label(), kind.IdentifierField())
}

func scanReference(kind models.ReferenceKind, row scanner) (models.Reference, error) {
	var (
		ref     = models.Reference{Kind: kind}
		created string
		updated sql.NullString
	)
	if err := row.Scan(&ref.ID, &ref.Identifier, &created, &updated); err != nil {
		return models.Reference{}, err
	}
	var err error
	if ref.CreatedAt, err = parseTime(created); err != nil {
		return models.Reference{}, err
	}
	if ref.UpdatedAt, err = parseNullTime(updated); err != nil {
		return models.Reference{}, err
	}
	return ref, nil
}

// sqlLimit maps a non-positive limit to SQLite's "no limit".
func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
