package storage

import (
	"context"
	"database/sql"
	"fmt"

	"fleet-expenses/internal/apperr"
	"fleet-expenses/internal/models"
)

const userColumns = `id, email, name, password_hash, is_active, created_at, updated_at,
	security_question_1, security_answer_1_hash,
	security_question_2, security_answer_2_hash,
	security_question_3, security_answer_3_hash`

// FindUserByEmail looks a user up by email, ignoring case.
func (db *DB) FindUserByEmail(ctx context.Context, email string) (models.User, error) {
	const op = "storage.FindUserByEmail"

	row := db.conn.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", email)
	u, err := scanUser(row)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, notFound(err, "user not found"))
	}
	return u, nil
}

// GetUserByID retrieves a user by ID.
func (db *DB) GetUserByID(ctx context.Context, id int64) (models.User, error) {
	const op = "storage.GetUserByID"

	row := db.conn.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
	u, err := scanUser(row)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, notFound(err, "user not found"))
	}
	return u, nil
}

// InsertUser creates a user. A taken email yields an apperr.Conflict error.
func (db *DB) InsertUser(ctx context.Context, user models.User) (models.User, error) {
	const op = "storage.InsertUser"

	args := []any{user.Email, nullString(user.Name), user.PasswordHash, user.IsActive, db.timestamp()}
	args = append(args, questionArgs(user)...)
	result, err := db.conn.ExecContext(ctx, `
		INSERT INTO users (email, name, password_hash, is_active, created_at,
			security_question_1, security_answer_1_hash,
			security_question_2, security_answer_2_hash,
			security_question_3, security_answer_3_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, apperr.New(apperr.Conflict, "email already registered")
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return db.GetUserByID(ctx, id)
}

// UpdateUser writes every mutable column of user, matched by ID.
func (db *DB) UpdateUser(ctx context.Context, user models.User) error {
	const op = "storage.UpdateUser"

	args := []any{nullString(user.Name), user.PasswordHash, user.IsActive, db.timestamp()}
	args = append(args, questionArgs(user)...)
	args = append(args, user.ID)
	result, err := db.conn.ExecContext(ctx, `
		UPDATE users SET name = ?, password_hash = ?, is_active = ?, updated_at = ?,
			security_question_1 = ?, security_answer_1_hash = ?,
			security_question_2 = ?, security_answer_2_hash = ?,
			security_question_3 = ?, security_answer_3_hash = ?
		WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, apperr.New(apperr.NotFound, "user not found"))
	}
	return nil
}

// UserCount returns the number of users in the database.
func (db *DB) UserCount(ctx context.Context) (int, error) {
	const op = "storage.UserCount"

	var count int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}

func questionArgs(user models.User) []any {
	args := make([]any, 0, 2*models.SecurityQuestionCount)
	for _, q := range user.SecurityQuestions {
		var question, hash *string
		if q.Question != "" {
			question = &q.Question
		}
		if q.AnswerHash != "" {
			hash = &q.AnswerHash
		}
		args = append(args, nullString(question), nullString(hash))
	}
	return args
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (models.User, error) {
	var (
		u         models.User
		name      sql.NullString
		created   string
		updated   sql.NullString
		questions [2 * models.SecurityQuestionCount]sql.NullString
	)
	err := row.Scan(&u.ID, &u.Email, &name, &u.PasswordHash, &u.IsActive, &created, &updated,
		&questions[0], &questions[1], &questions[2], &questions[3], &questions[4], &questions[5])
	if err != nil {
		return models.User{}, err
	}

	u.Name = stringPtr(name)
	if u.CreatedAt, err = parseTime(created); err != nil {
		return models.User{}, err
	}
	if u.UpdatedAt, err = parseNullTime(updated); err != nil {
		return models.User{}, err
	}
	for i := range u.SecurityQuestions {
		u.SecurityQuestions[i] = models.SecurityQuestion{
			Question:   questions[2*i].String,
			AnswerHash: questions[2*i+1].String,
		}
	}
	return u, nil
}
