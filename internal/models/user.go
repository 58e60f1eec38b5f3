package models

import "time"

// SecurityQuestionCount is the number of recovery questions an account holds.
const SecurityQuestionCount = 3

// SecurityQuestion is one recovery question. AnswerHash holds the bcrypt hash
// of the normalised answer; both fields are empty when the slot is unset.
type SecurityQuestion struct {
	Question   string
	AnswerHash string
}

// Set reports whether both the question text and the answer hash are present.
func (q SecurityQuestion) Set() bool {
	return q.Question != "" && q.AnswerHash != ""
}

// User represents a user account. Values are passed by copy; the auth service
// is the only place that produces modified copies for persistence.
type User struct {
	ID                int64
	Email             string
	Name              *string
	PasswordHash      string
	IsActive          bool
	CreatedAt         time.Time
	UpdatedAt         *time.Time
	SecurityQuestions [SecurityQuestionCount]SecurityQuestion
}

// HasSecurityQuestions is true only when all three slots are fully set.
func (u User) HasSecurityQuestions() bool {
	for _, q := range u.SecurityQuestions {
		if !q.Set() {
			return false
		}
	}
	return true
}

// PublicUser is the projection of a User that is safe to return to clients.
type PublicUser struct {
	ID                   int64      `json:"id"`
	Email                string     `json:"email"`
	Name                 *string    `json:"name"`
	IsActive             bool       `json:"is_active"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            *time.Time `json:"updated_at"`
	HasSecurityQuestions bool       `json:"has_security_questions"`
}

// Public returns the client-facing projection of u.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:                   u.ID,
		Email:                u.Email,
		Name:                 u.Name,
		IsActive:             u.IsActive,
		CreatedAt:            u.CreatedAt,
		UpdatedAt:            u.UpdatedAt,
		HasSecurityQuestions: u.HasSecurityQuestions(),
	}
}
