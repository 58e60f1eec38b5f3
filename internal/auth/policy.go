package auth

import (
	"strconv"
	"strings"
	"unicode"

	"fleet-expenses/internal/apperr"
	"fleet-expenses/internal/validation"
)

const (
	minPasswordLen    = 8
	maxSecretBytes    = 72 // bcrypt rejects longer input
	minQuestionLen    = 5
	maxQuestionLen    = 500
	passwordSpecials  = "@$!%*?&"
	invalidInputTitle = "invalid input"
)

// NormalizeEmail case-folds an email for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeAnswer trims and lowercases a security answer so that verification
// ignores case and surrounding whitespace.
func NormalizeAnswer(answer string) string {
	return strings.ToLower(strings.TrimSpace(answer))
}

// CheckPasswordPolicy reports the first complexity rule password violates,
// attributed to field.
func CheckPasswordPolicy(field, password string) error {
	var lower, upper, digit, special bool
	for _, r := range password {
		switch {
		case 'a' <= r && r <= 'z':
			lower = true
		case 'A' <= r && r <= 'Z':
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		}
	}

	var msg string
	switch {
	case len([]rune(password)) < minPasswordLen:
		msg = "password must be at least 8 characters long"
	case len(password) > maxSecretBytes:
		msg = "password is too long"
	case !lower:
		msg = "password must contain at least one lowercase letter"
	case !upper:
		msg = "password must contain at least one uppercase letter"
	case !digit:
		msg = "password must contain at least one number"
	case !special:
		msg = "password must contain at least one special character (" + passwordSpecials + ")"
	default:
		return nil
	}
	return validation.Field(field, msg)
}

// QuestionAnswer is one question with its plaintext answer.
type QuestionAnswer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

func checkQuestion(field, question string) error {
	n := len([]rune(strings.TrimSpace(question)))
	if n < minQuestionLen || n > maxQuestionLen {
		return validation.Field(field, "question must be between 5 and 500 characters")
	}
	return nil
}

func checkAnswer(field, answer string) error {
	a := NormalizeAnswer(answer)
	if a == "" {
		return validation.Field(field, "answer must not be empty")
	}
	if len(a) > maxSecretBytes {
		return validation.Field(field, "answer is too long")
	}
	return nil
}

// checkQuestionSet validates three question/answer pairs, including that the
// questions are pairwise distinct ignoring case.
func checkQuestionSet(set [3]QuestionAnswer) error {
	fields := map[string]string{}
	seen := map[string]int{}
	for i, qa := range set {
		qField := "questions." + strconv.Itoa(i) + ".question"
		aField := "questions." + strconv.Itoa(i) + ".answer"
		if err := checkQuestion(qField, qa.Question); err != nil {
			mergeFields(fields, err)
		}
		if err := checkAnswer(aField, qa.Answer); err != nil {
			mergeFields(fields, err)
		}
		key := strings.ToLower(strings.TrimSpace(qa.Question))
		if j, dup := seen[key]; dup {
			fields[qField] = "question duplicates question " + strconv.Itoa(j+1)
		}
		seen[key] = i
	}
	if len(fields) > 0 {
		return apperr.Fields(invalidInputTitle, fields)
	}
	return nil
}

func mergeFields(dst map[string]string, err error) {
	if e, ok := apperr.As(err); ok {
		for k, v := range e.Fields {
			dst[k] = v
		}
	}
}
