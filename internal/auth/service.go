package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"fleet-expenses/internal/apperr"
	"fleet-expenses/internal/models"
	"fleet-expenses/internal/validation"
)

// UserStore is the credential store the flow reads and writes. Lookups by
// email return an apperr.NotFound error when absent; InsertUser returns an
// apperr.Conflict error when the email is taken.
type UserStore interface {
	FindUserByEmail(ctx context.Context, email string) (models.User, error)
	InsertUser(ctx context.Context, user models.User) (models.User, error)
	UpdateUser(ctx context.Context, user models.User) error
}

// TokenType is the token_type reported with every issued token.
const TokenType = "bearer"

// Session is what a successful signup or login returns.
type Session struct {
	AccessToken string            `json:"access_token"`
	TokenType   string            `json:"token_type"`
	User        models.PublicUser `json:"user"`
}

// SignupInput is the signup request.
type SignupInput struct {
	Email           string  `json:"email" validate:"required,email,max=254"`
	Name            *string `json:"name" validate:"omitempty,max=100"`
	Password        string  `json:"password" validate:"required"`
	ConfirmPassword string  `json:"confirm_password" validate:"required,eqfield=Password"`
}

// ChangePasswordInput is the authenticated password change request.
type ChangePasswordInput struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

// QuestionUpdateInput replaces one security question slot.
type QuestionUpdateInput struct {
	Index           int    `json:"question_index" validate:"gte=0,lte=2"`
	Question        string `json:"question" validate:"required"`
	Answer          string `json:"answer" validate:"required"`
	CurrentPassword string `json:"current_password" validate:"required"`
}

// ResetInput completes a password reset with the three security answers.
type ResetInput struct {
	Email           string    `json:"email"`
	Answers         [3]string `json:"answers"`
	NewPassword     string    `json:"new_password"`
	ConfirmPassword string    `json:"confirm_password"`
}

// QuestionsView lists question texts without answers.
type QuestionsView struct {
	Question1            *string `json:"question_1"`
	Question2            *string `json:"question_2"`
	Question3            *string `json:"question_3"`
	HasSecurityQuestions bool    `json:"has_security_questions"`
}

// Service runs signup, login, identity and password recovery flows.
type Service struct {
	users  UserStore
	hasher Hasher
	tokens *TokenService
	log    *slog.Logger
}

// NewService constructs a Service.
func NewService(users UserStore, hasher Hasher, tokens *TokenService, log *slog.Logger) *Service {
	return &Service{users: users, hasher: hasher, tokens: tokens, log: log}
}

var errBadCredentials = apperr.New(apperr.Unauthenticated, "Incorrect email or password")

var errInvalidToken = apperr.New(apperr.Unauthenticated, "Could not validate credentials")

// CreateUser validates and stores a new account without issuing a token.
func (s *Service) CreateUser(ctx context.Context, in SignupInput) (models.User, error) {
	const op = "auth.Service.CreateUser"

	if err := validation.Struct(in); err != nil {
		return models.User{}, err
	}
	if err := CheckPasswordPolicy("password", in.Password); err != nil {
		return models.User{}, err
	}

	email := NormalizeEmail(in.Email)
	if _, err := s.users.FindUserByEmail(ctx, email); err == nil {
		return models.User{}, apperr.New(apperr.Conflict, "Email already registered")
	} else if !apperr.Is(err, apperr.NotFound) {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	var name *string
	if in.Name != nil && strings.TrimSpace(*in.Name) != "" {
		trimmed := strings.TrimSpace(*in.Name)
		name = &trimmed
	}

	// The store's unique index decides races between concurrent signups.
	user, err := s.users.InsertUser(ctx, models.User{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		IsActive:     true,
	})
	if err != nil {
		if apperr.Is(err, apperr.Conflict) {
			return models.User{}, apperr.New(apperr.Conflict, "Email already registered")
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("user registered", slog.Int64("user_id", user.ID))
	return user, nil
}

// Signup creates an account and returns a token for it.
func (s *Service) Signup(ctx context.Context, in SignupInput) (Session, error) {
	user, err := s.CreateUser(ctx, in)
	if err != nil {
		return Session{}, err
	}
	return s.session(user)
}

// Login checks credentials. Unknown email and wrong password fail identically.
func (s *Service) Login(ctx context.Context, identifier, password string) (Session, error) {
	const op = "auth.Service.Login"

	user, err := s.users.FindUserByEmail(ctx, NormalizeEmail(identifier))
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			return Session{}, errBadCredentials
		}
		return Session{}, fmt.Errorf("%s: %w", op, err)
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		s.log.Debug("password mismatch", slog.Int64("user_id", user.ID))
		return Session{}, errBadCredentials
	}
	if !user.IsActive {
		return Session{}, apperr.New(apperr.Invalid, "Inactive user")
	}

	return s.session(user)
}

// Authenticate resolves a bearer token to an active user.
func (s *Service) Authenticate(ctx context.Context, token string) (models.User, error) {
	const op = "auth.Service.Authenticate"

	subject, ok := s.tokens.Verify(token)
	if !ok {
		return models.User{}, errInvalidToken
	}
	user, err := s.users.FindUserByEmail(ctx, subject)
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			return models.User{}, errInvalidToken
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	if !user.IsActive {
		return models.User{}, apperr.New(apperr.Invalid, "Inactive user")
	}
	return user, nil
}

// WhoAmI returns the profile of the token's subject.
func (s *Service) WhoAmI(ctx context.Context, token string) (models.PublicUser, error) {
	user, err := s.Authenticate(ctx, token)
	if err != nil {
		return models.PublicUser{}, err
	}
	return user.Public(), nil
}

// ChangePassword replaces the password after re-checking the current one.
// Tokens issued earlier stay valid until they expire.
func (s *Service) ChangePassword(ctx context.Context, token string, in ChangePasswordInput) error {
	const op = "auth.Service.ChangePassword"

	user, err := s.Authenticate(ctx, token)
	if err != nil {
		return err
	}
	if err := validation.Struct(in); err != nil {
		return err
	}
	if !s.hasher.Verify(in.CurrentPassword, user.PasswordHash) {
		return apperr.New(apperr.Invalid, "Current password is incorrect")
	}
	if err := CheckPasswordPolicy("new_password", in.NewPassword); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	user.PasswordHash = hash
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("password changed", slog.Int64("user_id", user.ID))
	return nil
}

// SetSecurityQuestions validates and stores all three questions at once.
// On any validation failure nothing is written.
func (s *Service) SetSecurityQuestions(ctx context.Context, token string, set [3]QuestionAnswer) error {
	const op = "auth.Service.SetSecurityQuestions"

	user, err := s.Authenticate(ctx, token)
	if err != nil {
		return err
	}
	if err := checkQuestionSet(set); err != nil {
		return err
	}

	var slots [models.SecurityQuestionCount]models.SecurityQuestion
	for i, qa := range set {
		hash, err := s.hasher.Hash(NormalizeAnswer(qa.Answer))
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		slots[i] = models.SecurityQuestion{Question: strings.TrimSpace(qa.Question), AnswerHash: hash}
	}

	user.SecurityQuestions = slots
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("security questions set", slog.Int64("user_id", user.ID))
	return nil
}

// SecurityQuestions returns the caller's question texts.
func (s *Service) SecurityQuestions(ctx context.Context, token string) (QuestionsView, error) {
	user, err := s.Authenticate(ctx, token)
	if err != nil {
		return QuestionsView{}, err
	}
	return questionsView(user), nil
}

// UpdateSecurityQuestion replaces one slot after re-checking the password.
func (s *Service) UpdateSecurityQuestion(ctx context.Context, token string, in QuestionUpdateInput) error {
	const op = "auth.Service.UpdateSecurityQuestion"

	user, err := s.Authenticate(ctx, token)
	if err != nil {
		return err
	}
	if err := validation.Struct(in); err != nil {
		return err
	}
	if !s.hasher.Verify(in.CurrentPassword, user.PasswordHash) {
		return apperr.New(apperr.Invalid, "Current password is incorrect")
	}
	if err := checkQuestion("question", in.Question); err != nil {
		return err
	}
	if err := checkAnswer("answer", in.Answer); err != nil {
		return err
	}

	question := strings.TrimSpace(in.Question)
	for i, q := range user.SecurityQuestions {
		if i != in.Index && q.Question != "" && strings.EqualFold(q.Question, question) {
			return validation.Field("question", fmt.Sprintf("question duplicates question %d", i+1))
		}
	}

	hash, err := s.hasher.Hash(NormalizeAnswer(in.Answer))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	user.SecurityQuestions[in.Index] = models.SecurityQuestion{Question: question, AnswerHash: hash}
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("security question updated", slog.Int64("user_id", user.ID), slog.Int("index", in.Index))
	return nil
}

// RequestPasswordReset returns the three question texts for email.
//
// Unknown emails and accounts without questions fail with different kinds and
// messages, which reveals whether an account exists. That behaviour is kept
// as is pending a product decision.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (QuestionsView, error) {
	const op = "auth.Service.RequestPasswordReset"

	user, err := s.users.FindUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			return QuestionsView{}, apperr.New(apperr.NotFound,
				"If this email is registered and has security questions set up, they will be displayed.")
		}
		return QuestionsView{}, fmt.Errorf("%s: %w", op, err)
	}
	if !user.HasSecurityQuestions() {
		return QuestionsView{}, apperr.New(apperr.Invalid,
			"No security questions found for this account. Please contact support.")
	}
	return questionsView(user), nil
}

// ResetPassword verifies all three answers and then sets a new password.
func (s *Service) ResetPassword(ctx context.Context, in ResetInput) error {
	const op = "auth.Service.ResetPassword"

	invalidRequest := apperr.New(apperr.Invalid, "Invalid reset request")

	user, err := s.users.FindUserByEmail(ctx, NormalizeEmail(in.Email))
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			return invalidRequest
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if !user.HasSecurityQuestions() {
		return invalidRequest
	}

	matched := true
	for i, answer := range in.Answers {
		if !s.hasher.Verify(NormalizeAnswer(answer), user.SecurityQuestions[i].AnswerHash) {
			matched = false
		}
	}
	if !matched {
		s.log.Info("password reset answers rejected", slog.Int64("user_id", user.ID))
		return apperr.New(apperr.Invalid, "One or more security answers are incorrect")
	}

	if err := CheckPasswordPolicy("new_password", in.NewPassword); err != nil {
		return err
	}
	if in.NewPassword != in.ConfirmPassword {
		return validation.Field("confirm_password", "passwords do not match")
	}

	hash, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	user.PasswordHash = hash
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("password reset", slog.Int64("user_id", user.ID))
	return nil
}

func (s *Service) session(user models.User) (Session, error) {
	token, err := s.tokens.IssueFor(user.Email)
	if err != nil {
		return Session{}, fmt.Errorf("auth.Service.session: %w", err)
	}
	return Session{AccessToken: token, TokenType: TokenType, User: user.Public()}, nil
}

func questionsView(user models.User) QuestionsView {
	view := QuestionsView{HasSecurityQuestions: user.HasSecurityQuestions()}
	texts := []**string{&view.Question1, &view.Question2, &view.Question3}
	for i, q := range user.SecurityQuestions {
		if q.Question != "" {
			text := q.Question
			*texts[i] = &text
		}
	}
	return view
}
