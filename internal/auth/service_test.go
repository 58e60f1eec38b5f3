package auth

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"fleet-expenses/internal/apperr"
	"fleet-expenses/internal/models"
)

// memStore is an in-memory UserStore keyed by email.
type memStore struct {
	mu      sync.Mutex
	nextID  int64
	users   map[string]models.User
	updates int
}

func newMemStore() *memStore {
	return &memStore{users: map[string]models.User{}}
}

func (m *memStore) FindUserByEmail(_ context.Context, email string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[email]
	if !ok {
		return models.User{}, apperr.New(apperr.NotFound, "user not found")
	}
	return u, nil
}

func (m *memStore) InsertUser(_ context.Context, user models.User) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.Email]; ok {
		return models.User{}, apperr.New(apperr.Conflict, "email taken")
	}
	m.nextID++
	user.ID = m.nextID
	user.CreatedAt = time.Now()
	m.users[user.Email] = user
	return user, nil
}

func (m *memStore) UpdateUser(_ context.Context, user models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
	m.users[user.Email] = user
	return nil
}

var strongPassword = "Strong1!"

var threeQuestions = [3]QuestionAnswer{
	{Question: "What is your favourite color?", Answer: "Blue"},
	{Question: "What was your first pet's name?", Answer: "Rex"},
	{Question: "In which city were you born?", Answer: "Chicago"},
}

// ServiceTestSuite exercises the authentication flow against memStore.
type ServiceTestSuite struct {
	suite.Suite
	store  *memStore
	tokens *TokenService
	svc    *Service
	ctx    context.Context
}

func (suite *ServiceTestSuite) SetupTest() {
	tokens, err := NewTokenService(TokenConfig{Secret: "suite-secret", TTL: 30 * time.Minute})
	require.NoError(suite.T(), err)

	suite.store = newMemStore()
	suite.tokens = tokens
	suite.svc = NewService(suite.store, NewBcryptHasher(bcrypt.MinCost), tokens, slog.New(slog.NewTextHandler(io.Discard, nil)))
	suite.ctx = context.Background()
}

func (suite *ServiceTestSuite) signup(email string) Session {
	session, err := suite.svc.Signup(suite.ctx, SignupInput{Email: email, Password: strongPassword, ConfirmPassword: strongPassword})
	require.NoError(suite.T(), err)
	return session
}

func (suite *ServiceTestSuite) TestSignupLowercasesEmailAndIssuesToken() {
	session := suite.signup("Test@Example.com")

	assert.Equal(suite.T(), "test@example.com", session.User.Email)
	assert.Equal(suite.T(), "bearer", session.TokenType)
	assert.True(suite.T(), session.User.IsActive)
	assert.False(suite.T(), session.User.HasSecurityQuestions)

	sub, ok := suite.tokens.Verify(session.AccessToken)
	require.True(suite.T(), ok)
	assert.Equal(suite.T(), "test@example.com", sub)
}

func (suite *ServiceTestSuite) TestSignupThenLoginIsCaseInsensitive() {
	suite.signup("Test@Example.com")

	session, err := suite.svc.Login(suite.ctx, "test@example.com", strongPassword)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "test@example.com", session.User.Email)

	_, err = suite.svc.Login(suite.ctx, "  TEST@EXAMPLE.COM ", strongPassword)
	assert.NoError(suite.T(), err)
}

func (suite *ServiceTestSuite) TestSignupDuplicateIsConflict() {
	suite.signup("dup@example.com")
	original := suite.store.users["dup@example.com"].PasswordHash

	_, err := suite.svc.Signup(suite.ctx, SignupInput{Email: "DUP@example.com", Password: "Other2@pass", ConfirmPassword: "Other2@pass"})
	require.Error(suite.T(), err)
	assert.Equal(suite.T(), apperr.Conflict, apperr.KindOf(err))
	assert.Equal(suite.T(), original, suite.store.users["dup@example.com"].PasswordHash)
	assert.Len(suite.T(), suite.store.users, 1)
}

func (suite *ServiceTestSuite) TestSignupValidation() {
	cases := []struct {
		name  string
		in    SignupInput
		field string
	}{
		{"weak password", SignupInput{Email: "a@example.com", Password: "weak", ConfirmPassword: "weak"}, "password"},
		{"no upper", SignupInput{Email: "a@example.com", Password: "strong1!", ConfirmPassword: "strong1!"}, "password"},
		{"no lower", SignupInput{Email: "a@example.com", Password: "STRONG1!", ConfirmPassword: "STRONG1!"}, "password"},
		{"no digit", SignupInput{Email: "a@example.com", Password: "Strongg!", ConfirmPassword: "Strongg!"}, "password"},
		{"no special", SignupInput{Email: "a@example.com", Password: "Strong12", ConfirmPassword: "Strong12"}, "password"},
		{"mismatch", SignupInput{Email: "a@example.com", Password: strongPassword, ConfirmPassword: "Strong1?"}, "confirm_password"},
		{"bad email", SignupInput{Email: "not-an-email", Password: strongPassword, ConfirmPassword: strongPassword}, "email"},
		{"long email", SignupInput{Email: strings.Repeat("a", 250) + "@example.com", Password: strongPassword, ConfirmPassword: strongPassword}, "email"},
	}
	for _, tc := range cases {
		suite.Run(tc.name, func() {
			_, err := suite.svc.Signup(suite.ctx, tc.in)
			e, ok := apperr.As(err)
			require.True(suite.T(), ok, "expected apperr, got %v", err)
			assert.Equal(suite.T(), apperr.Validation, e.Kind)
			assert.Contains(suite.T(), e.Fields, tc.field)
		})
	}
	assert.Empty(suite.T(), suite.store.users, "validation failures must not persist")
}

func (suite *ServiceTestSuite) TestLoginFailuresAreIndistinguishable() {
	suite.signup("driver@example.com")

	_, errWrong := suite.svc.Login(suite.ctx, "driver@example.com", "Wrong1!pass")
	_, errMissing := suite.svc.Login(suite.ctx, "nobody@example.com", strongPassword)

	require.Error(suite.T(), errWrong)
	require.Error(suite.T(), errMissing)
	assert.Equal(suite.T(), apperr.Unauthenticated, apperr.KindOf(errWrong))
	assert.Equal(suite.T(), errWrong.Error(), errMissing.Error())
}

func (suite *ServiceTestSuite) TestLoginInactiveUser() {
	suite.signup("driver@example.com")
	u := suite.store.users["driver@example.com"]
	u.IsActive = false
	suite.store.users[u.Email] = u

	_, err := suite.svc.Login(suite.ctx, "driver@example.com", strongPassword)
	assert.Equal(suite.T(), apperr.Invalid, apperr.KindOf(err))
}

func (suite *ServiceTestSuite) TestWhoAmI() {
	session := suite.signup("driver@example.com")

	me, err := suite.svc.WhoAmI(suite.ctx, session.AccessToken)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "driver@example.com", me.Email)
	assert.False(suite.T(), me.HasSecurityQuestions)

	_, err = suite.svc.WhoAmI(suite.ctx, "garbage")
	assert.Equal(suite.T(), apperr.Unauthenticated, apperr.KindOf(err))
}

func (suite *ServiceTestSuite) TestWhoAmIReportsSecurityQuestions() {
	session := suite.signup("driver@example.com")
	require.NoError(suite.T(), suite.svc.SetSecurityQuestions(suite.ctx, session.AccessToken, threeQuestions))

	me, err := suite.svc.WhoAmI(suite.ctx, session.AccessToken)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), me.HasSecurityQuestions)

	u := suite.store.users["driver@example.com"]
	u.SecurityQuestions[2] = models.SecurityQuestion{}
	suite.store.users[u.Email] = u

	me, err = suite.svc.WhoAmI(suite.ctx, session.AccessToken)
	require.NoError(suite.T(), err)
	assert.False(suite.T(), me.HasSecurityQuestions, "two configured questions are reported as not configured")
}

func (suite *ServiceTestSuite) TestWhoAmIForDeletedSubject() {
	token, err := suite.tokens.IssueFor("ghost@example.com")
	require.NoError(suite.T(), err)

	_, err = suite.svc.WhoAmI(suite.ctx, token)
	assert.Equal(suite.T(), apperr.Unauthenticated, apperr.KindOf(err))
}

func (suite *ServiceTestSuite) TestChangePassword() {
	session := suite.signup("driver@example.com")

	err := suite.svc.ChangePassword(suite.ctx, session.AccessToken, ChangePasswordInput{CurrentPassword: "Wrong1!x", NewPassword: "Newer2@pass"})
	assert.Equal(suite.T(), apperr.Invalid, apperr.KindOf(err))

	err = suite.svc.ChangePassword(suite.ctx, session.AccessToken, ChangePasswordInput{CurrentPassword: strongPassword, NewPassword: "weak"})
	assert.Equal(suite.T(), apperr.Validation, apperr.KindOf(err))

	err = suite.svc.ChangePassword(suite.ctx, session.AccessToken, ChangePasswordInput{CurrentPassword: strongPassword, NewPassword: "Newer2@pass"})
	require.NoError(suite.T(), err)

	_, err = suite.svc.Login(suite.ctx, "driver@example.com", strongPassword)
	assert.Error(suite.T(), err)
	_, err = suite.svc.Login(suite.ctx, "driver@example.com", "Newer2@pass")
	assert.NoError(suite.T(), err)

	_, err = suite.svc.WhoAmI(suite.ctx, session.AccessToken)
	assert.NoError(suite.T(), err, "earlier tokens stay valid after a password change")
}

func (suite *ServiceTestSuite) TestSetSecurityQuestionsValidation() {
	session := suite.signup("driver@example.com")

	dup := threeQuestions
	dup[2].Question = "WHAT IS YOUR FAVOURITE COLOR?"
	err := suite.svc.SetSecurityQuestions(suite.ctx, session.AccessToken, dup)
	e, ok := apperr.As(err)
	require.True(suite.T(), ok)
	assert.Equal(suite.T(), apperr.Validation, e.Kind)
	assert.Contains(suite.T(), e.Fields, "questions.2.question")

	short := threeQuestions
	short[0].Question = "Hi?"
	err = suite.svc.SetSecurityQuestions(suite.ctx, session.AccessToken, short)
	assert.Equal(suite.T(), apperr.Validation, apperr.KindOf(err))

	blank := threeQuestions
	blank[1].Answer = "   "
	err = suite.svc.SetSecurityQuestions(suite.ctx, session.AccessToken, blank)
	assert.Equal(suite.T(), apperr.Validation, apperr.KindOf(err))

	assert.Zero(suite.T(), suite.store.updates, "failed setups must not write")
	assert.False(suite.T(), suite.store.users["driver@example.com"].HasSecurityQuestions())
}

func (suite *ServiceTestSuite) TestSecurityQuestionsView() {
	session := suite.signup("driver@example.com")

	view, err := suite.svc.SecurityQuestions(suite.ctx, session.AccessToken)
	require.NoError(suite.T(), err)
	assert.Nil(suite.T(), view.Question1)
	assert.False(suite.T(), view.HasSecurityQuestions)

	require.NoError(suite.T(), suite.svc.SetSecurityQuestions(suite.ctx, session.AccessToken, threeQuestions))

	view, err = suite.svc.SecurityQuestions(suite.ctx, session.AccessToken)
	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), view.Question2)
	assert.Equal(suite.T(), threeQuestions[1].Question, *view.Question2)
	assert.True(suite.T(), view.HasSecurityQuestions)
}

func (suite *ServiceTestSuite) TestUpdateSecurityQuestion() {
	session := suite.signup("driver@example.com")
	require.NoError(suite.T(), suite.svc.SetSecurityQuestions(suite.ctx, session.AccessToken, threeQuestions))

	in := QuestionUpdateInput{Index: 1, Question: "What was your first car?", Answer: "Civic", CurrentPassword: "Wrong1!x"}
	assert.Equal(suite.T(), apperr.Invalid, apperr.KindOf(suite.svc.UpdateSecurityQuestion(suite.ctx, session.AccessToken, in)))

	in.CurrentPassword = strongPassword
	in.Question = threeQuestions[0].Question
	assert.Equal(suite.T(), apperr.Validation, apperr.KindOf(suite.svc.UpdateSecurityQuestion(suite.ctx, session.AccessToken, in)))

	in.Index = 3
	in.Question = "What was your first car?"
	assert.Equal(suite.T(), apperr.Validation, apperr.KindOf(suite.svc.UpdateSecurityQuestion(suite.ctx, session.AccessToken, in)))

	in.Index = 1
	require.NoError(suite.T(), suite.svc.UpdateSecurityQuestion(suite.ctx, session.AccessToken, in))

	err := suite.svc.ResetPassword(suite.ctx, ResetInput{
		Email:           "driver@example.com",
		Answers:         [3]string{"blue", "civic", "chicago"},
		NewPassword:     "Newer2@pass",
		ConfirmPassword: "Newer2@pass",
	})
	assert.NoError(suite.T(), err)
}

func (suite *ServiceTestSuite) TestRequestPasswordReset() {
	session := suite.signup("driver@example.com")

	_, err := suite.svc.RequestPasswordReset(suite.ctx, "nobody@example.com")
	assert.Equal(suite.T(), apperr.NotFound, apperr.KindOf(err))

	_, err = suite.svc.RequestPasswordReset(suite.ctx, "driver@example.com")
	assert.Equal(suite.T(), apperr.Invalid, apperr.KindOf(err))

	require.NoError(suite.T(), suite.svc.SetSecurityQuestions(suite.ctx, session.AccessToken, threeQuestions))

	view, err := suite.svc.RequestPasswordReset(suite.ctx, "Driver@Example.com")
	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), view.Question3)
	assert.Equal(suite.T(), threeQuestions[2].Question, *view.Question3)
	assert.True(suite.T(), view.HasSecurityQuestions)
}

func (suite *ServiceTestSuite) TestResetPasswordNormalisesAnswers() {
	session := suite.signup("driver@example.com")
	require.NoError(suite.T(), suite.svc.SetSecurityQuestions(suite.ctx, session.AccessToken, threeQuestions))

	err := suite.svc.ResetPassword(suite.ctx, ResetInput{
		Email:           "driver@example.com",
		Answers:         [3]string{"blue", " REX ", "chicago"},
		NewPassword:     "Newer2@pass",
		ConfirmPassword: "Newer2@pass",
	})
	require.NoError(suite.T(), err)

	_, err = suite.svc.Login(suite.ctx, "driver@example.com", "Newer2@pass")
	assert.NoError(suite.T(), err)
}

func (suite *ServiceTestSuite) TestResetPasswordAnyWrongAnswerFails() {
	session := suite.signup("driver@example.com")
	require.NoError(suite.T(), suite.svc.SetSecurityQuestions(suite.ctx, session.AccessToken, threeQuestions))
	before := suite.store.users["driver@example.com"].PasswordHash

	for i := range 3 {
		answers := [3]string{"blue", "rex", "chicago"}
		answers[i] = "wrong"
		err := suite.svc.ResetPassword(suite.ctx, ResetInput{
			Email:           "driver@example.com",
			Answers:         answers,
			NewPassword:     "Newer2@pass",
			ConfirmPassword: "Newer2@pass",
		})
		assert.Equal(suite.T(), apperr.Invalid, apperr.KindOf(err), "wrong answer %d", i)
	}
	assert.Equal(suite.T(), before, suite.store.users["driver@example.com"].PasswordHash)
}

func (suite *ServiceTestSuite) TestResetPasswordPolicyAndConfirmation() {
	session := suite.signup("driver@example.com")
	require.NoError(suite.T(), suite.svc.SetSecurityQuestions(suite.ctx, session.AccessToken, threeQuestions))

	in := ResetInput{Email: "driver@example.com", Answers: [3]string{"Blue", "Rex", "Chicago"}, NewPassword: "weak", ConfirmPassword: "weak"}
	assert.Equal(suite.T(), apperr.Validation, apperr.KindOf(suite.svc.ResetPassword(suite.ctx, in)))

	in.NewPassword, in.ConfirmPassword = "Newer2@pass", "Newer3@pass"
	assert.Equal(suite.T(), apperr.Validation, apperr.KindOf(suite.svc.ResetPassword(suite.ctx, in)))
}

func (suite *ServiceTestSuite) TestResetPasswordWithoutQuestions() {
	suite.signup("driver@example.com")

	err := suite.svc.ResetPassword(suite.ctx, ResetInput{Email: "driver@example.com", NewPassword: "Newer2@pass", ConfirmPassword: "Newer2@pass"})
	assert.Equal(suite.T(), apperr.Invalid, apperr.KindOf(err))

	err = suite.svc.ResetPassword(suite.ctx, ResetInput{Email: "nobody@example.com", NewPassword: "Newer2@pass", ConfirmPassword: "Newer2@pass"})
	assert.Equal(suite.T(), apperr.Invalid, apperr.KindOf(err))
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceTestSuite))
}
