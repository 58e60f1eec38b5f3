package handlers

import (
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"fleet-expenses/internal/apperr"
	"fleet-expenses/internal/auth"
	"fleet-expenses/internal/validation"
)

type loginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type questionsRequest struct {
	Questions []auth.QuestionAnswer `json:"questions"`
}

type resetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetVerifyRequest struct {
	Email           string   `json:"email" validate:"required,email"`
	Answers         []string `json:"answers"`
	NewPassword     string   `json:"new_password" validate:"required"`
	ConfirmPassword string   `json:"confirm_password" validate:"required"`
}

// Signup creates an account and returns its first token.
func (h *Handlers) Signup(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("op", "handlers.Signup"))

	var in auth.SignupInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.fail(w, log, err)
		return
	}
	session, err := h.auth.Signup(r.Context(), in)
	if err != nil {
		h.metrics.authEvent("signup", err)
		h.fail(w, log, err)
		return
	}
	h.metrics.authEvent("signup", nil)
	writeJSON(w, http.StatusCreated, session)
}

// Login accepts the OAuth2 password form (username, password) or the same
// credentials as JSON.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("op", "handlers.Login"))

	var in loginRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := decodeJSON(w, r, &in); err != nil {
			h.fail(w, log, err)
			return
		}
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
		if err := r.ParseForm(); err != nil {
			h.fail(w, log, validation.Field("body", "invalid form submission"))
			return
		}
		in.Username = r.PostFormValue("username")
		in.Password = r.PostFormValue("password")
	}

	identifier := in.Username
	if identifier == "" {
		identifier = in.Email
	}
	fields := map[string]string{}
	if strings.TrimSpace(identifier) == "" {
		fields["username"] = "field required"
	}
	if in.Password == "" {
		fields["password"] = "field required"
	}
	if len(fields) > 0 {
		h.fail(w, log, apperr.Fields("invalid input", fields))
		return
	}

	session, err := h.auth.Login(r.Context(), identifier, in.Password)
	h.metrics.authEvent("login", err)
	if err != nil {
		h.fail(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// Me returns the caller's profile.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("op", "handlers.Me"))

	token, err := bearerToken(r.Header.Get("Authorization"))
	if err != nil {
		h.fail(w, log, err)
		return
	}
	me, err := h.auth.WhoAmI(r.Context(), token)
	if err != nil {
		h.fail(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, me)
}

// SetSecurityQuestions handles both POST (first setup) and PUT (replace all
// three) of the security questions.
func (h *Handlers) SetSecurityQuestions(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("op", "handlers.SetSecurityQuestions"))

	token, err := bearerToken(r.Header.Get("Authorization"))
	if err != nil {
		h.fail(w, log, err)
		return
	}
	var in questionsRequest
	if err := decodeJSON(w, r, &in); err != nil {
		h.fail(w, log, err)
		return
	}
	if len(in.Questions) != 3 {
		h.fail(w, log, validation.Field("questions", "exactly 3 security questions are required"))
		return
	}

	var set [3]auth.QuestionAnswer
	copy(set[:], in.Questions)
	if err := h.auth.SetSecurityQuestions(r.Context(), token, set); err != nil {
		h.fail(w, log, err)
		return
	}

	if r.Method == http.MethodPut {
		message(w, "Security questions updated successfully")
		return
	}
	message(w, "Security questions set up successfully")
}

// GetSecurityQuestions lists the caller's question texts.
func (h *Handlers) GetSecurityQuestions(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("op", "handlers.GetSecurityQuestions"))

	token, err := bearerToken(r.Header.Get("Authorization"))
	if err != nil {
		h.fail(w, log, err)
		return
	}
	view, err := h.auth.SecurityQuestions(r.Context(), token)
	if err != nil {
		h.fail(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// UpdateSecurityQuestion replaces a single question after a password check.
func (h *Handlers) UpdateSecurityQuestion(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("op", "handlers.UpdateSecurityQuestion"))

	token, err := bearerToken(r.Header.Get("Authorization"))
	if err != nil {
		h.fail(w, log, err)
		return
	}
	var in auth.QuestionUpdateInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.fail(w, log, err)
		return
	}
	if err := h.auth.UpdateSecurityQuestion(r.Context(), token, in); err != nil {
		h.fail(w, log, err)
		return
	}
	message(w, fmt.Sprintf("Security question %d updated successfully", in.Index+1))
}

// ChangePassword replaces the caller's password.
func (h *Handlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("op", "handlers.ChangePassword"))

	token, err := bearerToken(r.Header.Get("Authorization"))
	if err != nil {
		h.fail(w, log, err)
		return
	}
	var in auth.ChangePasswordInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.fail(w, log, err)
		return
	}
	if err := h.auth.ChangePassword(r.Context(), token, in); err != nil {
		h.fail(w, log, err)
		return
	}
	message(w, "Password changed successfully")
}

// PasswordResetRequest returns the security questions for an email.
func (h *Handlers) PasswordResetRequest(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("op", "handlers.PasswordResetRequest"))

	var in resetRequest
	if err := decodeJSON(w, r, &in); err != nil {
		h.fail(w, log, err)
		return
	}
	if err := validation.Struct(in); err != nil {
		h.fail(w, log, err)
		return
	}
	view, err := h.auth.RequestPasswordReset(r.Context(), in.Email)
	if err != nil {
		h.fail(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// PasswordResetVerify checks the three answers and sets a new password.
func (h *Handlers) PasswordResetVerify(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("op", "handlers.PasswordResetVerify"))

	var in resetVerifyRequest
	if err := decodeJSON(w, r, &in); err != nil {
		h.fail(w, log, err)
		return
	}
	if err := validation.Struct(in); err != nil {
		h.fail(w, log, err)
		return
	}
	if len(in.Answers) != 3 {
		h.fail(w, log, validation.Field("answers", "exactly 3 answers are required"))
		return
	}

	reset := auth.ResetInput{Email: in.Email, NewPassword: in.NewPassword, ConfirmPassword: in.ConfirmPassword}
	copy(reset.Answers[:], in.Answers)
	err := h.auth.ResetPassword(r.Context(), reset)
	h.metrics.authEvent("password_reset", err)
	if err != nil {
		h.fail(w, log, err)
		return
	}
	message(w, "Password reset successfully")
}
