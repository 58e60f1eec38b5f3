package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"fleet-expenses/internal/apperr"
	"fleet-expenses/internal/attachments"
	"fleet-expenses/internal/auth"
	"fleet-expenses/internal/models"
	"fleet-expenses/internal/reports"
	"fleet-expenses/internal/storage"
	"fleet-expenses/internal/validation"
)

// Context key type to avoid collisions.
type contextKey string

// UserContextKey is the context key for the authenticated user.
const UserContextKey contextKey = "user"

const maxJSONBody = 1 << 20

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	db      *storage.DB
	auth    *auth.Service
	files   *attachments.Store
	reports *reports.Service
	log     *slog.Logger
	metrics *metrics
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *storage.DB, authSvc *auth.Service, files *attachments.Store, log *slog.Logger) *Handlers {
	return &Handlers{
		db:      db,
		auth:    authSvc,
		files:   files,
		reports: reports.NewService(db),
		log:     log,
		metrics: newMetrics(),
	}
}

// GetUserFromContext retrieves the authenticated user from request context.
func GetUserFromContext(r *http.Request) (models.User, bool) {
	user, ok := r.Context().Value(UserContextKey).(models.User)
	return user, ok
}

// AuthMiddleware rejects requests without a valid bearer token and puts the
// token's user into the request context.
func (h *Handlers) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := h.log.With(slog.String("op", "handlers.AuthMiddleware"))

		token, err := bearerToken(r.Header.Get("Authorization"))
		if err != nil {
			log.Debug("authorization header rejected", slog.String("error", err.Error()), slog.String("path", r.URL.Path))
			h.fail(w, log, err)
			return
		}
		user, err := h.auth.Authenticate(r.Context(), token)
		if err != nil {
			h.fail(w, log, err)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

var errNotAuthenticated = apperr.New(apperr.Unauthenticated, "Not authenticated")

func bearerToken(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", errNotAuthenticated
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errNotAuthenticated
	}
	return parts[1], nil
}

// Root answers GET / with a greeting.
func (h *Handlers) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Welcome to the Fleet Expenses API"})
}

// Health reports whether the database is reachable.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		h.log.Error("health check failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// writeJSON writes JSON response with status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorBody struct {
	Detail string            `json:"detail"`
	Errors map[string]string `json:"errors,omitempty"`
}

// writeError sends an error message.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Detail: msg})
}

func message(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}

// fail maps err to a status by its apperr kind. Anything without a kind is
// logged and hidden behind a generic 500.
func (h *Handlers) fail(w http.ResponseWriter, log *slog.Logger, err error) {
	e, ok := apperr.As(err)
	if !ok || e.Kind == apperr.Internal {
		log.Error("request failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	switch e.Kind {
	case apperr.Validation:
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Detail: e.Message, Errors: e.Fields})
	case apperr.Invalid, apperr.Conflict:
		writeError(w, http.StatusBadRequest, e.Message)
	case apperr.Unauthenticated:
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, http.StatusUnauthorized, e.Message)
	case apperr.NotFound:
		writeError(w, http.StatusNotFound, e.Message)
	}
}

// decodeJSON reads a JSON request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return apperr.New(apperr.Invalid, "Request body too large")
		case errors.Is(err, io.EOF):
			return validation.Field("body", "field required")
		default:
			return validation.Field("body", "invalid JSON: "+err.Error())
		}
	}
	return nil
}

// pathID parses the {id} path value.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, validation.Field("id", "must be a positive integer")
	}
	return id, nil
}

// queryInt reads an optional integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, validation.Field(name, fmt.Sprintf("%q is not a valid integer", raw))
	}
	return n, nil
}

// queryCompany reads an optional company query parameter.
func queryCompany(r *http.Request) (models.Company, error) {
	c := models.Company(r.URL.Query().Get("company"))
	if c != "" && !c.Valid() {
		return "", validation.Field("company", "must be one of: Swatch SWS")
	}
	return c, nil
}
