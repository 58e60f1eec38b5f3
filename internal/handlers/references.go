package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"fleet-expenses/internal/models"
	"fleet-expenses/internal/validation"
)

// referenceRequest accepts either "name" or "number"; the kind decides which
// one is read.
type referenceRequest struct {
	Name   *string `json:"name"`
	Number *string `json:"number"`
}

func (req referenceRequest) identifier(kind models.ReferenceKind) (string, error) {
	field := kind.IdentifierField()
	raw := req.Name
	if field == "number" {
		raw = req.Number
	}
	if raw == nil {
		return "", validation.Field(field, "field required")
	}
	value := strings.TrimSpace(*raw)
	if value == "" {
		return "", validation.Field(field, "must not be blank")
	}
	if limit := kind.MaxIdentifierLen(); utf8.RuneCountInString(value) > limit {
		return "", validation.Field(field, fmt.Sprintf("must be at most %d characters", limit))
	}
	return value, nil
}

// CreateReference returns a handler that adds an entity of kind.
func (h *Handlers) CreateReference(kind models.ReferenceKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := h.log.With(slog.String("op", "handlers.CreateReference"), slog.String("kind", string(kind)))

		var in referenceRequest
		if err := decodeJSON(w, r, &in); err != nil {
			h.fail(w, log, err)
			return
		}
		identifier, err := in.identifier(kind)
		if err != nil {
			h.fail(w, log, err)
			return
		}
		ref, err := h.db.CreateReference(r.Context(), kind, identifier)
		if err != nil {
			h.fail(w, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, ref)
	}
}

// ListReferences returns a handler that pages through entities of kind.
func (h *Handlers) ListReferences(kind models.ReferenceKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := h.log.With(slog.String("op", "handlers.ListReferences"), slog.String("kind", string(kind)))

		skip, err := queryInt(r, "skip", 0)
		if err != nil {
			h.fail(w, log, err)
			return
		}
		if skip < 0 {
			h.fail(w, log, validation.Field("skip", "must be greater than or equal to 0"))
			return
		}
		limit, err := queryInt(r, "limit", defaultListLimit)
		if err != nil {
			h.fail(w, log, err)
			return
		}
		if limit < 1 || limit > maxListLimit {
			h.fail(w, log, validation.Field("limit", fmt.Sprintf("must be between 1 and %d", maxListLimit)))
			return
		}

		refs, err := h.db.ListReferences(r.Context(), kind, skip, limit)
		if err != nil {
			h.fail(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, refs)
	}
}

// GetReference returns a handler that fetches one entity of kind.
func (h *Handlers) GetReference(kind models.ReferenceKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := h.log.With(slog.String("op", "handlers.GetReference"), slog.String("kind", string(kind)))

		id, err := pathID(r)
		if err != nil {
			h.fail(w, log, err)
			return
		}
		ref, err := h.db.GetReference(r.Context(), kind, id)
		if err != nil {
			h.fail(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, ref)
	}
}

// UpdateReference returns a handler that renames an entity of kind.
func (h *Handlers) UpdateReference(kind models.ReferenceKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := h.log.With(slog.String("op", "handlers.UpdateReference"), slog.String("kind", string(kind)))

		id, err := pathID(r)
		if err != nil {
			h.fail(w, log, err)
			return
		}
		var in referenceRequest
		if err := decodeJSON(w, r, &in); err != nil {
			h.fail(w, log, err)
			return
		}
		identifier, err := in.identifier(kind)
		if err != nil {
			h.fail(w, log, err)
			return
		}
		ref, err := h.db.UpdateReference(r.Context(), kind, id, identifier)
		if err != nil {
			h.fail(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, ref)
	}
}

// DeleteReference returns a handler that removes an unreferenced entity.
func (h *Handlers) DeleteReference(kind models.ReferenceKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := h.log.With(slog.String("op", "handlers.DeleteReference"), slog.String("kind", string(kind)))

		id, err := pathID(r)
		if err != nil {
			h.fail(w, log, err)
			return
		}
		if err := h.db.DeleteReference(r.Context(), kind, id); err != nil {
			h.fail(w, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
