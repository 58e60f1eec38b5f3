package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"fleet-expenses/internal/apperr"
)

// multipartOverhead leaves room for boundaries and headers around the file.
const multipartOverhead = 1 << 20

// UploadAttachment stores the multipart "file" field and links it to the
// expense, replacing any earlier attachment.
func (h *Handlers) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("op", "handlers.UploadAttachment"))

	id, err := pathID(r)
	if err != nil {
		h.fail(w, log, err)
		return
	}
	expense, err := h.db.GetExpense(r.Context(), id)
	if err != nil {
		h.fail(w, log, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.files.MaxBytes()+multipartOverhead)
	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.fail(w, log, apperr.New(apperr.Invalid, "File too large. Maximum size: %dMB", h.files.MaxBytes()>>20))
			return
		}
		h.fail(w, log, apperr.Fields("invalid input", map[string]string{"file": "field required"}))
		return
	}
	defer file.Close()

	name, err := h.files.Save(header.Filename, file)
	if err != nil {
		h.fail(w, log, err)
		return
	}
	if err := h.db.SetAttachment(r.Context(), id, &name); err != nil {
		_ = h.files.Delete(name)
		h.fail(w, log, err)
		return
	}
	if old := expense.AttachmentPath; old != nil && *old != name {
		if err := h.files.Delete(*old); err != nil {
			log.Warn("previous attachment not removed", slog.String("name", *old), slog.String("error", err.Error()))
		}
	}

	updated, err := h.db.GetExpense(r.Context(), id)
	if err != nil {
		h.fail(w, log, err)
		return
	}
	log.Info("attachment stored", slog.Int64("expense_id", id), slog.String("name", name))
	writeJSON(w, http.StatusOK, updated)
}

// DownloadAttachment streams the expense's attachment.
func (h *Handlers) DownloadAttachment(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("op", "handlers.DownloadAttachment"))

	id, err := pathID(r)
	if err != nil {
		h.fail(w, log, err)
		return
	}
	expense, err := h.db.GetExpense(r.Context(), id)
	if err != nil {
		h.fail(w, log, err)
		return
	}
	if expense.AttachmentPath == nil {
		h.fail(w, log, apperr.New(apperr.NotFound, "No attachment found for this expense"))
		return
	}

	f, err := h.files.Open(*expense.AttachmentPath)
	if err != nil {
		h.fail(w, log, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		h.fail(w, log, err)
		return
	}
	w.Header().Set("Content-Disposition", "attachment; filename=\""+info.Name()+"\"")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

// DeleteAttachment removes the expense's attachment file and clears the link.
func (h *Handlers) DeleteAttachment(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("op", "handlers.DeleteAttachment"))

	id, err := pathID(r)
	if err != nil {
		h.fail(w, log, err)
		return
	}
	expense, err := h.db.GetExpense(r.Context(), id)
	if err != nil {
		h.fail(w, log, err)
		return
	}
	if expense.AttachmentPath == nil {
		h.fail(w, log, apperr.New(apperr.NotFound, "No attachment found for this expense"))
		return
	}
	if err := h.files.Delete(*expense.AttachmentPath); err != nil {
		h.fail(w, log, err)
		return
	}
	if err := h.db.SetAttachment(r.Context(), id, nil); err != nil {
		h.fail(w, log, err)
		return
	}
	message(w, "Attachment deleted successfully")
}
