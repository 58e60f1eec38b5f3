// Package attachments keeps expense receipts on disk under a single
// directory. Stored names are flat; callers never see absolute paths.
package attachments

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"

	"fleet-expenses/internal/apperr"
)

// DefaultMaxBytes is the upload limit used when none is configured.
const DefaultMaxBytes = 10 << 20

const maxBaseLen = 50

// AllowedExtensions lists the accepted file types, lowercase with the dot.
var AllowedExtensions = []string{".pdf", ".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tiff"}

// Store saves, opens and deletes attachments in one directory.
type Store struct {
	dir      string
	maxBytes int64
	newID    func() string
}

// NewStore creates dir if needed. A non-positive maxBytes means DefaultMaxBytes.
func NewStore(dir string, maxBytes int64) (*Store, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("attachments.NewStore: %w", err)
	}
	return &Store{
		dir:      dir,
		maxBytes: maxBytes,
		newID:    func() string { return uuid.NewString()[:8] },
	}, nil
}

// MaxBytes is the largest accepted upload.
func (s *Store) MaxBytes() int64 {
	return s.maxBytes
}

// Save validates filename, writes r to a fresh unique name and returns that
// name. Nothing is left on disk when it fails.
func (s *Store) Save(filename string, r io.Reader) (string, error) {
	const op = "attachments.Store.Save"

	if strings.TrimSpace(filename) == "" {
		return "", apperr.New(apperr.Invalid, "No filename provided")
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !slices.Contains(AllowedExtensions, ext) {
		return "", apperr.New(apperr.Invalid, "File type not allowed. Allowed types: %s", strings.Join(AllowedExtensions, ", "))
	}

	name := s.uniqueName(filename)
	path := filepath.Join(s.dir, name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	n, err := io.Copy(f, io.LimitReader(r, s.maxBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if n > s.maxBytes {
		os.Remove(path)
		return "", apperr.New(apperr.Invalid, "File too large. Maximum size: %dMB", s.maxBytes>>20)
	}
	return name, nil
}

// Open returns the stored file called name.
func (s *Store) Open(name string) (*os.File, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, apperr.New(apperr.NotFound, "Attachment not found")
	}
	return f, err
}

// Delete removes name. Deleting a missing file is not an error.
func (s *Store) Delete(name string) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("attachments.Store.Delete: %w", err)
	}
	return nil
}

func (s *Store) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", apperr.New(apperr.NotFound, "Attachment not found")
	}
	return filepath.Join(s.dir, name), nil
}

// uniqueName builds "<sanitised base>_<8 hex>.<ext>".
func (s *Store) uniqueName(filename string) string {
	base, ext := SanitizeFilename(filename)
	return base + "_" + s.newID() + ext
}

var unsafeChars = strings.NewReplacer(
	"<", "_", ">", "_", ":", "_", `"`, "_", "/", "_", `\`, "_", "|", "_", "?", "_", "*", "_",
)

// SanitizeFilename drops any directory part, replaces characters that are
// unsafe in file names and truncates the base name to 50 characters. It
// returns the base and the lowercased extension separately.
func SanitizeFilename(filename string) (base, ext string) {
	filename = filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	ext = strings.ToLower(filepath.Ext(filename))
	base = unsafeChars.Replace(strings.TrimSuffix(filename, filepath.Ext(filename)))
	if r := []rune(base); len(r) > maxBaseLen {
		base = string(r[:maxBaseLen])
	}
	if base == "" || base == "." {
		base = "attachment"
	}
	return base, ext
}
