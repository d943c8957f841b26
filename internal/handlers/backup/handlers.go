// Package backup serves a zip export of the data documents and restores one.
package backup

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	apphttp "cashflow/internal/http"
	"cashflow/internal/services/dataloader"
	"cashflow/internal/services/storage"
	"cashflow/internal/services/templatestore"
)

// maxUploadBytes limits restore archives
const maxUploadBytes = 50 << 20

// Documents are the files carried by a backup archive
var Documents = []string{dataloader.TransactionsFile, templatestore.RecurringFile}

// ErrInvalidArchive marks uploads that are rejected before anything is written
var ErrInvalidArchive = errors.New("invalid backup archive")

// Handler serves backup and restore
type Handler struct {
	store  *storage.Storage
	reload func() error
	logger *slog.Logger
	now    func() time.Time
}

// New creates a backup handler. reload runs after a restore so in-memory state
// follows the restored documents.
func New(store *storage.Storage, reload func() error, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{store: store, reload: reload, logger: logger, now: time.Now}
}

// RegisterRoutes registers the backup routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/backup", h.handleBackup)
	r.Post("/restore", h.handleRestore)
}

// Archive writes the plaintext documents into a zip archive. Missing documents are skipped.
func (h *Handler) Archive() ([]byte, int, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	written := 0
	for _, name := range Documents {
		data, err := h.store.ReadFile(name)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, 0, fmt.Errorf("reading %s: %w", name, err)
		}

		f, err := zw.Create(name)
		if err != nil {
			return nil, 0, err
		}
		if _, err := f.Write(data); err != nil {
			return nil, 0, err
		}
		written++
	}

	if err := zw.Close(); err != nil {
		return nil, 0, err
	}
	return buf.Bytes(), written, nil
}

func (h *Handler) handleBackup(w http.ResponseWriter, r *http.Request) {
	archive, count, err := h.Archive()
	if err != nil {
		apphttp.ErrorResponse(w, r, h.logger, "failed to create backup: "+err.Error(), http.StatusInternalServerError)
		return
	}

	filename := fmt.Sprintf("cashflow_backup_%s.zip", h.now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(archive)

	h.logger.Info("backup created", "documents", count, "bytes", len(archive))
}

// Restore writes the known documents found in archive back to storage and
// returns their names. Every document is checked before anything is written.
func (h *Handler) Restore(archive []byte) ([]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}

	found := make(map[string][]byte)
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		// only the base name counts, so entries cannot escape the data directory
		name := filepath.Base(f.Name)
		if !slices.Contains(Documents, name) {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: opening %s: %v", ErrInvalidArchive, f.Name, err)
		}
		data, err := io.ReadAll(io.LimitReader(rc, maxUploadBytes))
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: reading %s: %v", ErrInvalidArchive, f.Name, err)
		}

		var doc []json.RawMessage
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: %s is not a JSON array", ErrInvalidArchive, name)
		}
		found[name] = data
	}

	if len(found) == 0 {
		return nil, fmt.Errorf("%w: no documents found (want %s)", ErrInvalidArchive, strings.Join(Documents, ", "))
	}

	var restored []string
	for _, name := range Documents {
		data, ok := found[name]
		if !ok {
			continue
		}
		if err := h.store.WriteFile(name, data); err != nil {
			return restored, fmt.Errorf("writing %s: %w", name, err)
		}
		restored = append(restored, name)
	}

	if h.reload != nil {
		if err := h.reload(); err != nil {
			return restored, fmt.Errorf("reloading restored data: %w", err)
		}
	}
	return restored, nil
}

func (h *Handler) handleRestore(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		apphttp.ErrorResponse(w, r, h.logger, "invalid upload: "+err.Error(), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		apphttp.ErrorResponse(w, r, h.logger, "missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".zip") {
		apphttp.ErrorResponse(w, r, h.logger, "only zip backup files are allowed", http.StatusBadRequest)
		return
	}

	content, err := io.ReadAll(file)
	if err != nil {
		apphttp.ErrorResponse(w, r, h.logger, "failed to read upload", http.StatusInternalServerError)
		return
	}

	restored, err := h.Restore(content)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrInvalidArchive) {
			status = http.StatusBadRequest
		}
		if len(restored) > 0 {
			h.logger.Warn("restore incomplete", "restored", restored)
		}
		apphttp.ErrorResponse(w, r, h.logger, err.Error(), status)
		return
	}

	h.logger.Info("restore complete", "documents", restored)
	apphttp.WriteJSON(w, http.StatusOK, map[string]any{"restored": restored})
}
