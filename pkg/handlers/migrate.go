package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/lookbridge-io/lookbridge-engine/pkg/apperrors"
	"github.com/lookbridge-io/lookbridge-engine/pkg/config"
	"github.com/lookbridge-io/lookbridge-engine/pkg/models"
	"github.com/lookbridge-io/lookbridge-engine/pkg/services"
)

// MigrateResponse is the success payload for POST /api/migrate.
type MigrateResponse struct {
	Status string                  `json:"status"`
	Result *models.MigrationResult `json:"result"`
}

// MigrationHandler handles workbook upload and migration requests.
type MigrationHandler struct {
	svc    services.MigrationService
	cfg    *config.Config
	logger *zap.Logger
}

// NewMigrationHandler creates a new MigrationHandler.
func NewMigrationHandler(svc services.MigrationService, cfg *config.Config, logger *zap.Logger) *MigrationHandler {
	return &MigrationHandler{svc: svc, cfg: cfg, logger: logger.Named("migration-handler")}
}

// RegisterRoutes registers the migration handler's routes on the given
// mux.
func (h *MigrationHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/migrate", h.Migrate)
}

// Migrate handles POST /api/migrate requests. It accepts a multipart form
// with one or more .twb files under the "twb_files" field, stages them in
// the upload directory, and runs a consolidation pass over them.
func (h *MigrationHandler) Migrate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.Upload.MaxBytes)
	if err := r.ParseMultipartForm(h.cfg.Upload.MaxBytes); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_upload", "could not parse multipart upload")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	uploads := r.MultipartForm.File["twb_files"]
	if len(uploads) == 0 {
		_ = ErrorResponse(w, http.StatusBadRequest, "no_files", apperrors.ErrNoFilesUploaded.Error())
		return
	}

	paths, err := h.stageUploads(uploads)
	defer removeFiles(paths, h.logger)
	if err != nil {
		h.logger.Error("Failed to stage uploaded workbooks", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "upload_failed", "could not store uploaded files")
		return
	}
	if len(paths) == 0 {
		_ = ErrorResponse(w, http.StatusBadRequest, "no_twb_files", "only .twb files are supported")
		return
	}

	result, err := h.svc.Run(r.Context(), paths)
	if err != nil {
		if errors.Is(err, apperrors.ErrNoWorkbooks) {
			_ = ErrorResponse(w, http.StatusBadRequest, "no_workbooks", err.Error())
			return
		}
		h.logger.Error("Migration run failed", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "migration_failed", fmt.Sprintf("processing failed: %v", err))
		return
	}

	if err := WriteJSON(w, http.StatusOK, MigrateResponse{Status: "success", Result: result}); err != nil {
		h.logger.Error("Failed to encode migrate response", zap.Error(err))
	}
}

// stageUploads writes .twb uploads into the upload directory and returns
// their paths. Non-TWB files are skipped with a warning.
func (h *MigrationHandler) stageUploads(uploads []*multipart.FileHeader) ([]string, error) {
	if err := os.MkdirAll(h.cfg.Upload.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	var paths []string
	for _, header := range uploads {
		name := filepath.Base(header.Filename)
		if !strings.EqualFold(filepath.Ext(name), ".twb") {
			h.logger.Warn("Skipping non-TWB upload", zap.String("filename", header.Filename))
			continue
		}

		src, err := header.Open()
		if err != nil {
			return paths, fmt.Errorf("open upload %s: %w", name, err)
		}

		path := filepath.Join(h.cfg.Upload.Dir, name)
		dst, err := os.Create(path)
		if err != nil {
			src.Close()
			return paths, fmt.Errorf("create staged file %s: %w", path, err)
		}

		_, err = io.Copy(dst, src)
		src.Close()
		if closeErr := dst.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			return paths, fmt.Errorf("write staged file %s: %w", path, err)
		}
		paths = append(paths, path)
	}

	return paths, nil
}

func removeFiles(paths []string, logger *zap.Logger) {
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Warn("Failed to remove staged workbook", zap.String("path", path), zap.Error(err))
		}
	}
}
