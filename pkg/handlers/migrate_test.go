package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lookbridge-io/lookbridge-engine/pkg/apperrors"
	"github.com/lookbridge-io/lookbridge-engine/pkg/config"
	"github.com/lookbridge-io/lookbridge-engine/pkg/models"
)

type stubMigrationService struct {
	gotPaths []string
	result   *models.MigrationResult
	err      error
}

func (s *stubMigrationService) Run(_ context.Context, workbookPaths []string) (*models.MigrationResult, error) {
	s.gotPaths = workbookPaths
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func uploadConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Upload: config.UploadConfig{
			Dir:      t.TempDir(),
			MaxBytes: 1 << 20,
		},
	}
}

func multipartBody(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, content := range files {
		part, err := w.CreateFormFile("twb_files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestMigrate_Success(t *testing.T) {
	cfg := uploadConfig(t)
	svc := &stubMigrationService{
		result: &models.MigrationResult{
			RunID:          uuid.New(),
			OutputDir:      "/tmp/out",
			Summary:        models.ReportSummary{WorkbooksAnalyzed: 2},
			GeneratedFiles: []string{"views/sales.view.lkml"},
		},
	}
	h := NewMigrationHandler(svc, cfg, zap.NewNop())

	body, contentType := multipartBody(t, map[string]string{
		"w1.twb": "<workbook/>",
		"w2.TWB": "<workbook/>",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/migrate", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.Migrate(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp MigrateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, 2, resp.Result.Summary.WorkbooksAnalyzed)

	// Both staged files reached the service; extension matching is
	// case-insensitive.
	require.Len(t, svc.gotPaths, 2)
	for _, p := range svc.gotPaths {
		assert.Equal(t, cfg.Upload.Dir, filepath.Dir(p))
	}

	// Staged files are removed after the run.
	entries, err := os.ReadDir(cfg.Upload.Dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMigrate_NoFiles(t *testing.T) {
	h := NewMigrationHandler(&stubMigrationService{}, uploadConfig(t), zap.NewNop())

	body, contentType := multipartBody(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/migrate", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.Migrate(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "no_files")
}

func TestMigrate_OnlyNonTWBFiles(t *testing.T) {
	svc := &stubMigrationService{}
	h := NewMigrationHandler(svc, uploadConfig(t), zap.NewNop())

	body, contentType := multipartBody(t, map[string]string{
		"notes.txt": "not a workbook",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/migrate", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.Migrate(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "no_twb_files")
	assert.Nil(t, svc.gotPaths)
}

func TestMigrate_NotMultipart(t *testing.T) {
	h := NewMigrationHandler(&stubMigrationService{}, uploadConfig(t), zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/migrate", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.Migrate(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_upload")
}

func TestMigrate_ServiceNoWorkbooksError(t *testing.T) {
	svc := &stubMigrationService{err: apperrors.ErrNoWorkbooks}
	h := NewMigrationHandler(svc, uploadConfig(t), zap.NewNop())

	body, contentType := multipartBody(t, map[string]string{"w1.twb": "<workbook/>"})
	req := httptest.NewRequest(http.MethodPost, "/api/migrate", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.Migrate(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "no_workbooks")
}
