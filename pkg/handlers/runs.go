package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lookbridge-io/lookbridge-engine/pkg/apperrors"
	"github.com/lookbridge-io/lookbridge-engine/pkg/models"
	"github.com/lookbridge-io/lookbridge-engine/pkg/repositories"
)

// RunsResponse is the payload for GET /api/runs.
type RunsResponse struct {
	Runs []*models.MigrationRun `json:"runs"`
}

// RunsHandler serves persisted migration run history. It is only
// registered when the run-history database is enabled.
type RunsHandler struct {
	runs   repositories.RunRepository
	logger *zap.Logger
}

// NewRunsHandler creates a new RunsHandler.
func NewRunsHandler(runs repositories.RunRepository, logger *zap.Logger) *RunsHandler {
	return &RunsHandler{runs: runs, logger: logger.Named("runs-handler")}
}

// RegisterRoutes registers the runs handler's routes on the given mux.
func (h *RunsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/runs", h.List)
	mux.HandleFunc("GET /api/runs/{id}", h.GetByID)
}

// List handles GET /api/runs requests. An optional limit query parameter
// caps the number of returned runs.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			_ = ErrorResponse(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	runs, err := h.runs.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list migration runs", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "list_failed", "could not list migration runs")
		return
	}
	if runs == nil {
		runs = []*models.MigrationRun{}
	}

	if err := WriteJSON(w, http.StatusOK, RunsResponse{Runs: runs}); err != nil {
		h.logger.Error("Failed to encode runs response", zap.Error(err))
	}
}

// GetByID handles GET /api/runs/{id} requests.
func (h *RunsHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_run_id", "run id must be a UUID")
		return
	}

	run, err := h.runs.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			_ = ErrorResponse(w, http.StatusNotFound, "run_not_found", "no migration run with that id")
			return
		}
		h.logger.Error("Failed to get migration run", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "get_failed", "could not load migration run")
		return
	}

	if err := WriteJSON(w, http.StatusOK, run); err != nil {
		h.logger.Error("Failed to encode run response", zap.Error(err))
	}
}
