package models

import (
	"time"

	"github.com/google/uuid"
)

// MigrationRun is one persisted consolidation run.
type MigrationRun struct {
	ID        uuid.UUID     `json:"id"`
	Workbooks []string      `json:"workbooks"`
	Summary   ReportSummary `json:"summary"`
	OutputDir string        `json:"output_dir"`
	CreatedAt time.Time     `json:"created_at"`
}

// MigrationResult is returned to the caller after a run completes.
type MigrationResult struct {
	RunID          uuid.UUID     `json:"run_id"`
	OutputDir      string        `json:"output_dir"`
	Summary        ReportSummary `json:"summary"`
	GeneratedFiles []string      `json:"generated_files"`
}
