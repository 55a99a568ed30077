package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lookbridge-io/lookbridge-engine/pkg/apperrors"
	"github.com/lookbridge-io/lookbridge-engine/pkg/database"
	"github.com/lookbridge-io/lookbridge-engine/pkg/models"
)

// RunRepository provides data access for persisted migration runs.
type RunRepository interface {
	// Create inserts a new migration run record.
	Create(ctx context.Context, run *models.MigrationRun) error

	// GetByID returns one migration run.
	GetByID(ctx context.Context, id uuid.UUID) (*models.MigrationRun, error)

	// List returns recent migration runs, newest first.
	List(ctx context.Context, limit int) ([]*models.MigrationRun, error)
}

type runRepository struct {
	db *database.DB
}

// NewRunRepository creates a new RunRepository.
func NewRunRepository(db *database.DB) RunRepository {
	return &runRepository{db: db}
}

var _ RunRepository = (*runRepository)(nil)

func (r *runRepository) Create(ctx context.Context, run *models.MigrationRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	run.CreatedAt = time.Now()

	workbooksJSON, err := json.Marshal(run.Workbooks)
	if err != nil {
		return fmt.Errorf("failed to marshal workbooks: %w", err)
	}
	summaryJSON, err := json.Marshal(run.Summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	query := `
		INSERT INTO engine_migration_runs (id, workbooks, summary, output_dir, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err = r.db.Exec(ctx, query,
		run.ID,
		workbooksJSON,
		summaryJSON,
		run.OutputDir,
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create migration run: %w", err)
	}

	return nil
}

func (r *runRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.MigrationRun, error) {
	query := `
		SELECT id, workbooks, summary, output_dir, created_at
		FROM engine_migration_runs
		WHERE id = $1`

	run, err := scanRun(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get migration run: %w", err)
	}
	return run, nil
}

func (r *runRepository) List(ctx context.Context, limit int) ([]*models.MigrationRun, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, workbooks, summary, output_dir, created_at
		FROM engine_migration_runs
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query migration runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.MigrationRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan migration run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read migration runs: %w", err)
	}

	return runs, nil
}

func scanRun(row pgx.Row) (*models.MigrationRun, error) {
	var run models.MigrationRun
	var workbooksJSON, summaryJSON []byte

	if err := row.Scan(&run.ID, &workbooksJSON, &summaryJSON, &run.OutputDir, &run.CreatedAt); err != nil {
		return nil, err
	}

	if len(workbooksJSON) > 0 {
		if err := json.Unmarshal(workbooksJSON, &run.Workbooks); err != nil {
			return nil, fmt.Errorf("unmarshal workbooks: %w", err)
		}
	}
	if len(summaryJSON) > 0 {
		if err := json.Unmarshal(summaryJSON, &run.Summary); err != nil {
			return nil, fmt.Errorf("unmarshal summary: %w", err)
		}
	}

	return &run, nil
}
