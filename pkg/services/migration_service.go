package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lookbridge-io/lookbridge-engine/pkg/adapters/tableau"
	"github.com/lookbridge-io/lookbridge-engine/pkg/apperrors"
	"github.com/lookbridge-io/lookbridge-engine/pkg/models"
	"github.com/lookbridge-io/lookbridge-engine/pkg/repositories"
)

// ReportFileName is where the JSON consolidation report is written,
// relative to the run output directory.
const ReportFileName = "consolidation_report.json"

// GovernanceFileName is the governance review artifact.
const GovernanceFileName = "GOVERNANCE_REVIEW.md"

// WorkbookParser abstracts TWB extraction so the engine can be tested
// without XML fixtures. Parse failures for individual documents are
// tolerated: the run proceeds with whatever parsed successfully.
type WorkbookParser interface {
	ParseFile(path string) (*tableau.Workbook, error)
}

// ArtifactGenerator renders consolidation results into named text
// artifacts.
type ArtifactGenerator interface {
	Generate(views *models.UnifiedViews, dashboards []models.DashboardDescriptor) (map[string]string, error)
}

// MigrationService runs one full consolidation pass: parse workbooks,
// register every data source, consolidate, build the report, and export
// the generated project.
type MigrationService interface {
	Run(ctx context.Context, workbookPaths []string) (*models.MigrationResult, error)
}

type migrationService struct {
	parser    WorkbookParser
	generator ArtifactGenerator
	runs      repositories.RunRepository // nil disables persistence
	outputDir string
	logger    *zap.Logger
}

// NewMigrationService creates a new MigrationService. runs may be nil, in
// which case run history is not persisted.
func NewMigrationService(parser WorkbookParser, generator ArtifactGenerator, runs repositories.RunRepository, outputDir string, logger *zap.Logger) MigrationService {
	return &migrationService{
		parser:    parser,
		generator: generator,
		runs:      runs,
		outputDir: outputDir,
		logger:    logger.Named("migration-service"),
	}
}

var _ MigrationService = (*migrationService)(nil)

func (s *migrationService) Run(ctx context.Context, workbookPaths []string) (*models.MigrationResult, error) {
	if len(workbookPaths) == 0 {
		return nil, apperrors.ErrNoWorkbooks
	}

	runID := uuid.New()
	log := s.logger.With(zap.String("run_id", runID.String()))

	viewCons := NewViewConsolidator(s.logger)
	calcCons := NewCalcFieldConsolidator(s.logger)

	var dashboards []models.DashboardDescriptor
	var analyzed []string
	for _, path := range workbookPaths {
		wb, err := s.parser.ParseFile(path)
		if err != nil {
			log.Warn("Skipping workbook that failed to parse",
				zap.String("path", path),
				zap.Error(err))
			continue
		}
		analyzed = append(analyzed, wb.Name)

		for _, ds := range wb.DataSources {
			def := NormalizeDataSource(ds)
			viewCons.RegisterView(def.Name, def, wb.Name)
			for _, cf := range def.CalculatedFields {
				calcCons.RegisterField(cf.Name, cf.Formula, wb.Name)
			}
		}
		for _, dash := range wb.Dashboards {
			dashboards = append(dashboards, models.DashboardDescriptor{
				Name:           dash.Name,
				WorksheetCount: dash.WorksheetCount,
				Workbook:       wb.Name,
			})
		}
	}

	views := viewCons.Consolidate()
	duplicates := calcCons.FindDuplicates()
	findings := VetCustomQueries(views, log)
	report := BuildReport(len(analyzed), views, duplicates)

	artifacts, err := s.generator.Generate(views, dashboards)
	if err != nil {
		return nil, fmt.Errorf("generate artifacts: %w", err)
	}
	artifacts[GovernanceFileName] = BuildGovernanceDoc(views, duplicates, findings)

	files, err := s.export(report, artifacts)
	if err != nil {
		return nil, fmt.Errorf("export run output: %w", err)
	}

	log.Info("Migration run complete",
		zap.Int("workbooks_analyzed", report.Summary.WorkbooksAnalyzed),
		zap.Int("views_before", report.Summary.ViewsBeforeConsolidation),
		zap.Int("views_after", report.Summary.ViewsAfterConsolidation),
		zap.Int("manual_review", report.Summary.ViewsRequiringManualReview),
		zap.Int("duplicate_calcs", report.Summary.DuplicateCalculatedFields))

	if s.runs != nil {
		run := &models.MigrationRun{
			ID:        runID,
			Workbooks: analyzed,
			Summary:   report.Summary,
			OutputDir: s.outputDir,
		}
		// Persistence failures are logged, never fatal to the run.
		if err := s.runs.Create(ctx, run); err != nil {
			log.Error("Failed to persist migration run", zap.Error(err))
		}
	}

	return &models.MigrationResult{
		RunID:          runID,
		OutputDir:      s.outputDir,
		Summary:        report.Summary,
		GeneratedFiles: files,
	}, nil
}

// export writes the JSON report and every generated artifact beneath the
// output directory and returns the relative artifact paths, sorted.
func (s *migrationService) export(report *models.ConsolidationReport, artifacts map[string]string) ([]string, error) {
	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	reportJSON, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.outputDir, ReportFileName), reportJSON, 0o644); err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}

	files := make([]string, 0, len(artifacts))
	for name, content := range artifacts {
		path := filepath.Join(s.outputDir, "lookml", filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create artifact dir: %w", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return nil, fmt.Errorf("write artifact %s: %w", name, err)
		}
		files = append(files, name)
	}
	sort.Strings(files)

	return files, nil
}
