package services

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lookbridge-io/lookbridge-engine/pkg/adapters/tableau"
	"github.com/lookbridge-io/lookbridge-engine/pkg/apperrors"
	"github.com/lookbridge-io/lookbridge-engine/pkg/models"
)

type stubParser struct {
	workbooks map[string]*tableau.Workbook
}

func (p *stubParser) ParseFile(path string) (*tableau.Workbook, error) {
	wb, ok := p.workbooks[path]
	if !ok {
		return nil, errors.New("malformed document")
	}
	return wb, nil
}

type stubGenerator struct {
	artifacts  map[string]string
	err        error
	gotViews   *models.UnifiedViews
	dashboards []models.DashboardDescriptor
}

func (g *stubGenerator) Generate(views *models.UnifiedViews, dashboards []models.DashboardDescriptor) (map[string]string, error) {
	g.gotViews = views
	g.dashboards = dashboards
	if g.err != nil {
		return nil, g.err
	}
	out := map[string]string{}
	for k, v := range g.artifacts {
		out[k] = v
	}
	return out, nil
}

type mockRunRepository struct {
	created   []*models.MigrationRun
	createErr error
}

func (m *mockRunRepository) Create(_ context.Context, run *models.MigrationRun) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, run)
	return nil
}

func (m *mockRunRepository) GetByID(_ context.Context, _ uuid.UUID) (*models.MigrationRun, error) {
	return nil, apperrors.ErrNotFound
}

func (m *mockRunRepository) List(_ context.Context, _ int) ([]*models.MigrationRun, error) {
	return nil, nil
}

func salesWorkbook(name string, columns ...string) *tableau.Workbook {
	ds := tableau.DataSource{Name: "Sales", Table: "sales"}
	for _, col := range columns {
		ds.Columns = append(ds.Columns, tableau.Column{Name: col, Datatype: "string", Role: "dimension"})
	}
	return &tableau.Workbook{
		Name:        name,
		DataSources: []tableau.DataSource{ds},
		Dashboards:  []tableau.Dashboard{{Name: "Overview", WorksheetCount: 2}},
	}
}

func TestMigrationService_Run(t *testing.T) {
	parser := &stubParser{workbooks: map[string]*tableau.Workbook{
		"/tmp/w1.twb": salesWorkbook("w1.twb", "OrderID"),
		"/tmp/w2.twb": salesWorkbook("w2.twb", "OrderID", "Region"),
	}}
	gen := &stubGenerator{artifacts: map[string]string{
		"views/sales.view.lkml": "view: sales {}",
	}}
	repo := &mockRunRepository{}
	outputDir := t.TempDir()

	svc := NewMigrationService(parser, gen, repo, outputDir, zap.NewNop())
	result, err := svc.Run(context.Background(), []string{"/tmp/w1.twb", "/tmp/w2.twb"})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Summary.WorkbooksAnalyzed)
	assert.Equal(t, 2, result.Summary.ViewsBeforeConsolidation)
	assert.Equal(t, 1, result.Summary.ViewsAfterConsolidation)
	assert.Equal(t, 1, result.Summary.ViewsRequiringManualReview)
	assert.Equal(t, []string{GovernanceFileName, "views/sales.view.lkml"}, result.GeneratedFiles)
	assert.Equal(t, outputDir, result.OutputDir)

	// Dashboards from every workbook reach the generator.
	require.Len(t, gen.dashboards, 2)
	assert.Equal(t, "w1.twb", gen.dashboards[0].Workbook)

	// The JSON report and both artifacts land on disk.
	reportJSON, err := os.ReadFile(filepath.Join(outputDir, ReportFileName))
	require.NoError(t, err)
	var report models.ConsolidationReport
	require.NoError(t, json.Unmarshal(reportJSON, &report))
	assert.Equal(t, 2, report.Summary.WorkbooksAnalyzed)

	view, err := os.ReadFile(filepath.Join(outputDir, "lookml", "views", "sales.view.lkml"))
	require.NoError(t, err)
	assert.Equal(t, "view: sales {}", string(view))

	governance, err := os.ReadFile(filepath.Join(outputDir, "lookml", GovernanceFileName))
	require.NoError(t, err)
	assert.Contains(t, string(governance), "### Sales")

	// Run history persisted with the same run identity.
	require.Len(t, repo.created, 1)
	assert.Equal(t, result.RunID, repo.created[0].ID)
	assert.Equal(t, []string{"w1.twb", "w2.twb"}, repo.created[0].Workbooks)
}

func TestMigrationService_Run_NoWorkbooks(t *testing.T) {
	svc := NewMigrationService(&stubParser{}, &stubGenerator{}, nil, t.TempDir(), zap.NewNop())

	_, err := svc.Run(context.Background(), nil)
	assert.ErrorIs(t, err, apperrors.ErrNoWorkbooks)
}

func TestMigrationService_Run_SkipsUnparseableWorkbooks(t *testing.T) {
	parser := &stubParser{workbooks: map[string]*tableau.Workbook{
		"/tmp/good.twb": salesWorkbook("good.twb", "OrderID"),
	}}
	gen := &stubGenerator{artifacts: map[string]string{}}

	svc := NewMigrationService(parser, gen, nil, t.TempDir(), zap.NewNop())
	result, err := svc.Run(context.Background(), []string{"/tmp/bad.twb", "/tmp/good.twb"})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Summary.WorkbooksAnalyzed)
	require.NotNil(t, gen.gotViews)
	assert.Equal(t, []string{"Sales"}, gen.gotViews.Order)
}

func TestMigrationService_Run_GeneratorFailureAborts(t *testing.T) {
	parser := &stubParser{workbooks: map[string]*tableau.Workbook{
		"/tmp/w1.twb": salesWorkbook("w1.twb", "OrderID"),
	}}
	gen := &stubGenerator{err: errors.New("render failed")}

	svc := NewMigrationService(parser, gen, nil, t.TempDir(), zap.NewNop())
	_, err := svc.Run(context.Background(), []string{"/tmp/w1.twb"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generate artifacts")
}

func TestMigrationService_Run_PersistenceFailureIsNotFatal(t *testing.T) {
	parser := &stubParser{workbooks: map[string]*tableau.Workbook{
		"/tmp/w1.twb": salesWorkbook("w1.twb", "OrderID"),
	}}
	gen := &stubGenerator{artifacts: map[string]string{}}
	repo := &mockRunRepository{createErr: errors.New("connection refused")}

	svc := NewMigrationService(parser, gen, repo, t.TempDir(), zap.NewNop())
	result, err := svc.Run(context.Background(), []string{"/tmp/w1.twb"})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, result.RunID)
}
