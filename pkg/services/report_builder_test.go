package services

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lookbridge-io/lookbridge-engine/pkg/models"
)

// buildTestViews hand-constructs a unified view mapping: report building
// takes no registry access, so this is the full input surface.
func buildTestViews() *models.UnifiedViews {
	return &models.UnifiedViews{
		Order: []string{"Sales", "Customers"},
		Views: map[string]*models.UnifiedView{
			"Sales": {
				Name:            "Sales",
				SourceWorkbooks: []string{"W1.twb", "W2.twb"},
				Canonical:       defWithColumns("Sales", "sales", "OrderID", "Amount", "Region"),
				Variations: []models.ViewVariation{
					{
						Source: "W1.twb",
						Difference: models.ViewDifference{
							ColumnsOnlyInCanonical: []string{"Region"},
							ColumnsOnlyInOther:     []string{"LegacyFlag"},
							CalcFieldsOnlyInOther:  []string{"Old Margin"},
						},
					},
				},
				MergeStrategy: models.MergeStrategyManualReview,
			},
			"Customers": {
				Name:            "Customers",
				SourceWorkbooks: []string{"W1.twb", "W2.twb", "W3.twb"},
				Canonical:       defWithColumns("Customers", "customers", "ID", "Name"),
				Variations:      []models.ViewVariation{},
				MergeStrategy:   models.MergeStrategyIdentical,
			},
		},
	}
}

func TestBuildReport_Summary(t *testing.T) {
	duplicates := map[string]models.DuplicateField{
		"Profit": {
			Variations: []models.FieldObservation{
				{Formula: "SUM([Sales]) - SUM([Cost])", Source: "W1.twb"},
				{Formula: "SUM([Sales]) * 0.2", Source: "W2.twb"},
			},
			Recommendation: models.FieldRecommendation{
				Formula: "SUM([Sales]) - SUM([Cost])",
				Sources: []string{"W1.twb"},
			},
		},
	}

	report := BuildReport(3, buildTestViews(), duplicates)

	assert.Equal(t, 3, report.Summary.WorkbooksAnalyzed)
	assert.Equal(t, 5, report.Summary.ViewsBeforeConsolidation)
	assert.Equal(t, 2, report.Summary.ViewsAfterConsolidation)
	assert.Equal(t, 3, report.Summary.ViewsEliminated)
	assert.Equal(t, 1, report.Summary.ViewsRequiringManualReview)
	assert.Equal(t, 1, report.Summary.DuplicateCalculatedFields)

	require.Len(t, report.ViewsRequiringReview, 1)
	assert.Equal(t, "Sales", report.ViewsRequiringReview[0].Name)
	require.Contains(t, report.UnifiedViews, "Customers")
	assert.Equal(t, models.MergeStrategyIdentical, report.UnifiedViews["Customers"].MergeStrategy)
	assert.Equal(t, 0, report.UnifiedViews["Customers"].Variations)

	require.Contains(t, report.DuplicateCalculatedFields, "Profit")
	assert.Equal(t, 2, report.DuplicateCalculatedFields["Profit"].VariationCount)
}

func TestBuildReport_IsJSONSerializable(t *testing.T) {
	report := BuildReport(2, buildTestViews(), nil)

	out, err := json.Marshal(report)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"views_before_consolidation":5`)
}

func TestBuildReport_TruncatesLongRecommendedFormula(t *testing.T) {
	long := strings.Repeat("x", 150)
	duplicates := map[string]models.DuplicateField{
		"Big": {
			Variations:     []models.FieldObservation{{Formula: long}, {Formula: "y"}},
			Recommendation: models.FieldRecommendation{Formula: long},
		},
	}

	report := BuildReport(1, &models.UnifiedViews{Views: map[string]*models.UnifiedView{}}, duplicates)

	got := report.DuplicateCalculatedFields["Big"].RecommendedFormula
	assert.Len(t, got, maxRecommendedFormulaLen+3)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestBuildGovernanceDoc(t *testing.T) {
	duplicates := map[string]models.DuplicateField{
		"Profit": {
			Variations: []models.FieldObservation{
				{Formula: "SUM([Sales]) - SUM([Cost])", Source: "W1.twb"},
				{Formula: "SUM([Sales]) * 0.2", Source: "W2.twb"},
			},
			Recommendation: models.FieldRecommendation{
				Formula: "SUM([Sales]) - SUM([Cost])",
				Sources: []string{"W1.twb"},
			},
		},
	}
	findings := []QueryFinding{
		{View: "Sales", Source: "W1.twb", Fingerprint: "s&1c"},
	}

	doc := BuildGovernanceDoc(buildTestViews(), duplicates, findings)

	assert.Contains(t, doc, "# Governance Review Required")
	assert.Contains(t, doc, "### Sales")
	assert.Contains(t, doc, "**Found in workbooks:** W1.twb, W2.twb")
	assert.Contains(t, doc, "Missing columns: Region")
	assert.Contains(t, doc, "Extra columns: LegacyFlag")
	assert.Contains(t, doc, "Extra calculations: Old Margin")
	// Singular entity-name hint from the canonical table.
	assert.Contains(t, doc, "**Suggested entity name:** `sale`")

	assert.Contains(t, doc, "### Profit")
	assert.Contains(t, doc, "**2 different definitions found**")
	assert.Contains(t, doc, "SUM([Sales]) - SUM([Cost])")

	assert.Contains(t, doc, "## Custom SQL Review")
	assert.Contains(t, doc, "View `Sales` (from `W1.twb`): signature `s&1c`")

	// Identical views stay out of the review section.
	assert.NotContains(t, doc, "### Customers")
}

func TestBuildGovernanceDoc_NoFindingsOmitsSQLSection(t *testing.T) {
	doc := BuildGovernanceDoc(buildTestViews(), nil, nil)
	assert.NotContains(t, doc, "## Custom SQL Review")
}
