package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jinzhu/inflection"

	"github.com/lookbridge-io/lookbridge-engine/pkg/models"
)

// maxRecommendedFormulaLen bounds the formula excerpt embedded in the JSON
// report; the governance document carries the full text.
const maxRecommendedFormulaLen = 100

// BuildReport derives the consolidation report from the unified view map
// and duplicate-field findings alone. It takes no registry access, so it
// can be exercised against hand-constructed inputs.
func BuildReport(workbooksAnalyzed int, views *models.UnifiedViews, duplicates map[string]models.DuplicateField) *models.ConsolidationReport {
	report := &models.ConsolidationReport{
		UnifiedViews:              make(map[string]models.ReportViewEntry, views.Len()),
		ViewsRequiringReview:      []models.ReportReviewEntry{},
		DuplicateCalculatedFields: make(map[string]models.ReportDuplicateField, len(duplicates)),
	}

	viewsBefore := 0
	for _, name := range views.Order {
		view := views.Views[name]
		viewsBefore += len(view.SourceWorkbooks)

		report.UnifiedViews[name] = models.ReportViewEntry{
			Sources:       view.SourceWorkbooks,
			MergeStrategy: view.MergeStrategy,
			Variations:    len(view.Variations),
		}

		if view.MergeStrategy == models.MergeStrategyManualReview {
			report.ViewsRequiringReview = append(report.ViewsRequiringReview, models.ReportReviewEntry{
				Name:       view.Name,
				Sources:    view.SourceWorkbooks,
				Variations: view.Variations,
			})
		}
	}

	for name, dup := range duplicates {
		report.DuplicateCalculatedFields[name] = models.ReportDuplicateField{
			VariationCount:     len(dup.Variations),
			RecommendedFormula: truncateFormula(dup.Recommendation.Formula),
			Sources:            dup.Recommendation.Sources,
		}
	}

	report.Summary = models.ReportSummary{
		WorkbooksAnalyzed:          workbooksAnalyzed,
		ViewsBeforeConsolidation:   viewsBefore,
		ViewsAfterConsolidation:    views.Len(),
		ViewsEliminated:            viewsBefore - views.Len(),
		ViewsRequiringManualReview: len(report.ViewsRequiringReview),
		DuplicateCalculatedFields:  len(duplicates),
	}

	return report
}

func truncateFormula(formula string) string {
	if len(formula) <= maxRecommendedFormulaLen {
		return formula
	}
	return formula[:maxRecommendedFormulaLen] + "..."
}

// BuildGovernanceDoc renders the human-readable review document that
// enumerates every manual-review view, duplicated calculated field, and
// flagged custom SQL block.
func BuildGovernanceDoc(views *models.UnifiedViews, duplicates map[string]models.DuplicateField, findings []QueryFinding) string {
	var md strings.Builder
	md.WriteString("# Governance Review Required\n\n## Views Requiring Manual Review\n\n")

	for _, name := range views.Order {
		view := views.Views[name]
		if view.MergeStrategy != models.MergeStrategyManualReview {
			continue
		}

		fmt.Fprintf(&md, "\n### %s\n\n", view.Name)
		fmt.Fprintf(&md, "**Found in workbooks:** %s\n\n", strings.Join(view.SourceWorkbooks, ", "))
		if hint := entityNameHint(view.Canonical); hint != "" {
			fmt.Fprintf(&md, "**Suggested entity name:** `%s`\n\n", hint)
		}
		md.WriteString("**Variations:**\n")
		for _, v := range view.Variations {
			fmt.Fprintf(&md, "- Source: `%s`\n", v.Source)
			if len(v.Difference.ColumnsOnlyInCanonical) > 0 {
				fmt.Fprintf(&md, "  - Missing columns: %s\n", strings.Join(v.Difference.ColumnsOnlyInCanonical, ", "))
			}
			if len(v.Difference.ColumnsOnlyInOther) > 0 {
				fmt.Fprintf(&md, "  - Extra columns: %s\n", strings.Join(v.Difference.ColumnsOnlyInOther, ", "))
			}
			if len(v.Difference.CalcFieldsOnlyInOther) > 0 {
				fmt.Fprintf(&md, "  - Extra calculations: %s\n", strings.Join(v.Difference.CalcFieldsOnlyInOther, ", "))
			}
			md.WriteString("\n")
		}
	}

	md.WriteString("\n## Duplicate Calculated Fields\n\n")
	for _, name := range sortedKeys(duplicates) {
		dup := duplicates[name]
		fmt.Fprintf(&md, "\n### %s\n\n", name)
		fmt.Fprintf(&md, "**%d different definitions found**\n\n", len(dup.Variations))
		md.WriteString("**Recommended canonical definition:**\n")
		fmt.Fprintf(&md, "```\n%s\n```\n", dup.Recommendation.Formula)
		fmt.Fprintf(&md, "Used in: %s\n\n", strings.Join(dup.Recommendation.Sources, ", "))
	}

	if len(findings) > 0 {
		md.WriteString("\n## Custom SQL Review\n\n")
		md.WriteString("The following custom SQL blocks matched SQL injection signatures and should be reviewed before deployment:\n\n")
		for _, f := range findings {
			fmt.Fprintf(&md, "- View `%s` (from `%s`): signature `%s`\n", f.View, f.Source, f.Fingerprint)
		}
	}

	return md.String()
}

// entityNameHint suggests a singular entity name from the canonical table.
func entityNameHint(def models.ViewDefinition) string {
	table := strings.TrimSpace(def.Table)
	if table == "" || def.CustomSQL != "" {
		return ""
	}
	return inflection.Singular(strings.ToLower(table))
}

func sortedKeys(m map[string]models.DuplicateField) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
