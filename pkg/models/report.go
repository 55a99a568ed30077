package models

// ReportSummary holds run-level consolidation counts.
type ReportSummary struct {
	WorkbooksAnalyzed          int `json:"workbooks_analyzed"`
	ViewsBeforeConsolidation   int `json:"views_before_consolidation"`
	ViewsAfterConsolidation    int `json:"views_after_consolidation"`
	ViewsEliminated            int `json:"views_eliminated"`
	ViewsRequiringManualReview int `json:"views_requiring_manual_review"`
	DuplicateCalculatedFields  int `json:"duplicate_calculated_fields"`
}

// ReportViewEntry summarizes one unified view for the report.
type ReportViewEntry struct {
	Sources       []string `json:"sources"`
	MergeStrategy string   `json:"merge_strategy"`
	Variations    int      `json:"variations"`
}

// ReportReviewEntry lists a view flagged for manual review together with
// its variation diffs.
type ReportReviewEntry struct {
	Name       string          `json:"name"`
	Sources    []string        `json:"sources"`
	Variations []ViewVariation `json:"variations"`
}

// ReportDuplicateField summarizes one duplicated calculated field.
type ReportDuplicateField struct {
	VariationCount     int      `json:"variation_count"`
	RecommendedFormula string   `json:"recommended_formula"`
	Sources            []string `json:"sources"`
}

// ConsolidationReport is a derived, stateless view over a run's unified
// views and duplicate fields. It is recomputed fresh each run and never
// persisted as mutable state.
type ConsolidationReport struct {
	Summary                   ReportSummary                   `json:"summary"`
	UnifiedViews              map[string]ReportViewEntry      `json:"unified_views"`
	ViewsRequiringReview      []ReportReviewEntry             `json:"views_requiring_review"`
	DuplicateCalculatedFields map[string]ReportDuplicateField `json:"duplicate_calculated_fields"`
}
