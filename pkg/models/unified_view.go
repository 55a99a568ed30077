package models

// Merge strategies for a consolidated view.
const (
	MergeStrategyIdentical    = "identical"
	MergeStrategyMostComplete = "most_complete"
	MergeStrategyManualReview = "manual_review"
)

// ValidMergeStrategies contains all valid merge strategy values.
var ValidMergeStrategies = []string{
	MergeStrategyIdentical,
	MergeStrategyMostComplete,
	MergeStrategyManualReview,
}

// IsValidMergeStrategy checks if the given strategy is valid.
func IsValidMergeStrategy(s string) bool {
	for _, v := range ValidMergeStrategies {
		if v == s {
			return true
		}
	}
	return false
}

// ViewDifference captures the structural diff between the canonical
// definition and one variant. Name sets are kept sorted so rendered output
// is reproducible.
type ViewDifference struct {
	ColumnsOnlyInCanonical    []string `json:"columns_only_in_canonical"`
	ColumnsOnlyInOther        []string `json:"columns_only_in_other"`
	CalcFieldsOnlyInCanonical []string `json:"calc_fields_only_in_canonical"`
	CalcFieldsOnlyInOther     []string `json:"calc_fields_only_in_other"`
}

// ViewVariation records one observation that disagrees with the canonical
// definition.
type ViewVariation struct {
	Source     string         `json:"source"`
	Difference ViewDifference `json:"difference"`
}

// UnifiedView is the consolidation result for one view name. Instances are
// created once during consolidation and read-only afterward.
type UnifiedView struct {
	Name string `json:"name"`
	// SourceWorkbooks preserves registration order and multiplicity.
	SourceWorkbooks []string        `json:"source_workbooks"`
	Canonical       ViewDefinition  `json:"canonical_definition"`
	Variations      []ViewVariation `json:"variations"`
	MergeStrategy   string          `json:"merge_strategy"`
}

// UnifiedViews holds consolidation results keyed by view name. Order lists
// names in first-registration order so report and artifact emission stay
// deterministic across runs.
type UnifiedViews struct {
	Order []string                `json:"order"`
	Views map[string]*UnifiedView `json:"views"`
}

// Get returns the unified view for name.
func (u *UnifiedViews) Get(name string) (*UnifiedView, bool) {
	v, ok := u.Views[name]
	return v, ok
}

// Len returns the number of unified views.
func (u *UnifiedViews) Len() int {
	return len(u.Views)
}
