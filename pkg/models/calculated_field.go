package models

// FieldObservation is one registration of a calculated field from a
// workbook. Normalized is the comparison form of the formula (lowercased,
// whitespace collapsed).
type FieldObservation struct {
	Formula    string `json:"formula"`
	Normalized string `json:"normalized"`
	Source     string `json:"source"`
}

// FieldRecommendation is the canonical formula suggested for a field whose
// registrations disagree.
type FieldRecommendation struct {
	Formula string   `json:"formula"`
	Sources []string `json:"sources"`
}

// DuplicateField describes a calculated-field name registered with
// conflicting formulas across workbooks.
type DuplicateField struct {
	Variations     []FieldObservation  `json:"variations"`
	Recommendation FieldRecommendation `json:"recommendation"`
}
