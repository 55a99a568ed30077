package models

// Column roles as they appear in workbook metadata records.
const (
	RoleDimension = "dimension"
	RoleMeasure   = "measure"
)

// ViewColumn is one column observed on a workbook data source.
type ViewColumn struct {
	Name     string `json:"name"`
	Datatype string `json:"datatype"`
	Role     string `json:"role"`
}

// CalculatedField is a named formula defined on a workbook data source.
type CalculatedField struct {
	Name    string `json:"name"`
	Formula string `json:"formula"`
}

// ViewDefinition is the canonical form of one data source observed in one
// workbook. Definitions are immutable once produced by the normalizer; the
// consolidation path only reads them.
type ViewDefinition struct {
	Name             string            `json:"name"`
	Table            string            `json:"table"`
	Database         string            `json:"database"`
	Schema           string            `json:"schema"`
	Columns          []ViewColumn      `json:"columns"`
	CalculatedFields []CalculatedField `json:"calculated_fields"`
	// CustomSQL supersedes Table/Schema for rendering when present.
	CustomSQL string `json:"custom_sql,omitempty"`
}

// DashboardDescriptor identifies one dashboard contributed by a workbook.
type DashboardDescriptor struct {
	Name           string `json:"name"`
	WorksheetCount int    `json:"worksheet_count"`
	Workbook       string `json:"workbook"`
}
