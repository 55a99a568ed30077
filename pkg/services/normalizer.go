package services

import (
	"strings"

	"github.com/lookbridge-io/lookbridge-engine/pkg/adapters/tableau"
	"github.com/lookbridge-io/lookbridge-engine/pkg/models"
)

// NormalizeDataSource converts a raw extracted data source into the
// canonical definition the consolidation path operates on. Column and
// calculated-field slices are copied so the definition never aliases
// parser-owned memory.
func NormalizeDataSource(ds tableau.DataSource) models.ViewDefinition {
	def := models.ViewDefinition{
		Name:      strings.TrimSpace(ds.Name),
		Table:     strings.TrimSpace(ds.Table),
		Database:  strings.TrimSpace(ds.Database),
		Schema:    strings.TrimSpace(ds.Schema),
		CustomSQL: strings.TrimSpace(ds.CustomSQL),
	}

	// Custom SQL sources carry a placeholder table name for rendering.
	if def.CustomSQL != "" && def.Table == "" {
		def.Table = "Custom SQL Query"
	}

	def.Columns = make([]models.ViewColumn, 0, len(ds.Columns))
	for _, col := range ds.Columns {
		role := strings.ToLower(strings.TrimSpace(col.Role))
		if role == "" {
			role = models.RoleDimension
		}
		def.Columns = append(def.Columns, models.ViewColumn{
			Name:     strings.TrimSpace(col.Name),
			Datatype: strings.ToLower(strings.TrimSpace(col.Datatype)),
			Role:     role,
		})
	}

	def.CalculatedFields = make([]models.CalculatedField, 0, len(ds.CalculatedFields))
	for _, cf := range ds.CalculatedFields {
		def.CalculatedFields = append(def.CalculatedFields, models.CalculatedField{
			Name:    strings.TrimSpace(cf.Name),
			Formula: cf.Formula,
		})
	}

	return def
}
