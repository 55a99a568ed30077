package services

import (
	libinjection "github.com/corazawaf/libinjection-go"
	"go.uber.org/zap"

	"github.com/lookbridge-io/lookbridge-engine/pkg/models"
)

// QueryFinding flags a workbook custom SQL block that matched a SQL
// injection signature. Findings are advisory: generation proceeds and the
// governance document lists them for human review.
type QueryFinding struct {
	View        string `json:"view"`
	Source      string `json:"source"`
	Fingerprint string `json:"fingerprint"`
}

// VetCustomQueries scans the canonical custom SQL of every unified view
// before it is embedded into a generated derived table.
func VetCustomQueries(views *models.UnifiedViews, logger *zap.Logger) []QueryFinding {
	var findings []QueryFinding
	for _, name := range views.Order {
		view := views.Views[name]
		if view.Canonical.CustomSQL == "" {
			continue
		}

		isSQLi, fingerprint := libinjection.IsSQLi(view.Canonical.CustomSQL)
		if !isSQLi {
			continue
		}

		source := ""
		if len(view.SourceWorkbooks) > 0 {
			source = view.SourceWorkbooks[0]
		}
		logger.Warn("Custom SQL matched injection signature",
			zap.String("view", name),
			zap.String("source", source),
			zap.String("fingerprint", string(fingerprint)))

		findings = append(findings, QueryFinding{
			View:        name,
			Source:      source,
			Fingerprint: string(fingerprint),
		})
	}
	return findings
}
