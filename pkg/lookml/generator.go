// Package lookml renders unified views, dashboards, and the project model
// file into LookML artifact contents. Ordering, naming, and
// content-selection rules live here; writing files to disk is the caller's
// concern.
package lookml

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/lookbridge-io/lookbridge-engine/pkg/models"
)

// ModelFileName is the single unified model artifact.
const ModelFileName = "models/enterprise.model.lkml"

var datatypeMap = map[string]string{
	"string":   "string",
	"integer":  "number",
	"real":     "number",
	"boolean":  "yesno",
	"date":     "date",
	"datetime": "time",
}

// MapDatatype maps a workbook datatype to its LookML equivalent. Unknown
// or unspecified datatypes fall back to string.
func MapDatatype(datatype string) string {
	if mapped, ok := datatypeMap[strings.ToLower(datatype)]; ok {
		return mapped
	}
	return "string"
}

var (
	nonWordChars   = regexp.MustCompile(`[^\w\s]`)
	whitespaceRuns = regexp.MustCompile(`\s+`)
	underscoreRuns = regexp.MustCompile(`_+`)
)

// SanitizeName converts a display name into a LookML identifier: non-word
// characters stripped, whitespace folded to underscores, lowercased, runs
// of underscores collapsed.
func SanitizeName(name string) string {
	s := nonWordChars.ReplaceAllString(name, "")
	s = strings.ToLower(s)
	s = whitespaceRuns.ReplaceAllString(s, "_")
	s = underscoreRuns.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// Generator renders LookML artifacts from consolidation results.
type Generator struct {
	logger *zap.Logger
}

// NewGenerator creates a new Generator.
func NewGenerator(logger *zap.Logger) *Generator {
	return &Generator{logger: logger.Named("lookml")}
}

// Generate emits one artifact per unified view, one per dashboard
// descriptor, and the unified model file, keyed by relative path. Views
// are emitted in first-registration order.
func (g *Generator) Generate(views *models.UnifiedViews, dashboards []models.DashboardDescriptor) (map[string]string, error) {
	files := make(map[string]string, views.Len()+len(dashboards)+1)

	files[ModelFileName] = g.modelFile(views)

	for _, name := range views.Order {
		view := views.Views[name]
		files["views/"+SanitizeName(name)+".view.lkml"] = g.viewFile(view)
	}

	for _, dash := range dashboards {
		content, err := g.dashboardFile(dash, views)
		if err != nil {
			return nil, fmt.Errorf("render dashboard %q: %w", dash.Name, err)
		}
		files["dashboards/"+SanitizeName(dash.Name)+".dashboard.lookml"] = content
	}

	g.logger.Debug("Generated LookML artifacts",
		zap.Int("views", views.Len()),
		zap.Int("dashboards", len(dashboards)),
		zap.Int("files", len(files)))

	return files, nil
}

func (g *Generator) modelFile(views *models.UnifiedViews) string {
	var b strings.Builder
	b.WriteString(`# Enterprise Unified Data Model
# Consolidated from multiple Tableau workbooks

connection: "enterprise_database"

include: "/views/*.view.lkml"
include: "/dashboards/*.dashboard.lookml"

datagroup: default_datagroup {
  sql_trigger: SELECT MAX(updated_at) FROM etl_metadata ;;
  max_cache_age: "1 hour"
}

persist_with: default_datagroup
`)

	for _, name := range views.Order {
		viewName := SanitizeName(name)
		fmt.Fprintf(&b, "\nexplore: %s {\n  from: %s\n}\n", viewName, viewName)
	}

	return b.String()
}

func (g *Generator) viewFile(view *models.UnifiedView) string {
	viewName := SanitizeName(view.Name)
	def := view.Canonical

	var b strings.Builder
	fmt.Fprintf(&b, "# Unified View: %s\n", view.Name)
	fmt.Fprintf(&b, "# Consolidated from: %s\n\n", strings.Join(view.SourceWorkbooks, ", "))

	if view.MergeStrategy == models.MergeStrategyManualReview {
		b.WriteString("# MANUAL REVIEW REQUIRED\n")
		b.WriteString("# This view has variations across workbooks.\n")
		b.WriteString("# See GOVERNANCE_REVIEW.md for details.\n\n")
	}

	fmt.Fprintf(&b, "view: %s {\n", viewName)

	switch {
	case def.CustomSQL != "":
		fmt.Fprintf(&b, "\n  derived_table: {\n    sql: %s ;;\n  }\n", def.CustomSQL)
	case def.Schema != "" && def.Table != "":
		fmt.Fprintf(&b, "\n  sql_table_name: `%s.%s.%s` ;;\n", def.Database, def.Schema, def.Table)
	case def.Table != "":
		fmt.Fprintf(&b, "\n  sql_table_name: `%s` ;;\n", def.Table)
	default:
		fmt.Fprintf(&b, "\n  sql_table_name: `%s` ;;\n", viewName)
	}

	for _, col := range def.Columns {
		colName := SanitizeName(col.Name)
		if strings.ToLower(col.Role) == models.RoleMeasure {
			fmt.Fprintf(&b, "\n  measure: %s {\n    type: sum\n    sql: ${TABLE}.%s ;;\n  }\n", colName, col.Name)
			continue
		}
		fmt.Fprintf(&b, "\n  dimension: %s {\n    type: %s\n    sql: ${TABLE}.%s ;;\n  }\n", colName, MapDatatype(col.Datatype), col.Name)
	}

	b.WriteString("}\n")
	return b.String()
}

// Dashboard artifacts are YAML documents; they are marshaled from typed
// structs so field order and output stay deterministic.

type dashboardDoc struct {
	Dashboard   string             `yaml:"dashboard"`
	Title       string             `yaml:"title"`
	Layout      string             `yaml:"layout"`
	Description string             `yaml:"description"`
	Elements    []dashboardElement `yaml:"elements"`
}

type dashboardElement struct {
	Name      string    `yaml:"name"`
	Title     string    `yaml:"title"`
	Type      string    `yaml:"type"`
	Model     string    `yaml:"model"`
	Explore   string    `yaml:"explore"`
	Fields    []string  `yaml:"fields,omitempty"`
	VisConfig visConfig `yaml:"vis_config"`
	Row       int       `yaml:"row"`
	Col       int       `yaml:"col"`
	Width     int       `yaml:"width"`
	Height    int       `yaml:"height"`
}

type visConfig struct {
	Type            string   `yaml:"type"`
	ShowValueLabels bool     `yaml:"show_value_labels"`
	YAxisGridlines  bool     `yaml:"y_axis_gridlines"`
	XAxisGridlines  bool     `yaml:"x_axis_gridlines"`
	SeriesColors    []string `yaml:"series_colors"`
	LabelRotation   int      `yaml:"label_rotation"`
}

var defaultSeriesColors = []string{"#5D2E91", "#12B581", "#E69138", "#54A5D9"}

func (g *Generator) dashboardFile(dash models.DashboardDescriptor, views *models.UnifiedViews) (string, error) {
	explore := "default_explore"
	visType := "table"
	var fields []string

	if view := firstViewFromWorkbook(views, dash.Workbook); view != nil {
		explore = SanitizeName(view.Name)
		visType = visTypeForWorkbook(dash.Workbook)
		for _, col := range view.Canonical.Columns {
			fields = append(fields, explore+"."+SanitizeName(col.Name))
		}
	}

	doc := dashboardDoc{
		Dashboard:   SanitizeName(dash.Name),
		Title:       dash.Name,
		Layout:      "newspaper",
		Description: fmt.Sprintf("Migrated from %s", dash.Workbook),
		Elements: []dashboardElement{
			{
				Name:    SanitizeName(dash.Name) + "_element",
				Title:   dash.Name,
				Type:    visType,
				Model:   "enterprise",
				Explore: explore,
				Fields:  fields,
				VisConfig: visConfig{
					Type:           visType,
					YAxisGridlines: true,
					SeriesColors:   defaultSeriesColors,
					LabelRotation:  90,
				},
				Width:  24,
				Height: 12,
			},
		},
	}

	out, err := yaml.Marshal([]dashboardDoc{doc})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// firstViewFromWorkbook returns the first unified view (in registration
// order) that has an observation from the given workbook.
func firstViewFromWorkbook(views *models.UnifiedViews, workbook string) *models.UnifiedView {
	for _, name := range views.Order {
		view := views.Views[name]
		for _, src := range view.SourceWorkbooks {
			if src == workbook {
				return view
			}
		}
	}
	return nil
}

// visTypeForWorkbook chooses a Looker visualization type from the workbook
// name. The heuristic is intentionally fixed; richer visualization mapping
// is out of scope.
func visTypeForWorkbook(workbook string) string {
	if strings.Contains(strings.ToLower(workbook), "linechart") {
		return "looker_line"
	}
	return "table"
}
