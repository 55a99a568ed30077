// Package tableau extracts data source and dashboard metadata from Tableau
// workbook (TWB) XML documents. It is a thin adapter: the consolidation
// engine only sees the normalized records built from its output.
package tableau

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Column is one column described by a datasource metadata record.
type Column struct {
	Name     string
	Datatype string
	Role     string
}

// CalculatedField is a workbook column backed by a calculation formula.
type CalculatedField struct {
	Name    string
	Formula string
}

// DataSource is the raw extracted form of one TWB datasource element.
type DataSource struct {
	Name             string
	Table            string
	Database         string
	Schema           string
	Columns          []Column
	CalculatedFields []CalculatedField
	CustomSQL        string
}

// Dashboard is one dashboard element found in a workbook.
type Dashboard struct {
	Name           string
	WorksheetCount int
}

// Workbook is the parsed content of one TWB document.
type Workbook struct {
	Name        string
	DataSources []DataSource
	Dashboards  []Dashboard
}

// Parser reads TWB XML documents.
type Parser struct {
	logger *zap.Logger
}

// NewParser creates a new Parser.
func NewParser(logger *zap.Logger) *Parser {
	return &Parser{logger: logger.Named("tableau-parser")}
}

// TWB document shapes. Only the elements the engine consumes are mapped.

type twbWorkbook struct {
	XMLName     xml.Name        `xml:"workbook"`
	Datasources []twbDatasource `xml:"datasources>datasource"`
	Dashboards  []twbDashboard  `xml:"dashboards>dashboard"`
}

type twbDatasource struct {
	Name       string        `xml:"name,attr"`
	Caption    string        `xml:"caption,attr"`
	Connection twbConnection `xml:"connection"`
	Columns    []twbColumn   `xml:"column"`
}

type twbConnection struct {
	Class           string              `xml:"class,attr"`
	Dbname          string              `xml:"dbname,attr"`
	Project         string              `xml:"project,attr"`
	Schema          string              `xml:"schema,attr"`
	Relation        *twbRelation        `xml:"relation"`
	MetadataRecords []twbMetadataRecord `xml:"metadata-records>metadata-record"`
}

type twbRelation struct {
	Name  string `xml:"name,attr"`
	Type  string `xml:"type,attr"`
	Query string `xml:"query"`
}

type twbMetadataRecord struct {
	Class      string `xml:"class,attr"`
	RemoteName string `xml:"remote-name"`
	LocalType  string `xml:"local-type"`
	Role       string `xml:"role"`
}

type twbColumn struct {
	Name        string          `xml:"name,attr"`
	Caption     string          `xml:"caption,attr"`
	Calculation *twbCalculation `xml:"calculation"`
}

type twbCalculation struct {
	Formula string `xml:"formula,attr"`
}

type twbDashboard struct {
	Name  string    `xml:"name,attr"`
	Zones []twbZone `xml:"zones>zone"`
}

type twbZone struct {
	Name     string    `xml:"name,attr"`
	Children []twbZone `xml:"zone"`
}

// ParseFile reads and parses a TWB document from disk. The workbook name is
// the file's base name, matching how sources are identified in reports.
func (p *Parser) ParseFile(path string) (*Workbook, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	return p.Parse(f, filepath.Base(path))
}

// Parse decodes a TWB document and extracts its data sources and
// dashboards.
func (p *Parser) Parse(r io.Reader, name string) (*Workbook, error) {
	var doc twbWorkbook
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode workbook XML: %w", err)
	}

	wb := &Workbook{Name: name}
	for _, ds := range doc.Datasources {
		wb.DataSources = append(wb.DataSources, extractDataSource(ds))
	}
	for _, dash := range doc.Dashboards {
		wb.Dashboards = append(wb.Dashboards, Dashboard{
			Name:           dash.Name,
			WorksheetCount: worksheetCount(dash),
		})
	}

	p.logger.Debug("Extracted workbook metadata",
		zap.String("workbook", name),
		zap.Int("datasources", len(wb.DataSources)),
		zap.Int("dashboards", len(wb.Dashboards)))

	return wb, nil
}

func extractDataSource(ds twbDatasource) DataSource {
	caption := ds.Caption
	if caption == "" {
		caption = "Untitled Datasource"
	}

	conn := ds.Connection

	table := ds.Name
	customSQL := ""
	if conn.Relation != nil {
		if conn.Relation.Name != "" {
			table = conn.Relation.Name
		} else {
			table = "Custom SQL Query"
		}
		if conn.Relation.Type == "text" {
			customSQL = strings.TrimSpace(conn.Relation.Query)
		}
	}

	database := conn.Dbname
	if database == "" {
		database = conn.Project
	}

	out := DataSource{
		Name:      caption,
		Table:     table,
		Database:  database,
		Schema:    conn.Schema,
		CustomSQL: customSQL,
	}

	for _, meta := range conn.MetadataRecords {
		if meta.Class != "column" {
			continue
		}
		out.Columns = append(out.Columns, Column{
			Name:     meta.RemoteName,
			Datatype: meta.LocalType,
			Role:     meta.Role,
		})
	}

	for _, col := range ds.Columns {
		if col.Calculation == nil || col.Calculation.Formula == "" {
			continue
		}
		name := col.Caption
		if name == "" {
			name = strings.Trim(col.Name, "[]")
		}
		out.CalculatedFields = append(out.CalculatedFields, CalculatedField{
			Name:    name,
			Formula: col.Calculation.Formula,
		})
	}

	return out
}

// worksheetCount counts named zones in a dashboard layout. Dashboards with
// no named zones still count as holding one worksheet.
func worksheetCount(dash twbDashboard) int {
	count := countNamedZones(dash.Zones)
	if count == 0 {
		return 1
	}
	return count
}

func countNamedZones(zones []twbZone) int {
	count := 0
	for _, z := range zones {
		if z.Name != "" {
			count++
		}
		count += countNamedZones(z.Children)
	}
	return count
}
