// Package mapping parses CSV field-mapping specifications into structured rows.
package mapping

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Column identifies one of the recognised mapping columns.
type Column string

// Recognised columns
const (
	ColSourceField    Column = "source_field"
	ColTargetResource Column = "target_resource"
	ColTargetAttr     Column = "target_attribute"
	ColTransformation Column = "transformation_rule"
	ColDataType       Column = "data_type"
	ColRequired       Column = "required"
)

// headerAliases maps normalised header spellings to the column they denote.
var headerAliases = map[string]Column{
	"source_field":          ColSourceField,
	"source":                ColSourceField,
	"field":                 ColSourceField,
	"target_fhir_resource":  ColTargetResource,
	"target_resource":       ColTargetResource,
	"fhir_resource":         ColTargetResource,
	"resource":              ColTargetResource,
	"fhir_attribute":        ColTargetAttr,
	"target_attribute":      ColTargetAttr,
	"target_fhir_attribute": ColTargetAttr,
	"attribute":             ColTargetAttr,
	"transformation_rule":   ColTransformation,
	"transformation":        ColTransformation,
	"rule":                  ColTransformation,
	"data_type":             ColDataType,
	"datatype":              ColDataType,
	"type":                  ColDataType,
	"required":              ColRequired,
	"mandatory":             ColRequired,
	"is_required":           ColRequired,
}

// ErrEmpty is returned when the CSV has no header row.
var ErrEmpty = errors.New("mapping csv is empty")

// Row is one mapping line.
type Row struct {
	Line           int    `json:"line"`
	SourceField    string `json:"source_field"`
	TargetResource string `json:"target_resource"`
	TargetAttr     string `json:"target_attribute"`
	Transformation string `json:"transformation_rule"`
	DataType       string `json:"data_type"`
	Required       bool   `json:"required"`
}

// HasTarget reports whether the row names a target attribute.
func (r Row) HasTarget() bool {
	return r.TargetAttr != ""
}

// QualifiedTarget returns Resource.attribute, or just the attribute when no resource is set.
func (r Row) QualifiedTarget() string {
	if r.TargetResource == "" {
		return r.TargetAttr
	}
	return r.TargetResource + "." + r.TargetAttr
}

// Mapping is a parsed CSV mapping specification.
type Mapping struct {
	Header []string
	Rows   []Row
}

// UniqueAttributes counts distinct qualified target attributes.
func (m *Mapping) UniqueAttributes() int {
	seen := make(map[string]struct{})
	for _, r := range m.Rows {
		if !r.HasTarget() {
			continue
		}
		seen[strings.ToLower(r.QualifiedTarget())] = struct{}{}
	}
	return len(seen)
}

// TargetRows returns the rows that name a target attribute, in order.
func (m *Mapping) TargetRows() []Row {
	var rows []Row
	for _, r := range m.Rows {
		if r.HasTarget() {
			rows = append(rows, r)
		}
	}
	return rows
}

// Parse reads a mapping CSV. The first non-blank record is the header; unknown
// columns are ignored and blank records are skipped.
func Parse(content string) (*Mapping, error) {
	reader := csv.NewReader(strings.NewReader(strings.TrimPrefix(content, "\ufeff")))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var (
		m       Mapping
		columns map[Column]int
	)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse mapping csv: %w", err)
		}
		if isBlank(record) {
			continue
		}
		if columns == nil {
			m.Header = record
			columns = indexHeader(record)
			if len(columns) == 0 {
				return nil, fmt.Errorf("mapping csv header has no recognised columns: %q", strings.Join(record, ","))
			}
			continue
		}
		line, _ := reader.FieldPos(0)
		m.Rows = append(m.Rows, buildRow(record, columns, line))
	}

	if columns == nil {
		return nil, ErrEmpty
	}
	return &m, nil
}

func indexHeader(header []string) map[Column]int {
	columns := make(map[Column]int)
	for i, h := range header {
		col, ok := headerAliases[normalizeHeader(h)]
		if !ok {
			continue
		}
		if _, dup := columns[col]; !dup {
			columns[col] = i
		}
	}
	return columns
}

func buildRow(record []string, columns map[Column]int, line int) Row {
	get := func(c Column) string {
		i, ok := columns[c]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}
	return Row{
		Line:           line,
		SourceField:    get(ColSourceField),
		TargetResource: get(ColTargetResource),
		TargetAttr:     get(ColTargetAttr),
		Transformation: get(ColTransformation),
		DataType:       get(ColDataType),
		Required:       parseRequired(get(ColRequired)),
	}
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.NewReplacer(" ", "_", "-", "_").Replace(h)
	return h
}

func parseRequired(v string) bool {
	switch strings.ToLower(v) {
	case "yes", "y", "true", "1", "required", "mandatory", "r":
		return true
	}
	return false
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
