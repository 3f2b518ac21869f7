package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonathan/mapping-testgen/internal/mapping"
	"github.com/jonathan/mapping-testgen/internal/types"
)

// Template generates test cases from fixed heuristics. It never fails and
// never calls out of process.
type Template struct{}

// NewTemplate creates a template generator.
func NewTemplate() *Template {
	return &Template{}
}

// Name implements Generator.
func (t *Template) Name() string { return NameTemplate }

// Generate implements Generator.
func (t *Template) Generate(ctx context.Context, req Request) ([]types.TestCase, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var cases []types.TestCase
	for _, row := range req.Rows {
		if row.HasTarget() {
			cases = append(cases, rowCases(row)...)
		}
	}
	cases = append(cases, regressionCases(req.Rows)...)

	Renumber(req.BatchNumber, cases)
	return cases, nil
}

// rowCases returns the three mandatory cases for a row, in order:
// functional positive, functional negative, edge.
func rowCases(row mapping.Row) []types.TestCase {
	return []types.TestCase{
		functionalPositive(row),
		functionalNegative(row),
		edgeCase(row),
	}
}

func functionalPositive(row mapping.Row) types.TestCase {
	target := row.QualifiedTarget()
	return types.TestCase{
		Description: fmt.Sprintf("Verify %s maps to %s with a valid %s value", sourceName(row), target, dataTypeName(row)),
		Steps: steps(
			fmt.Sprintf("Prepare a source record with a valid %s value in %s", dataTypeName(row), sourceName(row)),
			transformStep(row),
			fmt.Sprintf("Inspect %s in the generated resource", target),
		),
		ExpectedResult: fmt.Sprintf("%s is populated with the transformed source value", target),
		Type:           types.TypeFunctional,
		Subtype:        types.SubtypePositive,
	}
}

func functionalNegative(row mapping.Row) types.TestCase {
	target := row.QualifiedTarget()
	return types.TestCase{
		Description: fmt.Sprintf("Verify an invalid %s value in %s is rejected for %s", dataTypeName(row), sourceName(row), target),
		Steps: steps(
			fmt.Sprintf("Prepare a source record with a value in %s that is not a valid %s", sourceName(row), dataTypeName(row)),
			transformStep(row),
			"Inspect the transformation result and error log",
		),
		ExpectedResult: fmt.Sprintf("The invalid value is not written to %s and a validation error is reported", target),
		Type:           types.TypeFunctional,
		Subtype:        types.SubtypeNegative,
	}
}

// edgeSubtypeFor returns the subtype of a row's edge case.
func edgeSubtypeFor(row mapping.Row) types.Subtype {
	if row.Required {
		return types.SubtypeNegative
	}
	return types.SubtypePositive
}

func edgeCase(row mapping.Row) types.TestCase {
	target := row.QualifiedTarget()
	if row.Required {
		return types.TestCase{
			Description: fmt.Sprintf("Verify a missing value in required field %s is flagged for %s", sourceName(row), target),
			Steps: steps(
				fmt.Sprintf("Prepare a source record with %s empty", sourceName(row)),
				transformStep(row),
				"Inspect the transformation result and error log",
			),
			ExpectedResult: fmt.Sprintf("The record is rejected because required %s is missing", target),
			Type:           types.TypeEdge,
			Subtype:        types.SubtypeNegative,
		}
	}
	return types.TestCase{
		Description: fmt.Sprintf("Verify an empty optional field %s leaves %s absent", sourceName(row), target),
		Steps: steps(
			fmt.Sprintf("Prepare a source record with %s empty", sourceName(row)),
			transformStep(row),
			fmt.Sprintf("Inspect %s in the generated resource", target),
		),
		ExpectedResult: fmt.Sprintf("The resource is produced and %s is omitted", target),
		Type:           types.TypeEdge,
		Subtype:        types.SubtypePositive,
	}
}

// regressionCases returns one end-to-end case per distinct target resource,
// in order of first appearance.
func regressionCases(rows []mapping.Row) []types.TestCase {
	var (
		order []string
		attrs = make(map[string][]string)
	)
	for _, row := range rows {
		if !row.HasTarget() || row.TargetResource == "" {
			continue
		}
		key := strings.ToLower(row.TargetResource)
		if _, seen := attrs[key]; !seen {
			order = append(order, row.TargetResource)
		}
		attrs[key] = append(attrs[key], row.TargetAttr)
	}

	cases := make([]types.TestCase, 0, len(order))
	for _, resource := range order {
		mapped := strings.Join(attrs[strings.ToLower(resource)], ", ")
		cases = append(cases, types.TestCase{
			Description: fmt.Sprintf("Verify a complete source record still maps to a valid %s resource", resource),
			Steps: steps(
				fmt.Sprintf("Prepare a source record with valid values for every field mapped to %s", resource),
				"Run the full mapping",
				fmt.Sprintf("Validate the %s resource and compare %s against the baseline", resource, mapped),
			),
			ExpectedResult: fmt.Sprintf("A valid %s resource is produced with %s unchanged from the baseline", resource, mapped),
			Type:           types.TypeRegression,
			Subtype:        types.SubtypePositive,
		})
	}
	return cases
}

func sourceName(row mapping.Row) string {
	if row.SourceField != "" {
		return row.SourceField
	}
	return "the source field"
}

func dataTypeName(row mapping.Row) string {
	if row.DataType != "" {
		return row.DataType
	}
	return "input"
}

func transformStep(row mapping.Row) string {
	if row.Transformation != "" {
		return fmt.Sprintf("Run the mapping with transformation rule %q", row.Transformation)
	}
	return "Run the mapping"
}

func steps(lines ...string) string {
	var sb strings.Builder
	for i, line := range lines {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%d. %s", i+1, line)
	}
	return sb.String()
}
