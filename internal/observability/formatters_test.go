package observability

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/mapping-testgen/internal/mapping"
	"github.com/jonathan/mapping-testgen/internal/types"
)

func TestPrintMapping(t *testing.T) {
	m, err := mapping.Parse("Source_Field,Target_FHIR_Resource,FHIR_Attribute,Required\n" +
		"name,Patient,name,Yes\n" +
		"dob,Patient,birthDate,No\n" +
		"notes,,,No\n")
	require.NoError(t, err)

	var buf bytes.Buffer
	NewPrinter(&buf).PrintMapping(m)

	out := buf.String()
	assert.Contains(t, out, "PARSED MAPPING")
	assert.Contains(t, out, "Rows:              3")
	assert.Contains(t, out, "Mapped rows:       2")
	assert.Contains(t, out, "Patient.name (required)")
	assert.Contains(t, out, "Patient.birthDate")
}

func TestPrintMapping_Nil(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintMapping(nil)
	assert.Empty(t, buf.String())
}

func TestPrintStatistics(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintStatistics(types.Statistics{
		TotalTestCases:        4,
		MappingRows:           1,
		UniqueAttributes:      1,
		TestCaseTypeBreakdown: map[string]int{"FUNCTIONAL": 2, "EDGE": 1, "REGRESSION": 1},
		SubtypeBreakdown:      map[string]int{"POSITIVE": 2, "NEGATIVE": 2},
	})

	out := buf.String()
	assert.Contains(t, out, "Total test cases:  4")
	assert.Less(t, strings.Index(out, "EDGE"), strings.Index(out, "FUNCTIONAL"), "breakdowns are sorted")
	assert.Contains(t, out, "By subtype:")
}

func TestPrintTestCases_Truncates(t *testing.T) {
	cases := make([]types.TestCase, 8)
	for i := range cases {
		cases[i] = types.TestCase{ID: fmt.Sprintf("B_001_TC_%03d_functional_positive", i+1), Description: strings.Repeat("long description ", 10)}
	}

	var buf bytes.Buffer
	NewPrinter(&buf).PrintTestCases(cases)

	out := buf.String()
	assert.Contains(t, out, "B_001_TC_005")
	assert.NotContains(t, out, "B_001_TC_006")
	assert.Contains(t, out, "... and 3 more")

	for _, line := range strings.Split(strings.TrimSuffix(out, "\n"), "\n") {
		assert.Equal(t, boxWidth, utf8.RuneCountInString(line), line)
	}
}
