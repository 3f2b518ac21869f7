package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/jonathan/mapping-testgen/internal/export"
	"github.com/jonathan/mapping-testgen/internal/generator"
	"github.com/jonathan/mapping-testgen/internal/types"
)

const mappingCSV = "Source_Field,Target_FHIR_Resource,FHIR_Attribute,Transformation_Rule,Data_Type,Required\n" +
	"name,Patient,name,Direct,string,Yes\n" +
	"dob,Patient,birthDate,Format,date,No\n"

type stubSource struct {
	content string
	err     error
}

func (s stubSource) FetchCSV(context.Context, string) (string, error) {
	return s.content, s.err
}

func writeMapping(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mapping.csv")
	require.NoError(t, os.WriteFile(path, []byte(mappingCSV), 0o644))
	return path
}

func TestGenerateTestCases_CSV(t *testing.T) {
	var out bytes.Buffer
	err := generateTestCases(context.Background(), generateOptions{
		Input:       writeMapping(t),
		BatchNumber: "007",
		Format:      "csv",
	}, generator.NewTemplate(), nil, nil, &out)
	require.NoError(t, err)

	cases, err := export.ParseCSV(out.Bytes())
	require.NoError(t, err)
	// two rows x three cases, plus one regression case for Patient
	require.Len(t, cases, 7)
	assert.Equal(t, "B_007_TC_001_functional_positive", cases[0].ID)
}

func TestGenerateTestCases_Summary(t *testing.T) {
	var out, summary bytes.Buffer
	err := generateTestCases(context.Background(), generateOptions{
		Input:       writeMapping(t),
		BatchNumber: "007",
		Summary:     &summary,
	}, generator.NewTemplate(), nil, nil, &out)
	require.NoError(t, err)

	assert.Contains(t, summary.String(), "PARSED MAPPING")
	assert.Contains(t, summary.String(), "Total test cases:  7")
	assert.Contains(t, summary.String(), "B_007_TC_001_functional_positive")
	assert.NotContains(t, out.String(), "PARSED MAPPING")
}

func TestGenerateTestCases_JSONFromStdin(t *testing.T) {
	var out bytes.Buffer
	err := generateTestCases(context.Background(), generateOptions{
		Input:       "-",
		BatchNumber: "001",
		Format:      "json",
	}, generator.NewTemplate(), nil, strings.NewReader(mappingCSV), &out)
	require.NoError(t, err)

	var result types.JobResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	assert.NotEmpty(t, result.JobID)
	assert.Nil(t, result.SourceURL)
	assert.Equal(t, len(result.TestCases), result.Statistics.TotalTestCases)
	assert.Equal(t, 2, result.Statistics.MappingRows)
	assert.Equal(t, 2, result.Statistics.UniqueAttributes)
}

func TestGenerateTestCases_XLSXFromURL(t *testing.T) {
	var out bytes.Buffer
	url := "https://github.com/acme/maps/blob/main/patient.csv"
	err := generateTestCases(context.Background(), generateOptions{
		URL:         url,
		BatchNumber: "002",
		Format:      "xlsx",
	}, generator.NewTemplate(), stubSource{content: mappingCSV}, nil, &out)
	require.NoError(t, err)

	f, err := excelize.OpenReader(&out)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	assert.Equal(t, []string{"Test Cases", "Statistics"}, f.GetSheetList())

	id, err := f.GetCellValue("Test Cases", "A2")
	require.NoError(t, err)
	assert.Equal(t, "B_002_TC_001_functional_positive", id)
}

func TestGenerateTestCases_Errors(t *testing.T) {
	tests := []struct {
		name    string
		opts    generateOptions
		gen     generator.Generator
		source  stubSource
		wantErr string
	}{
		{
			name:    "no input",
			opts:    generateOptions{BatchNumber: "001"},
			wantErr: "one of --in or --url is required",
		},
		{
			name:    "both inputs",
			opts:    generateOptions{Input: "x.csv", URL: "https://example.com/x.csv", BatchNumber: "001"},
			wantErr: "mutually exclusive",
		},
		{
			name:    "missing batch",
			opts:    generateOptions{Input: "-"},
			wantErr: "batch_number is required",
		},
		{
			name:    "unfetchable url",
			opts:    generateOptions{URL: "https://example.com/x.csv", BatchNumber: "001"},
			source:  stubSource{err: errors.New("404 not found")},
			wantErr: "404 not found",
		},
		{
			name:    "unknown format",
			opts:    generateOptions{Input: "-", BatchNumber: "001", Format: "pdf"},
			wantErr: "unsupported format",
		},
		{
			name:    "generator failure",
			opts:    generateOptions{Input: "-", BatchNumber: "001"},
			gen:     failingGen{},
			wantErr: "generation failed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := tt.gen
			if gen == nil {
				gen = generator.NewTemplate()
			}
			var out bytes.Buffer
			err := generateTestCases(context.Background(), tt.opts, gen, tt.source, strings.NewReader(mappingCSV), &out)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Zero(t, out.Len())
		})
	}
}

type failingGen struct{}

func (failingGen) Name() string { return "failing" }
func (failingGen) Generate(context.Context, generator.Request) ([]types.TestCase, error) {
	return nil, errors.New("boom")
}
