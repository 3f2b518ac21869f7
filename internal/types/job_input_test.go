//nolint:revive // types is a standard Go package name pattern
package types

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobInput_Validate(t *testing.T) {
	tests := []struct {
		name    string
		input   JobInput
		wantErr bool
		errTag  string
	}{
		{
			name:  "inline csv",
			input: JobInput{CSVMapping: "a,b\n1,2", BatchNumber: "001", UserID: "u1"},
		},
		{
			name:  "github url",
			input: JobInput{GitHubURL: "https://github.com/org/repo/blob/main/map.csv", BatchNumber: "001", UserID: "u1", BatchSize: 10},
		},
		{
			name:    "missing both sources",
			input:   JobInput{BatchNumber: "001", UserID: "u1"},
			wantErr: true,
			errTag:  "required_without",
		},
		{
			name:    "both sources set",
			input:   JobInput{CSVMapping: "a", GitHubURL: "https://example.com/x.csv", BatchNumber: "001", UserID: "u1"},
			wantErr: true,
			errTag:  "excluded_with",
		},
		{
			name:    "missing batch number",
			input:   JobInput{CSVMapping: "a", UserID: "u1"},
			wantErr: true,
			errTag:  "required",
		},
		{
			name:    "missing user id",
			input:   JobInput{CSVMapping: "a", BatchNumber: "001"},
			wantErr: true,
			errTag:  "required",
		},
		{
			name:    "invalid url",
			input:   JobInput{GitHubURL: "not a url", BatchNumber: "001", UserID: "u1"},
			wantErr: true,
			errTag:  "url",
		},
		{
			name:    "batch size out of range",
			input:   JobInput{CSVMapping: "a", BatchNumber: "001", UserID: "u1", BatchSize: 5000},
			wantErr: true,
			errTag:  "max",
		},
		{
			name:    "batch number with path separator",
			input:   JobInput{CSVMapping: "a", BatchNumber: "../x", UserID: "u1"},
			wantErr: true,
			errTag:  "excludesall",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.input.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var verrs validator.ValidationErrors
			require.True(t, errors.As(err, &verrs))
			assert.Equal(t, tt.errTag, verrs[0].Tag())
		})
	}
}

func TestJobInput_Normalize(t *testing.T) {
	in := JobInput{
		CSVMapping:  "  \n ",
		GitHubURL:   " https://example.com/a.csv ",
		BatchNumber: " 007 ",
		UserID:      "\tu1\n",
	}
	in.Normalize()

	assert.Empty(t, in.CSVMapping)
	assert.Equal(t, "https://example.com/a.csv", in.GitHubURL)
	assert.Equal(t, "007", in.BatchNumber)
	assert.Equal(t, "u1", in.UserID)
}

func TestJobStatus(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusProcessing.IsTerminal())
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())

	assert.True(t, StatusProcessing.Valid())
	assert.False(t, JobStatus("running").Valid())
}

func TestParseTestCaseType(t *testing.T) {
	typ, ok := ParseTestCaseType(" edge ")
	assert.True(t, ok)
	assert.Equal(t, TypeEdge, typ)

	typ, ok = ParseTestCaseType("smoke")
	assert.False(t, ok)
	assert.Equal(t, TypeFunctional, typ)

	st, ok := ParseSubtype("negative")
	assert.True(t, ok)
	assert.Equal(t, SubtypeNegative, st)

	st, ok = ParseSubtype("")
	assert.False(t, ok)
	assert.Equal(t, SubtypePositive, st)
}

func TestValidationMessage(t *testing.T) {
	tests := []struct {
		name      string
		input     JobInput
		wantField string
		wantMsg   string
	}{
		{
			name:      "missing batch number",
			input:     JobInput{CSVMapping: "a", UserID: "u1"},
			wantField: "batch_number",
			wantMsg:   "batch_number is required",
		},
		{
			name:      "no source",
			input:     JobInput{BatchNumber: "1", UserID: "u1"},
			wantField: "csv_mapping",
			wantMsg:   "one of csv_mapping or github_url is required",
		},
		{
			name:      "bad url",
			input:     JobInput{GitHubURL: "not a url", BatchNumber: "1", UserID: "u1"},
			wantField: "github_url",
			wantMsg:   "github_url must be a valid URL",
		},
		{
			name:      "batch size too large",
			input:     JobInput{CSVMapping: "a", BatchNumber: "1", UserID: "u1", BatchSize: 1001},
			wantField: "batch_size",
			wantMsg:   "batch_size must be at most 1000",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			field, msg := ValidationMessage(tt.input.Validate())
			assert.Equal(t, tt.wantField, field)
			assert.Equal(t, tt.wantMsg, msg)
		})
	}

	field, msg := ValidationMessage(errors.New("plain"))
	assert.Empty(t, field)
	assert.Equal(t, "plain", msg)
}
