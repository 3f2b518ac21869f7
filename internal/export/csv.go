// Package export encodes job results into downloadable artifacts.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/mapping-testgen/internal/types"
)

// Header is the column row of the derived CSV artifact.
var Header = []string{"TestCaseID", "TestDescription", "TestSteps", "ExpectedResults", "TestCaseType", "Subtype"}

// CSV encodes test cases with standard CSV quoting: fields containing a comma,
// quote or newline are quoted and inner quotes doubled.
func CSV(cases []types.TestCase) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(Header); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, tc := range cases {
		record := []string{tc.ID, tc.Description, tc.Steps, tc.ExpectedResult, string(tc.Type), string(tc.Subtype)}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write test case %s: %w", tc.ID, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// ParseCSV decodes an artifact produced by CSV.
func ParseCSV(data []byte) ([]types.TestCase, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = len(Header)

	header, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("csv artifact is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	if strings.Join(header, ",") != strings.Join(Header, ",") {
		return nil, fmt.Errorf("unexpected csv header %q", strings.Join(header, ","))
	}

	var cases []types.TestCase
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv record: %w", err)
		}
		cases = append(cases, types.TestCase{
			ID:             record[0],
			Description:    record[1],
			Steps:          record[2],
			ExpectedResult: record[3],
			Type:           types.TestCaseType(record[4]),
			Subtype:        types.Subtype(record[5]),
		})
	}
	return cases, nil
}
