package export

import (
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/jonathan/mapping-testgen/internal/types"
)

const (
	casesSheet = "Test Cases"
	statsSheet = "Statistics"
)

// XLSX renders a job result as a workbook with a test case sheet and a
// statistics sheet.
func XLSX(result *types.JobResult) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", casesSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(statsSheet); err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}

	for i, h := range Header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(casesSheet, cell, h)
	}

	wrap, err := f.NewStyle(&excelize.Style{Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"}})
	if err != nil {
		return nil, fmt.Errorf("create style: %w", err)
	}

	for r, tc := range result.TestCases {
		row := r + 2
		values := []any{tc.ID, tc.Description, tc.Steps, tc.ExpectedResult, string(tc.Type), string(tc.Subtype)}
		for c, v := range values {
			cell, _ := excelize.CoordinatesToCellName(c+1, row)
			_ = f.SetCellValue(casesSheet, cell, v)
		}
	}
	if n := len(result.TestCases); n > 0 {
		last, _ := excelize.CoordinatesToCellName(len(Header), n+1)
		_ = f.SetCellStyle(casesSheet, "A2", last, wrap)
	}

	_ = f.SetColWidth(casesSheet, "A", "A", 40)
	_ = f.SetColWidth(casesSheet, "B", "D", 50)
	_ = f.SetColWidth(casesSheet, "E", "F", 14)
	_ = f.SetPanes(casesSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	writeStatistics(f, result.Statistics)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func writeStatistics(f *excelize.File, stats types.Statistics) {
	row := 1
	put := func(label string, v any) {
		_ = f.SetCellValue(statsSheet, fmt.Sprintf("A%d", row), label)
		_ = f.SetCellValue(statsSheet, fmt.Sprintf("B%d", row), v)
		row++
	}

	put("TotalTestCases", stats.TotalTestCases)
	put("MappingRows", stats.MappingRows)
	put("UniqueAttributes", stats.UniqueAttributes)
	for _, k := range sortedKeys(stats.TestCaseTypeBreakdown) {
		put("Type "+k, stats.TestCaseTypeBreakdown[k])
	}
	for _, k := range sortedKeys(stats.SubtypeBreakdown) {
		put("Subtype "+k, stats.SubtypeBreakdown[k])
	}
	_ = f.SetColWidth(statsSheet, "A", "A", 24)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
