package jobs

import (
	"github.com/jonathan/mapping-testgen/internal/mapping"
	"github.com/jonathan/mapping-testgen/internal/types"
)

// ComputeStatistics summarises cases against the parsed mapping they came from.
func ComputeStatistics(cases []types.TestCase, parsed *mapping.Mapping) types.Statistics {
	stats := types.Statistics{
		TotalTestCases:        len(cases),
		TestCaseTypeBreakdown: make(map[string]int),
		SubtypeBreakdown:      make(map[string]int),
	}
	if parsed != nil {
		stats.MappingRows = len(parsed.Rows)
		stats.UniqueAttributes = parsed.UniqueAttributes()
	}
	for _, tc := range cases {
		stats.TestCaseTypeBreakdown[string(tc.Type)]++
		stats.SubtypeBreakdown[string(tc.Subtype)]++
	}
	return stats
}
