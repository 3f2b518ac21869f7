package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/mapping-testgen/internal/mapping"
	"github.com/jonathan/mapping-testgen/internal/types"
)

func TestComputeStatistics(t *testing.T) {
	parsed, err := mapping.Parse(multiRowCSV)
	require.NoError(t, err)

	cases := []types.TestCase{
		{Type: types.TypeFunctional, Subtype: types.SubtypePositive},
		{Type: types.TypeFunctional, Subtype: types.SubtypeNegative},
		{Type: types.TypeEdge, Subtype: types.SubtypeNegative},
		{Type: types.TypeRegression, Subtype: types.SubtypePositive},
	}

	stats := ComputeStatistics(cases, parsed)
	assert.Equal(t, 4, stats.TotalTestCases)
	assert.Equal(t, 4, stats.MappingRows)
	assert.Equal(t, 3, stats.UniqueAttributes)
	assert.Equal(t, map[string]int{"FUNCTIONAL": 2, "EDGE": 1, "REGRESSION": 1}, stats.TestCaseTypeBreakdown)
	assert.Equal(t, map[string]int{"POSITIVE": 2, "NEGATIVE": 2}, stats.SubtypeBreakdown)
}

func TestComputeStatistics_Empty(t *testing.T) {
	stats := ComputeStatistics(nil, nil)
	assert.Zero(t, stats.TotalTestCases)
	assert.NotNil(t, stats.TestCaseTypeBreakdown)
	assert.NotNil(t, stats.SubtypeBreakdown)
}

func TestNotReadyError(t *testing.T) {
	pending := &NotReadyError{JobID: "j", Status: types.StatusPending}
	assert.False(t, pending.Failed())
	assert.Contains(t, pending.Error(), "not ready")

	failed := &NotReadyError{JobID: "j", Status: types.StatusFailed, Message: "boom"}
	assert.True(t, failed.Failed())
	assert.Equal(t, "job j failed: boom", failed.Error())
}
