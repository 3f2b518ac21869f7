//nolint:revive // types is a standard Go package name pattern
package types

import "strings"

// TestCaseType classifies what a test case exercises.
type TestCaseType string

// Test case types
const (
	TypeFunctional TestCaseType = "FUNCTIONAL"
	TypeRegression TestCaseType = "REGRESSION"
	TypeEdge       TestCaseType = "EDGE"
)

// Subtype distinguishes positive from negative scenarios.
type Subtype string

// Subtypes
const (
	SubtypePositive Subtype = "POSITIVE"
	SubtypeNegative Subtype = "NEGATIVE"
)

// ParseTestCaseType normalises s to a known type. Unknown values report ok=false.
func ParseTestCaseType(s string) (TestCaseType, bool) {
	switch t := TestCaseType(strings.ToUpper(strings.TrimSpace(s))); t {
	case TypeFunctional, TypeRegression, TypeEdge:
		return t, true
	}
	return TypeFunctional, false
}

// ParseSubtype normalises s to a known subtype. Unknown values report ok=false.
func ParseSubtype(s string) (Subtype, bool) {
	switch st := Subtype(strings.ToUpper(strings.TrimSpace(s))); st {
	case SubtypePositive, SubtypeNegative:
		return st, true
	}
	return SubtypePositive, false
}

// TestCase is one generated validation scenario.
type TestCase struct {
	ID             string       `json:"id"`
	Description    string       `json:"description"`
	Steps          string       `json:"steps"`
	ExpectedResult string       `json:"expected_result"`
	Type           TestCaseType `json:"type"`
	Subtype        Subtype      `json:"subtype"`
}
